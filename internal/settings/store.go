// Package settings keeps the runtime-tunable configuration of the review desk and
// writes every change back to the env file so it survives a restart.
package settings

import (
	"errors"
	"io/fs"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/tgwork/backend/internal/ai"
	"github.com/tgwork/backend/internal/config"
)

const (
	MinPollingMinutes = 1
	MaxPollingMinutes = 1440
)

// Values is a snapshot of the runtime settings.
type Values struct {
	Tone           string
	Signature      string
	Prompt         string
	AIEnabled      bool
	AutoResponse   bool
	PollingMinutes int
	OpenAIModel    string
	OpenAIKey      string
	OzonClientID   string
	OzonAPIKey     string
}

func (v Values) env() map[string]string {
	return map[string]string{
		"RESPONSE_TONE":            v.Tone,
		"RESPONSE_SIGNATURE":       v.Signature,
		"RESPONSE_PROMPT":          v.Prompt,
		"AI_ENABLED":               strconv.FormatBool(v.AIEnabled),
		"AUTO_RESPONSE_ENABLED":    strconv.FormatBool(v.AutoResponse),
		"POLLING_INTERVAL_MINUTES": strconv.Itoa(v.PollingMinutes),
		"OPENAI_MODEL":             v.OpenAIModel,
		"OPENAI_API_KEY":           v.OpenAIKey,
		"OZON_CLIENT_ID":           v.OzonClientID,
		"OZON_API_KEY":             v.OzonAPIKey,
	}
}

// Store is safe for concurrent use. Readers get copies.
type Store struct {
	mu      sync.RWMutex
	v       Values
	envFile string
	log     *slog.Logger
}

func NewStore(cfg *config.Config, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	minutes := int(cfg.PollingInterval / time.Minute)
	if minutes < MinPollingMinutes {
		minutes = 30
	}
	return &Store{
		envFile: cfg.EnvFile,
		log:     log,
		v: Values{
			Tone:           ai.NormalizeTone(cfg.ResponseTone),
			Signature:      cfg.ResponseSign,
			Prompt:         cfg.ResponsePrompt,
			AIEnabled:      cfg.AIEnabled,
			AutoResponse:   cfg.AutoResponse,
			PollingMinutes: minutes,
			OpenAIModel:    cfg.OpenAIModel,
			OpenAIKey:      cfg.OpenAIKey,
			OzonClientID:   cfg.OzonClientID,
			OzonAPIKey:     cfg.OzonAPIKey,
		},
	}
}

func (s *Store) Get() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

// AI is the generator's view of the settings.
func (s *Store) AI() ai.Settings {
	v := s.Get()
	return ai.Settings{Enabled: v.AIEnabled, Tone: v.Tone, Signature: v.Signature, Prompt: v.Prompt}
}

func (s *Store) AutoResponse() bool { return s.Get().AutoResponse }

// Update applies fn under the write lock and persists the result. The in-memory change
// stands even when writing the env file fails; the error is returned for logging.
func (s *Store) Update(fn func(*Values)) (Values, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.v)
	return s.v, s.persist(s.v)
}

// persist merges the tracked keys into the env file and leaves any other entries alone.
func (s *Store) persist(v Values) error {
	if s.envFile == "" {
		return nil
	}
	current, err := godotenv.Read(s.envFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		current = map[string]string{}
	}
	for k, val := range v.env() {
		current[k] = val
	}
	if err := godotenv.Write(current, s.envFile); err != nil {
		return err
	}
	s.log.Debug("settings persisted", "file", s.envFile)
	return nil
}

// Mask keeps the last four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	r := []rune(secret)
	if len(r) <= 4 {
		return "****"
	}
	return "****" + string(r[len(r)-4:])
}
