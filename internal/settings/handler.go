package settings

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tgwork/backend/internal/ai"
	"github.com/tgwork/backend/internal/models"
	"github.com/tgwork/backend/internal/ozon"
	"github.com/tgwork/backend/internal/respond"
)

// AIClient is implemented by *ai.Client.
type AIClient interface {
	SetAPIKey(key string)
	SetModel(model string) error
	HasKey() bool
	KeySet() bool
	Model() string
}

// Responder is implemented by *ai.Generator.
type Responder interface {
	RespondWithTone(ctx context.Context, reviewText, tone string) ai.Result
	CheckHealth(ctx context.Context) ai.Health
}

// Marketplace is implemented by *ozon.Client.
type Marketplace interface {
	SetCredentials(clientID, apiKey string)
	Configured() bool
	ListReviews(ctx context.Context, limit, offset int) (*ozon.Page, error)
}

type Rescheduler interface {
	Reschedule(minutes int)
}

// KVStore is implemented by *repository.SettingsRepo.
type KVStore interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Put(ctx context.Context, key, value string) (*models.Setting, error)
}

// Handler serves /api/settings/* and /api/health/*.
type Handler struct {
	Store     *Store
	KV        KVStore
	AI        AIClient
	Breaker   *ai.QuotaBreaker
	Generator Responder
	Ozon      Marketplace
	Poller    Rescheduler
	Logger    *slog.Logger
	Now       func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// save applies fn. An env file write error is logged, not returned.
func (h *Handler) save(fn func(*Values)) Values {
	v, err := h.Store.Update(fn)
	if err != nil {
		h.log().Warn("settings changed in memory but not persisted", "error", err)
	}
	return v
}

type statusOK struct {
	Status string `json:"status"`
}

var okBody = statusOK{Status: "ok"}

type settingsView struct {
	Tone                   string `json:"tone"`
	Signature              string `json:"signature"`
	Prompt                 string `json:"prompt"`
	AIEnabled              bool   `json:"ai_enabled"`
	AutoResponseEnabled    bool   `json:"auto_response_enabled"`
	PollingIntervalMinutes int    `json:"polling_interval_minutes"`
	OpenAIModel            string `json:"openai_model"`
	OpenAIAPIKey           string `json:"openai_api_key"`
	OzonClientID           string `json:"ozon_client_id"`
	OzonAPIKey             string `json:"ozon_api_key"`
}

func viewOf(v Values) settingsView {
	return settingsView{
		Tone:                   v.Tone,
		Signature:              v.Signature,
		Prompt:                 v.Prompt,
		AIEnabled:              v.AIEnabled,
		AutoResponseEnabled:    v.AutoResponse,
		PollingIntervalMinutes: v.PollingMinutes,
		OpenAIModel:            v.OpenAIModel,
		OpenAIAPIKey:           Mask(v.OpenAIKey),
		OzonClientID:           v.OzonClientID,
		OzonAPIKey:             Mask(v.OzonAPIKey),
	}
}

// GET /api/settings
func (h *Handler) GetAll(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, viewOf(h.Store.Get()))
}

type kvRequest struct {
	Value string `json:"value"`
}

// GET /api/settings/kv/{key}
func (h *Handler) GetKV(w http.ResponseWriter, r *http.Request) {
	s, err := h.KV.Get(r.Context(), r.PathValue("key"))
	if errors.Is(err, pgx.ErrNoRows) {
		respond.Error(w, http.StatusNotFound, "setting not found")
		return
	}
	if err != nil {
		respond.Fail(w, h.log(), err)
		return
	}
	respond.JSON(w, http.StatusOK, s)
}

// PUT /api/settings/kv/{key}
func (h *Handler) PutKV(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("key"))
	if key == "" {
		respond.Error(w, http.StatusBadRequest, "key is required")
		return
	}
	var body kvRequest
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s, err := h.KV.Put(r.Context(), key, body.Value)
	if err != nil {
		respond.Fail(w, h.log(), err)
		return
	}
	respond.JSON(w, http.StatusOK, s)
}

type ozonRequest struct {
	ClientID string `json:"client_id"`
	APIKey   string `json:"api_key"`
}

type ozonView struct {
	ClientID   string `json:"client_id"`
	APIKey     string `json:"api_key"`
	Configured bool   `json:"configured"`
}

// GET /api/settings/ozon
func (h *Handler) GetOzon(w http.ResponseWriter, r *http.Request) {
	v := h.Store.Get()
	respond.JSON(w, http.StatusOK, ozonView{ClientID: v.OzonClientID, APIKey: Mask(v.OzonAPIKey), Configured: h.Ozon.Configured()})
}

// POST /api/settings/ozon
func (h *Handler) SetOzon(w http.ResponseWriter, r *http.Request) {
	var body ozonRequest
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	id, key := strings.TrimSpace(body.ClientID), strings.TrimSpace(body.APIKey)
	if id == "" || key == "" {
		respond.Error(w, http.StatusBadRequest, "client_id and api_key are required")
		return
	}
	h.Ozon.SetCredentials(id, key)
	h.save(func(v *Values) { v.OzonClientID, v.OzonAPIKey = id, key })
	h.log().Info("ozon credentials updated", "client_id", id)
	respond.JSON(w, http.StatusOK, okBody)
}

type openAIRequest struct {
	APIKey string `json:"api_key"`
}

type openAIView struct {
	APIKey       string `json:"api_key"`
	APIKeySet    bool   `json:"api_key_set"`
	Model        string `json:"model"`
	QuotaBlocked bool   `json:"quota_exceeded"`
}

// GET /api/settings/openai
func (h *Handler) GetOpenAI(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, openAIView{
		APIKey:       Mask(h.Store.Get().OpenAIKey),
		APIKeySet:    h.AI.HasKey(),
		Model:        h.AI.Model(),
		QuotaBlocked: h.Breaker.State().Open,
	})
}

// POST /api/settings/openai
func (h *Handler) SetOpenAI(w http.ResponseWriter, r *http.Request) {
	var body openAIRequest
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	key := strings.TrimSpace(body.APIKey)
	if key == "" {
		respond.Error(w, http.StatusBadRequest, "api_key is required")
		return
	}
	h.AI.SetAPIKey(key)
	h.Breaker.Reset()
	h.save(func(v *Values) { v.OpenAIKey = key })
	h.log().Info("openai key updated", "usable", h.AI.HasKey())
	respond.JSON(w, http.StatusOK, okBody)
}

type modelRequest struct {
	Model string `json:"model"`
}

// POST /api/settings/openai/model
func (h *Handler) SetModel(w http.ResponseWriter, r *http.Request) {
	var body modelRequest
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	model := strings.TrimSpace(body.Model)
	if err := h.AI.SetModel(model); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	h.Breaker.Reset()
	h.save(func(v *Values) { v.OpenAIModel = model })
	h.log().Info("openai model changed", "model", model)
	respond.JSON(w, http.StatusOK, modelRequest{Model: model})
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

// POST /api/settings/ai/toggle
func (h *Handler) ToggleAI(w http.ResponseWriter, r *http.Request) {
	var body toggleRequest
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	v := h.save(func(v *Values) { v.AIEnabled = body.Enabled })
	respond.JSON(w, http.StatusOK, toggleRequest{Enabled: v.AIEnabled})
}

// POST /api/settings/ai/reset-quota
func (h *Handler) ResetQuota(w http.ResponseWriter, r *http.Request) {
	h.Breaker.Reset()
	h.log().Info("ai quota breaker reset")
	respond.JSON(w, http.StatusOK, okBody)
}

type responseSettings struct {
	Tone                   *string `json:"tone"`
	Signature              *string `json:"signature"`
	Prompt                 *string `json:"prompt"`
	PollingIntervalMinutes *int    `json:"polling_interval_minutes"`
}

type responseView struct {
	Tone                   string `json:"tone"`
	Signature              string `json:"signature"`
	Prompt                 string `json:"prompt"`
	PollingIntervalMinutes int    `json:"polling_interval_minutes"`
}

func responseViewOf(v Values) responseView {
	return responseView{Tone: v.Tone, Signature: v.Signature, Prompt: v.Prompt, PollingIntervalMinutes: v.PollingMinutes}
}

// GET /api/settings/response
func (h *Handler) GetResponse(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, responseViewOf(h.Store.Get()))
}

// POST /api/settings/response
func (h *Handler) SetResponse(w http.ResponseWriter, r *http.Request) {
	var body responseSettings
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Tone != nil && ai.NormalizeTone(*body.Tone) != strings.ToLower(strings.TrimSpace(*body.Tone)) {
		respond.Error(w, http.StatusBadRequest, "tone must be friendly, official or formal")
		return
	}
	if p := body.PollingIntervalMinutes; p != nil && (*p < MinPollingMinutes || *p > MaxPollingMinutes) {
		respond.Error(w, http.StatusBadRequest, "polling_interval_minutes must be within 1..1440")
		return
	}

	before := h.Store.Get().PollingMinutes
	v := h.save(func(v *Values) {
		if body.Tone != nil {
			v.Tone = ai.NormalizeTone(*body.Tone)
		}
		if body.Signature != nil {
			v.Signature = *body.Signature
		}
		if body.Prompt != nil {
			v.Prompt = *body.Prompt
		}
		if body.PollingIntervalMinutes != nil {
			v.PollingMinutes = *body.PollingIntervalMinutes
		}
	})
	if v.PollingMinutes != before && h.Poller != nil {
		h.Poller.Reschedule(v.PollingMinutes)
	}
	respond.JSON(w, http.StatusOK, responseViewOf(v))
}

// GET /api/settings/auto-response
func (h *Handler) GetAutoResponse(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, toggleRequest{Enabled: h.Store.AutoResponse()})
}

// POST /api/settings/auto-response
func (h *Handler) SetAutoResponse(w http.ResponseWriter, r *http.Request) {
	var body toggleRequest
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	v := h.save(func(v *Values) { v.AutoResponse = body.Enabled })
	respond.JSON(w, http.StatusOK, toggleRequest{Enabled: v.AutoResponse})
}

type testRequest struct {
	Text string `json:"text"`
	Tone string `json:"tone"`
}

// POST /api/settings/auto-response/test
func (h *Handler) TestAutoResponse(w http.ResponseWriter, r *http.Request) {
	var body testRequest
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	text := strings.TrimSpace(body.Text)
	if len([]rune(text)) < 3 {
		respond.Error(w, http.StatusBadRequest, "review text too short")
		return
	}
	respond.JSON(w, http.StatusOK, h.Generator.RespondWithTone(r.Context(), text, body.Tone))
}

type healthView struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, healthView{Status: "ok", Time: h.now().UTC()})
}

type integrationsView struct {
	OzonConfigured      bool            `json:"ozon_configured"`
	OpenAIConfigured    bool            `json:"openai_configured"`
	OpenAIKeySet        bool            `json:"openai_key_set"`
	AIEnabled           bool            `json:"ai_enabled"`
	AutoResponseEnabled bool            `json:"auto_response_enabled"`
	Quota               ai.BreakerState `json:"quota"`
}

// GET /api/health/integrations
func (h *Handler) Integrations(w http.ResponseWriter, r *http.Request) {
	v := h.Store.Get()
	respond.JSON(w, http.StatusOK, integrationsView{
		OzonConfigured:      h.Ozon.Configured(),
		OpenAIConfigured:    h.AI.HasKey(),
		OpenAIKeySet:        h.AI.KeySet(),
		AIEnabled:           v.AIEnabled,
		AutoResponseEnabled: v.AutoResponse,
		Quota:               h.Breaker.State(),
	})
}

// GET /api/health/ai
func (h *Handler) AIHealth(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, h.Generator.CheckHealth(r.Context()))
}

type ozonProbe struct {
	Status  string `json:"status"`
	Fetched int    `json:"fetched"`
}

// POST /api/health/test-ozon
func (h *Handler) TestOzon(w http.ResponseWriter, r *http.Request) {
	page, err := h.Ozon.ListReviews(r.Context(), 20, 0)
	if err != nil {
		h.log().Warn("ozon probe failed", "error", err)
		respond.Error(w, http.StatusBadGateway, err.Error())
		return
	}
	respond.JSON(w, http.StatusOK, ozonProbe{Status: "ok", Fetched: len(page.Reviews)})
}
