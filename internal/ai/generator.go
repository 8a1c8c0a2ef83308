package ai

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"
)

// MaxVariants caps how many AI drafts one call may produce.
const MaxVariants = 3

const (
	ModeAI       = "ai"
	ModeFallback = "fallback"
)

const fallbackNotice = "AI API not available - using fallback mode"

// Settings is the runtime configuration the generator reads on every call.
type Settings struct {
	Enabled   bool
	Tone      string
	Signature string
	Prompt    string
}

// Result is the outcome of Respond.
type Result struct {
	Text        string  `json:"text"`
	IsGenerated bool    `json:"is_generated"`
	Mode        string  `json:"mode"`
	Error       *string `json:"error"`
}

// Generator produces answers for reviews. It never calls the API while the breaker is open.
type Generator struct {
	client    Completer
	breaker   *QuotaBreaker
	templates *TemplateSet
	settings  func() Settings
	log       *slog.Logger
}

func NewGenerator(client Completer, breaker *QuotaBreaker, templates *TemplateSet, settings func() Settings, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	if settings == nil {
		settings = func() Settings { return Settings{Enabled: true, Tone: ToneFriendly} }
	}
	return &Generator{client: client, breaker: breaker, templates: templates, settings: settings, log: log}
}

func (g *Generator) Breaker() *QuotaBreaker { return g.breaker }

// Available reports whether an AI call would be attempted right now.
func (g *Generator) Available() bool {
	return g.settings().Enabled && g.client.HasKey() && g.breaker.Allow()
}

// call wraps Complete and trips the breaker on quota errors.
func (g *Generator) call(ctx context.Context, req ChatRequest) (string, error) {
	out, err := g.client.Complete(ctx, req)
	if errors.Is(err, ErrQuotaExceeded) {
		g.breaker.Trip(err.Error())
		g.log.Warn("openai quota exceeded, ai disabled until reset", "error", err)
	}
	return out, err
}

// Variants generates up to n drafts one after another. A quota error stops the loop and keeps
// what was produced so far; any other error skips that variant.
func (g *Generator) Variants(ctx context.Context, reviewText string, n int) []string {
	if !g.Available() {
		return nil
	}
	s := g.settings()
	n = min(n, MaxVariants)
	var drafts []string
	for variant := 1; variant <= n; variant++ {
		if !g.breaker.Allow() {
			break
		}
		prompt := fill(g.templates.VariantPrompt, map[string]string{
			"review_text": reviewText,
			"tone":        NormalizeTone(s.Tone),
			"signature":   s.Signature,
			"variant":     strconv.Itoa(variant),
		})
		text, err := g.call(ctx, ChatRequest{
			Messages:    []Message{{Role: "user", Content: prompt}},
			MaxTokens:   300,
			Temperature: 0.7,
		})
		if errors.Is(err, ErrQuotaExceeded) {
			break
		}
		if err != nil {
			g.log.Error("draft variant failed", "variant", variant, "error", err)
			continue
		}
		drafts = append(drafts, text)
	}
	return drafts
}

// Respond returns one answer for reviewText: from the API when possible, otherwise a template.
// The configured signature is appended in both modes.
func (g *Generator) Respond(ctx context.Context, reviewText string) Result {
	return g.respond(ctx, reviewText, g.settings())
}

// RespondWithTone is Respond with the configured tone replaced; an empty tone keeps it.
func (g *Generator) RespondWithTone(ctx context.Context, reviewText, tone string) Result {
	s := g.settings()
	if tone != "" {
		s.Tone = tone
	}
	return g.respond(ctx, reviewText, s)
}

func (g *Generator) respond(ctx context.Context, reviewText string, s Settings) Result {
	tone := NormalizeTone(s.Tone)

	if g.Available() {
		system := strings.TrimSpace(s.Prompt)
		if system == "" {
			system = g.templates.SystemPrompt(tone)
		}
		text, err := g.call(ctx, ChatRequest{
			Messages: []Message{
				{Role: "system", Content: system},
				{Role: "user", Content: fill(g.templates.RespondUserPrompt, map[string]string{"review_text": reviewText, "tone": tone})},
			},
			MaxTokens:   300,
			Temperature: 0.7,
		})
		if err == nil {
			return Result{Text: withSignature(text, s.Signature), IsGenerated: true, Mode: ModeAI}
		}
		g.log.Warn("ai response failed, using fallback", "error", err)
	}

	res := Result{Text: g.Fallback(reviewText, tone, s.Signature), IsGenerated: true, Mode: ModeFallback}
	if g.client.HasKey() {
		msg := fallbackNotice
		res.Error = &msg
	}
	return res
}

// Fallback picks the negative or positive template for tone and appends signature.
func (g *Generator) Fallback(reviewText, tone, signature string) string {
	return withSignature(g.templates.FallbackText(reviewText, tone), signature)
}

func withSignature(text, signature string) string {
	if strings.TrimSpace(signature) == "" {
		return text
	}
	return text + "\n\n" + signature
}

var (
	sentiments = []string{"positive", "neutral", "negative"}
	categories = []string{"quality", "delivery", "packaging", "service", "other"}
)

// Classify returns sentiment and category labels. Either is nil when the API is unusable or
// answers with something outside the label set.
func (g *Generator) Classify(ctx context.Context, reviewText string) (sentiment, category *string) {
	if !g.Available() {
		return nil, nil
	}
	sentiment = g.label(ctx, g.templates.SentimentPrompt, reviewText, sentiments)
	if !g.breaker.Allow() {
		return sentiment, nil
	}
	category = g.label(ctx, g.templates.CategoryPrompt, reviewText, categories)
	return sentiment, category
}

func (g *Generator) label(ctx context.Context, tpl, reviewText string, allowed []string) *string {
	out, err := g.call(ctx, ChatRequest{
		Messages:  []Message{{Role: "user", Content: fill(tpl, map[string]string{"review_text": reviewText})}},
		MaxTokens: 10,
	})
	if err != nil {
		g.log.Warn("review classification failed", "error", err)
		return nil
	}
	word := strings.Trim(strings.ToLower(strings.TrimSpace(out)), ".!\"' ")
	if !slices.Contains(allowed, word) {
		return nil
	}
	return &word
}

// Health is the report of GET /api/health/ai.
type Health struct {
	Available       bool     `json:"available"`
	APIKeySet       bool     `json:"api_key_set"`
	AIEnabled       bool     `json:"ai_enabled"`
	CurrentModel    string   `json:"current_model"`
	SupportedModels []string `json:"supported_models"`
	QuotaExceeded   bool     `json:"quota_exceeded"`
	Error           *string  `json:"error"`
	ModelAvailable  bool     `json:"model_available"`
	LatencyMS       *int64   `json:"latency_ms"`
	FallbackMode    bool     `json:"fallback_mode"`
}

// CheckHealth probes the API with a one-token completion.
func (g *Generator) CheckHealth(ctx context.Context) Health {
	h := Health{
		APIKeySet:       g.client.HasKey(),
		AIEnabled:       g.settings().Enabled,
		CurrentModel:    g.client.Model(),
		SupportedModels: SupportedModels,
		QuotaExceeded:   !g.breaker.Allow(),
	}
	fail := func(msg string) Health {
		h.Error = &msg
		h.FallbackMode = true
		return h
	}
	if !h.APIKeySet {
		return fail("OpenAI API key not configured")
	}

	start := time.Now()
	_, err := g.call(ctx, ChatRequest{Messages: []Message{{Role: "user", Content: "healthcheck"}}, MaxTokens: 1})
	switch {
	case errors.Is(err, ErrUnauthorized):
		return fail("Invalid API key")
	case errors.Is(err, ErrQuotaExceeded):
		h.QuotaExceeded = true
		return fail("Rate limit or quota exceeded: " + err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fail("API timeout")
	case err != nil:
		return fail(err.Error())
	}
	latency := time.Since(start).Milliseconds()
	h.LatencyMS = &latency
	h.Available = true
	h.ModelAvailable = true
	h.FallbackMode = !h.AIEnabled || h.QuotaExceeded
	return h
}

