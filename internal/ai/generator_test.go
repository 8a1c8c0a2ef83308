package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeCompleter replays scripted results in order; the last one repeats.
type fakeCompleter struct {
	mu      sync.Mutex
	key     bool
	results []fakeResult
	calls   []ChatRequest
}

type fakeResult struct {
	text string
	err  error
}

func (f *fakeCompleter) Complete(_ context.Context, req ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if len(f.results) == 0 {
		return "", errors.New("no scripted result")
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.text, r.err
}

func (f *fakeCompleter) HasKey() bool  { return f.key }
func (f *fakeCompleter) Model() string { return DefaultModel }

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func mustTemplates(t *testing.T) *TemplateSet {
	t.Helper()
	ts, err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	return ts
}

func newTestGenerator(t *testing.T, c *fakeCompleter, s Settings) *Generator {
	t.Helper()
	return NewGenerator(c, NewQuotaBreaker(0), mustTemplates(t), func() Settings { return s }, nil)
}

func TestRespond_NoKeyUsesFallback(t *testing.T) {
	c := &fakeCompleter{}
	g := newTestGenerator(t, c, Settings{Enabled: true, Tone: ToneFriendly})

	res := g.Respond(context.Background(), "Отлично, спасибо!")
	want := "Спасибо за ваш отзыв! 😊 Мы очень рады, что вам понравился наш товар! Ваше мнение помогает нам улучшать качество обслуживания. Надеемся на долгое сотрудничество! 🙌"
	if res.Text != want {
		t.Errorf("text:\n got %q\nwant %q", res.Text, want)
	}
	if res.Mode != ModeFallback || !res.IsGenerated || res.Error != nil {
		t.Errorf("result: %+v", res)
	}
	if c.callCount() != 0 {
		t.Errorf("no API call expected without a key, got %d", c.callCount())
	}
}

func TestRespond_NegativeWithSignature(t *testing.T) {
	c := &fakeCompleter{}
	g := newTestGenerator(t, c, Settings{Enabled: true, Tone: "unknown", Signature: "Команда"})

	res := g.Respond(context.Background(), "Товар СЛОМАН, полный брак")
	if !strings.HasPrefix(res.Text, "Спасибо за обратную связь! 😔") {
		t.Errorf("expected friendly negative template, got %q", res.Text)
	}
	if !strings.HasSuffix(res.Text, "\n\nКоманда") {
		t.Errorf("signature not appended: %q", res.Text)
	}
}

func TestRespond_AIModeAndFailure(t *testing.T) {
	c := &fakeCompleter{key: true, results: []fakeResult{{text: "Благодарим!"}}}
	g := newTestGenerator(t, c, Settings{Enabled: true, Tone: ToneOfficial, Signature: "S"})

	res := g.Respond(context.Background(), "ok")
	if res.Mode != ModeAI || res.Text != "Благодарим!\n\nS" || res.Error != nil {
		t.Fatalf("ai result: %+v", res)
	}
	if sys := c.calls[0].Messages[0]; sys.Role != "system" || !strings.Contains(sys.Content, "официальный") {
		t.Errorf("system prompt: %+v", sys)
	}

	c.results = []fakeResult{{err: errors.New("timeout")}}
	res = g.Respond(context.Background(), "ok")
	if res.Mode != ModeFallback || res.Error == nil || *res.Error != fallbackNotice {
		t.Errorf("fallback after failure: %+v", res)
	}
}

func TestVariants_BreakerTripsOn429(t *testing.T) {
	c := &fakeCompleter{key: true, results: []fakeResult{
		{text: "draft one"},
		{err: ErrQuotaExceeded},
		{text: "never"},
	}}
	g := newTestGenerator(t, c, Settings{Enabled: true})

	drafts := g.Variants(context.Background(), "nice", 3)
	if len(drafts) != 1 || drafts[0] != "draft one" {
		t.Fatalf("drafts: %v", drafts)
	}
	if c.callCount() != 2 {
		t.Errorf("loop should stop at the quota error, calls %d", c.callCount())
	}
	if g.Breaker().Allow() {
		t.Fatal("breaker should be open")
	}

	// Open breaker: no further calls, fallback answer.
	if more := g.Variants(context.Background(), "nice", 3); more != nil {
		t.Errorf("no drafts expected while open, got %v", more)
	}
	if res := g.Respond(context.Background(), "nice"); res.Mode != ModeFallback {
		t.Errorf("respond while open: %+v", res)
	}
	if c.callCount() != 2 {
		t.Errorf("no calls expected while open, got %d", c.callCount())
	}

	g.Breaker().Reset()
	if !g.Available() {
		t.Error("reset should close the breaker")
	}
}

func TestVariants_SkipsTransientErrors(t *testing.T) {
	c := &fakeCompleter{key: true, results: []fakeResult{
		{text: "a"},
		{err: ErrUpstreamStatus},
		{text: "c"},
	}}
	g := newTestGenerator(t, c, Settings{Enabled: true})

	drafts := g.Variants(context.Background(), "review", 10)
	if len(drafts) != 2 || drafts[0] != "a" || drafts[1] != "c" {
		t.Errorf("drafts: %v", drafts)
	}
	if c.callCount() != MaxVariants {
		t.Errorf("calls: got %d, want %d", c.callCount(), MaxVariants)
	}
	if !strings.Contains(c.calls[2].Messages[0].Content, "Response draft #3") {
		t.Error("variant number missing from prompt")
	}
}

func TestVariants_DisabledMakesNoCalls(t *testing.T) {
	c := &fakeCompleter{key: true, results: []fakeResult{{text: "x"}}}
	g := newTestGenerator(t, c, Settings{Enabled: false})
	if drafts := g.Variants(context.Background(), "r", 3); drafts != nil || c.callCount() != 0 {
		t.Errorf("drafts %v, calls %d", drafts, c.callCount())
	}
}

func TestClassify(t *testing.T) {
	c := &fakeCompleter{key: true, results: []fakeResult{{text: "Negative."}, {text: "shipping"}}}
	g := newTestGenerator(t, c, Settings{Enabled: true})

	sentiment, category := g.Classify(context.Background(), "late and broken")
	if sentiment == nil || *sentiment != "negative" {
		t.Errorf("sentiment: %v", sentiment)
	}
	if category != nil {
		t.Errorf("unknown category should be nil, got %q", *category)
	}
}

func TestQuotaBreaker_Cooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewQuotaBreaker(time.Hour)
	b.now = func() time.Time { return now }

	b.Trip("429")
	if b.Allow() || !b.State().Open {
		t.Fatal("breaker should be open after Trip")
	}
	now = now.Add(59 * time.Minute)
	if b.Allow() {
		t.Error("breaker should stay open inside cooldown")
	}
	now = now.Add(time.Minute)
	if !b.Allow() {
		t.Error("breaker should close after cooldown")
	}
}

func TestQuotaBreaker_NoCooldownStaysOpen(t *testing.T) {
	b := NewQuotaBreaker(0)
	b.Trip("insufficient_quota")
	b.now = func() time.Time { return time.Now().Add(1000 * time.Hour) }
	if b.Allow() {
		t.Fatal("breaker without cooldown must stay open")
	}
	b.Reset()
	if !b.Allow() {
		t.Error("Reset should close the breaker")
	}
}

func TestNormalizeTone(t *testing.T) {
	for in, want := range map[string]string{"": ToneFriendly, "FORMAL": ToneFormal, "official": ToneOfficial, "rude": ToneFriendly} {
		if got := NormalizeTone(in); got != want {
			t.Errorf("NormalizeTone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRespondWithTone_OverridesConfiguredTone(t *testing.T) {
	c := &fakeCompleter{}
	ts := mustTemplates(t)
	g := NewGenerator(c, NewQuotaBreaker(0), ts, func() Settings { return Settings{Enabled: true, Tone: ToneFriendly} }, nil)

	text := "Всё пришло вовремя"
	got := g.RespondWithTone(context.Background(), text, ToneOfficial)
	if want := ts.FallbackText(text, ToneOfficial); got.Text != want {
		t.Errorf("official override:\n got %q\nwant %q", got.Text, want)
	}
	if kept := g.RespondWithTone(context.Background(), text, ""); kept.Text != ts.FallbackText(text, ToneFriendly) {
		t.Errorf("empty tone did not keep the configured one: %q", kept.Text)
	}
}
