// Package corrector implements the LLM-backed correction service that feeds
// the annotation engine in production.
//
// The [Corrector] sends user text to an [llm.Provider] with a conservative
// system prompt instructing the model to return the same text with every fix
// wrapped in inline <correction> markup. The response is fed through
// [annotate.ParseMarkup]; when the model ignored the markup instructions but
// still changed the text, the service falls back to a word-level diff via
// [annotate.ExtractSpans]. Unusable model output degrades to "no
// corrections" — the caller never sees an error for content the model
// garbled, only for provider failures (network, auth, cancellation).
//
// An optional second pass asks the model to explain the corrections it made
// and merges the explanations idempotently via [annotate.MergeExplanations].
package corrector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redlinehq/redline/internal/annotate"
	"github.com/redlinehq/redline/internal/observe"
	llm "github.com/redlinehq/redline/pkg/provider/llm"
)

const (
	defaultTemperature = 0.1

	// StrategyDiff is reported when the model's reply carried no usable
	// markup and corrections were recovered by diffing instead.
	StrategyDiff = "diff"
)

// correctionSystemPrompt instructs the model to annotate rather than merely
// rewrite, so that span boundaries survive the round trip.
const correctionSystemPrompt = `You are a careful copy editor.

Rewrite the user's text with every mistake fixed. Wrap each replacement in a <correction> tag:

<correction type="TYPE" original="ORIGINAL">REPLACEMENT</correction>

where TYPE is one of: spelling, grammar, punctuation, capitalization, word-choice
and ORIGINAL is the exact text being replaced.

Rules:
- Fix only genuine mistakes. Do NOT rephrase sentences that are already correct.
- All text outside the tags must be copied from the input verbatim.
- Escape literal <, > and & characters in the text as &lt;, &gt; and &amp;.
- Respond with ONLY the annotated text: no preamble, no markdown fences, no commentary.

If the text contains no mistakes, return it unchanged with no tags.`

// explanationSystemPrompt drives the optional second pass. The model sees the
// corrections it already made and is asked only to justify them.
const explanationSystemPrompt = `You are a careful copy editor explaining corrections that were already made.

For each correction the user lists, write one short plain-language sentence explaining why the change was needed.

Respond with ONLY a JSON array in this exact format (no markdown, no prose):
[
  {"original": "<original text>", "corrected": "<replacement text>", "explanation": "<one sentence>"}
]`

// Settings are the hot-reloadable tuning knobs of a [Corrector]. A zero
// Temperature or MaxTokens defers to the provider default.
type Settings struct {
	// Temperature for both completion passes.
	Temperature float64

	// MaxTokens caps completion length. Zero means provider default.
	MaxTokens int

	// Explanations enables the second completion pass.
	Explanations bool

	// Timeout bounds a full Correct call including the explanation pass.
	// Zero means no corrector-level timeout.
	Timeout time.Duration
}

// Result is the outcome of a correction round trip. On the markup path
// CleanText is the model's corrected text and the corrections index into it.
// On the diff fallback path there was no markup to strip, so CleanText equals
// OriginalText (the submission) and the corrections annotate it in place.
type Result struct {
	annotate.ParseResult

	// Strategy names how corrections were recovered from the model output:
	// "structural", "regex", "diff", or "none".
	Strategy string `json:"strategy"`

	// Model is the provider model that produced the corrections.
	Model string `json:"model"`
}

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithSettings sets the initial tuning values. Later changes go through
// [Corrector.ApplySettings].
func WithSettings(s Settings) Option {
	return func(c *Corrector) {
		if s.Temperature == 0 {
			s.Temperature = defaultTemperature
		}
		c.settings = s
	}
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Corrector) {
		c.metrics = m
	}
}

// Corrector turns free-form user text into a [Result] using an
// [llm.Provider]. It is safe for concurrent use.
//
// Model selection follows the one-provider-per-model pattern: to use a
// specific model, construct the [llm.Provider] with that model configured
// rather than overriding per request.
type Corrector struct {
	llm     llm.Provider
	metrics *observe.Metrics

	mu       sync.RWMutex
	settings Settings
}

// New returns a new [Corrector] backed by the given [llm.Provider].
func New(provider llm.Provider, opts ...Option) *Corrector {
	c := &Corrector{
		llm:      provider,
		settings: Settings{Temperature: defaultTemperature},
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// ApplySettings swaps in new tuning values. In-flight calls finish with the
// settings they started with.
func (c *Corrector) ApplySettings(s Settings) {
	if s.Temperature == 0 {
		s.Temperature = defaultTemperature
	}
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
}

// Settings returns the current tuning values.
func (c *Corrector) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// ModelID reports the underlying provider's model identifier.
func (c *Corrector) ModelID() string {
	return c.llm.ModelID()
}

// Correct runs the full correction pipeline on text.
//
// Provider failures (network, auth, context cancellation) are returned as
// errors. Everything the model can get wrong on its own — missing markup,
// malformed tags, prose instead of annotations — degrades to a valid Result
// with fewer or no corrections. A failed explanation pass leaves the
// corrections unexplained rather than failing the call.
func (c *Corrector) Correct(ctx context.Context, text string) (*Result, error) {
	st := c.Settings()

	if strings.TrimSpace(text) == "" {
		return &Result{
			ParseResult: annotate.ParseResult{
				CleanText:    text,
				OriginalText: text,
				Corrections:  []annotate.Correction{},
			},
			Strategy: "none",
			Model:    c.llm.ModelID(),
		}, nil
	}

	if st.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.Timeout)
		defer cancel()
	}

	content, err := c.complete(ctx, correctionSystemPrompt, text, st)
	if err != nil {
		return nil, fmt.Errorf("corrector: correction pass: %w", err)
	}
	cleaned := stripMarkdown(content)

	parsed, strategy := annotate.ParseMarkup(cleaned)
	if strategy == "none" && len(parsed.Corrections) == 0 && cleaned != text && cleaned != "" {
		// The model rewrote the text without tagging anything. Recover the
		// spans by diffing; they index into the submitted text.
		parsed = annotate.ExtractSpans(text, cleaned)
		strategy = StrategyDiff
	}
	if strategy != "structural" {
		c.metrics.RecordParseFallback(ctx, strategy)
	}

	// OriginalText in the result is always the caller's submission, not the
	// marked-up model reply.
	parsed.OriginalText = text

	for errType, n := range countByType(parsed.Corrections) {
		c.metrics.RecordCorrections(ctx, errType, n)
	}

	if st.Explanations && len(parsed.Corrections) > 0 {
		notes := c.explain(ctx, parsed.CleanText, parsed.Corrections, st)
		parsed.Corrections = annotate.MergeExplanations(parsed.Corrections, notes)
	}

	return &Result{
		ParseResult: parsed,
		Strategy:    strategy,
		Model:       c.llm.ModelID(),
	}, nil
}

// complete performs one provider round trip and records latency and
// request-outcome metrics.
func (c *Corrector) complete(ctx context.Context, sysPrompt, userMsg string, st Settings) (string, error) {
	req := llm.CompletionRequest{
		SystemPrompt: sysPrompt,
		Temperature:  st.Temperature,
		MaxTokens:    st.MaxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: userMsg},
		},
	}

	start := time.Now()
	resp, err := c.llm.Complete(ctx, req)
	c.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordProviderRequest(ctx, c.llm.ModelID(), "llm", "error")
		c.metrics.RecordProviderError(ctx, c.llm.ModelID(), "llm")
		return "", err
	}
	c.metrics.RecordProviderRequest(ctx, c.llm.ModelID(), "llm", "ok")
	if resp == nil {
		return "", nil
	}
	return resp.Content, nil
}

// explain runs the explanation pass. Any failure — provider error or
// unparseable JSON — is logged and yields nil notes; the corrections simply
// stay unexplained.
func (c *Corrector) explain(ctx context.Context, cleanText string, corrections []annotate.Correction, st Settings) []annotate.Note {
	var sb strings.Builder
	sb.WriteString("Corrected text: ")
	sb.WriteString(cleanText)
	sb.WriteString("\n\nCorrections:\n")
	for _, corr := range corrections {
		fmt.Fprintf(&sb, "- %q -> %q (%s)\n", corr.Original, corr.Corrected, corr.Type)
	}

	content, err := c.complete(ctx, explanationSystemPrompt, sb.String(), st)
	if err != nil {
		slog.Warn("explanation pass failed", "error", err)
		return nil
	}

	var notes []annotate.Note
	if err := json.Unmarshal([]byte(stripMarkdown(content)), &notes); err != nil {
		slog.Warn("explanation pass returned unparseable JSON", "error", err)
		return nil
	}
	return notes
}

// countByType aggregates corrections by error type for metric recording.
func countByType(corrections []annotate.Correction) map[string]int64 {
	counts := make(map[string]int64, 4)
	for _, c := range corrections {
		counts[string(c.Type)]++
	}
	return counts
}

// stripMarkdown removes optional markdown code fences (```xml ... ```) that
// some models wrap around their output despite instructions.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```xml", "```html", "```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
