// Package parser turns free-form user text into structured intents and
// fuzzy-matches event descriptions against real calendar entries. The heavy
// lifting is delegated to a language model behind the small Completer
// interface; provider adapters live in the openai and anthropic subpackages.
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/calweave/calweave/calendar"
	"github.com/calweave/calweave/intent"
	"github.com/calweave/calweave/logging"
)

// Completer is the minimal completion capability a provider adapter must
// expose: one system-prompted exchange returning raw model text.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Parser extracts intents and resolves fuzzy event references.
type Parser interface {
	// Parse extracts zero or more intents from user text.
	Parse(ctx context.Context, text string) ([]intent.Intent, error)

	// MatchEvent resolves a fuzzy description to one of the given events,
	// returning nil when nothing matches.
	MatchEvent(ctx context.Context, hint string, events []calendar.Event) (*calendar.Event, error)

	// BatchMatchEvents resolves several descriptions against the same event
	// list in one shot, preserving input order. Unmatched entries are nil.
	BatchMatchEvents(ctx context.Context, hints []string, events []calendar.Event) ([]*calendar.Event, error)

	// ExcludeByHints returns the events NOT matching any hint, i.e. the ones
	// a cancel-all-except should remove. Empty hints keep nothing.
	ExcludeByHints(ctx context.Context, hints []string, events []calendar.Event) ([]calendar.Event, error)
}

const (
	extractionMaxTokens = 1024
	matchMaxTokens      = 16
	batchMatchMaxTokens = 64
)

// Options configures an LLMParser.
type Options struct {
	Logger logging.Logger

	// Now anchors relative-date interpretation ("tomorrow"). Overridable
	// for deterministic tests.
	Now func() time.Time
}

// parserCallRecorder is the optional richer logging surface for completed
// parse calls; logging.AssistantLogger implements it.
type parserCallRecorder interface {
	LogParserCall(provider string, intents int, dur time.Duration, success bool, err error)
}

// LLMParser implements Parser on top of any Completer.
type LLMParser struct {
	completer Completer
	opts      Options
}

func (p *LLMParser) logParserCall(intents int, start time.Time, err error) {
	if r, ok := p.opts.Logger.(parserCallRecorder); ok {
		r.LogParserCall(fmt.Sprintf("%T", p.completer), intents, time.Since(start), err == nil, err)
	}
}

var _ Parser = (*LLMParser)(nil)

// New creates an LLMParser over the given completion provider.
func New(completer Completer, optFns ...func(o *Options)) *LLMParser {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &LLMParser{completer: completer, opts: opts}
}

// WithLogger injects a logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// WithNow overrides the parser's clock.
func WithNow(now func() time.Time) func(o *Options) {
	return func(o *Options) { o.Now = now }
}

// Parse implements Parser. Malformed model output yields an empty intent
// list, not an error; items with unknown discriminators are skipped.
func (p *LLMParser) Parse(ctx context.Context, text string) ([]intent.Intent, error) {
	start := time.Now()
	system := fmt.Sprintf(extractionPrompt, p.opts.Now().Format("2006-01-02"))

	raw, err := p.completer.Complete(ctx, system, text, extractionMaxTokens)
	if err != nil {
		p.opts.Logger.Error("intent extraction failed", "error", err)
		p.logParserCall(0, start, err)
		return nil, fmt.Errorf("parse: %w", err)
	}

	cleaned := cleanResponse(raw)
	if cleaned == "" || cleaned == "[]" || cleaned == "null" {
		p.opts.Logger.Info("no actions found in message", "text_prefix", prefix(text, 80))
		p.logParserCall(0, start, nil)
		return nil, nil
	}

	intents := p.decodeIntents(cleaned)
	p.opts.Logger.Info("message parsed",
		"intents", len(intents),
		"duration", time.Since(start),
	)
	p.logParserCall(len(intents), start, nil)
	return intents, nil
}

// decodeIntents decodes the model's JSON, tolerating a bare object and
// skipping array items that fail to decode.
func (p *LLMParser) decodeIntents(cleaned string) []intent.Intent {
	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &raws); err != nil {
		// Some models emit a single object instead of a one-element array.
		single, serr := intent.Unmarshal([]byte(cleaned))
		if serr != nil {
			p.opts.Logger.Error("model response is not valid intent JSON", "error", err, "raw", prefix(cleaned, 200))
			return nil
		}
		return []intent.Intent{single}
	}

	var intents []intent.Intent
	for _, raw := range raws {
		it, err := intent.Unmarshal(raw)
		if err != nil {
			p.opts.Logger.Warn("skipping undecodable intent item", "error", err)
			continue
		}
		intents = append(intents, it)
	}
	return intents
}

// MatchEvent implements Parser. All failures degrade to a nil match.
func (p *LLMParser) MatchEvent(ctx context.Context, hint string, events []calendar.Event) (*calendar.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	system := fmt.Sprintf(matchPrompt, hint, eventLines(events))
	raw, err := p.completer.Complete(ctx, system, "Which event index matches?", matchMaxTokens)
	if err != nil {
		p.opts.Logger.Error("event match failed", "hint", hint, "error", err)
		return nil, nil
	}

	answer := strings.ToLower(strings.TrimSpace(raw))
	if answer == "none" {
		return nil, nil
	}
	index, err := strconv.Atoi(answer)
	if err != nil || index < 0 || index >= len(events) {
		p.opts.Logger.Warn("match response is not a valid index", "raw", answer)
		return nil, nil
	}

	matched := events[index]
	p.opts.Logger.Info("event matched", "hint", hint, "summary", matched.Summary)
	return &matched, nil
}

// BatchMatchEvents implements Parser. A malformed batch response falls back
// to sequential MatchEvent calls.
func (p *LLMParser) BatchMatchEvents(ctx context.Context, hints []string, events []calendar.Event) ([]*calendar.Event, error) {
	if len(events) == 0 || len(hints) == 0 {
		return make([]*calendar.Event, len(hints)), nil
	}

	matches, err := p.batchMatchOnce(ctx, hints, events)
	if err == nil {
		return matches, nil
	}
	p.opts.Logger.Warn("batch match failed, falling back to sequential matching", "error", err)

	out := make([]*calendar.Event, len(hints))
	for i, hint := range hints {
		out[i], _ = p.MatchEvent(ctx, hint, events)
	}
	return out, nil
}

func (p *LLMParser) batchMatchOnce(ctx context.Context, hints []string, events []calendar.Event) ([]*calendar.Event, error) {
	var sb strings.Builder
	for i, hint := range hints {
		fmt.Fprintf(&sb, "%d. %q\n", i, hint)
	}

	system := fmt.Sprintf(batchMatchPrompt, sb.String(), eventLines(events))
	raw, err := p.completer.Complete(ctx, system, "Which event indices match?", batchMatchMaxTokens)
	if err != nil {
		return nil, err
	}

	var indices []any
	if err := json.Unmarshal([]byte(cleanResponse(raw)), &indices); err != nil {
		return nil, fmt.Errorf("decode batch match response: %w", err)
	}
	if len(indices) != len(hints) {
		return nil, fmt.Errorf("expected %d indices, got %d", len(hints), len(indices))
	}

	out := make([]*calendar.Event, len(hints))
	for i, idx := range indices {
		n, ok := idx.(float64)
		if !ok || n != float64(int(n)) {
			continue // "none", null or junk
		}
		if j := int(n); j >= 0 && j < len(events) {
			matched := events[j]
			out[i] = &matched
		}
	}
	return out, nil
}

// ExcludeByHints implements Parser: it matches the keep-hints and returns
// everything else. Empty hints mean nothing is kept.
func (p *LLMParser) ExcludeByHints(ctx context.Context, hints []string, events []calendar.Event) ([]calendar.Event, error) {
	if len(hints) == 0 {
		return append([]calendar.Event(nil), events...), nil
	}

	keeps, err := p.BatchMatchEvents(ctx, hints, events)
	if err != nil {
		return nil, err
	}

	keepIDs := make(map[string]bool, len(keeps))
	for _, kept := range keeps {
		if kept != nil {
			keepIDs[kept.ID] = true
		}
	}

	var cancel []calendar.Event
	for _, ev := range events {
		if !keepIDs[ev.ID] {
			cancel = append(cancel, ev)
		}
	}
	return cancel, nil
}

// cleanResponse strips markdown code fences models like to wrap JSON in.
func cleanResponse(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

func eventLines(events []calendar.Event) string {
	var sb strings.Builder
	for i, ev := range events {
		fmt.Fprintf(&sb, "%d. %s\n", i, ev.DisplaySummary())
	}
	return sb.String()
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
