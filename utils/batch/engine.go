// Package batch runs the active prompt over every response item, splitting
// the items into bounded gateway calls and reassembling one result per item.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/gateway"
	"github.com/kris-hansen/summaprompt/utils/matcher"
	"github.com/kris-hansen/summaprompt/utils/progress"
	"github.com/kris-hansen/summaprompt/utils/session"
	"golang.org/x/sync/errgroup"
)

// Error markers stored in InferenceResult.Error
const (
	ErrMissing       = "missing_from_response"
	ErrUnparseable   = "unparseable_response"
	ErrEmptySummary  = "empty_summary"
	gatewayErrPrefix = "gateway_"
)

// Request is one summarization run
type Request struct {
	Prompt string
	Items  []session.ResponseItem
	Model  string
	Types  []session.SummaryType
}

// Engine summarizes response items through a gateway
type Engine struct {
	gw       gateway.Gateway
	cfg      config.BatchConfig
	progress progress.Writer
	now      func() time.Time
}

// New creates an engine. Zero limits in cfg fall back to the defaults.
func New(gw gateway.Gateway, cfg config.BatchConfig) *Engine {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = config.DefaultBatchItems
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = config.DefaultBatchChars
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = config.DefaultConcurrency
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = config.DefaultBatchMaxTokens
	}
	return &Engine{gw: gw, cfg: cfg, progress: progress.Discard, now: time.Now}
}

// WithProgress returns a copy of the engine reporting to w
func (e *Engine) WithProgress(w progress.Writer) *Engine {
	clone := *e
	if w == nil {
		w = progress.Discard
	}
	clone.progress = w
	return &clone
}

// Span is the half-open index range [Start, End) of one batch
type Span struct {
	Start, End int
}

// Split groups items into consecutive batches holding at most maxItems items
// and, unless a single item is larger, at most maxChars characters of text
func Split(items []session.ResponseItem, maxItems, maxChars int) []Span {
	var spans []Span
	start, chars := 0, 0
	for i, item := range items {
		n := len(item.Text)
		count := i - start
		if count > 0 && (count >= maxItems || chars+n > maxChars) {
			spans = append(spans, Span{Start: start, End: i})
			start, chars = i, 0
		}
		chars += n
	}
	if start < len(items) {
		spans = append(spans, Span{Start: start, End: len(items)})
	}
	return spans
}

type outcome struct {
	failed    bool
	missing   int
	errored   int
	unmatched int
	note      string
}

// Summarize returns exactly one result per item, in item order. Failures are
// recorded on the affected results and in the report, never returned.
func (e *Engine) Summarize(ctx context.Context, req Request) ([]session.InferenceResult, session.RunReport) {
	report := session.RunReport{Model: req.Model, StartedAt: e.now().UTC()}
	results := make([]session.InferenceResult, len(req.Items))
	for i, item := range req.Items {
		results[i] = session.InferenceResult{ItemIndex: i, ItemID: item.Identifier}
	}

	spans := Split(req.Items, e.cfg.MaxItems, e.cfg.MaxChars)
	report.Batches = len(spans)
	outcomes := make([]outcome, len(spans))
	m := matcher.New(req.Types)

	config.VerboseLog("[Batch] Summarizing %d items in %d batches with %s", len(req.Items), len(spans), req.Model)

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for b, span := range spans {
		g.Go(func() error {
			outcomes[b] = e.runBatch(ctx, req, b, len(spans), span, m, results)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.failed {
			report.FailedCalls++
		}
		report.Missing += o.missing
		report.Errored += o.errored
		report.Unmatched += o.unmatched
		if o.note != "" {
			report.FailureNotes = append(report.FailureNotes, o.note)
		}
	}
	report.FinishedAt = e.now().UTC()

	e.progress.WriteProgress(progress.Update{
		Type:    progress.TypeComplete,
		Message: fmt.Sprintf("Summarized %d items (%d errored, %d unmatched)", len(results), report.Errored, report.Unmatched),
		Batches: len(spans),
		Items:   len(results),
	})
	return results, report
}

// runBatch fills results[span.Start:span.End]. It never touches other slots.
func (e *Engine) runBatch(ctx context.Context, req Request, b, total int, span Span, m *matcher.Matcher, results []session.InferenceResult) outcome {
	var o outcome
	size := span.End - span.Start
	e.progress.WriteProgress(progress.Update{
		Type:    progress.TypeBatchStarted,
		Message: fmt.Sprintf("Batch %d/%d: %d items", b+1, total, size),
		Batch:   b + 1,
		Batches: total,
		Items:   size,
	})

	prompt := BuildPrompt(req.Prompt, req.Items, span, req.Types)
	text, err := e.gw.Complete(ctx, prompt, req.Model, e.cfg.MaxTokens)
	if err != nil {
		marker := gatewayErrPrefix + string(kindOf(err))
		for i := span.Start; i < span.End; i++ {
			results[i].Error = marker
			results[i].RawModelOutput = err.Error()
		}
		o.failed = true
		o.errored = size
		o.note = fmt.Sprintf("batch %d (items %d-%d): %v", b+1, span.Start, span.End-1, err)
		config.VerboseLog("[Batch] %s", o.note)
		e.progress.WriteProgress(progress.Update{Type: progress.TypeBatchFailed, Message: o.note, Batch: b + 1, Batches: total, Error: err.Error()})
		return o
	}

	records, err := ParseResponse(text, span.Start, span.End)
	if err != nil {
		for i := span.Start; i < span.End; i++ {
			results[i].Error = ErrUnparseable
			results[i].RawModelOutput = text
		}
		o.errored = size
		o.note = fmt.Sprintf("batch %d (items %d-%d): unparseable model output: %v", b+1, span.Start, span.End-1, err)
		config.VerboseLog("[Batch] %s", o.note)
		e.progress.WriteProgress(progress.Update{Type: progress.TypeBatchFailed, Message: o.note, Batch: b + 1, Batches: total, Error: err.Error()})
		return o
	}

	for i := span.Start; i < span.End; i++ {
		rec, ok := records[i]
		switch {
		case !ok:
			results[i].Error = ErrMissing
			results[i].RawModelOutput = text
			o.missing++
			o.errored++
		case rec.Summary == "":
			results[i].Error = ErrEmptySummary
			results[i].RawModelOutput = rec.Raw
			o.errored++
		default:
			results[i].SummaryText = rec.Summary
			results[i].RawModelOutput = rec.Raw
			results[i].MatchedTypeKey = m.Match(rec.Type)
			if results[i].MatchedTypeKey == nil {
				o.unmatched++
			}
		}
	}
	if o.missing > 0 {
		o.note = fmt.Sprintf("batch %d (items %d-%d): %d items missing from model output", b+1, span.Start, span.End-1, o.missing)
		config.DebugLog("[Batch] %s", o.note)
	}

	e.progress.WriteProgress(progress.Update{
		Type:    progress.TypeBatchDone,
		Message: fmt.Sprintf("Batch %d/%d done", b+1, total),
		Batch:   b + 1,
		Batches: total,
		Items:   size,
	})
	return o
}

func kindOf(err error) gateway.Kind {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return gateway.KindTimeout
	}
	return gateway.KindUnrecognized
}

type wireItem struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id,omitempty"`
	SpeakerRole    string `json:"speaker_role,omitempty"`
}

// BuildPrompt appends the batch's items, keyed by their global index, the
// valid type keys and the output schema to the instruction prompt
func BuildPrompt(instructions string, items []session.ResponseItem, span Span, types []session.SummaryType) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(instructions))
	b.WriteString("\n\nResponses = {\n")
	for i := span.Start; i < span.End; i++ {
		item := items[i]
		data, _ := json.Marshal(wireItem{Text: item.Text, ConversationID: item.ConversationID, SpeakerRole: item.SpeakerRole})
		b.WriteString("  ")
		b.WriteString(strconv.Quote(strconv.Itoa(i)))
		b.WriteString(": ")
		b.Write(data)
		if i < span.End-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n\n")

	if len(types) > 0 {
		b.WriteString("Valid summary types (use the key):\n")
		for _, t := range types {
			fmt.Fprintf(&b, "- %s: %s\n", t.Key, t.Name)
		}
		b.WriteString("\n")
	}

	b.WriteString("Do not return any explanation or preamble.\n")
	b.WriteString("Return one entry for every response above, using its number as the index, in this format:\n")
	b.WriteString(`[{"index": <response number>, "summary": "<summary>", "type": "<summary type key>"}]`)
	b.WriteString("\n")
	return b.String()
}
