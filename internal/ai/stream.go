package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// readBatchSize bounds how many bytes are pulled from the response body per
// read before scanning.
const readBatchSize = 4096

// TextSource is the upstream generative endpoint as the extractors see it:
// a source of raw response text, either streamed or fully buffered. Request
// construction and credentials live behind the implementation.
type TextSource interface {
	// OpenStream starts a streaming generation and returns the live body.
	OpenStream(ctx context.Context, prompt string) (io.ReadCloser, error)

	// FetchOnce runs a single blocking generation and returns the whole
	// response body as text.
	FetchOnce(ctx context.Context, prompt string) (string, error)
}

// Fragment is one unit of streamed analysis output. Err is set only for
// terminal failures; recoverable conditions (decode failures, upstream-
// declared errors) arrive as readable bracketed Text notices instead.
type Fragment struct {
	Text string
	Err  error
}

// DefaultKeywords returns the financial-domain keyword set used by the
// prompt gate in production.
func DefaultKeywords() []string {
	return []string{
		"budget", "spending", "expense", "income", "savings",
		"transaction", "category", "cashflow", "financial", "money",
		"cost", "price", "amount", "balance", "account",
	}
}

// StreamExtractor consumes a live model response stream and emits decoded
// text fragments as complete JSON objects arrive. One instance may serve
// many calls; all mutable scanning state is per call.
type StreamExtractor struct {
	source   TextSource
	keywords []string
	log      *logrus.Logger
}

// NewStreamExtractor creates a streaming extractor. The keyword set is
// fixed at construction; pass DefaultKeywords() for production use.
func NewStreamExtractor(source TextSource, keywords []string, log *logrus.Logger) *StreamExtractor {
	return &StreamExtractor{source: source, keywords: keywords, log: log}
}

// Stream validates the prompt, opens the upstream stream and returns a
// channel of fragments in arrival order. The channel is closed when the
// stream ends, the context is cancelled, or a terminal error is emitted.
// Rejected prompts yield a single notice fragment without contacting the
// upstream at all.
func (e *StreamExtractor) Stream(ctx context.Context, prompt string) <-chan Fragment {
	out := make(chan Fragment, 8)
	go func() {
		defer close(out)
		e.run(ctx, prompt, out)
	}()
	return out
}

func (e *StreamExtractor) run(ctx context.Context, prompt string, out chan<- Fragment) {
	if strings.TrimSpace(prompt) == "" {
		out <- Fragment{Text: "[Error: Prompt cannot be empty]"}
		return
	}
	if matched := e.matchKeywords(prompt); len(matched) == 0 {
		out <- Fragment{Text: e.guidanceNotice()}
		return
	}

	body, err := e.source.OpenStream(ctx, prompt)
	if err != nil {
		out <- Fragment{Text: fmt.Sprintf("[Error: %v]", err)}
		return
	}
	defer body.Close()

	var scanner Scanner
	buf := make([]byte, readBatchSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			for _, object := range scanner.Feed(string(buf[:n])) {
				if !e.emitCandidate(ctx, object, out) {
					return
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, context.Canceled) {
				if scanner.Pending() {
					e.log.Debug("Discarding unterminated object at end of stream")
				}
				return
			}
			out <- Fragment{Err: fmt.Errorf("reading response stream: %w", readErr)}
			return
		}
	}
}

// streamChunk is the upstream response shape for one streamed object. The
// text leaf is a pointer so a missing key is distinguishable from an empty
// string.
type streamChunk struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// emitCandidate decodes one candidate object and sends the resulting
// fragment. It returns false when streaming must stop: either the context
// was cancelled or the object was valid JSON missing the expected key path,
// which indicates an upstream contract change and is surfaced as a terminal
// error rather than swallowed.
func (e *StreamExtractor) emitCandidate(ctx context.Context, object string, out chan<- Fragment) bool {
	var chunk streamChunk
	if err := json.Unmarshal([]byte(object), &chunk); err != nil {
		e.log.Warnf("Failed to decode stream chunk: %v", err)
		return e.send(ctx, out, Fragment{Text: "[Data parsing error]"})
	}

	if chunk.Error != nil {
		return e.send(ctx, out, Fragment{Text: fmt.Sprintf("[API Error: %s]", chunk.Error.Message)})
	}

	if len(chunk.Candidates) == 0 || len(chunk.Candidates[0].Content.Parts) == 0 ||
		chunk.Candidates[0].Content.Parts[0].Text == nil {
		e.send(ctx, out, Fragment{Err: fmt.Errorf("unexpected response structure: %q", object)})
		return false
	}

	if text := *chunk.Candidates[0].Content.Parts[0].Text; text != "" {
		return e.send(ctx, out, Fragment{Text: text})
	}
	return true
}

func (e *StreamExtractor) send(ctx context.Context, out chan<- Fragment, f Fragment) bool {
	select {
	case out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

// matchKeywords returns the configured keywords present in the prompt,
// matched case-insensitively as substrings. The gate is a cheap domain
// filter, not a security boundary.
func (e *StreamExtractor) matchKeywords(prompt string) []string {
	lower := strings.ToLower(prompt)
	var matched []string
	for _, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

func (e *StreamExtractor) guidanceNotice() string {
	examples := e.keywords
	if len(examples) > 5 {
		examples = examples[:5]
	}
	return fmt.Sprintf(
		"[Notice: No financial keywords were detected in your prompt. This assistant answers personal-finance questions; try including terms like %s]",
		strings.Join(examples, ", "))
}
