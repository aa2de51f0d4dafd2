package ai

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource is a TextSource serving a canned body, optionally one byte at
// a time to exercise chunk boundaries.
type stubSource struct {
	body     string
	openErr  error
	byteWise bool
	opened   bool
}

func (s *stubSource) OpenStream(ctx context.Context, prompt string) (io.ReadCloser, error) {
	s.opened = true
	if s.openErr != nil {
		return nil, s.openErr
	}
	var r io.Reader = strings.NewReader(s.body)
	if s.byteWise {
		r = iotest.OneByteReader(r)
	}
	return io.NopCloser(r), nil
}

func (s *stubSource) FetchOnce(ctx context.Context, prompt string) (string, error) {
	s.opened = true
	return s.body, s.openErr
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func collect(ch <-chan Fragment) []Fragment {
	var fragments []Fragment
	for f := range ch {
		fragments = append(fragments, f)
	}
	return fragments
}

func textChunk(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, text)
}

func TestStreamEmptyPromptRejectedWithoutUpstreamCall(t *testing.T) {
	source := &stubSource{}
	extractor := NewStreamExtractor(source, DefaultKeywords(), testLogger())

	fragments := collect(extractor.Stream(context.Background(), ""))
	require.Len(t, fragments, 1)
	assert.Equal(t, "[Error: Prompt cannot be empty]", fragments[0].Text)
	assert.False(t, source.opened)
}

func TestStreamOffDomainPromptRejectedWithoutUpstreamCall(t *testing.T) {
	source := &stubSource{}
	extractor := NewStreamExtractor(source, DefaultKeywords(), testLogger())

	fragments := collect(extractor.Stream(context.Background(), "Tell me a joke"))
	require.Len(t, fragments, 1)
	assert.Contains(t, fragments[0].Text, "No financial keywords")
	assert.False(t, source.opened)
}

func TestStreamKeywordMatchIsCaseInsensitive(t *testing.T) {
	source := &stubSource{body: textChunk("ok")}
	extractor := NewStreamExtractor(source, DefaultKeywords(), testLogger())

	fragments := collect(extractor.Stream(context.Background(), "How is my BUDGET doing?"))
	require.Len(t, fragments, 1)
	assert.Equal(t, "ok", fragments[0].Text)
	assert.True(t, source.opened)
}

func TestStreamEmitsFragmentsInArrivalOrder(t *testing.T) {
	body := "[" + textChunk("Your spending") + "," + textChunk(" looks stable") + "]"
	source := &stubSource{body: body}
	extractor := NewStreamExtractor(source, DefaultKeywords(), testLogger())

	fragments := collect(extractor.Stream(context.Background(), "analyze my spending"))
	require.Len(t, fragments, 2)
	assert.Equal(t, "Your spending", fragments[0].Text)
	assert.Equal(t, " looks stable", fragments[1].Text)
}

func TestStreamByteWiseDeliveryMatchesBulk(t *testing.T) {
	body := "[" + textChunk("a") + "," + textChunk("b") + "," + textChunk("c") + "]"

	bulk := collect(NewStreamExtractor(&stubSource{body: body}, DefaultKeywords(), testLogger()).
		Stream(context.Background(), "my budget"))
	byteWise := collect(NewStreamExtractor(&stubSource{body: body, byteWise: true}, DefaultKeywords(), testLogger()).
		Stream(context.Background(), "my budget"))

	assert.Equal(t, bulk, byteWise)
}

func TestStreamUpstreamDeclaredError(t *testing.T) {
	source := &stubSource{body: `{"error":{"message":"rate limited"}}`}
	extractor := NewStreamExtractor(source, DefaultKeywords(), testLogger())

	fragments := collect(extractor.Stream(context.Background(), "check my balance"))
	require.Len(t, fragments, 1)
	assert.Equal(t, "[API Error: rate limited]", fragments[0].Text)
	assert.NoError(t, fragments[0].Err)
}

func TestStreamMalformedChunkYieldsInlineNoticeAndContinues(t *testing.T) {
	body := `{not json} ` + textChunk("still here")
	source := &stubSource{body: body}
	extractor := NewStreamExtractor(source, DefaultKeywords(), testLogger())

	fragments := collect(extractor.Stream(context.Background(), "my expense report"))
	require.Len(t, fragments, 2)
	assert.Equal(t, "[Data parsing error]", fragments[0].Text)
	assert.Equal(t, "still here", fragments[1].Text)
}

func TestStreamStructuralMismatchIsTerminalError(t *testing.T) {
	body := `{"something": "valid json, wrong shape"}` + textChunk("never reached")
	source := &stubSource{body: body}
	extractor := NewStreamExtractor(source, DefaultKeywords(), testLogger())

	fragments := collect(extractor.Stream(context.Background(), "my savings"))
	require.Len(t, fragments, 1)
	require.Error(t, fragments[0].Err)
	assert.Contains(t, fragments[0].Err.Error(), "unexpected response structure")
}

func TestStreamEmptyTextPartsAreSkipped(t *testing.T) {
	body := textChunk("") + textChunk("visible")
	source := &stubSource{body: body}
	extractor := NewStreamExtractor(source, DefaultKeywords(), testLogger())

	fragments := collect(extractor.Stream(context.Background(), "income summary"))
	require.Len(t, fragments, 1)
	assert.Equal(t, "visible", fragments[0].Text)
}

func TestStreamOpenErrorYieldsSingleNotice(t *testing.T) {
	source := &stubSource{openErr: fmt.Errorf("connection refused")}
	extractor := NewStreamExtractor(source, DefaultKeywords(), testLogger())

	fragments := collect(extractor.Stream(context.Background(), "my account"))
	require.Len(t, fragments, 1)
	assert.Equal(t, "[Error: connection refused]", fragments[0].Text)
}

func TestStreamPartialObjectDiscardedAtEndOfStream(t *testing.T) {
	body := textChunk("complete") + ` {"candidates":[{"content":`
	source := &stubSource{body: body}
	extractor := NewStreamExtractor(source, DefaultKeywords(), testLogger())

	fragments := collect(extractor.Stream(context.Background(), "cashflow please"))
	require.Len(t, fragments, 1)
	assert.Equal(t, "complete", fragments[0].Text)
}

func TestStreamCancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &stubSource{body: textChunk("late")}
	extractor := NewStreamExtractor(source, DefaultKeywords(), testLogger())

	fragments := collect(extractor.Stream(ctx, "budget check"))
	assert.Empty(t, fragments)
}

func TestStreamCustomKeywordSet(t *testing.T) {
	source := &stubSource{body: textChunk("ok")}
	extractor := NewStreamExtractor(source, []string{"weather"}, testLogger())

	fragments := collect(extractor.Stream(context.Background(), "weather forecast"))
	require.Len(t, fragments, 1)
	assert.Equal(t, "ok", fragments[0].Text)
}
