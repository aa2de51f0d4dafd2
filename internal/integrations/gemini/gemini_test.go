package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finflow/budget-service/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewClient(&config.Config{
		GeminiURL:    server.URL + "/v1beta/models/gemini-1.5-flash",
		GeminiAPIKey: "test-key",
	}, log)
}

func TestFetchOnceSendsExpectedPayload(t *testing.T) {
	var gotURL string
	var gotBody generateRequest

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"candidates":[]}`))
	})

	response, err := client.FetchOnce(context.Background(), "analyze my budget")
	require.NoError(t, err)
	assert.Equal(t, `{"candidates":[]}`, response)

	assert.Contains(t, gotURL, ":generateContent")
	assert.Contains(t, gotURL, "key=test-key")

	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "user", gotBody.Contents[0].Role)
	require.Len(t, gotBody.Contents[0].Parts, 1)
	assert.Equal(t, "analyze my budget", gotBody.Contents[0].Parts[0].Text)

	assert.Equal(t, 0.4, gotBody.GenerationConfig.Temperature)
	assert.Equal(t, 1.0, gotBody.GenerationConfig.TopP)
	assert.Equal(t, 32, gotBody.GenerationConfig.TopK)
	assert.Equal(t, 2048, gotBody.GenerationConfig.MaxOutputTokens)
}

func TestFetchOnceNonSuccessStatus(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := client.FetchOnce(context.Background(), "my spending")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestOpenStreamReturnsLiveBody(t *testing.T) {
	var gotURL string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		w.Write([]byte(`[{"candidates":[{"content":{"parts":[{"text":"hi"}]}}]}]`))
	})

	body, err := client.OpenStream(context.Background(), "my savings plan")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"text":"hi"`)
	assert.Contains(t, gotURL, ":streamGenerateContent")
}
