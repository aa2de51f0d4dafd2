package cbr

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finflow/budget-service/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `<?xml version="1.0" encoding="utf-8"?>
<Envelope>
  <Body>
    <KeyRateResponse>
      <KeyRateResult>
        <diffgram>
          <KeyRate>
            <KR><DT>2026-08-20T00:00:00</DT><Rate>16.50</Rate></KR>
            <KR><DT>2026-08-19T00:00:00</DT><Rate>16.00</Rate></KR>
          </KeyRate>
        </diffgram>
      </KeyRateResult>
    </KeyRateResponse>
  </Body>
</Envelope>`

func TestKeyRateParsesLatestRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/soap+xml; charset=utf-8", r.Header.Get("Content-Type"))
		w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)
	client := NewClient(&config.Config{CBRURL: server.URL}, log)

	rate, err := client.KeyRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16.50, rate)
}

func TestParseKeyRateNoData(t *testing.T) {
	_, err := parseKeyRate([]byte(`<Envelope><Body></Body></Envelope>`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key rate data")
}

func TestParseKeyRateInvalidXML(t *testing.T) {
	_, err := parseKeyRate([]byte(`not xml at all <<<`))
	require.Error(t, err)
}
