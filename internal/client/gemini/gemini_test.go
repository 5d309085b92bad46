package gemini_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"link-insights/internal/client/gemini"
	"link-insights/internal/domain/stats"
	"link-insights/internal/domain/threat"
)

func respond(text string) string {
	body, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	return string(body)
}

func newServer(t *testing.T, status int, body string, check func(r *http.Request, payload map[string]any)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if check != nil {
			check(r, payload)
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestClient_Classify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		want    threat.Verdict
		wantErr bool
	}{
		{name: "safe", status: http.StatusOK, body: respond(`{"classification": "SAFE"}`), want: threat.VerdictSafe},
		{name: "phishing lower case", status: http.StatusOK, body: respond(`{"classification": " phishing "}`), want: threat.VerdictPhishing},
		{name: "malware", status: http.StatusOK, body: respond(`{"classification": "MALWARE"}`), want: threat.VerdictMalware},
		{name: "unparsable text", status: http.StatusOK, body: respond("looks fine to me"), want: threat.VerdictUnknown},
		{name: "missing key", status: http.StatusOK, body: respond(`{"verdict": "SAFE"}`), want: threat.VerdictUnknown},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates": []}`, want: threat.VerdictUnknown, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, body: `{"error": "quota"}`, want: threat.VerdictUnknown, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newServer(t, tt.status, tt.body, func(r *http.Request, payload map[string]any) {
				assert.Equal(t, "/models/test-model:generateContent", r.URL.Path)
				assert.Equal(t, "secret", r.URL.Query().Get("key"))
				assert.Contains(t, fmt.Sprint(payload["contents"]), "https://example.com/login")
				assert.NotNil(t, payload["generationConfig"])
			})

			client := gemini.New(gemini.Config{APIKey: "secret", Model: "test-model", Endpoint: srv.URL}, srv.Client())

			got, err := client.Classify(context.Background(), "https://example.com/login")
			if tt.wantErr {
				require.ErrorIs(t, err, gemini.ErrGenerationFailed)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestClient_Summarize(t *testing.T) {
	t.Parallel()

	peak := 10
	report := stats.Report{
		Clicks:           3,
		WindowClicks:     3,
		Period:           "7d",
		ClicksByReferrer: map[string]int{"www.google.com": 2, "direct": 1},
		CountryStats:     map[string]int64{"KR": 2, "US": 1},
		DeviceStats:      map[string]int64{"Mobile": 3},
		PeakHour:         &peak,
		TopReferrer:      "www.google.com",
	}

	srv := newServer(t, http.StatusOK, respond("  Mostly mobile visitors from Korea.  "), func(_ *http.Request, payload map[string]any) {
		assert.Nil(t, payload["generationConfig"])
	})

	client := gemini.New(gemini.Config{APIKey: "secret", Endpoint: srv.URL}, srv.Client())

	text, err := client.Summarize(context.Background(), report)
	require.NoError(t, err)
	require.Equal(t, "Mostly mobile visitors from Korea.", text)
}

func TestClient_SummarizeFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "non 200", status: http.StatusTooManyRequests, body: `{}`},
		{name: "empty text", status: http.StatusOK, body: respond("   ")},
		{name: "malformed json", status: http.StatusOK, body: `{"candidates": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newServer(t, tt.status, tt.body, nil)
			client := gemini.New(gemini.Config{APIKey: "secret", Endpoint: srv.URL}, srv.Client())

			_, err := client.Summarize(context.Background(), stats.Report{})
			require.ErrorIs(t, err, gemini.ErrGenerationFailed)
		})
	}
}

func TestClient_NotConfigured(t *testing.T) {
	t.Parallel()

	client := gemini.New(gemini.Config{}, nil)

	_, err := client.Summarize(context.Background(), stats.Report{})
	require.ErrorIs(t, err, gemini.ErrNotConfigured)

	verdict, err := client.Classify(context.Background(), "https://example.com")
	require.ErrorIs(t, err, gemini.ErrNotConfigured)
	require.Equal(t, threat.VerdictUnknown, verdict)
}

func TestSummaryPrompt(t *testing.T) {
	t.Parallel()

	peak := 21
	prompt := gemini.SummaryPrompt(stats.Report{
		Clicks:       5,
		Period:       "7d",
		CountryStats: map[string]int64{"US": 1, "KR": 4},
		PeakHour:     &peak,
	})

	require.Contains(t, prompt, "Total clicks: 5")
	require.Contains(t, prompt, "Countries: KR=4, US=1")
	require.Contains(t, prompt, "Devices: none")
	require.Contains(t, prompt, "Peak hour (UTC): 21")
	require.True(t, strings.HasPrefix(prompt, "You are a marketing analyst"))
}
