package safebrowsing_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"link-insights/internal/client/safebrowsing"
	"link-insights/internal/domain/threat"
)

func TestClient_Classify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		want    threat.Verdict
		wantErr bool
	}{
		{name: "no matches", status: http.StatusOK, body: `{}`, want: threat.VerdictSafe},
		{name: "empty body", status: http.StatusOK, body: ``, want: threat.VerdictSafe},
		{name: "malware", status: http.StatusOK, body: `{"matches": [{"threatType": "MALWARE"}]}`, want: threat.VerdictMalware},
		{name: "unwanted software", status: http.StatusOK, body: `{"matches": [{"threatType": "UNWANTED_SOFTWARE"}]}`, want: threat.VerdictMalware},
		{
			name:   "social engineering wins",
			status: http.StatusOK,
			body:   `{"matches": [{"threatType": "MALWARE"}, {"threatType": "SOCIAL_ENGINEERING"}]}`,
			want:   threat.VerdictPhishing,
		},
		{name: "server error", status: http.StatusServiceUnavailable, body: `unavailable`, want: threat.VerdictUnknown, wantErr: true},
		{name: "malformed", status: http.StatusOK, body: `{"matches": [`, want: threat.VerdictUnknown, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/threatMatches:find", r.URL.Path)
				assert.Equal(t, "secret", r.URL.Query().Get("key"))

				var payload struct {
					ThreatInfo struct {
						PlatformTypes []string `json:"platformTypes"`
						ThreatEntries []struct {
							URL string `json:"url"`
						} `json:"threatEntries"`
					} `json:"threatInfo"`
				}
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
				assert.Equal(t, []string{"ANY_PLATFORM"}, payload.ThreatInfo.PlatformTypes)
				if assert.Len(t, payload.ThreatInfo.ThreatEntries, 1) {
					assert.Equal(t, "https://example.com/x", payload.ThreatInfo.ThreatEntries[0].URL)
				}

				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			client := safebrowsing.New(safebrowsing.Config{APIKey: "secret", Endpoint: srv.URL}, srv.Client())

			got, err := client.Classify(context.Background(), "https://example.com/x")
			if tt.wantErr {
				require.ErrorIs(t, err, safebrowsing.ErrLookupFailed)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestClient_NotConfigured(t *testing.T) {
	t.Parallel()

	got, err := safebrowsing.New(safebrowsing.Config{}, nil).Classify(context.Background(), "https://example.com")
	require.ErrorIs(t, err, safebrowsing.ErrNotConfigured)
	require.Equal(t, threat.VerdictUnknown, got)
}
