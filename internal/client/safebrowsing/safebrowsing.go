package safebrowsing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"link-insights/internal/domain/threat"
)

const (
	DefaultEndpoint = "https://safebrowsing.googleapis.com/v4"

	clientID      = "link-insights"
	clientVersion = "1.0.0"
	maxErrorBody  = 512
)

var (
	ErrNotConfigured = errors.New("safe browsing api key is not configured")
	ErrLookupFailed  = errors.New("safe browsing lookup failed")
)

var threatTypes = []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE", "POTENTIALLY_HARMFUL_APPLICATION"}

type Config struct {
	APIKey   string
	Endpoint string
}

// Client is a Lookup API v4 client for threatMatches:find.
type Client struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
}

func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}

	return &Client{
		httpClient: httpClient,
		apiKey:     cfg.APIKey,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
	}
}

func (c *Client) Name() string { return "safebrowsing" }

type findRequest struct {
	Client struct {
		ClientID      string `json:"clientId"`
		ClientVersion string `json:"clientVersion"`
	} `json:"client"`
	ThreatInfo struct {
		ThreatTypes      []string      `json:"threatTypes"`
		PlatformTypes    []string      `json:"platformTypes"`
		ThreatEntryTypes []string      `json:"threatEntryTypes"`
		ThreatEntries    []threatEntry `json:"threatEntries"`
	} `json:"threatInfo"`
}

type threatEntry struct {
	URL string `json:"url"`
}

type findResponse struct {
	Matches []struct {
		ThreatType string `json:"threatType"`
	} `json:"matches"`
}

// Classify returns VerdictSafe for no matches, VerdictPhishing for social
// engineering matches and VerdictMalware for any other match.
func (c *Client) Classify(ctx context.Context, rawURL string) (threat.Verdict, error) {
	const op = "client.safebrowsing.Client.Classify"

	if c.apiKey == "" {
		return threat.VerdictUnknown, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	var body findRequest
	body.Client.ClientID = clientID
	body.Client.ClientVersion = clientVersion
	body.ThreatInfo.ThreatTypes = threatTypes
	body.ThreatInfo.PlatformTypes = []string{"ANY_PLATFORM"}
	body.ThreatInfo.ThreatEntryTypes = []string{"URL"}
	body.ThreatInfo.ThreatEntries = []threatEntry{{URL: rawURL}}

	payload, err := json.Marshal(body)
	if err != nil {
		return threat.VerdictUnknown, fmt.Errorf("%s: encode request: %w", op, err)
	}

	endpoint := c.endpoint + "/threatMatches:find?key=" + url.QueryEscape(c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return threat.VerdictUnknown, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return threat.VerdictUnknown, fmt.Errorf("%s: %w: %w", op, ErrLookupFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return threat.VerdictUnknown, fmt.Errorf("%s: %w: status %d: %s", op, ErrLookupFailed, res.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out findResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return threat.VerdictUnknown, fmt.Errorf("%s: %w: decode response: %w", op, ErrLookupFailed, err)
	}

	verdict := threat.VerdictSafe
	for _, m := range out.Matches {
		if m.ThreatType == "SOCIAL_ENGINEERING" {
			return threat.VerdictPhishing, nil
		}
		verdict = threat.VerdictMalware
	}

	return verdict, nil
}
