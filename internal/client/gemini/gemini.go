package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"link-insights/internal/domain/stats"
	"link-insights/internal/domain/threat"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel    = "gemini-2.5-flash"

	maxErrorBody = 512
)

var (
	ErrNotConfigured    = errors.New("gemini api key is not configured")
	ErrGenerationFailed = errors.New("gemini generation failed")
)

type Config struct {
	APIKey   string
	Model    string
	Endpoint string
}

// Client calls the generateContent API. It classifies URLs and summarizes link stats.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	endpoint   string
}

func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}

	return &Client{
		httpClient: httpClient,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
	}
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Model() string { return c.model }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Classify asks the model for a SAFE, PHISHING or MALWARE verdict.
// Output that cannot be parsed yields VerdictUnknown without an error.
func (c *Client) Classify(ctx context.Context, rawURL string) (threat.Verdict, error) {
	const op = "client.gemini.Client.Classify"

	prompt := "Analyze the following URL and decide whether it is a safe link, a phishing attempt or " +
		"contains malware. Respond only with a JSON object of the form {\"classification\": \"VALUE\"} " +
		"where VALUE is one of SAFE, PHISHING, MALWARE. URL: " + rawURL

	text, err := c.generate(ctx, prompt, "application/json")
	if err != nil {
		return threat.VerdictUnknown, fmt.Errorf("%s: %w", op, err)
	}

	var out struct {
		Classification string `json:"classification"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return threat.VerdictUnknown, nil
	}

	return threat.ParseVerdict(out.Classification), nil
}

// Summarize returns a one sentence narrative for the report.
func (c *Client) Summarize(ctx context.Context, report stats.Report) (string, error) {
	const op = "client.gemini.Client.Summarize"

	text, err := c.generate(ctx, SummaryPrompt(report), "")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return text, nil
}

// SummaryPrompt renders the report into the analyst prompt.
func SummaryPrompt(report stats.Report) string {
	var b strings.Builder

	b.WriteString("You are a marketing analyst. Analyze the following short link statistics and ")
	b.WriteString("describe the audience and one marketing insight in a single polite sentence.\n")
	b.WriteString("Data:\n")
	fmt.Fprintf(&b, "- Total clicks: %d\n", report.Clicks)
	fmt.Fprintf(&b, "- Clicks in the last %s: %d\n", report.Period, report.WindowClicks)
	fmt.Fprintf(&b, "- Referrers: %s\n", formatCounts(report.ClicksByReferrer))
	fmt.Fprintf(&b, "- Countries: %s\n", formatCounts(report.CountryStats))
	fmt.Fprintf(&b, "- Devices: %s\n", formatCounts(report.DeviceStats))
	fmt.Fprintf(&b, "- Top referrer: %s\n", orNone(report.TopReferrer))
	if report.PeakHour != nil {
		fmt.Fprintf(&b, "- Peak hour (UTC): %d\n", *report.PeakHour)
	} else {
		b.WriteString("- Peak hour (UTC): none\n")
	}
	b.WriteString("If there is too little data, answer that not enough data has been collected yet.")

	return b.String()
}

func (c *Client) generate(ctx context.Context, prompt, mimeType string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	body := generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}}
	if mimeType != "" {
		body.GenerationConfig = &generationConfig{ResponseMimeType: mimeType}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, url.PathEscape(c.model), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return "", fmt.Errorf("%w: status %d: %s", ErrGenerationFailed, res.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out generateResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrGenerationFailed, err)
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty candidates", ErrGenerationFailed)
	}

	text := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty text", ErrGenerationFailed)
	}

	return text, nil
}

func formatCounts[V int | int64](m map[string]V) string {
	if len(m) == 0 {
		return "none"
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, ", ")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
