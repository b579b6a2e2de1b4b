package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrNotConfigured       = errors.New("execution backend not configured")
)

// languageVersions maps a language id to the backend's version index.
var languageVersions = map[string]string{
	"python3": "3",
	"java":    "3",
	"cpp":     "4",
	"nodejs":  "3",
	"c":       "4",
	"ruby":    "3",
	"go":      "3",
	"scala":   "3",
	"bash":    "3",
	"sql":     "3",
	"pascal":  "2",
	"csharp":  "3",
	"php":     "3",
	"swift":   "3",
	"rust":    "3",
	"r":       "3",
}

// Client calls the stateless code-execution backend. Requests carry no
// session affinity; the backend sees only source and language.
type Client struct {
	httpClient   *http.Client
	url          string
	clientId     string
	clientSecret string
	log          *log.Logger
}

func NewClient(url, clientId, clientSecret string, logger *log.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		url:          url,
		clientId:     clientId,
		clientSecret: clientSecret,
		log:          logger,
	}
}

// Configured reports whether backend credentials are present.
func (c *Client) Configured() bool {
	return c.clientId != "" && c.clientSecret != ""
}

type executeRequest struct {
	Script       string `json:"script"`
	Language     string `json:"language"`
	VersionIndex string `json:"versionIndex"`
	ClientId     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type Result struct {
	Output     string `json:"output"`
	StatusCode int    `json:"statusCode"`
	Memory     string `json:"memory,omitempty"`
	CpuTime    string `json:"cpuTime,omitempty"`
}

func (c *Client) Execute(ctx context.Context, source, language string) (*Result, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	versionIndex, ok := languageVersions[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	body, err := json.Marshal(executeRequest{
		Script:       source,
		Language:     language,
		VersionIndex: versionIndex,
		ClientId:     c.clientId,
		ClientSecret: c.clientSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("execute: backend returned %s", resp.Status)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}
