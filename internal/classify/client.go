package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voicedesk/agent/internal/booking"
)

// Result is the classifier's verdict for one utterance.
type Result struct {
	Intent     string           `json:"intent"`
	Confidence float64          `json:"confidence"`
	Entities   booking.Entities `json:"entities"`
}

// Client is the intent-classification collaborator. The orchestrator never
// does NLU itself; a failed or timed-out call is surfaced to it as the
// `error` pseudo-intent by the session manager.
type Client interface {
	Classify(ctx context.Context, transcript string, snap booking.Snapshot) (Result, error)
}

type HTTPClient struct {
	http   *http.Client
	base   string
	apiKey string
}

// NewClient builds a classifier client. timeout bounds the whole request.
func NewClient(endpoint, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		http:   &http.Client{Timeout: timeout},
		base:   strings.TrimRight(endpoint, "/"),
		apiKey: apiKey,
	}
}

func (c *HTTPClient) Classify(ctx context.Context, transcript string, snap booking.Snapshot) (Result, error) {
	body := map[string]any{
		"transcript": transcript,
		"context":    snap,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.base+"/classify", &buf)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Result{}, fmt.Errorf("classify: %s: %s", resp.Status, string(b))
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, err
	}
	if out.Intent == "" {
		return Result{}, fmt.Errorf("classify: empty intent")
	}
	return out, nil
}
