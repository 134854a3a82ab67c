package scheduling

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

// Appointment is the created-appointment acknowledgement.
type Appointment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Client is the calendar/CRM collaborator boundary. The core never retries
// these calls; failures route to escalation or terminal fallback.
type Client interface {
	CreateAppointment(ctx context.Context, draft booking.AppointmentDraft) (Appointment, error)
	ScheduleCallback(ctx context.Context, draft booking.CallbackDraft) (string, error)
	IsAvailable(ctx context.Context, draft booking.AppointmentDraft) (bool, error)
}

type HTTPClient struct {
	http   *http.Client
	base   string
	apiKey string
}

func NewClient(endpoint, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		http:   &http.Client{Timeout: timeout},
		base:   strings.TrimRight(endpoint, "/"),
		apiKey: apiKey,
	}
}

func (c *HTTPClient) CreateAppointment(ctx context.Context, draft booking.AppointmentDraft) (Appointment, error) {
	var out Appointment
	if err := c.post(ctx, "/appointments", draft, &out); err != nil {
		return Appointment{}, err
	}
	if out.ID == "" {
		return Appointment{}, fmt.Errorf("scheduler CreateAppointment: empty id")
	}
	return out, nil
}

func (c *HTTPClient) ScheduleCallback(ctx context.Context, draft booking.CallbackDraft) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/callbacks", draft, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("scheduler ScheduleCallback: empty id")
	}
	return out.ID, nil
}

func (c *HTTPClient) IsAvailable(ctx context.Context, draft booking.AppointmentDraft) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	if err := c.post(ctx, "/availability", draft, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("scheduler %s: %s: %s", path, resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
