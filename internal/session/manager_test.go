package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"voicedesk/agent/internal/booking"
	"voicedesk/agent/internal/catalog"
	"voicedesk/agent/internal/classify"
	"voicedesk/agent/internal/config"
	"voicedesk/agent/internal/scheduling"
	"voicedesk/agent/internal/store"
	"voicedesk/agent/internal/types"
)

// scriptedClassifier returns its results in order, one per call.
type scriptedClassifier struct {
	mu      sync.Mutex
	script  []classify.Result
	errs    []error
	calls   int
	lastCtx booking.Snapshot
}

func (c *scriptedClassifier) Classify(_ context.Context, _ string, snap booking.Snapshot) (classify.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	c.calls++
	c.lastCtx = snap
	if i < len(c.errs) && c.errs[i] != nil {
		return classify.Result{}, c.errs[i]
	}
	if i >= len(c.script) {
		return classify.Result{Intent: booking.IntentUnclear, Confidence: 0.9}, nil
	}
	return c.script[i], nil
}

type fakeScheduler struct {
	mu            sync.Mutex
	bookErr       error
	available     bool
	callbackErr   error
	bookCalls     int
	callbackCalls int
}

func (s *fakeScheduler) CreateAppointment(_ context.Context, _ booking.AppointmentDraft) (scheduling.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookCalls++
	if s.bookErr != nil {
		return scheduling.Appointment{}, s.bookErr
	}
	return scheduling.Appointment{ID: fmt.Sprintf("apt-%d", s.bookCalls), Status: "scheduled"}, nil
}

func (s *fakeScheduler) ScheduleCallback(_ context.Context, _ booking.CallbackDraft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbackCalls++
	if s.callbackErr != nil {
		return "", s.callbackErr
	}
	return fmt.Sprintf("cb-%d", s.callbackCalls), nil
}

func (s *fakeScheduler) IsAvailable(_ context.Context, _ booking.AppointmentDraft) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available, nil
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Intent.MinConfidence = 0.5
	cfg.Booking.ConfirmThreshold = 3
	cfg.Booking.RetryCeiling = 5
	cfg.Booking.DigressionCap = 5
	cfg.Booking.TurnTimeoutMs = 1500
	cfg.Org.Name = "Glow Salon"
	cfg.Org.Services = "Hair Styling,Consultation"
	cfg.Org.Hours = "9am to 5pm, Monday through Saturday"
	cfg.Org.Location = "12 Main Street"
	return cfg
}

func newTestManager(cl classify.Client, sc scheduling.Client) (*Manager, *store.Store) {
	st := store.New()
	return NewManager(testConfig(), st, cl, sc), st
}

func drive(t *testing.T, m *Manager, id string, transcripts ...string) TurnOutput {
	t.Helper()
	var out TurnOutput
	var err error
	for i, tr := range transcripts {
		out, err = m.Turn(context.Background(), id, types.TurnInput{Transcript: tr, TurnIndex: i})
		if err != nil {
			t.Fatalf("turn %d (%q): %v", i, tr, err)
		}
	}
	return out
}

func TestManagerBooksEndToEnd(t *testing.T) {
	cl := &scriptedClassifier{script: []classify.Result{
		{Intent: booking.IntentBooking, Confidence: 0.95, Entities: booking.Entities{Service: "haircut"}},
		{Intent: booking.IntentBooking, Confidence: 0.9, Entities: booking.Entities{TimeWindow: "Tuesday afternoon"}},
		{Intent: booking.IntentBooking, Confidence: 0.9, Entities: booking.Entities{Contact: "555-0100"}},
		{Intent: booking.IntentAffirmative, Confidence: 0.97},
	}}
	sc := &fakeScheduler{available: true}
	m, st := newTestManager(cl, sc)

	info, err := m.Init("call-1", nil)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	out := drive(t, m, info.ID,
		"I'd like a haircut",
		"Tuesday afternoon works",
		"my number is 555-0100",
		"yes please",
	)

	if out.State != string(booking.StateSuccess) {
		t.Fatalf("final state = %q, want success", out.State)
	}
	if out.Context.AppointmentID == "" {
		t.Fatalf("snapshot missing appointment id")
	}
	if sc.bookCalls != 1 {
		t.Fatalf("bookCalls = %d, want 1", sc.bookCalls)
	}

	tel, err := m.Finalize(info.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if tel.Outcome != "booked" {
		t.Fatalf("outcome = %q, want booked", tel.Outcome)
	}
	if tel.TurnCount != 4 {
		t.Fatalf("turn count = %d, want 4", tel.TurnCount)
	}
	if got, ok := st.GetTelemetry(info.ID); !ok || got.Outcome != "booked" {
		t.Fatalf("stored telemetry = %+v ok=%v", got, ok)
	}
}

func TestManagerBookFailureSchedulesOneCallback(t *testing.T) {
	cl := &scriptedClassifier{script: []classify.Result{
		{Intent: booking.IntentBooking, Confidence: 0.95, Entities: booking.Entities{
			Service: "haircut", TimeWindow: "Friday morning", Contact: "555-0100",
		}},
		{Intent: booking.IntentAffirmative, Confidence: 0.97},
		{Intent: booking.IntentBooking, Confidence: 0.9, Entities: booking.Entities{Service: "consultation"}},
	}}
	sc := &fakeScheduler{bookErr: errors.New("calendar down")}
	m, _ := newTestManager(cl, sc)
	info, _ := m.Init("call-2", nil)

	out := drive(t, m, info.ID, "book me a haircut Friday morning, 555-0100", "yes")
	if out.State != string(booking.StateCallbackScheduled) {
		t.Fatalf("state after failed book = %q, want callback_scheduled", out.State)
	}
	if !out.Context.Escalated || out.Context.Reason != "calendar_failure" {
		t.Fatalf("snapshot escalation = %+v", out.Context)
	}

	// A later booking attempt is informational only; no second callback.
	out = drive(t, m, info.ID, "actually can I book a consultation")
	if sc.callbackCalls != 1 {
		t.Fatalf("callbackCalls = %d, want 1", sc.callbackCalls)
	}
	if !strings.Contains(out.Response, "already") {
		t.Fatalf("response = %q, want already-scheduled notice", out.Response)
	}
}

func TestManagerClassifierErrorLeavesContext(t *testing.T) {
	cl := &scriptedClassifier{
		script: []classify.Result{
			{Intent: booking.IntentBooking, Confidence: 0.95, Entities: booking.Entities{Service: "haircut"}},
			{},
		},
		errs: []error{nil, errors.New("upstream 503")},
	}
	m, _ := newTestManager(cl, &fakeScheduler{})
	info, _ := m.Init("call-3", nil)

	first := drive(t, m, info.ID, "I want a haircut")
	second := drive(t, m, info.ID, "garbled audio")

	if second.State != first.State {
		t.Fatalf("state moved on classify error: %q -> %q", first.State, second.State)
	}
	if second.Context.RetryCount != first.Context.RetryCount {
		t.Fatalf("retry count moved on classify error")
	}
	if second.Response == "" {
		t.Fatalf("expected a recovery response")
	}
}

func TestManagerLowConfidenceDowngradesToUnclear(t *testing.T) {
	cl := &scriptedClassifier{script: []classify.Result{
		{Intent: booking.IntentBooking, Confidence: 0.2, Entities: booking.Entities{Service: "haircut"}},
	}}
	m, _ := newTestManager(cl, &fakeScheduler{})
	info, _ := m.Init("call-4", nil)

	out := drive(t, m, info.ID, "mumble mumble")
	if out.State != string(booking.StateCollectService) {
		t.Fatalf("state = %q, want collect_service", out.State)
	}
	if out.Context.Service != "" {
		t.Fatalf("low-confidence entities were merged: %+v", out.Context)
	}
	if out.Context.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", out.Context.RetryCount)
	}
}

func TestManagerBargeInCountsIntoTelemetry(t *testing.T) {
	cl := &scriptedClassifier{script: []classify.Result{
		{Intent: booking.IntentHours, Confidence: 0.9},
	}}
	m, _ := newTestManager(cl, &fakeScheduler{})
	info, _ := m.Init("call-5", nil)

	drive(t, m, info.ID, "what are your hours")
	if !m.BargeIn(info.ID) || !m.BargeIn(info.ID) {
		t.Fatalf("barge-in on live session returned false")
	}

	tel, err := m.Finalize(info.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if tel.BargeIns != 2 {
		t.Fatalf("barge-ins = %d, want 2", tel.BargeIns)
	}
	if tel.Outcome != "abandoned" {
		t.Fatalf("outcome = %q, want abandoned", tel.Outcome)
	}
}

func TestManagerUnknownSession(t *testing.T) {
	m, _ := newTestManager(&scriptedClassifier{}, &fakeScheduler{})

	if _, err := m.Turn(context.Background(), "nope", types.TurnInput{Transcript: "hi"}); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("Turn err = %v, want ErrUnknownSession", err)
	}
	if m.BargeIn("nope") {
		t.Fatalf("BargeIn on unknown session returned true")
	}
	if _, err := m.Finalize("nope"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("Finalize err = %v, want ErrUnknownSession", err)
	}
}

func TestManagerTurnsAreSequentialPerSession(t *testing.T) {
	script := make([]classify.Result, 10)
	for i := range script {
		script[i] = classify.Result{Intent: booking.IntentHours, Confidence: 0.9}
	}
	m, st := newTestManager(&scriptedClassifier{script: script}, &fakeScheduler{})
	info, _ := m.Init("call-6", nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.Turn(context.Background(), info.ID, types.TurnInput{Transcript: "hours?", TurnIndex: n})
		}(i)
	}
	wg.Wait()

	tel, _ := m.Finalize(info.ID)
	if tel.TurnCount != 10 {
		t.Fatalf("turn count = %d, want 10", tel.TurnCount)
	}
	turns := 0
	for _, ev := range st.ListEvents(info.ID) {
		if ev.Type == "turn" {
			turns++
		}
	}
	if turns != 10 {
		t.Fatalf("stored turn events = %d, want 10", turns)
	}
}

func TestManagerOrgFromConfig(t *testing.T) {
	org := OrgFromConfig(testConfig())
	if org.Name != "Glow Salon" {
		t.Fatalf("org name = %q", org.Name)
	}
	if len(org.Services) != 2 {
		t.Fatalf("services = %v", org.Services)
	}
	if !catalog.Match("haircut", org.Services) {
		t.Fatalf("parsed catalog rejects haircut")
	}
}
