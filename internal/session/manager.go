package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"voicedesk/agent/internal/booking"
	"voicedesk/agent/internal/catalog"
	"voicedesk/agent/internal/classify"
	"voicedesk/agent/internal/config"
	"voicedesk/agent/internal/scheduling"
	"voicedesk/agent/internal/store"
	"voicedesk/agent/internal/types"
)

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrSessionClosed  = errors.New("session closed")
)

// TurnOutput is what goes back to the speech-synthesis side after one turn.
type TurnOutput struct {
	State    string           `json:"state"`
	Response string           `json:"response"`
	Context  booking.Snapshot `json:"context"`
}

// Manager owns one booking machine per active call. Turns within a session
// are strictly serialized through the session's inbox goroutine; sessions
// are fully independent of each other.
type Manager struct {
	cfg        config.Config
	store      *store.Store
	classifier classify.Client
	scheduler  scheduling.Client
	defaultOrg *catalog.Organization

	mu   sync.Mutex
	sess map[string]*callSession
}

type callSession struct {
	id      string
	callID  string
	org     *catalog.Organization
	machine *booking.Machine

	state booking.State
	ctx   booking.Context

	inbox chan any // turnRequest | resetMsg | finalizeMsg
	done  chan struct{}

	createdAt     time.Time
	turnCount     int
	bargeIns      atomic.Int64
	totalTurn     time.Duration
	maxTurn       time.Duration
	totalClassify time.Duration
}

type turnRequest struct {
	input types.TurnInput
	reply chan TurnOutput
}

type resetMsg struct{}

type finalizeMsg struct {
	reply chan types.Telemetry
}

func NewManager(cfg config.Config, st *store.Store, cl classify.Client, sc scheduling.Client) *Manager {
	return &Manager{
		cfg:        cfg,
		store:      st,
		classifier: cl,
		scheduler:  sc,
		defaultOrg: OrgFromConfig(cfg),
		sess:       make(map[string]*callSession),
	}
}

// OrgFromConfig builds the default organization context from env config.
func OrgFromConfig(cfg config.Config) *catalog.Organization {
	return &catalog.Organization{
		Name:         cfg.Org.Name,
		Services:     catalog.ParseServices(cfg.Org.Services),
		Hours:        cfg.Org.Hours,
		Location:     cfg.Org.Location,
		LocationMode: cfg.Org.LocationMode,
		Greeting:     cfg.Org.Greeting,
	}
}

// Init creates a session for a call. org may be nil to use the configured
// default organization.
func (m *Manager) Init(callID string, org *catalog.Organization) (*types.SessionInfo, error) {
	if org == nil {
		org = m.defaultOrg
	}
	id := uuid.New().String()

	machine := booking.New(org)
	machine.ConfirmThreshold = m.cfg.Booking.ConfirmThreshold
	machine.RetryCeiling = m.cfg.Booking.RetryCeiling
	machine.DigressionCap = m.cfg.Booking.DigressionCap

	cs := &callSession{
		id:        id,
		callID:    callID,
		org:       org,
		machine:   machine,
		state:     booking.StateIdle,
		ctx:       booking.NewContext(),
		inbox:     make(chan any, 8),
		done:      make(chan struct{}),
		createdAt: time.Now().UTC(),
	}

	info := &types.SessionInfo{
		ID:        id,
		CallID:    callID,
		OrgName:   org.Name,
		CreatedAt: cs.createdAt,
		Status:    "active",
	}
	if err := m.store.CreateSession(info); err != nil {
		return nil, err
	}
	m.store.AppendEvent(id, "session_created", map[string]any{"call_id": callID, "org": org.Name})

	m.mu.Lock()
	m.sess[id] = cs
	m.mu.Unlock()

	go cs.run(m)
	metricActiveSessions.Inc()
	log.Printf("[session] created id=%s call=%s org=%s", id, callID, org.Name)
	return info, nil
}

func (m *Manager) get(id string) *callSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess[id]
}

// Turn feeds one finalized transcript into the session and waits for the
// response. Turns are applied in arrival order; a second caller blocks until
// the prior turn is committed.
func (m *Manager) Turn(ctx context.Context, sessionID string, in types.TurnInput) (TurnOutput, error) {
	cs := m.get(sessionID)
	if cs == nil {
		return TurnOutput{}, ErrUnknownSession
	}
	req := turnRequest{input: in, reply: make(chan TurnOutput, 1)}
	select {
	case cs.inbox <- req:
	case <-cs.done:
		return TurnOutput{}, ErrSessionClosed
	case <-ctx.Done():
		return TurnOutput{}, ctx.Err()
	}
	select {
	case out := <-req.reply:
		return out, nil
	case <-cs.done:
		return TurnOutput{}, ErrSessionClosed
	case <-ctx.Done():
		return TurnOutput{}, ctx.Err()
	}
}

// BargeIn records user speech over playback. It never rolls back a
// committed transition; the gateway is told separately to cut audio.
func (m *Manager) BargeIn(sessionID string) bool {
	cs := m.get(sessionID)
	if cs == nil {
		return false
	}
	cs.bargeIns.Add(1)
	metricBargeIns.Inc()
	m.store.AppendEvent(sessionID, "barge_in", nil)
	return true
}

// Finalize ends the session, emits its aggregate telemetry once and
// discards it.
func (m *Manager) Finalize(sessionID string) (types.Telemetry, error) {
	m.mu.Lock()
	cs := m.sess[sessionID]
	delete(m.sess, sessionID)
	m.mu.Unlock()
	if cs == nil {
		return types.Telemetry{}, ErrUnknownSession
	}

	req := finalizeMsg{reply: make(chan types.Telemetry, 1)}
	select {
	case cs.inbox <- req:
	case <-cs.done:
		return types.Telemetry{}, ErrSessionClosed
	}
	tel := <-req.reply

	m.store.SetTelemetry(sessionID, tel)
	m.store.SetSessionStatus(sessionID, "finalized")
	m.store.AppendEvent(sessionID, "session_finalized", map[string]any{
		"outcome": tel.Outcome, "turns": tel.TurnCount, "barge_ins": tel.BargeIns,
	})
	metricOutcomes.WithLabelValues(tel.Outcome).Inc()
	metricActiveSessions.Dec()
	log.Printf("[session] finalized id=%s outcome=%s turns=%d", sessionID, tel.Outcome, tel.TurnCount)
	return tel, nil
}

// run serializes all context mutation for one session.
func (cs *callSession) run(m *Manager) {
	for {
		select {
		case <-cs.done:
			return
		case msg := <-cs.inbox:
			switch v := msg.(type) {
			case turnRequest:
				v.reply <- m.processTurn(cs, v.input)
			case resetMsg:
				m.applyReset(cs)
			case finalizeMsg:
				v.reply <- cs.telemetry()
				close(cs.done)
				return
			}
		}
	}
}

func (m *Manager) processTurn(cs *callSession, in types.TurnInput) TurnOutput {
	start := time.Now()
	tctx, cancel := context.WithTimeout(context.Background(), time.Duration(m.cfg.Booking.TurnTimeoutMs)*time.Millisecond)
	defer cancel()

	cs.turnCount++
	ev := m.classifyTurn(tctx, cs, in)

	res := cs.machine.Step(cs.state, cs.ctx, ev)
	res = m.runEffects(tctx, cs, res)
	m.commit(cs, res, ev.Intent, in.TurnIndex)

	elapsed := time.Since(start)
	cs.totalTurn += elapsed
	if elapsed > cs.maxTurn {
		cs.maxTurn = elapsed
	}
	metricTurnLatency.Observe(float64(elapsed.Milliseconds()))

	return TurnOutput{
		State:    string(cs.state),
		Response: res.Response,
		Context:  cs.ctx.Snapshot(),
	}
}

// classifyTurn calls the external classifier. A failure or timeout becomes
// the error pseudo-intent; a low-confidence verdict is downgraded to
// unclear with its entities discarded.
func (m *Manager) classifyTurn(ctx context.Context, cs *callSession, in types.TurnInput) booking.Turn {
	cstart := time.Now()
	res, err := m.classifier.Classify(ctx, in.Transcript, cs.ctx.Snapshot())
	celapsed := time.Since(cstart)
	cs.totalClassify += celapsed
	metricClassifyLatency.Observe(float64(celapsed.Milliseconds()))

	if err != nil {
		metricClassifyErrors.Inc()
		log.Printf("[session] classify failed sid=%s: %v", cs.id, err)
		return booking.Turn{Intent: booking.IntentError, Transcript: in.Transcript}
	}

	intent := res.Intent
	conf := res.Confidence
	entities := res.Entities
	if conf < m.cfg.Intent.MinConfidence || (in.Confidence > 0 && in.Confidence < m.cfg.Intent.MinConfidence) {
		intent = booking.IntentUnclear
		entities = booking.Entities{}
	}
	return booking.Turn{Intent: intent, Confidence: conf, Transcript: in.Transcript, Entities: entities}
}

// runEffects executes the machine's requested side effects and feeds their
// outcomes back as events until the turn settles. The machine requests at
// most a book and then possibly a callback, so this converges quickly.
func (m *Manager) runEffects(ctx context.Context, cs *callSession, res booking.Result) booking.Result {
	for i := 0; res.Effect.Kind != booking.EffectNone && i < 3; i++ {
		var ev booking.Event
		switch res.Effect.Kind {
		case booking.EffectBook:
			ev = m.executeBook(ctx, cs, *res.Effect.Appointment)
		case booking.EffectScheduleCallback:
			ev = m.executeCallback(ctx, cs, *res.Effect.Callback)
		}
		res = cs.machine.Step(res.State, res.Context, ev)
	}
	return res
}

func (m *Manager) executeBook(ctx context.Context, cs *callSession, draft booking.AppointmentDraft) booking.Event {
	available, err := m.scheduler.IsAvailable(ctx, draft)
	if err != nil {
		log.Printf("[session] availability check failed sid=%s: %v", cs.id, err)
		available = false
	}
	apt, err := m.scheduler.CreateAppointment(ctx, draft)
	if err != nil {
		log.Printf("[session] appointment creation failed sid=%s: %v", cs.id, err)
		m.store.AppendEvent(cs.id, "book_failed", map[string]any{"error": err.Error()})
		return booking.BookResult{OK: false}
	}
	m.store.AppendEvent(cs.id, "book_created", map[string]any{"appointment_id": apt.ID, "available": available})
	return booking.BookResult{OK: true, AppointmentID: apt.ID, Available: available}
}

func (m *Manager) executeCallback(ctx context.Context, cs *callSession, draft booking.CallbackDraft) booking.Event {
	id, err := m.scheduler.ScheduleCallback(ctx, draft)
	if err != nil {
		log.Printf("[session] callback scheduling failed sid=%s: %v", cs.id, err)
		m.store.AppendEvent(cs.id, "callback_failed", map[string]any{"error": err.Error()})
		return booking.CallbackResult{OK: false}
	}
	m.store.AppendEvent(cs.id, "callback_scheduled", map[string]any{"callback_id": id, "reason": string(draft.Reason)})
	return booking.CallbackResult{OK: true, CallbackID: id}
}

// commit installs the turn's result on the session and schedules the timed
// return to idle for terminal states.
func (m *Manager) commit(cs *callSession, res booking.Result, intent string, turnIndex int) {
	if res.State != cs.state {
		metricStateTransitions.WithLabelValues(string(cs.state), string(res.State)).Inc()
	}
	escalatedNow := res.Context.Escalation != nil && cs.ctx.Escalation == nil
	cs.state = res.State
	cs.ctx = res.Context

	m.store.AppendEvent(cs.id, "turn", map[string]any{
		"turn_index": turnIndex, "intent": intent, "state": string(cs.state),
	})
	if escalatedNow {
		metricEscalations.WithLabelValues(string(cs.ctx.Escalation.Reason)).Inc()
		m.store.AppendEvent(cs.id, "escalated", map[string]any{"reason": string(cs.ctx.Escalation.Reason)})
	}

	if res.ResetAfter > 0 {
		time.AfterFunc(res.ResetAfter, func() {
			select {
			case cs.inbox <- resetMsg{}:
			case <-cs.done:
			}
		})
	}
}

func (m *Manager) applyReset(cs *callSession) {
	res := cs.machine.Step(cs.state, cs.ctx, booking.Reset{})
	if res.State != cs.state {
		metricStateTransitions.WithLabelValues(string(cs.state), string(res.State)).Inc()
	}
	cs.state = res.State
	cs.ctx = res.Context
}

func (cs *callSession) telemetry() types.Telemetry {
	tel := types.Telemetry{
		SessionID:  cs.id,
		FinalState: string(cs.state),
		Outcome:    outcomeFor(cs.state, cs.ctx),
		TurnCount:  cs.turnCount,
		BargeIns:   int(cs.bargeIns.Load()),
		Escalated:  cs.ctx.Escalation != nil,
		Duration:   time.Since(cs.createdAt),
	}
	if cs.turnCount > 0 {
		tel.AvgTurnMs = cs.totalTurn.Milliseconds() / int64(cs.turnCount)
		tel.AvgClassifyMs = cs.totalClassify.Milliseconds() / int64(cs.turnCount)
	}
	tel.MaxTurnMs = cs.maxTurn.Milliseconds()
	return tel
}

func outcomeFor(state booking.State, ctx booking.Context) string {
	switch {
	case ctx.AppointmentID != "":
		return "booked"
	case state == booking.StateFallback:
		return "fallback"
	case ctx.Escalation != nil:
		return "callback_scheduled"
	default:
		return "abandoned"
	}
}
