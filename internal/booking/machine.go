package booking

import (
	"time"

	"voicedesk/agent/internal/catalog"
)

const (
	resetAfterTerminal = 5 * time.Second
	resetAfterFallback = 3 * time.Second
)

// Machine is the booking state machine. Step is a pure transition function
// over (state, context, event); external calls surface as effects in the
// Result and their outcomes come back as events. One Machine serves one
// session; the organization context is read-only.
type Machine struct {
	Org              *catalog.Organization
	ConfirmThreshold int
	RetryCeiling     int
	DigressionCap    int

	// Now overrides the clock in tests.
	Now func() time.Time
}

func New(org *catalog.Organization) *Machine {
	return &Machine{
		Org:              org,
		ConfirmThreshold: 3,
		RetryCeiling:     5,
		DigressionCap:    5,
	}
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Step applies one event and returns the next state, the reduced context, the
// spoken response and any requested effect. The input context is not mutated.
func (m *Machine) Step(state State, ctx Context, ev Event) Result {
	if state == "" {
		state = StateIdle
	}
	ctx = ctx.clone()

	switch e := ev.(type) {
	case Turn:
		if e.Intent != IntentError {
			ctx.Turn++
		}
		return m.handleTurn(state, ctx, e)
	case BookResult:
		return m.handleBookResult(state, ctx, e)
	case CallbackResult:
		return m.handleCallbackResult(state, ctx, e)
	case Reset:
		return m.handleReset(state, ctx)
	}
	return Result{State: state, Context: ctx}
}

func (m *Machine) handleTurn(state State, ctx Context, e Turn) Result {
	// Classification failure: generic recovery message, no state or slot
	// mutation, stay put.
	if e.Intent == IntentError {
		return Result{State: state, Context: ctx, Response: respTrouble}
	}

	// A turn landing in a terminal state opens a new topic.
	if state.Terminal() {
		state = StateIdle
		ctx.resetBookingSlots()
	}

	// Explicit request for a person wins over everything else.
	if e.Intent == IntentHuman {
		if ctx.Escalation != nil {
			return Result{State: state, Context: ctx, Response: respAlreadyEscalated(m.Org)}
		}
		return m.escalate(ctx, ReasonUserRequest, "caller asked for a person")
	}

	if state.answering() {
		if isDigression(e.Intent) {
			return m.handleDigression(state, ctx, e)
		}
		return m.resumeFromDigression(ctx, e)
	}

	if state.MidBooking() && isDigression(e.Intent) {
		return m.handleDigression(state, ctx, e)
	}

	switch state {
	case StateIdle:
		return m.handleIdle(ctx, e)
	case StateCollectService, StateCollectTimeWindow, StateCollectContact:
		return m.handleCollector(state, ctx, e)
	case StateConfirm:
		return m.handleConfirm(ctx, e)
	case StateBook, StateScheduleCallback:
		// An effect is still in flight for this turn; hold the floor.
		return Result{State: state, Context: ctx, Response: respHold}
	}
	return Result{State: state, Context: ctx, Response: respIdleDefault(m.Org)}
}

func (m *Machine) handleIdle(ctx Context, e Turn) Result {
	switch e.Intent {
	case IntentBooking:
		if ctx.Escalation != nil {
			// Callback branch is terminal for automated collection.
			return Result{State: StateIdle, Context: ctx, Response: respAlreadyEscalated(m.Org)}
		}
		mergeEntities(&ctx, e.Entities)
		return m.routeBookingFlow(ctx)
	case IntentHours:
		return Result{State: StateIdle, Context: ctx, Response: answerHours(m.Org)}
	case IntentLocation:
		return Result{State: StateIdle, Context: ctx, Response: answerLocation(m.Org)}
	case IntentServices:
		return Result{State: StateIdle, Context: ctx, Response: answerServices(m.Org)}
	case IntentUnclear:
		// An unparsed utterance enters service collection, so repeated
		// failures hit the three-strike policy rather than looping in idle.
		if ctx.Escalation != nil {
			return Result{State: StateIdle, Context: ctx, Response: respAlreadyEscalated(m.Org)}
		}
		mergeEntities(&ctx, e.Entities)
		if ctx.slot(SlotService).Value != "" {
			return m.routeBookingFlow(ctx)
		}
		slot := ctx.Slots[SlotService]
		slot.Attempts++
		ctx.Slots[SlotService] = slot
		ctx.RetryCount++
		if Decide(false, slot.Attempts, m.ConfirmThreshold) == Escalate {
			return m.escalate(ctx, ReasonServiceInvalid, "unrecognized request")
		}
		return Result{State: StateCollectService, Context: ctx, Response: respUnclearIdle(m.Org)}
	}
	// Respond-and-idle default for recognized off-topic intents.
	return Result{State: StateIdle, Context: ctx, Response: respIdleDefault(m.Org)}
}

// routeBookingFlow inspects missing required slots and routes to the next
// collector in fixed priority order: service, then time window, then
// contact. The escalation guard runs first; a session past its retry budget
// never re-enters a collector.
func (m *Machine) routeBookingFlow(ctx Context) Result {
	if reason, ok := m.shouldFallbackToCallback(ctx); ok {
		return m.escalate(ctx, reason, "retry budget exhausted")
	}

	svc := ctx.slot(SlotService)
	if svc.Value != "" && !svc.Validated {
		return m.validateService(ctx)
	}
	if svc.Value == "" {
		return Result{State: StateCollectService, Context: ctx, Response: promptService(m.Org)}
	}
	if ctx.slot(SlotTimeWindow).Value == "" {
		return Result{State: StateCollectTimeWindow, Context: ctx, Response: promptTimeWindow()}
	}
	if ctx.slot(SlotContact).Value == "" {
		return Result{State: StateCollectContact, Context: ctx, Response: promptContact()}
	}
	return Result{State: StateConfirm, Context: ctx, Response: promptConfirm(ctx)}
}

// validateService runs the tentative service value through the catalog
// matcher and applies the confirmation policy on failure.
func (m *Machine) validateService(ctx Context) Result {
	slot := ctx.Slots[SlotService]
	if catalog.Match(slot.Value, m.Org.Services) {
		slot.Validated = true
		slot.Attempts = 0
		ctx.Slots[SlotService] = slot
		ctx.Status = Status{Code: StatusCollecting}
		return m.routeBookingFlow(ctx)
	}

	slot.Attempts++
	ctx.Slots[SlotService] = slot
	ctx.RetryCount++
	ctx.Status = Status{Code: StatusServiceInvalid}

	if Decide(false, slot.Attempts, m.ConfirmThreshold) == Escalate {
		return m.escalate(ctx, ReasonServiceInvalid, slot.Value)
	}
	return Result{State: StateCollectService, Context: ctx, Response: promptServiceRetry(m.Org)}
}

func slotForState(s State) SlotName {
	switch s {
	case StateCollectTimeWindow:
		return SlotTimeWindow
	case StateCollectContact:
		return SlotContact
	default:
		return SlotService
	}
}

// handleCollector merges newly extracted entities and re-routes. The slot's
// attempt counter moves only in two directions: reset when a new value for
// it arrives, incremented when the intent was specifically unclear and
// nothing was extracted.
func (m *Machine) handleCollector(state State, ctx Context, e Turn) Result {
	name := slotForState(state)
	updated := mergeEntities(&ctx, e.Entities)

	if len(updated) > 0 {
		return m.routeBookingFlow(ctx)
	}

	if e.Intent == IntentUnclear {
		slot := ctx.Slots[name]
		slot.Attempts++
		ctx.Slots[name] = slot
		ctx.RetryCount++

		if Decide(false, slot.Attempts, m.ConfirmThreshold) == Escalate {
			reason := ReasonMaxRetries
			if name == SlotService {
				reason = ReasonServiceInvalid
			}
			return m.escalate(ctx, reason, "slot collection exhausted")
		}
		if reason, ok := m.shouldFallbackToCallback(ctx); ok {
			return m.escalate(ctx, reason, "retry budget exhausted")
		}
		return Result{State: state, Context: ctx, Response: retryPromptFor(name, m.Org)}
	}

	// Recognized intent, nothing new for any slot: re-prompt via routing
	// without burning an attempt.
	return m.routeBookingFlow(ctx)
}

// handleConfirm accepts only a binary outcome: an affirmative proceeds to
// book, anything else starts the booking over from service collection.
func (m *Machine) handleConfirm(ctx Context, e Turn) Result {
	if e.Intent == IntentAffirmative || IsAffirmative(e.Transcript) {
		return Result{
			State:   StateBook,
			Context: ctx,
			Effect: Effect{
				Kind: EffectBook,
				Appointment: &AppointmentDraft{
					OrgName:    m.Org.Name,
					Service:    ctx.slot(SlotService).Value,
					TimeWindow: ctx.slot(SlotTimeWindow).Value,
					Contact:    ctx.slot(SlotContact).Value,
					Location:   ctx.slot(SlotLocation).Value,
				},
			},
		}
	}
	ctx.resetBookingSlots()
	ctx.Status = Status{Code: StatusCollecting}
	return Result{State: StateCollectService, Context: ctx, Response: respStartOver(m.Org)}
}

// handleBookResult finishes the booking branch. A creation failure never
// drops the booking silently; it escalates to a callback.
func (m *Machine) handleBookResult(state State, ctx Context, e BookResult) Result {
	if state != StateBook {
		return Result{State: state, Context: ctx}
	}
	if !e.OK {
		ctx.Status = Status{Code: StatusIntegrationFault}
		return m.escalate(ctx, ReasonCalendarFailure, "appointment creation failed")
	}

	ctx.AppointmentID = e.AppointmentID
	if e.Available {
		ctx.AppointmentStatus = "scheduled"
		return Result{State: StateSuccess, Context: ctx, Response: respBooked(ctx), ResetAfter: resetAfterTerminal}
	}
	// Availability probe failed; book tentatively and flag the fault.
	ctx.AppointmentStatus = "pending_confirmation"
	ctx.Status = Status{Code: StatusIntegrationFault}
	return Result{State: StateSuccess, Context: ctx, Response: respBookedPending(ctx), ResetAfter: resetAfterTerminal}
}

// handleReset returns a terminal state to idle for a new topic. Escalation
// and integration-fault status survive for the rest of the session.
func (m *Machine) handleReset(state State, ctx Context) Result {
	if !state.Terminal() {
		return Result{State: state, Context: ctx}
	}
	ctx.resetBookingSlots()
	ctx.Digressions = ctx.Digressions[:0]
	if ctx.Status.Code == StatusServiceInvalid {
		ctx.Status = Status{Code: StatusCollecting}
	}
	return Result{State: StateIdle, Context: ctx}
}

// mergeEntities writes non-empty extracted values into their slots and
// returns the names that changed. A new value resets the slot's attempt
// counter and validation flag; an empty value never erases a filled slot.
func mergeEntities(ctx *Context, e Entities) []SlotName {
	var updated []SlotName
	set := func(n SlotName, v string) {
		if v == "" {
			return
		}
		if cur := ctx.Slots[n]; cur.Value == v {
			return
		}
		ctx.Slots[n] = Slot{Value: v, UpdatedTurn: ctx.Turn}
		updated = append(updated, n)
	}
	set(SlotService, e.Service)
	set(SlotTimeWindow, e.TimeWindow)
	set(SlotContact, e.Contact)
	set(SlotLocation, e.Location)
	set(SlotLocationPreference, e.LocationPreference)
	return updated
}
