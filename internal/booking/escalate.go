package booking

import "time"

// Escalation manager: decides when to abandon automated collection and hands
// the machine a schedule-callback effect. The callback target is a fixed
// one-hour offset from the current session time.

const callbackOffset = time.Hour

// shouldFallbackToCallback is the guard evaluated before entering any
// collector state. A session past its retry budget never re-enters a
// collector.
func (m *Machine) shouldFallbackToCallback(ctx Context) (Reason, bool) {
	if ctx.Status.Code == StatusIntegrationFault {
		return ReasonCalendarFailure, true
	}
	if ctx.RetryCount >= m.RetryCeiling {
		return ReasonMaxRetries, true
	}
	svc := ctx.slot(SlotService)
	if svc.Value != "" && ctx.Status.Code == StatusServiceInvalid && svc.Attempts >= m.ConfirmThreshold {
		return ReasonServiceInvalid, true
	}
	return "", false
}

// escalate creates the session's EscalationRecord and requests the callback
// effect. It is idempotent: a second invocation never produces a second
// record or a duplicate callback.
func (m *Machine) escalate(ctx Context, reason Reason, detail string) Result {
	if ctx.Escalation != nil {
		return Result{
			State:    StateCallbackScheduled,
			Context:  ctx,
			Response: respAlreadyEscalated(m.Org),
		}
	}

	rec := &EscalationRecord{
		Reason:     reason,
		Detail:     detail,
		CallbackAt: m.now().Add(callbackOffset),
	}
	ctx.Escalation = rec
	ctx.Status = Status{Code: StatusEscalated, Reason: reason}

	return Result{
		State:   StateScheduleCallback,
		Context: ctx,
		Effect: Effect{
			Kind: EffectScheduleCallback,
			Callback: &CallbackDraft{
				OrgName: m.Org.Name,
				Contact: ctx.slot(SlotContact).Value,
				Reason:  reason,
				Detail:  detail,
				At:      rec.CallbackAt,
			},
		},
	}
}

// handleCallbackResult finishes the escalation branch: scheduled means a
// reason-specific apology and a terminal callback_scheduled state; a
// scheduling failure is the only path with no further automated recovery.
func (m *Machine) handleCallbackResult(state State, ctx Context, e CallbackResult) Result {
	if state != StateScheduleCallback {
		return Result{State: state, Context: ctx}
	}
	if !e.OK {
		return Result{
			State:      StateFallback,
			Context:    ctx,
			Response:   respFallback(m.Org),
			ResetAfter: resetAfterFallback,
		}
	}
	ctx.CallbackID = e.CallbackID
	reason := ReasonUserRequest
	at := m.now().Add(callbackOffset)
	if ctx.Escalation != nil {
		reason = ctx.Escalation.Reason
		at = ctx.Escalation.CallbackAt
	}
	return Result{
		State:      StateCallbackScheduled,
		Context:    ctx,
		Response:   callbackMessage(m.Org, reason, at),
		ResetAfter: resetAfterTerminal,
	}
}
