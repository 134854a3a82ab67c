package booking

// Digression handling: a business-fact question mid-booking pushes the
// current {state, slots} frame, answers the fact, and resumes on the next
// on-topic turn. Consecutive digressions grow the stack; the depth cap
// converts a question loop into an escalation.

func answerStateFor(intent string) State {
	switch intent {
	case IntentHours:
		return StateAnswerHours
	case IntentLocation:
		return StateAnswerLocation
	default:
		return StateAnswerServices
	}
}

// handleDigression answers the fact and parks the booking context. ret is
// the state to resume, which for a nested digression is the interrupted
// collector from the existing top frame, not the answer state itself.
func (m *Machine) handleDigression(state State, ctx Context, e Turn) Result {
	ret := state
	if state.answering() && len(ctx.Digressions) > 0 {
		ret = ctx.Digressions[len(ctx.Digressions)-1].Return
	}

	if len(ctx.Digressions) >= m.DigressionCap {
		// Conversational loop; stop re-answering and hand off.
		return m.escalate(ctx, ReasonUserRequest, "repeated_digression")
	}

	ctx.Digressions = append(ctx.Digressions, Frame{Return: ret, Slots: cloneSlots(ctx.Slots)})

	var answer string
	switch e.Intent {
	case IntentHours:
		answer = answerHours(m.Org)
	case IntentLocation:
		answer = answerLocation(m.Org)
	default:
		answer = answerServices(m.Org)
	}

	return Result{
		State:    answerStateFor(e.Intent),
		Context:  ctx,
		Response: answer + " " + resumePrompt(ret, m.Org, ctx),
	}
}

// resumeFromDigression pops the interrupted frame and replays the turn in
// the restored state. An answering state with no frame has nothing to
// resume and replays in idle.
func (m *Machine) resumeFromDigression(ctx Context, e Turn) Result {
	if len(ctx.Digressions) == 0 {
		return m.handleTurn(StateIdle, ctx, e)
	}
	frame := ctx.Digressions[len(ctx.Digressions)-1]
	ctx.Digressions = ctx.Digressions[:0]
	ctx.Slots = cloneSlots(frame.Slots)
	return m.handleTurn(frame.Return, ctx, e)
}
