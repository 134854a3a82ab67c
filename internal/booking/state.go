package booking

// State is one node of the booking conversation machine. StateIdle is the
// sole initial state; success, callback_scheduled and fallback are
// terminal-per-turn and auto-return to idle after a short delay.
type State string

const (
	StateIdle              State = "idle"
	StateCollectService    State = "collect_service"
	StateCollectTimeWindow State = "collect_time_window"
	StateCollectContact    State = "collect_contact"
	StateConfirm           State = "confirm"
	StateBook              State = "book"
	StateSuccess           State = "success"
	StateScheduleCallback  State = "schedule_callback"
	StateCallbackScheduled State = "callback_scheduled"
	StateFallback          State = "fallback"

	// Digression answer states; they resume the interrupted collector on the
	// next on-topic turn.
	StateAnswerHours    State = "answer_hours"
	StateAnswerLocation State = "answer_location"
	StateAnswerServices State = "answer_services"
)

// Terminal reports whether the state ends the current conversation topic.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateCallbackScheduled || s == StateFallback
}

// MidBooking reports whether a digression can interrupt this state.
func (s State) MidBooking() bool {
	switch s {
	case StateCollectService, StateCollectTimeWindow, StateCollectContact, StateConfirm:
		return true
	}
	return false
}

func (s State) answering() bool {
	return s == StateAnswerHours || s == StateAnswerLocation || s == StateAnswerServices
}

// Intents delivered by the external classifier. The machine performs no NLU
// of its own beyond the confirm-state affirmative pattern.
const (
	IntentBooking     = "booking"
	IntentHours       = "hours"
	IntentLocation    = "location"
	IntentServices    = "services"
	IntentHuman       = "human"
	IntentAffirmative = "affirmative"
	IntentUnclear     = "unclear"
	IntentError       = "error"
	IntentOther       = "other"
)

func isDigression(intent string) bool {
	return intent == IntentHours || intent == IntentLocation || intent == IntentServices
}
