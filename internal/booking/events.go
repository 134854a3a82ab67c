package booking

import "time"

// Event is one input to Step. Turns come from the classifier; BookResult and
// CallbackResult feed back the outcome of an effect; Reset is the timed
// return to idle from a terminal state.
type Event interface{ event() }

// Turn carries one classified user utterance.
type Turn struct {
	Intent     string
	Confidence float64
	Transcript string
	Entities   Entities
}

// Entities are the values the classifier extracted from the utterance.
// Empty fields mean "not mentioned"; merging never writes empties over
// filled slots.
type Entities struct {
	Service            string `json:"service,omitempty"`
	TimeWindow         string `json:"time_window,omitempty"`
	Contact            string `json:"contact,omitempty"`
	Location           string `json:"location,omitempty"`
	LocationPreference string `json:"location_preference,omitempty"`
}

// BookResult reports the appointment-creation effect. Available reflects the
// calendar availability probe at booking time.
type BookResult struct {
	OK            bool
	AppointmentID string
	Available     bool
}

// CallbackResult reports the callback-scheduling effect.
type CallbackResult struct {
	OK         bool
	CallbackID string
}

// Reset returns a terminal state to idle for a new topic.
type Reset struct{}

func (Turn) event()           {}
func (BookResult) event()     {}
func (CallbackResult) event() {}
func (Reset) event()          {}

type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectBook
	EffectScheduleCallback
)

// Effect is a side effect the machine requests; the session manager executes
// it and feeds the outcome back as a BookResult or CallbackResult event.
// Transitions themselves never perform external calls.
type Effect struct {
	Kind        EffectKind
	Appointment *AppointmentDraft
	Callback    *CallbackDraft
}

type AppointmentDraft struct {
	OrgName    string `json:"org_name"`
	Service    string `json:"service"`
	TimeWindow string `json:"time_window"`
	Contact    string `json:"contact"`
	Location   string `json:"location,omitempty"`
}

type CallbackDraft struct {
	OrgName string    `json:"org_name"`
	Contact string    `json:"contact,omitempty"`
	Reason  Reason    `json:"reason"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// Result is the output of one Step: the next state, the reduced context, a
// spoken response (may be empty while an effect is pending), an optional
// effect, and an optional delay after which the session should be reset to
// idle.
type Result struct {
	State      State
	Context    Context
	Response   string
	Effect     Effect
	ResetAfter time.Duration
}
