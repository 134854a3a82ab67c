package booking

import "time"

type SlotName string

const (
	SlotService            SlotName = "service"
	SlotTimeWindow         SlotName = "time_window"
	SlotContact            SlotName = "contact"
	SlotLocation           SlotName = "location"
	SlotLocationPreference SlotName = "location_preference"
)

// Slot is one named booking field. A slot moves unset -> tentative ->
// validated; a new utterance may overwrite it before validation, which
// resets its attempt counter.
type Slot struct {
	Value       string `json:"value,omitempty"`
	Validated   bool   `json:"validated,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
	UpdatedTurn int    `json:"updated_turn,omitempty"`
}

type StatusCode string

const (
	StatusCollecting       StatusCode = "collecting"
	StatusServiceInvalid   StatusCode = "service_invalid"
	StatusIntegrationFault StatusCode = "integration_fault"
	StatusEscalated        StatusCode = "escalated"
)

// Status is the single tagged booking status; it replaces scattered
// serviceValidated/calendarError/integrationFailure booleans so contradictory
// combinations cannot be represented.
type Status struct {
	Code   StatusCode `json:"code"`
	Reason Reason     `json:"reason,omitempty"` // set when Code is StatusEscalated
}

type Reason string

const (
	ReasonServiceInvalid  Reason = "service_invalid"
	ReasonCalendarFailure Reason = "calendar_failure"
	ReasonMaxRetries      Reason = "max_retries"
	ReasonUserRequest     Reason = "user_request"
)

// EscalationRecord is created at most once per session. Once present, the
// session never returns to active slot collection.
type EscalationRecord struct {
	Reason     Reason    `json:"reason"`
	Detail     string    `json:"detail,omitempty"`
	CallbackAt time.Time `json:"callback_at"`
}

// Frame is one interrupted booking context, pushed when a digression takes
// over and popped to resume exactly where the caller left off.
type Frame struct {
	Return State
	Slots  map[SlotName]Slot
}

// Context is the per-session booking context. It is owned by one session's
// turn processor; reducers operate on a copy.
type Context struct {
	Slots             map[SlotName]Slot `json:"slots"`
	RetryCount        int               `json:"retry_count"`
	Status            Status            `json:"status"`
	Digressions       []Frame           `json:"-"`
	Escalation        *EscalationRecord `json:"escalation,omitempty"`
	Turn              int               `json:"turn"`
	AppointmentID     string            `json:"appointment_id,omitempty"`
	AppointmentStatus string            `json:"appointment_status,omitempty"` // scheduled | pending_confirmation
	CallbackID        string            `json:"callback_id,omitempty"`
}

func NewContext() Context {
	return Context{
		Slots:  make(map[SlotName]Slot),
		Status: Status{Code: StatusCollecting},
	}
}

func (c Context) slot(n SlotName) Slot { return c.Slots[n] }

// clone deep-copies the mutable parts so reducers stay pure.
func (c Context) clone() Context {
	out := c
	out.Slots = cloneSlots(c.Slots)
	out.Digressions = make([]Frame, len(c.Digressions))
	copy(out.Digressions, c.Digressions)
	if c.Escalation != nil {
		rec := *c.Escalation
		out.Escalation = &rec
	}
	return out
}

func cloneSlots(in map[SlotName]Slot) map[SlotName]Slot {
	out := make(map[SlotName]Slot, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// resetBookingSlots clears the three required fields, the "start over"
// policy on disconfirmation.
func (c *Context) resetBookingSlots() {
	delete(c.Slots, SlotService)
	delete(c.Slots, SlotTimeWindow)
	delete(c.Slots, SlotContact)
}

// Snapshot is the external view of a context, returned with every turn
// output and handed to the intent classifier as conversation context.
type Snapshot struct {
	Service          string `json:"service,omitempty"`
	ServiceValidated bool   `json:"service_validated,omitempty"`
	TimeWindow       string `json:"time_window,omitempty"`
	Contact          string `json:"contact,omitempty"`
	Location         string `json:"location,omitempty"`
	RetryCount       int    `json:"retry_count"`
	Status           string `json:"status"`
	Escalated        bool   `json:"escalated,omitempty"`
	Reason           string `json:"reason,omitempty"`
	AppointmentID    string `json:"appointment_id,omitempty"`
	CallbackID       string `json:"callback_id,omitempty"`
}

func (c Context) Snapshot() Snapshot {
	snap := Snapshot{
		Service:          c.slot(SlotService).Value,
		ServiceValidated: c.slot(SlotService).Validated,
		TimeWindow:       c.slot(SlotTimeWindow).Value,
		Contact:          c.slot(SlotContact).Value,
		Location:         c.slot(SlotLocation).Value,
		RetryCount:       c.RetryCount,
		Status:           string(c.Status.Code),
		AppointmentID:    c.AppointmentID,
		CallbackID:       c.CallbackID,
	}
	if c.Escalation != nil {
		snap.Escalated = true
		snap.Reason = string(c.Escalation.Reason)
	}
	return snap
}
