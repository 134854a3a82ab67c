package types

import "time"

type Event struct {
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

// TurnInput is one finalized transcript from the transcription side.
type TurnInput struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	CallID     string  `json:"call_id,omitempty"`
	TurnIndex  int     `json:"turn_index"`
}

type SessionInfo struct {
	ID        string    `json:"session_id"`
	CallID    string    `json:"call_id,omitempty"`
	OrgName   string    `json:"org_name"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

// Telemetry is emitted once when a session is finalized.
type Telemetry struct {
	SessionID     string        `json:"session_id"`
	FinalState    string        `json:"final_state"`
	Outcome       string        `json:"outcome"`
	TurnCount     int           `json:"turn_count"`
	BargeIns      int           `json:"barge_ins"`
	Escalated     bool          `json:"escalated"`
	Duration      time.Duration `json:"duration_ms"`
	AvgTurnMs     int64         `json:"avg_turn_ms"`
	MaxTurnMs     int64         `json:"max_turn_ms"`
	AvgClassifyMs int64         `json:"avg_classify_ms"`
}
