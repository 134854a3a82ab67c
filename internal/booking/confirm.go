package booking

import "strings"

// Decision is the confirmation-policy outcome for one slot attempt.
type Decision int

const (
	Accept Decision = iota
	Retry
	Escalate
)

// Decide is the three-strike confirmation policy. Accept wins whenever
// validation succeeded, regardless of attempt count; otherwise retry below
// the threshold and escalate at or above it. The policy is stateless; the
// machine owns the counters.
func Decide(validated bool, attempts, threshold int) Decision {
	if validated {
		return Accept
	}
	if attempts < threshold {
		return Retry
	}
	return Escalate
}

var affirmativeWords = []string{"yes", "yeah", "yep", "correct", "right", "confirm", "book", "schedule"}

// IsAffirmative reports whether an utterance counts as a yes in the confirm
// state. Matching is whole-word against a fixed pattern list; anything else
// is treated as a rejection.
func IsAffirmative(transcript string) bool {
	for _, w := range strings.Fields(normalize(transcript)) {
		for _, a := range affirmativeWords {
			if w == a {
				return true
			}
		}
	}
	return false
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ' || r == '\'' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
