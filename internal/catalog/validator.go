package catalog

import "strings"

// synonymGroups maps common spoken variants onto catalog vocabulary. Matching
// is by whole-word membership, not containment.
var synonymGroups = [][]string{
	{"haircut", "cut", "hair", "trim", "style"},
	{"consultation", "consult", "meeting", "session"},
	{"cleaning", "clean", "wash"},
	{"repair", "fix", "maintenance"},
	{"checkup", "exam", "examination"},
}

// Match reports whether free-text service request matches any active catalog
// entry. It fails closed: empty request or empty catalog is never a match.
// Matching is boolean and first-hit-wins, in order: exact name, bidirectional
// substring, word overlap, synonym group. No scoring; this runs inside the
// turn latency budget.
func Match(request string, services []Service) bool {
	req := clean(request)
	if req == "" {
		return false
	}

	active := make([]string, 0, len(services))
	for _, s := range services {
		if s.Active {
			if name := clean(s.Name); name != "" {
				active = append(active, name)
			}
		}
	}
	if len(active) == 0 {
		return false
	}

	// 1. Exact match
	for _, name := range active {
		if req == name {
			return true
		}
	}

	// 2. Bidirectional substring containment
	for _, name := range active {
		if strings.Contains(req, name) || strings.Contains(name, req) {
			return true
		}
	}

	// 3. Word overlap: any request word longer than 2 chars that contains or
	// is contained by a catalog word
	reqWords := strings.Fields(req)
	for _, name := range active {
		nameWords := strings.Fields(name)
		for _, rw := range reqWords {
			if len(rw) <= 2 {
				continue
			}
			for _, nw := range nameWords {
				if strings.Contains(nw, rw) || strings.Contains(rw, nw) {
					return true
				}
			}
		}
	}

	// 4. Synonym groups
	for _, name := range active {
		nameWords := strings.Fields(name)
		for _, group := range synonymGroups {
			if anyWordIn(reqWords, group) && anyWordIn(nameWords, group) {
				return true
			}
		}
	}

	return false
}

func anyWordIn(words []string, group []string) bool {
	for _, w := range words {
		for _, g := range group {
			if w == g {
				return true
			}
		}
	}
	return false
}

// clean lowercases, trims and strips punctuation so "Haircut?" and
// "haircut" compare equal.
func clean(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
