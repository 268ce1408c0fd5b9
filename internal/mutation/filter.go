package mutation

import (
	"fmt"
	"regexp"
	"strings"
)

// FilterResult reports whether a blacklist filter would catch a mutation.
type FilterResult struct {
	Payload  string `json:"payload" yaml:"payload"`
	Strategy string `json:"strategy" yaml:"strategy"`
	Blocked  bool   `json:"blocked" yaml:"blocked"`
	Reason   string `json:"reason" yaml:"reason"`
}

// TestAgainstFilter checks each mutation against filter, interpreted as a
// case-insensitive regular expression. When filter does not compile it is
// treated as a plain substring. A blank filter yields nil.
func TestAgainstFilter(mutations []Mutation, filter string) []FilterResult {
	if strings.TrimSpace(filter) == "" {
		return nil
	}

	match, kind := matcher(filter)
	results := make([]FilterResult, 0, len(mutations))
	for _, m := range mutations {
		r := FilterResult{Payload: m.Payload, Strategy: m.Strategy}
		if match(m.Payload) {
			r.Blocked = true
			r.Reason = fmt.Sprintf("Blocked: payload matches %s %q", kind, filter)
		} else {
			r.Reason = fmt.Sprintf("Bypassed: payload does not match %s %q", kind, filter)
		}
		results = append(results, r)
	}
	return results
}

func matcher(filter string) (func(string) bool, string) {
	if re, err := regexp.Compile("(?i)" + filter); err == nil {
		return re.MatchString, "pattern"
	}
	needle := strings.ToLower(filter)
	return func(s string) bool {
		return strings.Contains(strings.ToLower(s), needle)
	}, "substring"
}
