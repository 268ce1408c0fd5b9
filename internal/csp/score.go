package csp

import (
	"fmt"
	"strings"
)

// SecurityScore rates a policy from 0 to 100.
type SecurityScore struct {
	Score  int      `json:"score" yaml:"score"`
	Rating string   `json:"rating" yaml:"rating"`
	Color  string   `json:"color" yaml:"color"`
	Issues []string `json:"issues" yaml:"issues"`
}

var valuePenalties = []struct {
	value  string
	points int
}{
	{"'unsafe-inline'", 15},
	{"'unsafe-eval'", 15},
	{"*", 10},
	{"http:", 10},
}

// CalculateSecurityScore applies fixed deductions and bonuses to policy.
// Parse errors do not affect the score; an empty policy loses only the
// missing-directive points.
func CalculateSecurityScore(policy *ParsedCSP) SecurityScore {
	score := 100
	issues := []string{}

	for _, d := range policy.Ordered() {
		for _, v := range d.Values {
			for _, p := range valuePenalties {
				if strings.EqualFold(v, p.value) {
					score -= p.points
					issues = append(issues, fmt.Sprintf("%s in %s (-%d)", p.value, d.Name, p.points))
				}
			}
		}
	}

	if !policy.Has("base-uri") {
		score -= 5
		issues = append(issues, "Missing base-uri (-5)")
	}
	if !policy.Has("object-src") {
		score -= 3
		issues = append(issues, "Missing object-src (-3)")
	}
	if !policy.Has("default-src") && !policy.Has("script-src") {
		score -= 10
		issues = append(issues, "Missing both default-src and script-src (-10)")
	}

	if ss := policy.Get("script-src"); ss != nil {
		for _, v := range ss.Values {
			if strings.HasPrefix(strings.ToLower(v), "'nonce-") {
				score += 5
				break
			}
		}
	}
	if bu := policy.Get("base-uri"); bu != nil && (hasValue(bu.Values, "'none'") || hasValue(bu.Values, "'self'")) {
		score += 3
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	rating, color := band(score)
	return SecurityScore{Score: score, Rating: rating, Color: color, Issues: issues}
}

func band(score int) (string, string) {
	switch {
	case score >= 80:
		return "Excellent", "green"
	case score >= 60:
		return "Good", "blue"
	case score >= 40:
		return "Fair", "yellow"
	case score >= 20:
		return "Poor", "orange"
	default:
		return "Weak", "red"
	}
}
