package domscan

import "github.com/xsslab/xsslab/pkg/models"

const maxRiskScore = 100

// RiskScore is a 0-100 summary of how dangerous a scanned snippet looks.
type RiskScore struct {
	Score       int             `json:"score" yaml:"score"`
	Level       models.Severity `json:"level" yaml:"level"`
	Description string          `json:"description" yaml:"description"`
}

// CalculateRiskScore weights findings, flows and known patterns into a capped score.
func CalculateRiskScore(r *ScanResult) RiskScore {
	if r == nil {
		return riskFor(0)
	}

	score := 0
	for _, f := range r.Findings {
		switch f.Severity {
		case models.SeverityCritical:
			score += 10
		case models.SeverityHigh:
			score += 5
		case models.SeverityMedium:
			score += 2
		}
	}
	score += 15 * len(r.DataFlows)
	score += 8 * len(r.KnownPatterns)

	if score > maxRiskScore {
		score = maxRiskScore
	}
	return riskFor(score)
}

func riskFor(score int) RiskScore {
	switch {
	case score >= 50:
		return RiskScore{score, models.SeverityCritical, "Critical risk: likely exploitable DOM XSS, fix immediately"}
	case score >= 20:
		return RiskScore{score, models.SeverityHigh, "High risk: dangerous sinks near untrusted input"}
	case score >= 10:
		return RiskScore{score, models.SeverityMedium, "Medium risk: dangerous APIs in use, review how they are fed"}
	default:
		return RiskScore{score, models.SeverityLow, "Low risk: no significant DOM XSS indicators"}
	}
}
