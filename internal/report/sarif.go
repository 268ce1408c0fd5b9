package report

import (
	"fmt"
	"io"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/xsslab/xsslab/internal/domscan"
	"github.com/xsslab/xsslab/pkg/models"
)

func writeSARIF(w io.Writer, r *Report) error {
	reportSarif, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(generatorName, informationURI)
	for _, f := range r.Findings {
		rule := run.AddRule(ruleID(f)).
			WithDescription(f.Description).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{
				Level: toSarifLevel(f.Severity),
			})

		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(r.Target)).
				WithRegion(sarif.NewRegion().WithStartLine(f.Line).WithStartColumn(f.Column)),
		)

		msg := fmt.Sprintf("%s %s: %s", f.Kind, f.Name, f.Snippet)
		if f.SafeAlternative != "" {
			msg += ". Safer: " + f.SafeAlternative
		}
		result := sarif.NewRuleResult(rule.ID).
			WithMessage(sarif.NewTextMessage(msg)).
			WithLevel(toSarifLevel(f.Severity)).
			WithLocations([]*sarif.Location{location})
		run.AddResult(result)
	}

	for _, flow := range r.DataFlows {
		rule := run.AddRule("dom-xss/flow").
			WithDescription("Untrusted source reaches a dangerous sink").
			WithDefaultConfiguration(&sarif.ReportingConfiguration{
				Level: toSarifLevel(flow.Severity),
			})

		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(r.Target)).
				WithRegion(sarif.NewRegion().WithStartLine(flow.SinkLine)),
		)

		result := sarif.NewRuleResult(rule.ID).
			WithMessage(sarif.NewTextMessage(flow.Description)).
			WithLevel(toSarifLevel(flow.Severity)).
			WithLocations([]*sarif.Location{location})
		run.AddResult(result)
	}

	reportSarif.AddRun(run)
	return reportSarif.PrettyWrite(w)
}

func ruleID(f domscan.Finding) string {
	return fmt.Sprintf("dom-xss/%s/%s", f.Kind, f.Name)
}

func toSarifLevel(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical, models.SeverityHigh:
		return "error"
	case models.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}
