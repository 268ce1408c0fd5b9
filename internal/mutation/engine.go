// Package mutation generates filter-bypass variants of an XSS payload.
package mutation

import "strings"

// Strategies is a set of strategy flags keyed by strategy name.
// Unknown keys are ignored.
type Strategies map[string]bool

// Mutation is one generated variant of a payload.
type Mutation struct {
	Payload  string `json:"payload" yaml:"payload"`
	Strategy string `json:"strategy" yaml:"strategy"`
	Encoding string `json:"encoding" yaml:"encoding"`
}

// Result holds every unique variant produced by Generate.
type Result struct {
	Mutations  []Mutation `json:"mutations" yaml:"mutations"`
	Total      int        `json:"total" yaml:"total"`
	Strategies []string   `json:"strategies" yaml:"strategies"`
}

// AllEnabled returns flags with every known strategy turned on.
func AllEnabled() Strategies {
	flags := make(Strategies, len(strategyTable))
	for _, e := range strategyTable {
		flags[string(e.name)] = true
	}
	return flags
}

// ParseStrategies normalizes names (which may themselves be comma
// separated) into flags. Matching is case-insensitive. An empty list
// enables every strategy.
func ParseStrategies(names []string) Strategies {
	flags := Strategies{}
	seen := false
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			seen = true
			for _, e := range strategyTable {
				if strings.EqualFold(part, string(e.name)) {
					flags[string(e.name)] = true
				}
			}
		}
	}
	if !seen {
		return AllEnabled()
	}
	return flags
}

// Generate applies every enabled strategy to basePayload and returns the
// deduplicated variants, original first.
func Generate(basePayload string, strategies Strategies) Result {
	if strings.TrimSpace(basePayload) == "" {
		return Result{Mutations: []Mutation{}, Total: 0, Strategies: []string{}}
	}

	collected := []Mutation{{Payload: basePayload, Strategy: "original", Encoding: "none"}}
	enabled := []string{}
	for _, e := range strategyTable {
		if !strategies[string(e.name)] {
			continue
		}
		enabled = append(enabled, string(e.name))
		collected = append(collected, e.apply(basePayload)...)
	}

	unique := dedupe(collected)
	return Result{Mutations: unique, Total: len(unique), Strategies: enabled}
}

func dedupe(in []Mutation) []Mutation {
	seen := make(map[string]struct{}, len(in))
	out := make([]Mutation, 0, len(in))
	for _, m := range in {
		if _, ok := seen[m.Payload]; ok {
			continue
		}
		seen[m.Payload] = struct{}{}
		out = append(out, m)
	}
	return out
}
