package engine

import (
	"sort"
	"strconv"
	"strings"
)

// Priority weights for named rule priorities.
const (
	PriorityHigh   = 3
	PriorityMedium = 2
	PriorityLow    = 1

	// PriorityNone is the weight of a rule without a recognized priority.
	PriorityNone = 0
)

// GetRulePriority returns the effective sort weight for a rule.
// Named priorities map to fixed weights; numeric priorities are used as-is.
func GetRulePriority(rule *Rule) float64 {
	return priorityWeight(rule.Priority)
}

func priorityWeight(p any) float64 {
	if s, ok := p.(string); ok {
		switch strings.ToUpper(strings.TrimSpace(s)) {
		case "HIGH":
			return PriorityHigh
		case "MEDIUM":
			return PriorityMedium
		case "LOW":
			return PriorityLow
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
		return PriorityNone
	}
	if f, ok := numberValue(p); ok {
		return f
	}
	return PriorityNone
}

// SortRulesByPriority sorts rules by descending priority weight.
// Rules of equal weight keep their relative order.
func SortRulesByPriority(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return GetRulePriority(&rules[i]) > GetRulePriority(&rules[j])
	})
}
