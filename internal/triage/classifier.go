package triage

import (
	"strings"

	"github.com/mr1hm/go-triage-queue/internal/models"
)

var weights = map[models.SeverityLevel]int{
	models.SeverityCritical: 4,
	models.SeverityHigh:     3,
	models.SeverityMedium:   2,
	models.SeverityLow:      1,
}

// Weight maps a severity label onto its ordinal rank.
// CRITICAL > HIGH > MEDIUM > LOW > anything else (0).
func Weight(level models.SeverityLevel) int {
	return weights[level]
}

// ParseLevel normalizes a raw severity label from a feed. A missing label
// means HIGH; a label that is present but unrecognized lands in the UNKNOWN
// bucket.
func ParseLevel(raw string) models.SeverityLevel {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return models.SeverityHigh
	}
	level := models.SeverityLevel(s)
	if _, ok := weights[level]; ok {
		return level
	}
	return models.SeverityUnknown
}
