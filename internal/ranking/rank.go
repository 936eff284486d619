package ranking

import (
	"sort"

	"github.com/mr1hm/go-triage-queue/internal/geo"
	"github.com/mr1hm/go-triage-queue/internal/models"
	"github.com/mr1hm/go-triage-queue/internal/triage"
)

// Entry is a case with the keys it was ranked by.
type Entry struct {
	models.Case
	Weight     int     `json:"severity_weight"`
	DistanceKm float64 `json:"distance_km"`
}

// Rank orders cases for the dispatcher at origin:
//  1. severity weight, highest first
//  2. distance from origin, nearest first
//
// Cases equal on both keys keep their ingestion order (first seen, first
// served). The input slice is not modified.
func Rank(cases []models.Case, origin models.Location) []Entry {
	entries := make([]Entry, len(cases))
	for i, c := range cases {
		entries[i] = Entry{
			Case:       c,
			Weight:     triage.Weight(c.SeverityLevel),
			DistanceKm: geo.Distance(origin, c.Location),
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Weight != entries[j].Weight {
			return entries[i].Weight > entries[j].Weight
		}
		return entries[i].DistanceKm < entries[j].DistanceKm
	})

	return entries
}
