package api

import (
	"time"

	"github.com/mr1hm/go-triage-queue/internal/dispatch"
	"github.com/mr1hm/go-triage-queue/internal/models"
	"github.com/mr1hm/go-triage-queue/internal/ranking"
)

const emptyQueueMessage = "No active emergencies"

type QueueResponse struct {
	Origin      models.Location `json:"origin"`
	GeneratedAt *time.Time      `json:"generated_at,omitempty"`
	Count       int             `json:"count"`
	Entries     []QueueItem     `json:"entries"`
	Message     string          `json:"message,omitempty"`
}

// QueueItem is one ranked case as the dispatcher sees it.
type QueueItem struct {
	Rank int `json:"rank"`
	ranking.Entry
	CanAccept bool `json:"can_accept"`
}

func toQueueResponse(snap dispatch.Snapshot) QueueResponse {
	items := make([]QueueItem, 0, len(snap.Entries))
	for i, e := range snap.Entries {
		items = append(items, QueueItem{
			Rank:      i + 1,
			Entry:     e,
			CanAccept: e.Status == models.StatusPending,
		})
	}

	resp := QueueResponse{
		Origin:  snap.Origin,
		Count:   len(items),
		Entries: items,
	}
	if !snap.GeneratedAt.IsZero() {
		at := snap.GeneratedAt
		resp.GeneratedAt = &at
	}
	if len(items) == 0 {
		resp.Message = emptyQueueMessage
	}
	return resp
}

type ActionResponse struct {
	ID      string            `json:"id"`
	Status  models.CaseStatus `json:"status"`
	Changed bool              `json:"changed"`
	Handoff *models.Handoff   `json:"handoff,omitempty"`
}

func toActionResponse(id string, res dispatch.ActionResult) ActionResponse {
	return ActionResponse{
		ID:      id,
		Status:  res.Case.Status,
		Changed: res.Changed,
		Handoff: res.Handoff,
	}
}
