package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mr1hm/go-triage-queue/internal/dispatch"
	"github.com/mr1hm/go-triage-queue/internal/models"
	"github.com/mr1hm/go-triage-queue/internal/queue"
	"github.com/mr1hm/go-triage-queue/internal/repository"
)

// QueueService is the part of dispatch.Service the handlers drive.
type QueueService interface {
	Snapshot() dispatch.Snapshot
	Refresh(ctx context.Context) error
	Accept(ctx context.Context, caseID string) (dispatch.ActionResult, error)
	Stabilize(ctx context.Context, caseID string) (dispatch.ActionResult, error)
	Escalate(ctx context.Context, caseID string) (dispatch.ActionResult, error)
}

type Handler struct {
	service QueueService
	audit   repository.TransitionRepository
}

// NewHandler builds the HTTP handlers. audit may be nil, in which case the
// transitions route reports the log as unavailable.
func NewHandler(service QueueService, audit repository.TransitionRepository) *Handler {
	return &Handler{
		service: service,
		audit:   audit,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/api/queue", h.getQueue)
	r.POST("/api/refresh", h.refresh)

	cases := r.Group("/api/cases/:id")
	cases.POST("/accept", h.action(h.service.Accept))
	cases.POST("/stabilize", h.action(h.service.Stabilize))
	cases.POST("/escalate", h.action(h.service.Escalate))
	cases.GET("/transitions", h.getTransitions)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getQueue(c *gin.Context) {
	c.JSON(http.StatusOK, toQueueResponse(h.service.Snapshot()))
}

func (h *Handler) refresh(c *gin.Context) {
	if err := h.service.Refresh(c.Request.Context()); err != nil {
		slog.Error("manual refresh failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "failed to refresh emergency queue",
		})
		return
	}
	c.JSON(http.StatusOK, toQueueResponse(h.service.Snapshot()))
}

type actionFunc func(ctx context.Context, caseID string) (dispatch.ActionResult, error)

func (h *Handler) action(apply actionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		res, err := apply(c.Request.Context(), id)
		if errors.Is(err, queue.ErrCaseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
			return
		}
		if err != nil {
			slog.Error("case action failed", "case_id", id, "path", c.FullPath(), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update case"})
			return
		}

		c.JSON(http.StatusOK, toActionResponse(id, res))
	}
}

func (h *Handler) getTransitions(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit log not configured"})
		return
	}

	id := c.Param("id")
	transitions, err := h.audit.ListTransitions(c.Request.Context(), id)
	if err != nil {
		slog.Error("error listing transitions", "case_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch transitions"})
		return
	}
	if transitions == nil {
		transitions = []models.Transition{}
	}

	c.JSON(http.StatusOK, gin.H{
		"case_id":     id,
		"transitions": transitions,
	})
}
