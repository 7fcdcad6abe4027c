package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appstocksync "github.com/erp/stocksync/internal/application/stocksync"
	"github.com/erp/stocksync/internal/domain/stocksync"
	"github.com/erp/stocksync/internal/infrastructure/logger"
	"github.com/erp/stocksync/internal/infrastructure/scheduler"
	"github.com/erp/stocksync/internal/interfaces/http/dto"
)

const defaultBatchListLimit = 20

// SyncService runs sync steps and exposes the active batch
type SyncService interface {
	RunStep(ctx context.Context) (*appstocksync.StepOutcome, error)
	ActiveBatch(ctx context.Context) (*stocksync.SyncBatch, error)
}

// SyncTrigger wakes the background runner
type SyncTrigger interface {
	Trigger(source string) (queued bool, err error)
	History(limit int) []scheduler.RunSummary
}

// SyncHandler exposes the step, trigger and batch status endpoints
type SyncHandler struct {
	BaseHandler
	service SyncService
	batches stocksync.BatchRepository
	results stocksync.SiteResultRepository
	trigger SyncTrigger
}

// NewSyncHandler creates a SyncHandler. trigger may be nil when the
// background runner is disabled.
func NewSyncHandler(service SyncService, batches stocksync.BatchRepository, results stocksync.SiteResultRepository, trigger SyncTrigger) *SyncHandler {
	return &SyncHandler{
		service: service,
		batches: batches,
		results: results,
		trigger: trigger,
	}
}

// RegisterRoutes registers the sync routes under the API group
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sync := rg.Group("/sync")
	sync.POST("/step", h.RunStep)
	sync.POST("/trigger", h.Trigger)
	sync.GET("/runs", h.ListRuns)
	sync.GET("/batches", h.ListBatches)
	sync.GET("/batches/active", h.GetActiveBatch)
	sync.GET("/batches/:id", h.GetBatch)
}

// RunStep executes exactly one step of the active batch
func (h *SyncHandler) RunStep(c *gin.Context) {
	outcome, err := h.service.RunStep(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, appstocksync.ErrBatchBusy):
			h.ErrorWithCode(c, dto.ErrCodeBatchBusy, "Batch creation is in progress on another worker")
		case outcome != nil:
			logger.GetGinLogger(c).Warn("Sync step returned error",
				zap.String("batch_id", outcome.BatchID),
				zap.Int("step", outcome.Step),
				zap.Error(err),
			)
			h.ErrorWithCode(c, dto.ErrCodeStepFailed, err.Error())
		default:
			h.DomainError(c, "Failed to run sync step", err)
		}
		return
	}
	h.Success(c, outcome)
}

// Trigger queues a background run and returns immediately
func (h *SyncHandler) Trigger(c *gin.Context) {
	if h.trigger == nil {
		h.ErrorWithCode(c, dto.ErrCodeSchedulerStopped, "Background sync runner is disabled")
		return
	}
	queued, err := h.trigger.Trigger("api")
	if err != nil {
		if errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			h.ErrorWithCode(c, dto.ErrCodeSchedulerStopped, "Background sync runner is not running")
			return
		}
		h.InternalError(c, "Failed to trigger sync", err)
		return
	}
	h.Accepted(c, dto.TriggerResponse{Queued: queued})
}

// ListRuns returns the runner's recent wake-ups, newest first
func (h *SyncHandler) ListRuns(c *gin.Context) {
	if h.trigger == nil {
		h.Success(c, []scheduler.RunSummary{})
		return
	}
	limit := defaultBatchListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	h.Success(c, h.trigger.History(limit))
}

// ListBatches returns the most recent batches
func (h *SyncHandler) ListBatches(c *gin.Context) {
	var req dto.ListBatchesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultBatchListLimit
	}

	batches, err := h.batches.ListRecent(c.Request.Context(), req.Limit)
	if err != nil {
		h.InternalError(c, "Failed to list batches", err)
		return
	}
	out := make([]dto.BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, dto.NewBatchResponse(b))
	}
	h.Success(c, out)
}

// GetActiveBatch returns the non-terminal, unexpired batch with its results
func (h *SyncHandler) GetActiveBatch(c *gin.Context) {
	batch, err := h.service.ActiveBatch(c.Request.Context())
	if err != nil {
		if errors.Is(err, stocksync.ErrBatchNotFound) {
			h.NotFound(c, "No active batch")
			return
		}
		h.InternalError(c, "Failed to load active batch", err)
		return
	}
	h.respondWithResults(c, batch)
}

// GetBatch returns one batch with its per-site results
func (h *SyncHandler) GetBatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.ErrorWithCode(c, dto.ErrCodeInvalidInput, "Invalid batch ID")
		return
	}

	batch, err := h.batches.FindByID(c.Request.Context(), id)
	if err != nil {
		h.DomainError(c, "Failed to load batch", err)
		return
	}
	h.respondWithResults(c, batch)
}

func (h *SyncHandler) respondWithResults(c *gin.Context, batch *stocksync.SyncBatch) {
	results, err := h.results.ListByBatch(c.Request.Context(), batch.ID)
	if err != nil {
		h.InternalError(c, "Failed to load site results", err)
		return
	}
	h.Success(c, dto.NewBatchDetailResponse(batch, results))
}
