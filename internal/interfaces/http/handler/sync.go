package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	syncapp "github.com/erp/catalogsync/internal/application/productsync"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/scheduler"
	"github.com/erp/catalogsync/internal/interfaces/http/dto"
	"github.com/erp/catalogsync/internal/interfaces/http/middleware"
)

const defaultJobHistoryLimit = 20

// RunReader reads persisted sync run reports
type RunReader interface {
	Get(ctx context.Context, id uuid.UUID) (*syncapp.RunResponse, error)
	Latest(ctx context.Context) (*syncapp.RunResponse, error)
	List(ctx context.Context, page, pageSize int) (*syncapp.RunListResponse, error)
}

// SyncTrigger queues manual syncs and reports on the cron trigger
type SyncTrigger interface {
	TriggerManualSync() (scheduler.ProductSyncJob, error)
	GetSchedulerStats() scheduler.ProductSyncTriggerStats
}

// JobTracker exposes the scheduler's job bookkeeping
type JobTracker interface {
	GetJob(id uuid.UUID) (scheduler.ProductSyncJob, error)
	GetActiveJobs() []scheduler.ProductSyncJob
	GetJobHistory(limit int) []scheduler.ProductSyncJob
}

// SyncHandler handles the product sync admin endpoints
type SyncHandler struct {
	BaseHandler
	runs    RunReader
	trigger SyncTrigger
	jobs    JobTracker
	logger  *zap.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(runs RunReader, trigger SyncTrigger, jobs JobTracker, log *zap.Logger) *SyncHandler {
	return &SyncHandler{
		runs:    runs,
		trigger: trigger,
		jobs:    jobs,
		logger:  log,
	}
}

// TriggerSync godoc
// @Summary      Trigger a product sync
// @Description  Queue a manual sync run and return its job
// @Tags         sync
// @Produce      json
// @Success      202 {object} dto.Response{data=JobResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/sync/runs [post]
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	job, err := h.trigger.TriggerManualSync()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	logger.L(c.Request.Context(), h.logger).Info("manual product sync queued",
		zap.String("job_id", job.ID.String()),
		zap.String("requested_by", middleware.GetJWTUsername(c)),
	)
	h.Accepted(c, toJobResponse(job))
}

// ListRuns godoc
// @Summary      List sync runs
// @Description  List persisted sync runs, newest first
// @Tags         sync
// @Produce      json
// @Param        page      query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]productsync.RunResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/sync/runs [get]
func (h *SyncHandler) ListRuns(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.runs.List(c.Request.Context(), req.Page, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Runs, result.Total, result.Page, result.PageSize)
}

// LatestRun godoc
// @Summary      Latest sync run
// @Description  Return the most recent sync run
// @Tags         sync
// @Produce      json
// @Success      200 {object} dto.Response{data=productsync.RunResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/sync/runs/latest [get]
func (h *SyncHandler) LatestRun(c *gin.Context) {
	run, err := h.runs.Latest(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, run)
}

// GetRun godoc
// @Summary      Get sync run
// @Description  Return a sync run by ID
// @Tags         sync
// @Produce      json
// @Param        id path string true "Run ID" format(uuid)
// @Success      200 {object} dto.Response{data=productsync.RunResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/sync/runs/{id} [get]
func (h *SyncHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid run ID")
		return
	}

	run, err := h.runs.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, run)
}

// ListJobs godoc
// @Summary      List sync jobs
// @Description  Return the active jobs and the recent job history of the scheduler
// @Tags         sync
// @Produce      json
// @Param        limit query int false "History size" default(20)
// @Success      200 {object} dto.Response{data=JobListResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/sync/jobs [get]
func (h *SyncHandler) ListJobs(c *gin.Context) {
	var req JobHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultJobHistoryLimit
	}

	h.Success(c, JobListResponse{
		Active:  toJobResponses(h.jobs.GetActiveJobs()),
		History: toJobResponses(h.jobs.GetJobHistory(req.Limit)),
	})
}

// GetJob godoc
// @Summary      Get sync job
// @Description  Return a scheduler job by ID
// @Tags         sync
// @Produce      json
// @Param        id path string true "Job ID" format(uuid)
// @Success      200 {object} dto.Response{data=JobResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/sync/jobs/{id} [get]
func (h *SyncHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	job, err := h.jobs.GetJob(id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toJobResponse(job))
}

// Status godoc
// @Summary      Sync scheduler status
// @Description  Report the cron trigger and worker pool
// @Tags         sync
// @Produce      json
// @Success      200 {object} dto.Response{data=SyncStatusResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	h.Success(c, toSyncStatusResponse(h.trigger.GetSchedulerStats()))
}
