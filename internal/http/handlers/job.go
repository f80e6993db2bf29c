package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lumen-backend/internal/domain/generation"
	"github.com/yungbote/lumen-backend/internal/http/response"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/services"
)

type JobHandler struct {
	log  *logger.Logger
	jobs services.JobService
}

func NewJobHandler(log *logger.Logger, jobs services.JobService) *JobHandler {
	return &JobHandler{log: log.With("handler", "JobHandler"), jobs: jobs}
}

type createJobRequest struct {
	Kind      string          `json:"kind" binding:"required"`
	Prompt    string          `json:"prompt" binding:"required"`
	ModelHint string          `json:"model_hint"`
	Params    json.RawMessage `json:"params"`
}

// POST /api/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	job, err := h.jobs.Create(c.Request.Context(), userID, services.CreateJobInput{
		Kind:      generation.JobKind(req.Kind),
		Prompt:    req.Prompt,
		ModelHint: req.ModelHint,
		Params:    req.Params,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

// GET /api/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	jobs, err := h.jobs.List(c.Request.Context(), userID, limit)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": jobs})
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), userID, jobID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/regenerate
func (h *JobHandler) Regenerate(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	job, err := h.jobs.Regenerate(c.Request.Context(), userID, jobID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

// POST /api/jobs/:id/publish
func (h *JobHandler) Publish(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	var req publishRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	post, err := h.jobs.PublishJob(c.Request.Context(), userID, jobID, req.Caption)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"post": post})
}

// GET /api/jobs/:id/artifact
func (h *JobHandler) Artifact(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	art, err := h.jobs.OpenArtifact(c.Request.Context(), userID, jobID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	if art.RedirectURL != "" {
		c.Redirect(http.StatusFound, art.RedirectURL)
		return
	}
	defer art.Body.Close()
	c.Header("Content-Type", art.ContentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, art.Body); err != nil {
		h.log.Warn("Artifact stream interrupted", "job_id", jobID, "error", err)
	}
}
