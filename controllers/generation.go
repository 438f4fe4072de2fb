package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"printlyapi/models"
	"printlyapi/planner"
	"printlyapi/services"
	"printlyapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type BeginGenerationIn struct {
	AlertWhenDone bool   `json:"alert_when_done"`
	SizeHint      string `json:"size_hint" validate:"omitempty,max=50"`
}

type BeginGenerationResponse struct {
	JobID  uint   `json:"job_id"`
	Status string `json:"status"`
}

type BlockedInfo struct {
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion"`
	Note       string `json:"note"`
}

type JobStatusResponse struct {
	JobID        uint         `json:"job_id"`
	Status       string       `json:"status"`
	Stage        string       `json:"stage"`
	MasterUrl    string       `json:"master_url,omitempty"`
	PreviewUrl   string       `json:"preview_url,omitempty"`
	MockupUrl    string       `json:"mockup_url,omitempty"`
	ResultUrl    string       `json:"result_url,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
	Blocked      *BlockedInfo `json:"blocked,omitempty"`
	Trace        []string     `json:"trace,omitempty"`
}

type GenerationController struct {
	PlanStore *services.PlanStore
	URLCache  services.URLCacheServiceProvider
}

func (controller *GenerationController) SessionRoutes(g *echo.Group) {
	g.POST("/generate", controller.Begin)
	g.GET("/jobs", controller.ListJobs)
}

func (controller *GenerationController) JobRoutes(g *echo.Group) {
	g.GET("/jobs/:jobId", controller.Status)
}

// Begin snapshots the plan into a queued job and hands it to the worker. The
// prompt and aspect are frozen here; the shopper can keep editing the plan
// without affecting this run.
func (controller *GenerationController) Begin(c echo.Context) error {
	var req BeginGenerationIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	session := c.Get("currentSession").(models.DesignSession)
	db := c.Get("__db").(*gorm.DB)
	asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Queue connection error"})
	}

	_, plan, err := controller.PlanStore.Load(db, session.SessionKey)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load design plan"})
	}
	if !planner.GenerationReady(plan) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error":   "plan_not_ready",
			"message": "Pick an orientation and describe the design before generating",
		})
	}

	job := models.PrintJob{
		SessionID:     session.ID,
		Status:        models.JobStatusQueued,
		Stage:         models.StageMaster,
		Prompt:        planner.EffectivePrompt(plan),
		TargetAspect:  plan.AspectRatio(),
		SizeHint:      req.SizeHint,
		AlertWhenDone: req.AlertWhenDone,
	}
	if err := db.Create(&job).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create job"})
	}

	task, err := tasks.NewPrintPipelineTask(job.ID)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to build job task"})
	}
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("generate"))
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to enqueue job"})
	}
	fmt.Printf("[Job: %v] Enqueued print pipeline task %s\n", job.ID, info.ID)

	return c.JSON(http.StatusCreated, BeginGenerationResponse{JobID: job.ID, Status: job.Status})
}

func (controller *GenerationController) ListJobs(c echo.Context) error {
	session := c.Get("currentSession").(models.DesignSession)
	db := c.Get("__db").(*gorm.DB)

	var jobs []models.PrintJob
	if err := db.Where("session_id = ?", session.ID).Order("id desc").Find(&jobs).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list jobs"})
	}

	responses := make([]JobStatusResponse, 0, len(jobs))
	for i := range jobs {
		responses = append(responses, controller.jobResponse(c, &jobs[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"jobs": responses})
}

// Status reports one job. Terminal jobs keep answering the same payload no
// matter how often they are polled.
func (controller *GenerationController) Status(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	var job models.PrintJob
	result := db.Joins("Session").Where("print_jobs.id = ? AND \"Session\".owner_id = ?", c.Param("jobId"), user.ID).First(&job)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Job not found"})
	}
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch job"})
	}

	return c.JSON(http.StatusOK, controller.jobResponse(c, &job))
}

func (controller *GenerationController) jobResponse(c echo.Context, job *models.PrintJob) JobStatusResponse {
	response := JobStatusResponse{
		JobID:        job.ID,
		Status:       job.Status,
		Stage:        job.Stage,
		ErrorMessage: job.ErrorMessage,
		Trace:        job.Trace,
		MasterUrl:    controller.readURL(job.MasterKey),
		PreviewUrl:   controller.readURL(job.PreviewKey),
		MockupUrl:    controller.readURL(job.MockupKey),
		ResultUrl:    controller.readURL(job.ResultKey),
	}
	if job.Blocked {
		response.Blocked = &BlockedInfo{
			Reason:     services.NilSafe(job.BlockReason),
			Suggestion: services.NilSafe(job.Suggestion),
			Note:       services.NilSafe(job.BlockNote),
		}
	}
	return response
}

func (controller *GenerationController) readURL(key *string) string {
	if key == nil || *key == "" {
		return ""
	}
	url, err := controller.URLCache.GetReadURL(context.Background(), *key)
	if err != nil {
		fmt.Println("Failed to derive read URL for", *key, err)
		sentry.CaptureException(err)
		return ""
	}
	return url
}
