package controllers

import (
	"context"
	"fmt"
	"net/http"

	"printlyapi/models"
	"printlyapi/nameutil"
	"printlyapi/planner"
	"printlyapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type CreateSessionIn struct {
	Name string `json:"name" validate:"omitempty,max=100"`
}

type UpdatePlanIn struct {
	Orientation     *string  `json:"orientation" validate:"omitempty,orientation"`
	SelectedProduct *string  `json:"selected_product" validate:"omitempty,max=50"`
	FinalizedPrompt *string  `json:"finalized_prompt" validate:"omitempty,max=4000"`
	TargetAspect    *float64 `json:"target_aspect" validate:"omitempty,gt=0,lt=10"`
	UserConfirmed   *bool    `json:"user_confirmed"`
}

type AddReferenceIn struct {
	FileName string `json:"file_name" validate:"required,max=200"`
	Label    string `json:"label" validate:"required,max=100"`
}

type SessionResponse struct {
	SessionKey      string             `json:"session_key"`
	Name            string             `json:"name"`
	SelectedProduct *string            `json:"selected_product"`
	Plan            planner.DesignPlan `json:"plan"`
	CreatedAt       string             `json:"created_at"`
}

type ReferenceCreatedResponse struct {
	Reference     planner.Reference  `json:"reference"`
	FileUploadUrl string             `json:"file_upload_url"`
	Plan          planner.DesignPlan `json:"plan"`
}

type SessionsController struct {
	AWSService  services.AWSServiceProvider
	FirebaseApp *firebase.App
	PlanStore   *services.PlanStore
	Catalog     *services.Catalog
}

func (controller *SessionsController) SessionRoutes(g *echo.Group) {
	g.POST("", controller.CreateSession)
	g.GET("", controller.ListSessions)
}

func (controller *SessionsController) SingleSessionRoutes(g *echo.Group) {
	g.GET("", controller.GetSession)
	g.PATCH("/plan", controller.UpdatePlan)
	g.POST("/references", controller.AddReference)
}

func sessionResponse(session *models.DesignSession, plan planner.DesignPlan) SessionResponse {
	return SessionResponse{
		SessionKey:      session.SessionKey,
		Name:            session.Name,
		SelectedProduct: session.SelectedProduct,
		Plan:            plan,
		CreatedAt:       session.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (controller *SessionsController) CreateSession(c echo.Context) error {
	var req CreateSessionIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	name := req.Name
	if name == "" {
		name = nameutil.SessionName()
	}
	session := models.DesignSession{
		SessionKey: RandomSessionKey(24),
		Name:       name,
		OwnerID:    user.ID,
	}
	if err := db.Create(&session).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create design session"})
	}

	return c.JSON(http.StatusCreated, sessionResponse(&session, planner.DesignPlan{}))
}

func (controller *SessionsController) ListSessions(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db := c.Get("__db").(*gorm.DB)

	var sessions []models.DesignSession
	if err := db.Where("owner_id = ?", user.ID).Order("created_at desc").Find(&sessions).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list sessions"})
	}

	responses := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		_, plan, err := controller.PlanStore.Load(db, sessions[i].SessionKey)
		if err != nil {
			fmt.Println("Failed to decode plan for session", sessions[i].SessionKey, err)
			continue
		}
		responses = append(responses, sessionResponse(&sessions[i], plan))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"sessions": responses})
}

func (controller *SessionsController) GetSession(c echo.Context) error {
	session := c.Get("currentSession").(models.DesignSession)
	db := c.Get("__db").(*gorm.DB)

	_, plan, err := controller.PlanStore.Load(db, session.SessionKey)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load design plan"})
	}
	return c.JSON(http.StatusOK, sessionResponse(&session, plan))
}

// UpdatePlan applies the explicit user actions that bypass the conversation:
// picking an orientation or product, pinning or clearing the prompt,
// confirming the design. Goes through the same guarded merge as the planner.
func (controller *SessionsController) UpdatePlan(c echo.Context) error {
	var req UpdatePlanIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	session := c.Get("currentSession").(models.DesignSession)
	db := c.Get("__db").(*gorm.DB)

	if req.SelectedProduct != nil {
		if *req.SelectedProduct == "" {
			session.SelectedProduct = nil
		} else {
			if _, ok := controller.Catalog.Product(*req.SelectedProduct); !ok {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Unknown product: %s", *req.SelectedProduct)})
			}
			session.SelectedProduct = req.SelectedProduct
		}
		if err := db.Model(&models.DesignSession{}).Where("id = ?", session.ID).
			Update("selected_product", session.SelectedProduct).Error; err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update session"})
		}
	}

	delta := planner.PlanDelta{}
	if req.Orientation != nil {
		if *req.Orientation == "" {
			delta.Orientation = planner.Null[string]()
		} else {
			delta.Orientation = planner.Some(*req.Orientation)
		}
	}
	if req.FinalizedPrompt != nil {
		if *req.FinalizedPrompt == "" {
			delta.FinalizedPrompt = planner.Null[string]()
		} else {
			delta.FinalizedPrompt = planner.Some(*req.FinalizedPrompt)
		}
	}
	if req.TargetAspect != nil {
		delta.TargetAspect = planner.Some(*req.TargetAspect)
	}
	if req.UserConfirmed != nil {
		delta.UserConfirmed = planner.Some(*req.UserConfirmed)
	}

	plan, err := controller.PlanStore.Merge(db, session.SessionKey, delta)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update design plan"})
	}

	return c.JSON(http.StatusOK, sessionResponse(&session, plan))
}

// AddReference presigns an upload for a reference image and registers it in
// the plan under its label. The merge drops a matching entry from the plan's
// needed-references list.
func (controller *SessionsController) AddReference(c echo.Context) error {
	var req AddReferenceIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if !services.IsAllowedReferenceFile(req.FileName) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unsupported image file type"})
	}

	session := c.Get("currentSession").(models.DesignSession)
	db := c.Get("__db").(*gorm.DB)

	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	fileKey := fmt.Sprintf("references/%s/%s", session.SessionKey, req.FileName)
	uploadUrl, err := controller.AWSService.PresignLink(context.Background(), bucketName, fileKey)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to prepare reference upload"})
	}

	reference := planner.Reference{
		ID:    RandomSessionKey(12),
		URL:   fileKey,
		Label: req.Label,
	}
	plan, err := controller.PlanStore.Merge(db, session.SessionKey, planner.PlanDelta{
		References: []planner.Reference{reference},
	})
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to register reference"})
	}

	return c.JSON(http.StatusCreated, ReferenceCreatedResponse{
		Reference:     reference,
		FileUploadUrl: uploadUrl,
		Plan:          plan,
	})
}
