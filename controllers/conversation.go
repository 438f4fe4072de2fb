package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"printlyapi/models"
	"printlyapi/planner"
	"printlyapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type AdvanceConversationIn struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type AdvanceConversationResponse struct {
	Reply       string             `json:"reply"`
	Plan        planner.DesignPlan `json:"plan"`
	DeltaSource string             `json:"delta_source"`
}

type ConversationController struct {
	StudioLLM  services.StudioLLMProvider
	AWSService services.AWSServiceProvider
	PlanStore  *services.PlanStore
	Catalog    *services.Catalog
}

func (controller *ConversationController) Routes(g *echo.Group) {
	g.POST("/conversation", controller.Advance)
	g.GET("/conversation", controller.History)
}

const plannerSystemTemplate = `You are a design consultant for a print-on-demand shop. You help the shopper shape one printable artwork through conversation.

Products available: %s.

The current design plan is:
%s

Respond with a single JSON object, no markdown fences, of the shape:
{"reply": "<your conversational reply>", "plan_delta": {<only the plan fields that changed>}}

Plan delta rules: include a field only when this message changed it. Use null to clear a field. "references" entries are {"id", "url", "label"} objects; "references_needed" is the full remaining list of labels you still need from the shopper. Set "finalized_prompt" only when the shopper has settled on the design. Keep replies short and warm.`

func plannerSystemPrompt(plan planner.DesignPlan, catalog *services.Catalog) string {
	encoded, err := json.Marshal(plan)
	if err != nil {
		encoded = []byte("{}")
	}
	return fmt.Sprintf(plannerSystemTemplate, strings.Join(catalog.ProductNames(), ", "), string(encoded))
}

// Advance runs one turn of the planner conversation: persist the shopper
// message, call the model with the full history, merge whatever delta comes
// back and persist the assistant reply. If the upstream call fails the shopper
// message is removed again, so a retry does not duplicate it.
func (controller *ConversationController) Advance(c echo.Context) error {
	var req AdvanceConversationIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	session := c.Get("currentSession").(models.DesignSession)
	db := c.Get("__db").(*gorm.DB)

	_, plan, err := controller.PlanStore.Load(db, session.SessionKey)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load design plan"})
	}

	// Reference images ride along on exactly one call per session. They are
	// token-expensive, and the model keeps them in context afterwards.
	var attachedImages [][]byte
	var attachedKeys []string
	if !session.SubjectPhotoShown && len(plan.References) > 0 {
		attachedImages, attachedKeys = controller.downloadReferences(plan.References)
	}

	userTurn := models.ConversationTurn{
		SessionID: session.ID,
		Role:      "user",
		Content:   req.Message,
		Images:    attachedKeys,
	}
	if err := db.Create(&userTurn).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to record message"})
	}

	var history []models.ConversationTurn
	if err := db.Where("session_id = ?", session.ID).Order("id asc").Find(&history).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load conversation"})
	}

	turns := make([]services.ChatTurn, 0, len(history))
	for _, turn := range history {
		chatTurn := services.ChatTurn{Role: turn.Role, Content: turn.Content}
		if turn.ID == userTurn.ID {
			chatTurn.Images = attachedImages
		}
		turns = append(turns, chatTurn)
	}

	response, err := controller.StudioLLM.Complete(plannerSystemPrompt(plan, controller.Catalog), turns, services.Flash25)
	if err != nil {
		fmt.Println("Planner call failed:", err)
		sentry.CaptureException(err)
		// roll the dangling shopper message back so the history the model sees
		// next time matches what actually happened
		db.Unscoped().Delete(&userTurn)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "upstream_unavailable"})
	}

	if len(attachedImages) > 0 {
		if err := db.Model(&models.DesignSession{}).Where("id = ?", session.ID).
			Update("subject_photo_shown", true).Error; err != nil {
			sentry.CaptureException(err)
		}
	}

	reply, delta, source := planner.ExtractDelta(response.Response)
	mergedPlan := plan
	if !delta.Empty() {
		mergedPlan, err = controller.PlanStore.Merge(db, session.SessionKey, delta)
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update design plan"})
		}
	}

	assistantTurn := models.ConversationTurn{
		SessionID: session.ID,
		Role:      "assistant",
		Content:   reply,
	}
	if err := db.Create(&assistantTurn).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to record reply"})
	}

	return c.JSON(http.StatusOK, AdvanceConversationResponse{
		Reply:       reply,
		Plan:        mergedPlan,
		DeltaSource: string(source),
	})
}

func (controller *ConversationController) History(c echo.Context) error {
	session := c.Get("currentSession").(models.DesignSession)
	db := c.Get("__db").(*gorm.DB)

	var history []models.ConversationTurn
	if err := db.Where("session_id = ?", session.ID).Order("id asc").Find(&history).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load conversation"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"turns": history})
}

// downloadReferences fetches reference image bytes from storage. A reference
// that cannot be fetched is skipped rather than failing the whole turn.
func (controller *ConversationController) downloadReferences(references []planner.Reference) ([][]byte, []string) {
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	var images [][]byte
	var keys []string
	for _, reference := range references {
		url := reference.URL
		if !strings.HasPrefix(url, "http") {
			presigned, err := controller.AWSService.GetPresignedR2FileReadURL(context.Background(), bucketName, reference.URL)
			if err != nil {
				fmt.Println("Failed to presign reference", reference.Label, err)
				sentry.CaptureException(err)
				continue
			}
			url = presigned
		}
		content, err := services.ReadFileFromUrl(url)
		if err != nil {
			fmt.Println("Failed to fetch reference", reference.Label, err)
			sentry.CaptureException(err)
			continue
		}
		images = append(images, content)
		keys = append(keys, reference.URL)
	}
	return images, keys
}
