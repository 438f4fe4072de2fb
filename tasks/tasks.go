package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"printlyapi/models"
	"printlyapi/planner"
	"printlyapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type PrintPipelinePayload struct {
	JobID uint `json:"job_id"`
}

// Client initializes an asynq client for enqueuing tasks
func NewClient() (*asynq.Client, error) {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")}), nil
}

// NewPrintPipelineTask enqueues one print job for the three-stage pipeline
func NewPrintPipelineTask(jobID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(PrintPipelinePayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask("generate:print", payload), nil
}

// NewStaleJobReapTask is scheduled on a cron; it has no payload.
func NewStaleJobReapTask() *asynq.Task {
	return asynq.NewTask("jobs:reap", nil)
}

// Instruction for the preview stage: reproduce the master, add a watermark.
const previewInstruction = "Reproduce the provided artwork exactly as it is, pixel-faithful, same composition, same colors, same framing. Add one change only: a subtle semi-transparent diagonal watermark with the word PREVIEW repeated across the image"

// how long a non-terminal job may go without a row update before the reaper
// declares it dead
const staleJobCutoff = 15 * time.Minute

func downloadReferenceImages(awsService services.AWSServiceProvider, jobID uint, refs []planner.Reference) [][]byte {
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	var images [][]byte
	for _, ref := range refs {
		url := ref.URL
		if !strings.HasPrefix(url, "http") {
			// stored object key, presign a read first
			presigned, err := awsService.GetPresignedR2FileReadURL(context.TODO(), bucketName, ref.URL)
			if err != nil {
				fmt.Printf("[Job: %v] Error presigning reference %s (%s): %v\n", jobID, ref.Label, ref.URL, err)
				sentry.CaptureException(fmt.Errorf("[Job: %v] Error presigning reference %s: %v", jobID, ref.URL, err))
				continue
			}
			url = presigned
		}
		fileBytes, err := services.ReadFileFromUrl(url)
		if err != nil {
			fmt.Printf("[Job: %v] Error downloading reference %s: %v\n", jobID, ref.Label, err)
			sentry.CaptureException(fmt.Errorf("[Job: %v] Error downloading reference %s: %v", jobID, ref.Label, err))
			continue
		}
		images = append(images, fileBytes)
	}
	return images
}

func saveJobError(db *gorm.DB, job *models.PrintJob, message string) {
	job.Status = models.JobStatusError
	job.ErrorMessage = services.StrPointer(message)
	if tx := db.Save(job); tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Job: %v] Error on saving failed job: %v", job.ID, tx.Error))
	}
}

func saveJobBlocked(db *gorm.DB, job *models.PrintJob, reason, suggestion string) {
	job.Status = models.JobStatusBlocked
	job.Blocked = true
	job.BlockReason = services.StrPointer(reason)
	job.Suggestion = services.StrPointer(suggestion)
	job.BlockNote = services.StrPointer("Your idea was refused by the image service. Try the suggested prompt instead.")
	if tx := db.Save(job); tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Job: %v] Error on saving blocked job: %v", job.ID, tx.Error))
	}
}

// HandlePrintPipelineTask runs the three print stages for one job: master
// (fatal on failure, or the safety branch on a policy rejection), preview
// (falls back to the master) and mockup (skipped without a template, falls
// back to the preview). Every degraded transition lands in the job's trace.
func HandlePrintPipelineTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB, llm services.StudioLLMProvider,
	awsService services.AWSServiceProvider, fbApp *firebase.App, catalog *services.Catalog) error {
	googleKey := os.Getenv("GOOGLE_API_KEY")
	if googleKey == "" {
		sentry.CaptureException(fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload())))
		return fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload()))
	}
	var payload PrintPipelinePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Job: %v] Start print pipeline\n", payload.JobID)

	var job models.PrintJob
	res := db.Joins("Session").First(&job, payload.JobID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving print job %v", payload.JobID))
		return res.Error
	}

	if job.Terminal() {
		// a redelivered task must never move a finished job
		fmt.Printf("[Job: %v] Already terminal (%s), skipping\n", job.ID, job.Status)
		return nil
	}

	startedAt := time.Now()
	job.Status = models.JobStatusProcessing
	job.Stage = models.StageMaster
	if tx := db.Save(&job); tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Job: %v] Error on marking job processing: %v", job.ID, tx.Error))
		return tx.Error
	}

	var plan planner.DesignPlan
	if job.Session.PlanJSON != "" {
		if err := json.Unmarshal([]byte(job.Session.PlanJSON), &plan); err != nil {
			sentry.CaptureException(fmt.Errorf("[Job: %v] Error decoding session plan: %v", job.ID, err))
			saveJobError(db, &job, "Could not read the design plan for this job")
			return nil
		}
	}

	referenceImages := downloadReferenceImages(awsService, job.ID, plan.References)
	fmt.Printf("[Job: %v] Downloaded %d reference images\n", job.ID, len(referenceImages))

	model := services.Flash25Image
	modelString := model.String()
	fmt.Printf("[Job: %v] Model: %s\n", job.ID, modelString)

	// Stage 1: master render
	masterResp, err := llm.GenerateImage(job.Prompt, referenceImages, job.TargetAspect, job.SizeHint, model)
	if err != nil {
		if services.IsPolicyRejection(err) {
			fmt.Printf("[Job: %v] Policy rejection on master: %v\n", job.ID, err)
			suggestion := services.SuggestCompliantPrompt(llm, job.Prompt)
			saveJobBlocked(db, &job, err.Error(), suggestion)
			notifyJobFinished(fbApp, db, &job, "Design needs a tweak", "The image service refused this idea, we prepared a safer version for you")
			return nil
		}
		fmt.Printf("[Job: %v] Error on master render: %v\n", job.ID, err)
		sentry.CaptureException(fmt.Errorf("[Job: %v] Error on master render: %v", job.ID, err))
		saveJobError(db, &job, err.Error())
		return nil
	}
	if masterResp == nil || len(masterResp.Images) == 0 {
		fmt.Printf("[Job: %v] Master render returned no image\n", job.ID)
		sentry.CaptureException(fmt.Errorf("[Job: %v] Master render returned no image", job.ID))
		saveJobError(db, &job, "The image service returned no artwork")
		return nil
	}

	masterBytes := masterResp.Images[0]
	corrected, cropErr := services.EnsureAspect(masterBytes, job.TargetAspect, 0.03)
	if cropErr != nil {
		fmt.Printf("[Job: %v] Aspect correction failed, keeping raw master: %v\n", job.ID, cropErr)
		job.Trace = append(job.Trace, "master:aspect_uncorrected")
	} else {
		masterBytes = corrected
	}

	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	masterKey := fmt.Sprintf("jobs/%d/master.png", job.ID)
	if err := awsService.StoreObject(context.Background(), bucketName, masterKey, masterBytes); err != nil {
		fmt.Printf("[Job: %v] Storage failure on master: %v\n", job.ID, err)
		sentry.CaptureException(fmt.Errorf("[Job: %v] Storage failure on master: %v", job.ID, err))
		saveJobError(db, &job, fmt.Sprintf("Failed to store master artwork: %v", err))
		return nil
	}
	job.MasterKey = &masterKey
	job.Stage = models.StagePreview
	if tx := db.Save(&job); tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Job: %v] Error on saving job after master: %v", job.ID, tx.Error))
		return tx.Error
	}
	fmt.Printf("[Job: %v] Master stored at %s\n", job.ID, masterKey)

	// Stage 2: watermarked preview, non-fatal
	previewKey := masterKey
	previewBytes := masterBytes
	previewResp, err := llm.GenerateImage(previewInstruction, [][]byte{masterBytes}, job.TargetAspect, job.SizeHint, model)
	if err != nil || previewResp == nil || len(previewResp.Images) == 0 {
		fmt.Printf("[Job: %v] Preview failed, falling back to master: %v\n", job.ID, err)
		job.Trace = append(job.Trace, "preview:fallback_master")
	} else {
		previewBytes = previewResp.Images[0]
		key := fmt.Sprintf("jobs/%d/preview.png", job.ID)
		if err := awsService.StoreObject(context.Background(), bucketName, key, previewBytes); err != nil {
			fmt.Printf("[Job: %v] Storage failure on preview: %v\n", job.ID, err)
			sentry.CaptureException(fmt.Errorf("[Job: %v] Storage failure on preview: %v", job.ID, err))
			saveJobError(db, &job, fmt.Sprintf("Failed to store preview artwork: %v", err))
			return nil
		}
		previewKey = key
	}
	job.PreviewKey = &previewKey
	job.Stage = models.StageMockup
	if tx := db.Save(&job); tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Job: %v] Error on saving job after preview: %v", job.ID, tx.Error))
		return tx.Error
	}

	// Stage 3: product mockup, skipped without a template, non-fatal otherwise
	resultKey := previewKey
	var template *models.MockupTemplate
	if job.Session.SelectedProduct != nil {
		if product, ok := catalog.Product(*job.Session.SelectedProduct); ok {
			template = product.Mockup
		}
	}
	if template == nil {
		fmt.Printf("[Job: %v] No mockup template for product, skipping mockup stage\n", job.ID)
		job.Trace = append(job.Trace, "mockup:skipped")
	} else {
		mockupResp, err := llm.GenerateImage(template.Prompt, [][]byte{previewBytes}, template.Aspect, template.SizeHint, model)
		if err != nil || mockupResp == nil || len(mockupResp.Images) == 0 {
			fmt.Printf("[Job: %v] Mockup failed, falling back to preview: %v\n", job.ID, err)
			job.Trace = append(job.Trace, "mockup:fallback_preview")
			job.MockupKey = &previewKey
			resultKey = previewKey
		} else {
			key := fmt.Sprintf("jobs/%d/mockup.png", job.ID)
			if err := awsService.StoreObject(context.Background(), bucketName, key, mockupResp.Images[0]); err != nil {
				fmt.Printf("[Job: %v] Storage failure on mockup: %v\n", job.ID, err)
				sentry.CaptureException(fmt.Errorf("[Job: %v] Storage failure on mockup: %v", job.ID, err))
				saveJobError(db, &job, fmt.Sprintf("Failed to store mockup artwork: %v", err))
				return nil
			}
			job.MockupKey = &key
			resultKey = key
		}
	}

	duration := time.Since(startedAt).Seconds()
	job.ResultKey = &resultKey
	job.Status = models.JobStatusDone
	job.Duration = &duration
	job.LLMModel = &modelString
	job.LLMInputTokenCount = &masterResp.InputTokenCount
	job.LLMOutputTokenCount = &masterResp.OutputTokenCount
	job.LLMTotalTokenCount = &masterResp.TotalTokenCount
	job.LLMThoughtsTokenCount = &masterResp.ThoughtsTokenCount
	if tx := db.Save(&job); tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Job: %v] Error on saving finished job: %v", job.ID, tx.Error))
		return tx.Error
	}
	fmt.Printf("[Job: %v] Pipeline finished in %.1fs, result %s, trace %v\n", job.ID, duration, resultKey, job.Trace)

	notifyJobFinished(fbApp, db, &job, "Your design is ready", "Open the app to preview your artwork and pick a product")
	return nil
}

func notifyJobFinished(fbApp *firebase.App, db *gorm.DB, job *models.PrintJob, title, message string) {
	if !job.AlertWhenDone {
		fmt.Printf("[Job: %v] AlertWhenDone is false, not sending notification\n", job.ID)
		return
	}
	if fbApp == nil {
		return
	}
	fmt.Printf("[Job: %v] Sending notification to user %v\n", job.ID, job.Session.OwnerID)
	services.SendNotification(fbApp, db, job.Session.OwnerID, title, message,
		map[string]string{"job_id": fmt.Sprintf("%d", job.ID), "type": "print_job_finished"})
}

// HandleStaleJobReapTask marks jobs that stopped making progress as failed.
// Safety net for worker crashes mid-pipeline; runs on the scheduler.
func HandleStaleJobReapTask(ctx context.Context, t *asynq.Task, db *gorm.DB) error {
	cutoff := time.Now().Add(-staleJobCutoff)

	var stale []models.PrintJob
	result := db.Where("status IN ? AND updated_at < ?",
		[]string{models.JobStatusQueued, models.JobStatusProcessing}, cutoff).Find(&stale)
	if result.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Reaper] Error fetching stale jobs: %v", result.Error))
		return result.Error
	}
	if len(stale) == 0 {
		return nil
	}

	fmt.Printf("[Reaper] Found %d stale jobs\n", len(stale))
	for i := range stale {
		job := &stale[i]
		fmt.Printf("[Reaper] Job %v stuck in %s since %v, marking failed\n", job.ID, job.Status, job.UpdatedAt)
		saveJobError(db, job, "The generation job timed out")
	}
	return nil
}
