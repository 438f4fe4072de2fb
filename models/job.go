package models

import "github.com/lib/pq"

// PrintJob statuses. done, error and blocked are terminal; a job never leaves
// a terminal status no matter how often it is polled or retried.
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusError      = "error"
	JobStatusBlocked    = "blocked"
)

const (
	StageMaster  = "master"
	StagePreview = "preview"
	StageMockup  = "mockup"
)

// PrintJob is one run of the three-stage print pipeline for a ready plan.
// The prompt and aspect are frozen at submit time; later plan edits do not
// affect a job already in flight.
type PrintJob struct {
	JsonModel
	SessionID uint          `gorm:"index" json:"session_id"`
	Session   DesignSession `json:"-"`

	Status string `json:"status"`
	Stage  string `json:"stage"`

	Prompt       string  `gorm:"type:text" json:"prompt"`
	TargetAspect float64 `json:"target_aspect"`
	SizeHint     string  `json:"size_hint"`

	// storage keys of the three artifacts; ResultKey follows mockup -> preview -> master
	MasterKey  *string `json:"master_key"`
	PreviewKey *string `json:"preview_key"`
	MockupKey  *string `json:"mockup_key"`
	ResultKey  *string `json:"result_key"`

	ErrorMessage *string `gorm:"type:text" json:"error_message"`

	// policy-rejection outcome; never reported as an error to the shopper
	Blocked     bool    `json:"blocked"`
	BlockReason *string `gorm:"type:text" json:"block_reason"`
	Suggestion  *string `gorm:"type:text" json:"suggestion"`
	BlockNote   *string `gorm:"type:text" json:"block_note"`

	// explicit log of degraded transitions (preview:fallback_master etc) so
	// operators can tell "worked" from "quietly degraded"
	Trace pq.StringArray `gorm:"type:text[]" json:"trace"`

	AlertWhenDone bool `json:"alert_when_done"`

	Duration              *float64 `json:"duration"` // in seconds
	LLMModel              *string  `json:"llm_model"`
	LLMInputTokenCount    *int32   `json:"llm_input_token_usage"`
	LLMOutputTokenCount   *int32   `json:"llm_output_token_usage"`
	LLMTotalTokenCount    *int32   `json:"llm_total_token_usage"`
	LLMThoughtsTokenCount *int32   `json:"llm_thoughts_token_count"`
}

// Terminal reports whether the job reached a state it can never leave.
func (j *PrintJob) Terminal() bool {
	return j.Status == JobStatusDone || j.Status == JobStatusError || j.Status == JobStatusBlocked
}
