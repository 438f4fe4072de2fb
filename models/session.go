package models

import "github.com/lib/pq"

// DesignSession is one design negotiation between a shopper and the planner.
// The evolving creative plan lives in PlanJSON as a serialized planner.DesignPlan;
// it is only ever rewritten through the plan store's guarded merge.
type DesignSession struct {
	JsonModel
	SessionKey string      `gorm:"uniqueIndex" json:"session_key"`
	Name       string      `json:"name"`
	Owner      UserAccount `json:"-"`
	OwnerID    uint        `json:"-"`

	PlanJSON string `gorm:"type:text" json:"-"`

	// set once the subject photo has been sent upstream; the photo must never be
	// attached to a second chat call within the same session (asymmetric token cost)
	SubjectPhotoShown bool `json:"subject_photo_shown"`

	// abstract product choice; resolved to a vendor SKU only at checkout
	SelectedProduct *string `json:"selected_product"`
}

type ConversationTurn struct {
	JsonModel
	SessionID uint          `gorm:"index" json:"-"`
	Session   DesignSession `json:"-"`
	Role      string        `json:"role"` // user, assistant
	Content   string        `gorm:"type:text" json:"content"`
	// storage keys of images attached to this turn
	Images pq.StringArray `gorm:"type:text[]" json:"images,omitempty"`
}
