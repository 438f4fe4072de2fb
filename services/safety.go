package services

import (
	"fmt"
	"regexp"
	"strings"
)

// GenericSafePrompt is the last-ditch artwork prompt used when even the
// rewritten prompt gets rejected. Deliberately bland.
const GenericSafePrompt = "A tasteful abstract wall art composition with soft flowing shapes and a calm, modern color palette, suitable for home decor printing"

var policyPattern = regexp.MustCompile(`(?i)safety|violence|policy|content`)

// IsPolicyRejection decides whether a model error means "the content was
// refused" rather than "the service broke". Refusals surface either as a 400
// from the API or as a safety/policy worded message; anything else is treated
// as transient.
func IsPolicyRejection(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, "400") {
		return true
	}
	return policyPattern.MatchString(msg)
}

// BlockedResult is what a policy-refused job reports back to the client in
// place of artwork.
type BlockedResult struct {
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion"`
	Note       string `json:"note"`
}

// SuggestCompliantPrompt asks the model for a softened alternative to a
// rejected prompt. On any failure it falls back to the generic safe prompt so
// a blocked job always carries some actionable suggestion.
func SuggestCompliantPrompt(llm StudioLLMProvider, rejectedPrompt string) string {
	suggestion, err := llm.RewritePrompt(rejectedPrompt)
	if err != nil {
		fmt.Println("Error suggesting compliant prompt:", err)
		return GenericSafePrompt
	}
	return suggestion
}
