package planner

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Opt is a tri-state JSON field: absent, explicit null, or a value. The merge
// rules treat "absent" and "null" differently, so a plain pointer is not enough.
type Opt[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Some builds a present Opt, mostly for tests and explicit user actions.
func Some[T any](v T) Opt[T] {
	return Opt[T]{Set: true, Value: v}
}

// Null builds an explicit-null Opt ("clear this field").
func Null[T any]() Opt[T] {
	return Opt[T]{Set: true, Null: true}
}

// PlanDelta is a partial update to a DesignPlan, typically recovered from a
// planner model response.
type PlanDelta struct {
	Intent           Opt[string]   `json:"intent"`
	Vibe             Opt[string]   `json:"vibe"`
	Palette          Opt[string]   `json:"palette"`
	TextOverlay      Opt[string]   `json:"text_overlay"`
	Elements         Opt[[]string] `json:"elements"`
	Avoid            Opt[[]string] `json:"avoid"`
	Orientation      Opt[string]   `json:"orientation"`
	TargetAspect     Opt[float64]  `json:"target_aspect"`
	ReferencesNeeded Opt[[]string] `json:"references_needed"`
	References       []Reference   `json:"references"`
	FinalizedPrompt  Opt[string]   `json:"finalized_prompt"`
	UserConfirmed    Opt[bool]     `json:"user_confirmed"`
}

// Empty reports whether the delta would change nothing.
func (d PlanDelta) Empty() bool {
	return !d.Intent.Set && !d.Vibe.Set && !d.Palette.Set && !d.TextOverlay.Set &&
		!d.Elements.Set && !d.Avoid.Set && !d.Orientation.Set && !d.TargetAspect.Set &&
		!d.ReferencesNeeded.Set && len(d.References) == 0 &&
		!d.FinalizedPrompt.Set && !d.UserConfirmed.Set
}

// DeltaSource tags how a delta was obtained from the model response, so the
// recovery path is an explicit branch instead of string matching buried in the
// caller.
type DeltaSource string

const (
	StructuredDelta DeltaSource = "structured"
	RecoveredDelta  DeltaSource = "recovered"
	NoDelta         DeltaSource = "none"
)

// plannerEnvelope is the shape the planner model is instructed to return.
type plannerEnvelope struct {
	Reply     string          `json:"reply"`
	PlanDelta json.RawMessage `json:"plan_delta"`
}

var fencedJSONRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractDelta pulls the assistant reply and a plan delta out of a raw model
// response. Order of attempts: full structured envelope, then a fenced JSON
// block inside prose, then nothing. Parse failures are never fatal; the reply
// is shown as-is and the delta is simply empty.
func ExtractDelta(raw string) (reply string, delta PlanDelta, source DeltaSource) {
	cleaned := strings.TrimSpace(stripFences(raw))

	var envelope plannerEnvelope
	if err := json.Unmarshal([]byte(cleaned), &envelope); err == nil && envelope.Reply != "" {
		reply = envelope.Reply
		if len(envelope.PlanDelta) > 0 && string(envelope.PlanDelta) != "null" {
			if err := json.Unmarshal(envelope.PlanDelta, &delta); err == nil {
				return reply, delta, StructuredDelta
			}
		}
		return reply, PlanDelta{}, NoDelta
	}

	if match := fencedJSONRegex.FindStringSubmatch(raw); match != nil {
		var recovered PlanDelta
		if err := json.Unmarshal([]byte(match[1]), &recovered); err == nil {
			reply = strings.TrimSpace(fencedJSONRegex.ReplaceAllString(raw, ""))
			if reply == "" {
				reply = "Noted, I have updated your design plan."
			}
			return reply, recovered, RecoveredDelta
		}
	}

	return strings.TrimSpace(raw), PlanDelta{}, NoDelta
}

// stripFences removes a single markdown code fence wrapping the whole payload,
// which the model loves to add around JSON.
func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return cleaned
}
