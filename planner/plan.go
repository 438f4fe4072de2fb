package planner

import (
	"fmt"
	"strings"
)

const (
	OrientationHorizontal = "Horizontal"
	OrientationVertical   = "Vertical"
	OrientationSquare     = "Square"
)

// Reference is one uploaded reference image, unique by label within a plan.
type Reference struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Label string `json:"label"`
}

// DesignPlan is the negotiated creative brief for one design session. It is
// created empty and only ever mutated through Merge.
type DesignPlan struct {
	Intent           string      `json:"intent,omitempty"`
	Vibe             string      `json:"vibe,omitempty"`
	Palette          string      `json:"palette,omitempty"`
	TextOverlay      string      `json:"text_overlay,omitempty"`
	Elements         []string    `json:"elements,omitempty"`
	Avoid            []string    `json:"avoid,omitempty"`
	Orientation      string      `json:"orientation,omitempty"`
	TargetAspect     *float64    `json:"target_aspect,omitempty"`
	ReferencesNeeded []string    `json:"references_needed,omitempty"`
	References       []Reference `json:"references,omitempty"`
	FinalizedPrompt  string      `json:"finalized_prompt,omitempty"`
	UserConfirmed    bool        `json:"user_confirmed,omitempty"`
}

// AspectRatio returns the explicit target aspect, or one derived from the
// orientation when unset.
func (p DesignPlan) AspectRatio() float64 {
	if p.TargetAspect != nil && *p.TargetAspect > 0 {
		return *p.TargetAspect
	}
	switch p.Orientation {
	case OrientationHorizontal:
		return 1.4
	case OrientationVertical:
		return 0.7
	default:
		return 1.0
	}
}

// GenerationReady reports whether the plan can be submitted for generation:
// an orientation is picked and we either have a finalized prompt or enough
// material to synthesize a default one.
func GenerationReady(p DesignPlan) bool {
	if p.Orientation == "" {
		return false
	}
	return p.FinalizedPrompt != "" || SynthesizePrompt(p) != ""
}

// EffectivePrompt is the string actually sent to the image model.
func EffectivePrompt(p DesignPlan) string {
	if p.FinalizedPrompt != "" {
		return p.FinalizedPrompt
	}
	return SynthesizePrompt(p)
}

// SynthesizePrompt builds a default prompt from whatever the conversation has
// gathered so far. Returns "" when there is nothing to work with.
func SynthesizePrompt(p DesignPlan) string {
	if p.Intent == "" && p.Vibe == "" && len(p.Elements) == 0 {
		return ""
	}
	var b strings.Builder
	if p.Intent != "" {
		b.WriteString(p.Intent)
	} else {
		b.WriteString("A print-quality artwork")
	}
	if len(p.Elements) > 0 {
		fmt.Fprintf(&b, ", featuring %s", strings.Join(p.Elements, ", "))
	}
	if p.Vibe != "" {
		fmt.Fprintf(&b, ", in a %s style", p.Vibe)
	}
	if p.Palette != "" {
		fmt.Fprintf(&b, ", color palette: %s", p.Palette)
	}
	if p.TextOverlay != "" {
		fmt.Fprintf(&b, ", with the text %q rendered tastefully", p.TextOverlay)
	}
	if len(p.Avoid) > 0 {
		fmt.Fprintf(&b, ". Avoid: %s", strings.Join(p.Avoid, ", "))
	}
	return b.String()
}

// Merge applies a delta to a base plan and returns the merged plan. Pure
// function, no side effects; the rules here are load-bearing:
//   - scalar fields: present overwrites, explicit null clears, absent retains
//   - references: upsert by label, never a naive append and never duplicated
//   - references_needed: non-empty or explicit null replaces, absent retains;
//     an empty result collapses to unset
//   - a label is dropped from references_needed the moment a reference
//     carrying that label lands
func Merge(base DesignPlan, delta PlanDelta) DesignPlan {
	merged := base

	applyString(&merged.Intent, delta.Intent)
	applyString(&merged.Vibe, delta.Vibe)
	applyString(&merged.Palette, delta.Palette)
	applyString(&merged.TextOverlay, delta.TextOverlay)
	applyString(&merged.Orientation, delta.Orientation)
	applyString(&merged.FinalizedPrompt, delta.FinalizedPrompt)

	if delta.TargetAspect.Set {
		if delta.TargetAspect.Null {
			merged.TargetAspect = nil
		} else if delta.TargetAspect.Value > 0 {
			v := delta.TargetAspect.Value
			merged.TargetAspect = &v
		}
	}
	if delta.UserConfirmed.Set {
		if delta.UserConfirmed.Null {
			merged.UserConfirmed = false
		} else {
			merged.UserConfirmed = delta.UserConfirmed.Value
		}
	}

	merged.Elements = applyStringList(merged.Elements, delta.Elements)
	merged.Avoid = applyStringList(merged.Avoid, delta.Avoid)

	if delta.ReferencesNeeded.Set {
		if delta.ReferencesNeeded.Null || len(delta.ReferencesNeeded.Value) > 0 {
			merged.ReferencesNeeded = append([]string(nil), delta.ReferencesNeeded.Value...)
		}
	}

	if len(delta.References) > 0 {
		refs := append([]Reference(nil), merged.References...)
		for _, incoming := range delta.References {
			replaced := false
			for i := range refs {
				if refs[i].Label == incoming.Label {
					refs[i] = incoming
					replaced = true
					break
				}
			}
			if !replaced {
				refs = append(refs, incoming)
			}
			merged.ReferencesNeeded = removeLabel(merged.ReferencesNeeded, incoming.Label)
		}
		merged.References = refs
	}

	if len(merged.ReferencesNeeded) == 0 {
		merged.ReferencesNeeded = nil
	}
	return merged
}

func applyString(target *string, opt Opt[string]) {
	if !opt.Set {
		return
	}
	if opt.Null {
		*target = ""
		return
	}
	*target = opt.Value
}

func applyStringList(base []string, opt Opt[[]string]) []string {
	if !opt.Set {
		return base
	}
	if opt.Null || len(opt.Value) == 0 {
		return nil
	}
	return append([]string(nil), opt.Value...)
}

func removeLabel(labels []string, label string) []string {
	var out []string
	for _, l := range labels {
		if !strings.EqualFold(l, label) {
			out = append(out, l)
		}
	}
	return out
}
