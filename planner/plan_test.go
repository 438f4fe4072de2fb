package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeScalarOverwriteAndRetain(t *testing.T) {
	base := DesignPlan{Intent: "a birthday poster", Vibe: "retro"}

	merged := Merge(base, PlanDelta{Intent: Some("an anniversary poster")})

	assert.Equal(t, "an anniversary poster", merged.Intent)
	// absent field retains base value
	assert.Equal(t, "retro", merged.Vibe)
}

func TestMergeExplicitNullClears(t *testing.T) {
	base := DesignPlan{Palette: "teal and gold", FinalizedPrompt: "a teal fox"}

	merged := Merge(base, PlanDelta{Palette: Null[string](), FinalizedPrompt: Null[string]()})

	assert.Empty(t, merged.Palette)
	assert.Empty(t, merged.FinalizedPrompt)
}

func TestMergeReferenceUpsertByLabel(t *testing.T) {
	base := DesignPlan{
		References: []Reference{{ID: "a", URL: "u1", Label: "mum"}},
	}
	delta := PlanDelta{
		Orientation: Some(OrientationSquare),
		References:  []Reference{{ID: "b", URL: "u2", Label: "mum"}},
	}

	merged := Merge(base, delta)

	assert.Equal(t, OrientationSquare, merged.Orientation)
	require.Len(t, merged.References, 1)
	assert.Equal(t, "b", merged.References[0].ID)
	assert.Equal(t, "u2", merged.References[0].URL)
}

func TestMergeIdempotence(t *testing.T) {
	base := DesignPlan{Intent: "pet portrait"}
	delta := PlanDelta{
		Vibe:       Some("oil painting"),
		References: []Reference{{ID: "r1", URL: "u1", Label: "dog"}},
	}

	once := Merge(base, delta)
	twice := Merge(once, delta)

	assert.Equal(t, once, twice)
	// label-based replacement keeps the array length constant on repeats
	assert.Len(t, twice.References, 1)
}

func TestMergeReferenceClearsNeededLabel(t *testing.T) {
	base := DesignPlan{
		ReferencesNeeded: []string{"mum", "the family dog"},
	}
	delta := PlanDelta{
		References: []Reference{{ID: "x", URL: "u", Label: "mum"}},
	}

	merged := Merge(base, delta)

	assert.Equal(t, []string{"the family dog"}, merged.ReferencesNeeded)
	for _, needed := range merged.ReferencesNeeded {
		for _, ref := range merged.References {
			assert.NotEqual(t, ref.Label, needed)
		}
	}
}

func TestMergeReferencesNeededReplaceAndCollapse(t *testing.T) {
	base := DesignPlan{ReferencesNeeded: []string{"mum"}}

	replaced := Merge(base, PlanDelta{ReferencesNeeded: Some([]string{"dad", "grandma"})})
	assert.Equal(t, []string{"dad", "grandma"}, replaced.ReferencesNeeded)

	cleared := Merge(base, PlanDelta{ReferencesNeeded: Null[[]string]()})
	assert.Nil(t, cleared.ReferencesNeeded)

	// empty array provided without null keeps the base untouched
	retained := Merge(base, PlanDelta{ReferencesNeeded: Some([]string{})})
	assert.Equal(t, []string{"mum"}, retained.ReferencesNeeded)
}

func TestReadinessMonotonicity(t *testing.T) {
	plan := Merge(DesignPlan{}, PlanDelta{
		Orientation:     Some(OrientationVertical),
		FinalizedPrompt: Some("a calm mountain lake at dawn"),
	})
	require.True(t, GenerationReady(plan))

	// any merge not clearing orientation/prompt keeps the plan ready
	plan = Merge(plan, PlanDelta{Vibe: Some("watercolor"), Palette: Some("pastel")})
	assert.True(t, GenerationReady(plan))

	plan = Merge(plan, PlanDelta{References: []Reference{{ID: "p", URL: "u", Label: "lake photo"}}})
	assert.True(t, GenerationReady(plan))

	unready := Merge(plan, PlanDelta{Orientation: Null[string]()})
	assert.False(t, GenerationReady(unready))
}

func TestGenerationReadyNeedsOrientation(t *testing.T) {
	plan := DesignPlan{FinalizedPrompt: "something"}
	assert.False(t, GenerationReady(plan))
}

func TestGenerationReadySynthesizedPrompt(t *testing.T) {
	plan := DesignPlan{Orientation: OrientationSquare, Intent: "a mug for my sister"}
	assert.True(t, GenerationReady(plan))
	assert.NotEmpty(t, EffectivePrompt(plan))

	empty := DesignPlan{Orientation: OrientationSquare}
	assert.False(t, GenerationReady(empty))
}

func TestAspectRatioDerivation(t *testing.T) {
	assert.InDelta(t, 1.4, DesignPlan{Orientation: OrientationHorizontal}.AspectRatio(), 0.001)
	assert.InDelta(t, 0.7, DesignPlan{Orientation: OrientationVertical}.AspectRatio(), 0.001)
	assert.InDelta(t, 1.0, DesignPlan{Orientation: OrientationSquare}.AspectRatio(), 0.001)

	explicit := 1.25
	plan := DesignPlan{Orientation: OrientationHorizontal, TargetAspect: &explicit}
	assert.InDelta(t, 1.25, plan.AspectRatio(), 0.001)
}

func TestSynthesizePromptIncludesAvoidList(t *testing.T) {
	plan := DesignPlan{
		Intent:   "a jungle scene",
		Elements: []string{"toucan", "ferns"},
		Avoid:    []string{"snakes"},
	}
	prompt := SynthesizePrompt(plan)
	assert.Contains(t, prompt, "toucan")
	assert.Contains(t, prompt, "Avoid: snakes")
}
