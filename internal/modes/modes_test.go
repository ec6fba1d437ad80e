package modes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifierModeMinimal(t *testing.T) {
	m := Verifier
	assert.False(t, m.ShowDetailedFailures())
	assert.False(t, m.SuggestsTactics())
	assert.False(t, m.BlocksMerges())
	assert.Equal(t, StyleMinimal, m.CommentStyle())
}

func TestAdvisorModeSuggestions(t *testing.T) {
	m := Advisor
	assert.True(t, m.ShowDetailedFailures())
	assert.True(t, m.SuggestsTactics())
	assert.False(t, m.BlocksMerges())
	assert.Equal(t, StyleDetailed, m.CommentStyle())
}

func TestConsultantModeInteractive(t *testing.T) {
	m := Consultant
	assert.True(t, m.ShowDetailedFailures())
	assert.True(t, m.SuggestsTactics())
	assert.False(t, m.BlocksMerges())
	assert.True(t, m.SupportsInteractive())
	assert.Equal(t, StyleInteractive, m.CommentStyle())
}

func TestRegulatorModeBlocking(t *testing.T) {
	m := Regulator
	assert.True(t, m.ShowDetailedFailures())
	assert.False(t, m.SuggestsTactics())
	assert.True(t, m.BlocksMerges())
	assert.Equal(t, StyleEnforcement, m.CommentStyle())
	assert.Equal(t, SeverityError, m.CheckRunSeverity())
}

func TestFormatResultSuccess(t *testing.T) {
	result := Advisor.FormatResult(true, "Coq", "Proof complete", []string{"tactic1"})
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.False(t, result.ShouldBlock)
}

func TestFormatResultFailureWithSuggestions(t *testing.T) {
	suggestions := []string{"Try induction xs", "Consider rewrite app_assoc"}
	result := Advisor.FormatResult(false, "Coq", "Goal not discharged", suggestions)
	assert.Equal(t, OutcomeFailure, result.Outcome)
	assert.Equal(t, suggestions, result.Suggestions)
	assert.False(t, result.ShouldBlock)
}

func TestRegulatorBlocksOnFailure(t *testing.T) {
	result := Regulator.FormatResult(false, "Lean", "Proof failed", nil)
	assert.Equal(t, OutcomeFailure, result.Outcome)
	assert.True(t, result.ShouldBlock)
	assert.Contains(t, result.Summary, "BLOCKED")
}

func TestVerifierMinimalOutput(t *testing.T) {
	result := Verifier.FormatResult(false, "Agda", "Type error at line 42", nil)
	assert.Equal(t, OutcomeFailure, result.Outcome)
	assert.False(t, result.HasDetails)
	assert.Empty(t, result.Suggestions)
	assert.False(t, result.ShouldBlock)
}

func TestModeValid(t *testing.T) {
	assert.True(t, Verifier.Valid())
	assert.True(t, Mode("regulator").Valid())
	assert.False(t, Mode("bogus").Valid())
}
