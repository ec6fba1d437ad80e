// Package modes implements the bot's four operating modes, each
// deriving a different amount of detail, tactic-suggestion behavior,
// merge-blocking, check severity, and comment style from the same
// verification result.
package modes

// Mode selects how verification results are reported and acted on.
type Mode string

const (
	// Verifier reports pass/fail with minimal detail.
	Verifier Mode = "verifier"
	// Advisor adds tactic suggestions on proof failures.
	Advisor Mode = "advisor"
	// Consultant adds suggestions plus interactive Q&A about proof state.
	Consultant Mode = "consultant"
	// Regulator blocks PR merges on proof failures.
	Regulator Mode = "regulator"
)

// Default is the mode a repository uses when none is configured.
const Default = Verifier

// Valid reports whether m is one of the four known modes.
func (m Mode) Valid() bool {
	switch m {
	case Verifier, Advisor, Consultant, Regulator:
		return true
	}
	return false
}

// ShowDetailedFailures reports whether this mode includes prover output
// in its failure report.
func (m Mode) ShowDetailedFailures() bool {
	return m != Verifier
}

// SuggestsTactics reports whether this mode requests tactic suggestions
// from the verifier on failure.
func (m Mode) SuggestsTactics() bool {
	return m == Advisor || m == Consultant
}

// BlocksMerges reports whether this mode enforces a merge-blocking
// quality gate on proof failure.
func (m Mode) BlocksMerges() bool {
	return m == Regulator
}

// SupportsInteractive reports whether this mode answers follow-up
// questions about proof state via the control API.
func (m Mode) SupportsInteractive() bool {
	return m == Consultant
}

// CheckSeverity is the severity level reported on a check run.
type CheckSeverity string

const (
	SeverityNotice  CheckSeverity = "notice"
	SeverityWarning CheckSeverity = "warning"
	SeverityError   CheckSeverity = "error"
)

// CheckRunSeverity returns the severity level this mode assigns to its
// check runs.
func (m Mode) CheckRunSeverity() CheckSeverity {
	switch m {
	case Regulator:
		return SeverityError
	case Advisor, Consultant:
		return SeverityWarning
	default:
		return SeverityNotice
	}
}

// CommentStyle is the presentation style used when posting a PR/MR
// comment.
type CommentStyle string

const (
	StyleMinimal     CommentStyle = "minimal"
	StyleDetailed    CommentStyle = "detailed"
	StyleInteractive CommentStyle = "interactive"
	StyleEnforcement CommentStyle = "enforcement"
)

// CommentStyle returns the comment presentation style for this mode.
func (m Mode) CommentStyle() CommentStyle {
	switch m {
	case Advisor:
		return StyleDetailed
	case Consultant:
		return StyleInteractive
	case Regulator:
		return StyleEnforcement
	default:
		return StyleMinimal
	}
}

// CheckOutcome is the two-way status a formatted result carries,
// distinct from model.CheckConclusion: it describes this mode's framing
// of the result, not the platform-neutral check-run conclusion.
type CheckOutcome string

const (
	OutcomeSuccess CheckOutcome = "success"
	OutcomeFailure CheckOutcome = "failure"
)

// FormattedResult is a verification result rendered according to a
// specific mode's presentation rules.
type FormattedResult struct {
	Summary     string
	Details     string
	HasDetails  bool
	Suggestions []string
	ShouldBlock bool
	Outcome     CheckOutcome
}

// FormatResult renders a verification outcome according to m's style.
// suggestions is ignored unless m.SuggestsTactics().
func (m Mode) FormatResult(success bool, prover, output string, suggestions []string) FormattedResult {
	outcome := OutcomeFailure
	if success {
		outcome = OutcomeSuccess
	}

	result := FormattedResult{
		Summary:     m.summaryFor(success, prover),
		ShouldBlock: m.BlocksMerges() && !success,
		Outcome:     outcome,
	}

	if m.ShowDetailedFailures() && !success {
		result.Details = output
		result.HasDetails = true
	}

	if m.SuggestsTactics() {
		result.Suggestions = suggestions
	}

	return result
}

func (m Mode) summaryFor(success bool, prover string) string {
	switch m {
	case Advisor:
		if success {
			return "✅ Proof verified with " + prover
		}
		return "❌ Proof failed with " + prover + ": suggestions available"
	case Consultant:
		if success {
			return "✅ Verified: " + prover + " completed successfully"
		}
		return "❌ Failed: " + prover + ", ask me for details"
	case Regulator:
		if success {
			return "✅ PASSED: " + prover + " verification"
		}
		return "🚫 BLOCKED: " + prover + " verification failed, merge blocked"
	default:
		if success {
			return "✅ Proof verified (" + prover + ")"
		}
		return "❌ Proof failed (" + prover + ")"
	}
}
