package model

// CheckConclusion is the terminal outcome of a completed check run.
type CheckConclusion string

const (
	ConclusionSuccess        CheckConclusion = "success"
	ConclusionFailure        CheckConclusion = "failure"
	ConclusionNeutral        CheckConclusion = "neutral"
	ConclusionCancelled      CheckConclusion = "cancelled"
	ConclusionSkipped        CheckConclusion = "skipped"
	ConclusionTimedOut       CheckConclusion = "timed_out"
	ConclusionActionRequired CheckConclusion = "action_required"
)

// Collapsed returns the representative of this conclusion's equivalence
// class under the platform-neutral <-> platform round trip:
// Neutral/Skipped collapse to Success, TimedOut/ActionRequired collapse
// to Failure, everything else maps to itself.
func (c CheckConclusion) Collapsed() CheckConclusion {
	switch c {
	case ConclusionNeutral, ConclusionSkipped:
		return ConclusionSuccess
	case ConclusionTimedOut, ConclusionActionRequired:
		return ConclusionFailure
	default:
		return c
	}
}

// CheckStatusKind distinguishes the three states a CheckStatus can be in.
type CheckStatusKind string

const (
	CheckQueued     CheckStatusKind = "queued"
	CheckInProgress CheckStatusKind = "in_progress"
	CheckCompleted  CheckStatusKind = "completed"
)

// CheckStatus is the platform-neutral status sum type. Only Completed
// carries a conclusion and summary.
type CheckStatus struct {
	Kind       CheckStatusKind
	Conclusion CheckConclusion
	Summary    string
}

// CheckRun is the adapter-level report object every PlatformAdapter
// implementation maps onto its native check/status primitive.
type CheckRun struct {
	Name       string
	HeadSHA    string
	DetailsURL string
	Status     CheckStatus
}

// CheckRunId is an opaque, platform-specific identifier for a created
// check run or commit status.
type CheckRunId string

// CommentId and IssueId are likewise opaque platform-specific ids.
type CommentId string
type IssueId string

// PrId identifies a pull/merge request within a repository.
type PrId int64

// NewIssue is the input to PlatformAdapter.CreateIssue.
type NewIssue struct {
	Title string
	Body  string
	Labels []string
}
