package models

// LintIssue is one finding from the SQL validator.
type LintIssue struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Action   string `json:"action,omitempty"`
}

// LintResult is the validator's verdict on one candidate.
type LintResult struct {
	Valid            bool        `json:"valid"`
	ExecutableSafely bool        `json:"executable_safely"`
	AutoFixedSQL     string      `json:"auto_fixed_sql"`
	Issues           []LintIssue `json:"issues,omitempty"`
}

// ScoreBreakdown records the additive rerank bonuses applied to a candidate.
type ScoreBreakdown struct {
	SchemaAdherence   float64 `json:"schema_adherence"`
	JoinMatch         float64 `json:"join_match"`
	ResultShape       float64 `json:"result_shape"`
	ValueVerification float64 `json:"value_verification"`
	BonusTotal        float64 `json:"bonus_total"`
}

// SQLCandidate is one generated SQL alternative moving through validation
// and reranking.
type SQLCandidate struct {
	SQL             string         `json:"sql"`
	Index           int            `json:"index"`
	Score           float64        `json:"score"`
	ScoreBreakdown  ScoreBreakdown `json:"score_breakdown"`
	StructuralValid bool           `json:"structural_valid"`
	LintResult      *LintResult    `json:"lint_result,omitempty"`
	ExplainPassed   bool           `json:"explain_passed"`
	Rejected        bool           `json:"rejected"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
}

// RerankDetails carries per-signal diagnostics for the trace.
type RerankDetails struct {
	CandidatesScored  int  `json:"candidates_scored"`
	ValueChecksRun    int  `json:"value_checks_run"`
	PlanAvailable     bool `json:"plan_available"`
	BundleAvailable   bool `json:"bundle_available"`
	VerificationUsed  bool `json:"verification_used"`
}

// RerankResult is the reranker's output: the same candidates, reordered.
type RerankResult struct {
	Candidates []SQLCandidate `json:"candidates"`
	Details    RerankDetails  `json:"rerank_details"`
}
