package domain

// EvaluationVerdict is the validated shape of a single-criterion evaluation
// response (spec.md section 9's discriminated-variant design note).
type EvaluationVerdict struct {
	Score      int
	Reasoning  string
	Confidence float64
}

// ComparisonWinner enumerates the three possible outcomes of a pairwise
// comparison.
type ComparisonWinner string

const (
	WinnerA   ComparisonWinner = "A"
	WinnerB   ComparisonWinner = "B"
	WinnerTie ComparisonWinner = "tie"
)

// ComparisonVerdict is the validated shape of a pairwise comparison response.
type ComparisonVerdict struct {
	Winner     ComparisonWinner
	Reasoning  string
	Confidence float64
}

// BackendUsage reports token accounting for a single backend call.
type BackendUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// BackendResponse is the standardized envelope every Backend call returns,
// regardless of wire format (spec.md section 6, "Backend calls (out)").
type BackendResponse struct {
	Content    string
	Usage      BackendUsage
	Model      string
	StopReason string
}

//go:generate mockery --name=Backend --with-expecter --filename=backend_mock.go

// Backend is the uniform capability interface over a judge provider. The
// Orchestrator never branches on concrete backend type except to configure
// per-backend timeouts.
type Backend interface {
	// Name identifies the backend for health/breaker bookkeeping and logging.
	Name() BackendName
	// Evaluate scores a single response against one labeled criterion.
	Evaluate(ctx Context, prompt, response, criteriaLabel, model string) (BackendResponse, error)
	// Compare judges two responses to the same prompt.
	Compare(ctx Context, prompt, responseA, responseB, model string) (BackendResponse, error)
	// EvaluateMultiCriteria scores a response against a full criteria set.
	// The prompt passed in is already fully constructed by
	// internal/criteria; the backend only has to submit it and return raw
	// content for internal/criteria to parse.
	EvaluateMultiCriteria(ctx Context, fullPrompt string, model string) (BackendResponse, error)
}
