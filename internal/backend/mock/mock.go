// Package mock implements domain.Backend deterministically, without any
// network calls, for local development and tests.
package mock

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/llmjudge/evalengine/internal/domain"
)

// Backend is a deterministic-by-hash domain.Backend implementation.
// Grounded on teacher internal/adapter/ai/mock.go's hashToFloat/embedDeterministic
// idiom, generalized from CV-scoring fields to judge verdicts, and on
// original_source/.../multi_criteria_client.py::MockMultiCriteriaClient's
// seeded-variation-around-a-base-value scoring shape.
type Backend struct {
	name  domain.BackendName
	model string
}

// New constructs a mock backend. name lets the orchestrator register
// several differently-named mocks (e.g. to simulate the full backend set in
// tests without real credentials).
func New(name domain.BackendName, model string) *Backend {
	if name == "" {
		name = domain.BackendMock
	}
	if model == "" {
		model = "mock-judge-v1"
	}
	return &Backend{name: name, model: model}
}

func (b *Backend) Name() domain.BackendName { return b.name }

// Evaluate deterministically scores response on a 1-5 scale derived from a
// hash of prompt+response+criteriaLabel.
func (b *Backend) Evaluate(ctx domain.Context, prompt, response, criteriaLabel, model string) (domain.BackendResponse, error) {
	score := 1 + int(hashToFloat(prompt+"|"+response+"|"+criteriaLabel)*4+0.5)
	reasoning := fmt.Sprintf("Mock evaluation of criterion %q: response addresses %s.", criteriaLabel, topWords(response, 4))
	payload := map[string]any{
		"score":      score,
		"reasoning":  reasoning,
		"confidence": 0.7 + hashToFloat(response)*0.25,
	}
	return b.respond(payload, model)
}

// Compare deterministically picks a winner by comparing two hash-derived
// scores for responseA/responseB.
func (b *Backend) Compare(ctx domain.Context, prompt, responseA, responseB, model string) (domain.BackendResponse, error) {
	scoreA := hashToFloat(prompt + "|A|" + responseA)
	scoreB := hashToFloat(prompt + "|B|" + responseB)

	winner := domain.WinnerTie
	switch {
	case scoreA > scoreB+0.03:
		winner = domain.WinnerA
	case scoreB > scoreA+0.03:
		winner = domain.WinnerB
	}

	payload := map[string]any{
		"winner":     winner,
		"reasoning":  fmt.Sprintf("Mock comparison: response A scored %.2f, response B scored %.2f.", scoreA, scoreB),
		"confidence": 0.6 + math.Abs(scoreA-scoreB)*0.3,
	}
	return b.respond(payload, model)
}

// EvaluateMultiCriteria returns a fully-formed multi-criteria JSON envelope.
// It does not know the criteria set -- internal/criteria.BuildPrompt already
// embedded the criteria names/weights/scales into fullPrompt -- so it
// extracts the "Required criteria to include:" line the same prompt template
// always emits and scores each named criterion around a hash-seeded base
// value, per the Python original's MockMultiCriteriaClient.
func (b *Backend) EvaluateMultiCriteria(ctx domain.Context, fullPrompt string, model string) (domain.BackendResponse, error) {
	names := extractRequiredCriteria(fullPrompt)
	if len(names) == 0 {
		names = []string{"overall_quality"}
	}

	scores := make([]map[string]any, 0, len(names))
	for _, name := range names {
		base := 3.5
		variation := hashToFloat(fullPrompt+"|"+name)*2.5 - 1.0 // roughly [-1, 1.5]
		score := clampFloat(base+variation, 1, 5)
		scores = append(scores, map[string]any{
			"criterion_name": name,
			"score":          math.Round(score),
			"reasoning":      fmt.Sprintf("Mock evaluation: this response demonstrates %s at a moderate level.", name),
			"confidence":     0.7 + hashToFloat(name+fullPrompt)*0.2,
		})
	}

	payload := map[string]any{
		"criterion_scores":  scores,
		"overall_reasoning": "Mock multi-criteria evaluation: response is adequate across the requested dimensions.",
		"strengths":         []string{"Addresses the prompt directly"},
		"weaknesses":        []string{"Mock backend cannot judge nuance"},
		"suggestions":       []string{"Re-run against a real backend for production use"},
	}
	return b.respond(payload, model)
}

func (b *Backend) respond(payload map[string]any, model string) (domain.BackendResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.BackendResponse{}, fmt.Errorf("mock backend: marshal response: %w", err)
	}
	if model == "" {
		model = b.model
	}
	content := string(body)
	return domain.BackendResponse{
		Content: content,
		Usage:   BackendUsageFor(content),
		Model:   model,
	}, nil
}

// BackendUsageFor fabricates a plausible token count from content length, so
// downstream usage accounting has something non-zero to report without a
// real tokenizer call.
func BackendUsageFor(content string) domain.BackendUsage {
	out := len(content) / 4
	return domain.BackendUsage{InputTokens: out / 2, OutputTokens: out, TotalTokens: out + out/2}
}

func hashToFloat(s string) float64 {
	h := sha1.Sum([]byte(s))
	u := binary.BigEndian.Uint32(h[:4])
	return float64(u%1000) / 1000.0
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func topWords(s string, n int) string {
	parts := strings.Fields(s)
	if len(parts) > n {
		parts = parts[:n]
	}
	return strings.Join(parts, " ")
}

// extractRequiredCriteria pulls the criteria names out of the
// "Required criteria to include: a, b, c" line internal/criteria.BuildPrompt
// always renders.
func extractRequiredCriteria(prompt string) []string {
	const marker = "Required criteria to include:"
	idx := strings.Index(prompt, marker)
	if idx == -1 {
		return nil
	}
	rest := prompt[idx+len(marker):]
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		rest = rest[:nl]
	}
	var names []string
	for _, part := range strings.Split(rest, ",") {
		name := strings.TrimSpace(part)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
