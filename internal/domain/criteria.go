package domain

import (
	"fmt"
	"math"
	"sort"
)

// CriterionDefinition is an immutable value object describing one dimension
// a response is scored along.
type CriterionDefinition struct {
	Name             string         `json:"name" validate:"required"`
	Description      string         `json:"description"`
	Weight           float64        `json:"weight" validate:"gt=0,lte=1"`
	ScaleMin         int            `json:"scale_min"`
	ScaleMax         int            `json:"scale_max"`
	Examples         map[int]string `json:"examples,omitempty"`
	EvaluationPrompt string         `json:"evaluation_prompt,omitempty"`
	DomainSpecific   bool           `json:"domain_specific,omitempty"`
	RequiresContext  bool           `json:"requires_context,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// NewCriterionDefinition applies the scale-min/max default and validates the
// weight invariant.
func NewCriterionDefinition(name, description string, weight float64) (CriterionDefinition, error) {
	if name == "" {
		return CriterionDefinition{}, fmt.Errorf("%w: criterion name required", ErrInvalidArgument)
	}
	if weight <= 0 || weight > 1 {
		return CriterionDefinition{}, fmt.Errorf("%w: criterion %q weight must be in (0,1], got %v", ErrInvalidArgument, name, weight)
	}
	return CriterionDefinition{
		Name:        name,
		Description: description,
		Weight:      weight,
		ScaleMin:    1,
		ScaleMax:    5,
	}, nil
}

// EvaluationCriteria is an ordered, named collection of CriterionDefinitions.
// Built once per request (or loaded from a profile) and treated as immutable
// thereafter.
type EvaluationCriteria struct {
	Name             string
	Description      string
	Criteria         []CriterionDefinition
	NormalizeWeights bool
}

// NewEvaluationCriteria constructs criteria, normalizing weights to sum to 1
// when NormalizeWeights is requested (the default).
func NewEvaluationCriteria(name, description string, criteria []CriterionDefinition, normalize bool) (EvaluationCriteria, error) {
	if len(criteria) == 0 {
		return EvaluationCriteria{}, fmt.Errorf("%w: at least one criterion is required", ErrInvalidArgument)
	}
	seen := make(map[string]struct{}, len(criteria))
	for _, c := range criteria {
		if _, dup := seen[c.Name]; dup {
			return EvaluationCriteria{}, fmt.Errorf("%w: duplicate criterion name %q", ErrInvalidArgument, c.Name)
		}
		seen[c.Name] = struct{}{}
	}

	out := make([]CriterionDefinition, len(criteria))
	copy(out, criteria)

	ec := EvaluationCriteria{Name: name, Description: description, Criteria: out, NormalizeWeights: normalize}
	if normalize {
		ec.renormalize()
	}
	return ec, nil
}

func (ec *EvaluationCriteria) renormalize() {
	var total float64
	for _, c := range ec.Criteria {
		total += c.Weight
	}
	if total <= 0 {
		n := float64(len(ec.Criteria))
		for i := range ec.Criteria {
			ec.Criteria[i].Weight = 1 / n
		}
		return
	}
	for i := range ec.Criteria {
		ec.Criteria[i].Weight = ec.Criteria[i].Weight / total
	}
}

// WithCriterion returns a copy of ec with c added (or replacing an existing
// criterion of the same name), weights renormalized if NormalizeWeights.
func (ec EvaluationCriteria) WithCriterion(c CriterionDefinition) EvaluationCriteria {
	next := make([]CriterionDefinition, 0, len(ec.Criteria)+1)
	replaced := false
	for _, existing := range ec.Criteria {
		if existing.Name == c.Name {
			next = append(next, c)
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append(next, c)
	}
	out := EvaluationCriteria{Name: ec.Name, Description: ec.Description, Criteria: next, NormalizeWeights: ec.NormalizeWeights}
	if out.NormalizeWeights {
		out.renormalize()
	}
	return out
}

// WithoutCriterion returns a copy of ec with the named criterion removed,
// weights renormalized if NormalizeWeights.
func (ec EvaluationCriteria) WithoutCriterion(name string) EvaluationCriteria {
	next := make([]CriterionDefinition, 0, len(ec.Criteria))
	for _, existing := range ec.Criteria {
		if existing.Name != name {
			next = append(next, existing)
		}
	}
	out := EvaluationCriteria{Name: ec.Name, Description: ec.Description, Criteria: next, NormalizeWeights: ec.NormalizeWeights}
	if out.NormalizeWeights && len(next) > 0 {
		out.renormalize()
	}
	return out
}

// Find returns the named criterion definition, if present.
func (ec EvaluationCriteria) Find(name string) (CriterionDefinition, bool) {
	for _, c := range ec.Criteria {
		if c.Name == name {
			return c, true
		}
	}
	return CriterionDefinition{}, false
}

// CriterionScore is a value object: one judged criterion, with the relevant
// numeric fields copied out of its CriterionDefinition at construction so no
// runtime link back to the EvaluationCriteria is needed.
type CriterionScore struct {
	CriterionName string
	Score         int
	Reasoning     string
	Confidence    float64
	Weight        float64
	MinScore      int
	MaxScore      int
}

// Normalized returns (score-min)/(max-min).
func (s CriterionScore) Normalized() float64 {
	if s.MaxScore == s.MinScore {
		return 0
	}
	return float64(s.Score-s.MinScore) / float64(s.MaxScore-s.MinScore)
}

// Weighted returns score*weight.
func (s CriterionScore) Weighted() float64 { return float64(s.Score) * s.Weight }

// Percentage returns Normalized()*100.
func (s CriterionScore) Percentage() float64 { return s.Normalized() * 100 }

// AggregatedScore summarizes a set of CriterionScores.
type AggregatedScore struct {
	OverallScore  float64
	WeightedScore float64
	Confidence    float64
	Mean          float64
	Median        float64
	Stdev         float64
	Min           int
	Max           int
	TotalWeight   float64
	CriteriaCount int
}

// Aggregate computes the AggregatedScore for a non-empty set of scores, per
// spec.md section 4.I:
//
//	weightedScore = Σ(score·weight) / Σweight, falling back to the arithmetic
//	mean when total weight is zero; mean/median/stdev/min/max are computed
//	over the raw integer scores; confidence is the weight-weighted mean of
//	per-criterion confidences.
func Aggregate(scores []CriterionScore) AggregatedScore {
	if len(scores) == 0 {
		return AggregatedScore{}
	}

	var totalWeight, weightedSum, confWeightedSum float64
	raw := make([]int, len(scores))
	for i, s := range scores {
		totalWeight += s.Weight
		weightedSum += s.Weighted()
		confWeightedSum += s.Confidence * s.Weight
		raw[i] = s.Score
	}

	var weightedScore, confidence float64
	if totalWeight > 0 {
		weightedScore = weightedSum / totalWeight
		confidence = confWeightedSum / totalWeight
	} else {
		var sum, confSum float64
		for _, s := range scores {
			sum += float64(s.Score)
			confSum += s.Confidence
		}
		weightedScore = sum / float64(len(scores))
		confidence = confSum / float64(len(scores))
	}

	sorted := append([]int(nil), raw...)
	sort.Ints(sorted)

	mean := 0.0
	for _, v := range raw {
		mean += float64(v)
	}
	mean /= float64(len(raw))

	median := medianOf(sorted)
	stdev := stdevOf(raw, mean)

	return AggregatedScore{
		OverallScore:  weightedScore,
		WeightedScore: weightedScore,
		Confidence:    confidence,
		Mean:          mean,
		Median:        median,
		Stdev:         stdev,
		Min:           sorted[0],
		Max:           sorted[len(sorted)-1],
		TotalWeight:   totalWeight,
		CriteriaCount: len(scores),
	}
}

func medianOf(sorted []int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	mid := n / 2
	if n%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

func stdevOf(values []int, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := float64(v) - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// MultiCriteriaResult is the entity holding the full outcome of a
// multi-criteria evaluation.
type MultiCriteriaResult struct {
	ID               string
	Scores           []CriterionScore
	Aggregated       AggregatedScore
	CriteriaUsed     EvaluationCriteria
	JudgeModel       string
	EvaluatedAt      int64 // unix nanos, set by the caller (no wall-clock reads inside domain)
	ProcessingTimeMS int64
	OverallReasoning string
	Strengths        []string
	Weaknesses       []string
	Suggestions      []string
	MissingCriteria  []string
	Metadata         map[string]any
}

// IsComplete reports whether every criterion in CriteriaUsed has a score.
func (r MultiCriteriaResult) IsComplete() bool {
	return len(r.MissingCriteria) == 0
}

// Recompute recalculates Aggregated and MissingCriteria from Scores and
// CriteriaUsed. Call whenever Scores changes.
func (r *MultiCriteriaResult) Recompute() {
	r.Aggregated = Aggregate(r.Scores)

	have := make(map[string]struct{}, len(r.Scores))
	for _, s := range r.Scores {
		have[s.CriterionName] = struct{}{}
	}
	var missing []string
	for _, c := range r.CriteriaUsed.Criteria {
		if _, ok := have[c.Name]; !ok {
			missing = append(missing, c.Name)
		}
	}
	r.MissingCriteria = missing
}

// EvaluationRequest is the caller-supplied transient request.
type EvaluationRequest struct {
	ID                string
	Prompt            string
	PromptB           string // set only for comparisons; must equal Prompt when both are given
	Response          string
	ResponseB         string // set only for comparisons
	Operation         OperationType
	Criteria          *EvaluationCriteria // nil for single-criterion / comparison requests
	CriteriaLabel     string              // single-criterion legacy mode
	PreferredBackend  BackendName
	SessionID         string
	BatchID           string
	Tags              []string
	Metadata          map[string]any
}
