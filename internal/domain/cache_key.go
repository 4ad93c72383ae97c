package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// CacheKey is derived deterministically from the semantic inputs to an
// evaluation. Per spec.md section 4.F the digest is a hex SHA-256 of a
// normalized JSON document -- this supersedes the MD5 scheme used by the
// system this was distilled from.
type CacheKey struct {
	Fingerprint string
}

type cacheKeyPayload struct {
	NormalizedPrompt     string `json:"normalizedPrompt"`
	OperationType        string `json:"operationType"`
	CriteriaFingerprint  string `json:"criteriaFingerprint"`
	Response             string `json:"response,omitempty"`
	ResponseB            string `json:"responseB,omitempty"`
	JudgeModel           string `json:"judgeModel,omitempty"`
}

// NormalizePrompt trims surrounding whitespace and lowercases, per spec.md's
// stated normalization rule.
func NormalizePrompt(prompt string) string {
	return strings.ToLower(strings.TrimSpace(prompt))
}

// CriteriaFingerprint derives a stable digest of an EvaluationCriteria (or,
// for single-criterion/comparison requests, the bare label) so that two
// requests with the same criteria definitions produce the same CacheKey.
func CriteriaFingerprint(label string, criteria *EvaluationCriteria) string {
	if criteria == nil {
		return label
	}
	type cf struct {
		Name   string  `json:"name"`
		Weight float64 `json:"weight"`
		Min    int     `json:"min"`
		Max    int     `json:"max"`
	}
	items := make([]cf, len(criteria.Criteria))
	for i, c := range criteria.Criteria {
		items[i] = cf{Name: c.Name, Weight: c.Weight, Min: c.ScaleMin, Max: c.ScaleMax}
	}
	b, _ := json.Marshal(items)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// NewCacheKey builds the CacheKey for an EvaluationRequest.
func NewCacheKey(req EvaluationRequest) CacheKey {
	payload := cacheKeyPayload{
		NormalizedPrompt:    NormalizePrompt(req.Prompt),
		OperationType:       string(req.Operation),
		CriteriaFingerprint: CriteriaFingerprint(req.CriteriaLabel, req.Criteria),
		Response:            NormalizePrompt(req.Response),
		ResponseB:           NormalizePrompt(req.ResponseB),
	}
	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return CacheKey{Fingerprint: hex.EncodeToString(sum[:])}
}

func (k CacheKey) String() string { return k.Fingerprint }
