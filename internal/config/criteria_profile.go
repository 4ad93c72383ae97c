package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/llmjudge/evalengine/internal/domain"
)

var docValidator = validator.New()

// criterionDoc mirrors the JSON/YAML document shape from spec.md section 6:
// {name?, description?, criteria: [{name, description, weight?, scale_min?,
// scale_max?, evaluation_prompt?, examples?, ...}]}.
type criterionDoc struct {
	Name           string         `json:"name" yaml:"name"`
	Description    string         `json:"description" yaml:"description"`
	Weight         *float64       `json:"weight" yaml:"weight"`
	ScaleMin       *int           `json:"scale_min" yaml:"scale_min"`
	ScaleMax       *int           `json:"scale_max" yaml:"scale_max"`
	EvaluationHint string         `json:"evaluation_prompt" yaml:"evaluation_prompt"`
	Examples       map[int]string `json:"examples" yaml:"examples"`
}

type criteriaDoc struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Criteria    []criterionDoc `json:"criteria" yaml:"criteria"`
}

// ParseCriteriaDocument parses a caller-supplied criteria profile document as
// either JSON or YAML: a filename ending in .yaml or .yml is parsed as YAML,
// and any other name is tried as JSON first, then as YAML. Parsing errors are surfaced to the
// caller, not swallowed, per spec.md section 6.
func ParseCriteriaDocument(filename string, data []byte) (domain.EvaluationCriteria, error) {
	var doc criteriaDoc

	isYAML := strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml")
	if isYAML {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return domain.EvaluationCriteria{}, fmt.Errorf("parsing criteria YAML: %w", err)
		}
	} else if err := json.Unmarshal(data, &doc); err != nil {
		// fall back to YAML (a superset of JSON) before giving up.
		if yamlErr := yaml.Unmarshal(data, &doc); yamlErr != nil {
			return domain.EvaluationCriteria{}, fmt.Errorf("parsing criteria document: %w", err)
		}
	}

	if len(doc.Criteria) == 0 {
		return domain.EvaluationCriteria{}, fmt.Errorf("%w: criteria document has no criteria", domain.ErrInvalidArgument)
	}

	defs := make([]domain.CriterionDefinition, 0, len(doc.Criteria))
	for _, c := range doc.Criteria {
		weight := 1.0 / float64(len(doc.Criteria))
		if c.Weight != nil {
			weight = *c.Weight
		}
		def, err := domain.NewCriterionDefinition(c.Name, c.Description, weight)
		if err != nil {
			return domain.EvaluationCriteria{}, err
		}
		if c.ScaleMin != nil {
			def.ScaleMin = *c.ScaleMin
		}
		if c.ScaleMax != nil {
			def.ScaleMax = *c.ScaleMax
		}
		def.EvaluationPrompt = c.EvaluationHint
		def.Examples = c.Examples
		if err := docValidator.Struct(def); err != nil {
			return domain.EvaluationCriteria{}, fmt.Errorf("%w: criterion %q: %v", domain.ErrInvalidArgument, def.Name, err)
		}
		defs = append(defs, def)
	}

	return domain.NewEvaluationCriteria(doc.Name, doc.Description, defs, true)
}

// LoadCriteriaDocument reads and parses a criteria profile from disk.
func LoadCriteriaDocument(path string) (domain.EvaluationCriteria, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.EvaluationCriteria{}, fmt.Errorf("reading criteria document %s: %w", path, err)
	}
	return ParseCriteriaDocument(path, data)
}

// builtinCriterion constructs a CriterionDefinition, panicking only on a
// programmer error in the table below (never on caller input).
func builtinCriterion(name, description string, weight float64) domain.CriterionDefinition {
	def, err := domain.NewCriterionDefinition(name, description, weight)
	if err != nil {
		panic(fmt.Sprintf("evalengine: invalid builtin criterion %q: %v", name, err))
	}
	return def
}

// CriteriaProfile returns one of the built-in named bundles from spec.md
// section 6: {balanced, basic, technical, creative, default}. Ported from
// the Python original's domain/evaluation/criteria.py DefaultCriteria table
// (SPEC_FULL section 4.1 supplement).
func CriteriaProfile(name string) (domain.EvaluationCriteria, error) {
	switch strings.ToLower(name) {
	case "basic":
		return domain.NewEvaluationCriteria("basic", "A minimal three-criterion profile", []domain.CriterionDefinition{
			builtinCriterion("accuracy", "Factual correctness of the response", 1.0/3),
			builtinCriterion("clarity", "How clear and easy to follow the response is", 1.0/3),
			builtinCriterion("helpfulness", "How well the response addresses the prompt", 1.0/3),
		}, true)
	case "balanced", "default", "":
		return domain.NewEvaluationCriteria("balanced", "A balanced general-purpose profile", []domain.CriterionDefinition{
			builtinCriterion("accuracy", "Factual correctness of the response", 0.3),
			builtinCriterion("clarity", "How clear and easy to follow the response is", 0.2),
			builtinCriterion("completeness", "Whether the response fully addresses the prompt", 0.2),
			builtinCriterion("helpfulness", "Practical usefulness of the response", 0.2),
			builtinCriterion("relevance", "How on-topic the response stays", 0.1),
		}, true)
	case "technical":
		return domain.NewEvaluationCriteria("technical", "A profile for technical/code responses", []domain.CriterionDefinition{
			builtinCriterion("correctness", "Technical correctness of claims or code", 0.35),
			builtinCriterion("completeness", "Coverage of the technical question", 0.2),
			builtinCriterion("clarity", "Clarity of technical explanation", 0.15),
			builtinCriterion("best_practices", "Adherence to established conventions", 0.15),
			builtinCriterion("efficiency", "Appropriateness of the approach's complexity", 0.15),
		}, true)
	case "creative":
		return domain.NewEvaluationCriteria("creative", "A profile for creative writing responses", []domain.CriterionDefinition{
			builtinCriterion("originality", "Novelty and creativity of the response", 0.3),
			builtinCriterion("coherence", "Internal consistency and flow", 0.25),
			builtinCriterion("engagement", "How engaging the response is to read", 0.25),
			builtinCriterion("craft", "Quality of prose, structure, and style", 0.2),
		}, true)
	default:
		return domain.EvaluationCriteria{}, fmt.Errorf("%w: unknown criteria profile %q", domain.ErrInvalidArgument, name)
	}
}
