package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/llmjudge/evalengine/internal/config"
	"github.com/llmjudge/evalengine/internal/domain"
	"github.com/llmjudge/evalengine/internal/orchestrator"
	"github.com/llmjudge/evalengine/internal/resilience"
)

// Server holds the dependencies every handler needs. Grounded on teacher
// internal/adapter/httpserver.Server's role as a thin holder of the
// application's core ports, with handlers implemented as Server methods
// returning http.HandlerFunc closures.
type Server struct {
	orch *orchestrator.Orchestrator
	cfg  config.Config
}

// NewServer constructs a Server.
func NewServer(orch *orchestrator.Orchestrator, cfg config.Config) *Server {
	return &Server{orch: orch, cfg: cfg}
}

type evaluateRequest struct {
	Prompt          string `json:"prompt"`
	Response        string `json:"response"`
	CriteriaLabel   string `json:"criteria_label"`
	PreferredBackend string `json:"preferred_backend"`
}

type compareRequest struct {
	PromptA          string `json:"prompt_a"`
	PromptB          string `json:"prompt_b"`
	ResponseA        string `json:"response_a"`
	ResponseB        string `json:"response_b"`
	PreferredBackend string `json:"preferred_backend"`
}

type multiCriteriaRequest struct {
	Prompt           string `json:"prompt"`
	Response         string `json:"response"`
	CriteriaProfile  string `json:"criteria_profile"`
	PreferredBackend string `json:"preferred_backend"`
}

type evaluateResponseBody struct {
	Content      string                  `json:"content"`
	Mode         domain.ServiceMode      `json:"mode"`
	ProviderUsed domain.BackendName      `json:"provider_used"`
	IsCached     bool                    `json:"is_cached"`
	IsSimplified bool                    `json:"is_simplified"`
	Confidence   float64                 `json:"confidence"`
	Score        int                     `json:"score,omitempty"`
	Reasoning    string                  `json:"reasoning,omitempty"`
	Winner       domain.ComparisonWinner `json:"winner,omitempty"`
}

// EvaluateHandler scores a single response against one labeled criterion.
func (s *Server) EvaluateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req evaluateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmtInvalidJSON(err))
			return
		}
		if req.Prompt == "" || req.Response == "" || req.CriteriaLabel == "" {
			writeError(w, domain.ErrInvalidArgument)
			return
		}

		result, err := s.orch.EvaluateResponse(r.Context(), domain.EvaluationRequest{
			Prompt:           req.Prompt,
			Response:         req.Response,
			CriteriaLabel:    req.CriteriaLabel,
			Operation:        domain.OperationEvaluate,
			PreferredBackend: domain.BackendName(req.PreferredBackend),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponseBody(result))
	}
}

// CompareHandler judges two responses, each to its own prompt -- the
// Orchestrator rejects a mismatched pair before dispatching to any backend.
func (s *Server) CompareHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req compareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmtInvalidJSON(err))
			return
		}
		if req.PromptA == "" || req.ResponseA == "" || req.ResponseB == "" {
			writeError(w, domain.ErrInvalidArgument)
			return
		}

		result, err := s.orch.CompareResponses(r.Context(), domain.EvaluationRequest{
			Prompt:           req.PromptA,
			PromptB:          req.PromptB,
			Response:         req.ResponseA,
			ResponseB:        req.ResponseB,
			Operation:        domain.OperationCompare,
			PreferredBackend: domain.BackendName(req.PreferredBackend),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponseBody(result))
	}
}

type multiCriteriaResponseBody struct {
	evaluateResponseBody
	Aggregated       domain.AggregatedScore   `json:"aggregated"`
	Scores           []domain.CriterionScore  `json:"scores"`
	OverallReasoning string                   `json:"overall_reasoning"`
	Strengths        []string                 `json:"strengths"`
	Weaknesses       []string                 `json:"weaknesses"`
	Suggestions      []string                 `json:"suggestions"`
}

// MultiCriteriaHandler scores a response against a named criteria profile
// (spec.md section 6's profile names, resolved via config.CriteriaProfile).
func (s *Server) MultiCriteriaHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req multiCriteriaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmtInvalidJSON(err))
			return
		}
		if req.Prompt == "" || req.Response == "" {
			writeError(w, domain.ErrInvalidArgument)
			return
		}

		profileName := req.CriteriaProfile
		if profileName == "" {
			profileName = s.cfg.DefaultCriteriaProfile
		}
		criteriaSet, err := config.CriteriaProfile(profileName)
		if err != nil {
			writeError(w, err)
			return
		}

		parsed, result, err := s.orch.EvaluateMultiCriteria(r.Context(), domain.EvaluationRequest{
			Prompt:           req.Prompt,
			Response:         req.Response,
			Criteria:         &criteriaSet,
			PreferredBackend: domain.BackendName(req.PreferredBackend),
		})
		if err != nil {
			writeError(w, err)
			return
		}

		body := multiCriteriaResponseBody{
			evaluateResponseBody: toResponseBody(result),
			Aggregated:           parsed.Result.Aggregated,
			Scores:               parsed.Result.Scores,
			OverallReasoning:     parsed.Result.OverallReasoning,
			Strengths:            parsed.Result.Strengths,
			Weaknesses:           parsed.Result.Weaknesses,
			Suggestions:          parsed.Result.Suggestions,
		}
		writeJSON(w, http.StatusOK, body)
	}
}

type statusResponseBody struct {
	Mode      domain.ServiceMode                                  `json:"mode"`
	Providers map[domain.BackendName]domain.ProviderHealth        `json:"providers"`
	Breakers  map[domain.BackendName]domain.CircuitBreakerSnapshot `json:"breakers"`
	Timeouts  map[domain.BackendName]resilience.TimeoutStats       `json:"timeouts"`
	Cache     struct {
		Size    int `json:"size"`
		MaxSize int `json:"max_size"`
		Expired int `json:"expired"`
	} `json:"cache"`
}

// StatusHandler reports orchestrator-wide health/breaker/timeout/cache
// status.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := s.orch.GetSystemStatus()
		body := statusResponseBody{
			Mode:      status.Mode,
			Providers: status.Providers,
			Breakers:  status.Breakers,
			Timeouts:  status.Timeouts,
		}
		body.Cache.Size = status.Cache.Size
		body.Cache.MaxSize = status.Cache.MaxSize
		body.Cache.Expired = status.Cache.Expired
		writeJSON(w, http.StatusOK, body)
	}
}

type maintenanceRequest struct {
	Enabled bool   `json:"enabled"`
	Backend string `json:"backend"`
}

// MaintenanceHandler toggles maintenance mode for the whole orchestrator or
// a single backend.
func (s *Server) MaintenanceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req maintenanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmtInvalidJSON(err))
			return
		}
		s.orch.SetMaintenanceMode(req.Enabled, domain.BackendName(req.Backend))
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
	}
}

// HealthzHandler is a liveness probe independent of backend health.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func toResponseBody(r orchestrator.Result) evaluateResponseBody {
	return evaluateResponseBody{
		Content:      r.Content,
		Mode:         r.Mode,
		ProviderUsed: r.ProviderUsed,
		IsCached:     r.IsCached,
		IsSimplified: r.IsSimplified,
		Confidence:   r.Confidence,
		Score:        r.Score,
		Reasoning:    r.Reasoning,
		Winner:       r.Winner,
	}
}

func fmtInvalidJSON(err error) error {
	return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidArgument, err)
}
