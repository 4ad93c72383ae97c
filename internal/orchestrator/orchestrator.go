// Package orchestrator composes the resilience primitives (classifier,
// timeout manager, retry engine, circuit breaker, health monitor, response
// cache) into the Fallback Orchestrator: the single entry point a caller
// uses to run an evaluation or comparison across every configured backend.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/llmjudge/evalengine/internal/criteria"
	"github.com/llmjudge/evalengine/internal/domain"
	"github.com/llmjudge/evalengine/internal/observability"
	"github.com/llmjudge/evalengine/internal/resilience"
)

// perBackend bundles the resilience state owned for one backend: its
// circuit breaker, timeout manager, and the domain.Backend implementation
// itself.
type perBackend struct {
	backend domain.Backend
	breaker *resilience.CircuitBreaker
	timeout *resilience.TimeoutManager
}

// Config is everything Orchestrator needs to construct its owned
// resilience components. Grounded on
// original_source/.../fallback_manager.py::FallbackManager.__init__, with
// every field the Python version pulled off a config object made explicit
// here instead.
type Config struct {
	Backends         []domain.Backend
	ProviderPriority []domain.BackendName

	RequestTimeoutFor       func(backend string) (request, connect time.Duration)
	CancellationGracePeriod time.Duration

	RetryBaseAttempts int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	RetryMultiplier   float64
	RetryJitter       bool

	BreakerFailureThreshold int
	BreakerRecoveryTimeout  time.Duration
	BreakerSuccessThreshold int

	HealthIdleTimeout time.Duration

	CacheEnabled bool
	CacheTTL     time.Duration
	CacheMaxSize int

	SimplifiedResponses bool
	PromptTokenBudget   int

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Orchestrator is the Fallback Orchestrator (spec.md section 4.G). It owns
// exactly one CircuitBreaker and TimeoutManager per backend, and one shared
// Classifier/RetryEngine/HealthMonitor/ResponseCache -- constructed once by
// the caller (cmd/evaluator), never a package-level singleton, per spec.md
// section 9's "no hidden globals" design note and in contrast to the
// Python original's get_fallback_manager() module-level instance.
type Orchestrator struct {
	logger  *slog.Logger
	metrics *observability.Metrics

	classifier *resilience.Classifier
	retry      *resilience.RetryEngine
	health     *resilience.HealthMonitor
	cache      *resilience.ResponseCache

	cacheEnabled        bool
	simplifiedResponses bool
	tokenBudget         int
	providerPriority    []domain.BackendName

	gracePeriod       time.Duration
	requestTimeoutFor func(backend string) (request, connect time.Duration)

	mu        sync.RWMutex
	backends  map[domain.BackendName]*perBackend
	order     []domain.BackendName
	mode      domain.ServiceMode
	maintMode bool
}

// New constructs an Orchestrator, building one CircuitBreaker and
// TimeoutManager per configured backend up front.
func New(cfg Config) (*Orchestrator, error) {
	if len(cfg.Backends) == 0 {
		return nil, fmt.Errorf("%w: orchestrator requires at least one backend", domain.ErrInvalidArgument)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeoutFor := cfg.RequestTimeoutFor
	if timeoutFor == nil {
		timeoutFor = func(string) (time.Duration, time.Duration) { return 30 * time.Second, 10 * time.Second }
	}

	o := &Orchestrator{
		logger:              logger,
		metrics:             cfg.Metrics,
		classifier:          resilience.NewClassifier(),
		cacheEnabled:        cfg.CacheEnabled,
		simplifiedResponses: cfg.SimplifiedResponses,
		tokenBudget:         cfg.PromptTokenBudget,
		backends:            make(map[domain.BackendName]*perBackend, len(cfg.Backends)),
		mode:                domain.ServiceModeFull,
	}

	o.retry = resilience.NewRetryEngine(cfg.RetryBaseAttempts, cfg.RetryBaseDelay, cfg.RetryMaxDelay, cfg.RetryMultiplier, cfg.RetryJitter, logger, cfg.Metrics)

	if cfg.CacheEnabled {
		o.cache = resilience.NewResponseCache(cfg.CacheTTL, cfg.CacheMaxSize, cfg.Metrics)
	}

	names := make([]domain.BackendName, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		name := b.Name()
		names = append(names, name)
		o.backends[name] = &perBackend{
			backend: b,
			breaker: resilience.NewCircuitBreaker(name, cfg.BreakerFailureThreshold, cfg.BreakerRecoveryTimeout, cfg.BreakerSuccessThreshold, logger, cfg.Metrics),
			timeout: resilience.NewTimeoutManager(string(name), logger),
		}
	}
	o.health = resilience.NewHealthMonitor(names, cfg.HealthIdleTimeout, logger, cfg.Metrics)

	o.providerPriority = cfg.ProviderPriority
	if len(o.providerPriority) == 0 {
		o.providerPriority = names
	}
	o.order = o.providerPriority

	o.gracePeriod = cfg.CancellationGracePeriod
	o.requestTimeoutFor = timeoutFor

	return o, nil
}

// Result is the caller-facing outcome of EvaluateResponse/CompareResponses,
// wrapping a domain.BackendResponse (or, in degraded modes, a synthesized
// stand-in) with the provenance metadata spec.md section 4.G requires. Score
// and Reasoning are populated by EvaluateResponse; Winner and Reasoning by
// CompareResponses -- both parsed from Content at the engine boundary per
// spec.md section 9.
type Result struct {
	Content         string
	Mode            domain.ServiceMode
	ProviderUsed    domain.BackendName
	IsCached        bool
	IsSimplified    bool
	Confidence      float64
	AttemptsInOrder int

	Score     int
	Reasoning string
	Winner    domain.ComparisonWinner
}

// EvaluateResponse runs a single-criterion evaluation across the configured
// backend priority order, with cache and simplified-response fallback, then
// parses the winning content into a domain.EvaluationVerdict at the engine
// boundary (spec.md section 9) and surfaces its declared score/reasoning/
// confidence on Result. Grounded on
// original_source/.../fallback_manager.py::FallbackManager.execute_with_fallback.
func (o *Orchestrator) EvaluateResponse(ctx context.Context, req domain.EvaluationRequest) (Result, error) {
	key := domain.NewCacheKey(req)
	op := func(ctx context.Context, pb *perBackend, model string) (any, error) {
		return pb.backend.Evaluate(ctx, req.Prompt, req.Response, req.CriteriaLabel, model)
	}
	result, err := o.executeWithFallback(ctx, key, req.PreferredBackend, domain.OperationEvaluate, op)
	if err != nil {
		return Result{}, err
	}
	if !result.IsCached && !result.IsSimplified {
		verdict := criteria.ParseEvaluationVerdict(result.Content)
		result.Score = verdict.Score
		result.Reasoning = verdict.Reasoning
		result.Confidence = verdict.Confidence
	}
	return result, nil
}

// CompareResponses runs a pairwise comparison across the configured backend
// priority order, with the same cache/simplified fallback discipline as
// EvaluateResponse, then parses the winning content into a
// domain.ComparisonVerdict at the engine boundary. Comparing responses
// scored against different prompts is rejected before any backend is
// dispatched, per spec.md section 4.H / 6 -- no retries, no health or breaker
// mutation.
func (o *Orchestrator) CompareResponses(ctx context.Context, req domain.EvaluationRequest) (Result, error) {
	if req.PromptB != "" && req.PromptB != req.Prompt {
		return Result{}, fmt.Errorf("%w: cannot compare responses to different prompts", domain.ErrInvalidArgument)
	}

	key := domain.NewCacheKey(req)
	op := func(ctx context.Context, pb *perBackend, model string) (any, error) {
		return pb.backend.Compare(ctx, req.Prompt, req.Response, req.ResponseB, model)
	}
	result, err := o.executeWithFallback(ctx, key, req.PreferredBackend, domain.OperationCompare, op)
	if err != nil {
		return Result{}, err
	}
	if !result.IsCached && !result.IsSimplified {
		verdict := criteria.ParseComparisonVerdict(result.Content)
		result.Winner = verdict.Winner
		result.Reasoning = verdict.Reasoning
		result.Confidence = verdict.Confidence
	}
	return result, nil
}

// EvaluateMultiCriteria runs a multi-criteria evaluation: builds the prompt
// via internal/criteria.BuildPrompt, dispatches it through the same
// fallback/cache/retry machinery as the single-criterion path, then parses
// the winning backend's raw content into a domain.MultiCriteriaResult.
func (o *Orchestrator) EvaluateMultiCriteria(ctx context.Context, req domain.EvaluationRequest) (criteria.ParsedResult, Result, error) {
	if req.Criteria == nil {
		return criteria.ParsedResult{}, Result{}, fmt.Errorf("%w: multi-criteria evaluation requires req.Criteria", domain.ErrInvalidArgument)
	}
	fullPrompt := criteria.BuildPrompt(req.Prompt, req.Response, *req.Criteria, o.tokenBudget)

	req.Operation = domain.OperationMultiCriteria
	key := domain.NewCacheKey(req)
	op := func(ctx context.Context, pb *perBackend, model string) (any, error) {
		return pb.backend.EvaluateMultiCriteria(ctx, fullPrompt, model)
	}

	result, err := o.executeWithFallback(ctx, key, req.PreferredBackend, domain.OperationMultiCriteria, op)
	if err != nil {
		return criteria.ParsedResult{}, Result{}, err
	}

	parsed := criteria.ParseJudgeResponse(result.Content, *req.Criteria, string(result.ProviderUsed))
	return parsed, result, nil
}

// backendOp is the shape every orchestrated call normalizes to: given a
// context and a resolved model string, call the backend and return its raw
// domain.BackendResponse as an `any` (to satisfy RetryEngine.Execute's
// generic signature).
type backendOp func(ctx context.Context, pb *perBackend, model string) (any, error)

// executeWithFallback is the core of the Fallback Orchestrator: try each
// available backend in priority order under full retry/breaker/timeout
// discipline, then fall back to a cached response, then a simplified
// response, then an error -- in that order, per spec.md section 4.G.
func (o *Orchestrator) executeWithFallback(ctx context.Context, key domain.CacheKey, preferred domain.BackendName, operation domain.OperationType, op backendOp) (Result, error) {
	if o.inMaintenance() {
		return Result{}, fmt.Errorf("%w", domain.ErrMaintenanceMode)
	}

	order := o.providerOrder(preferred)
	start := time.Now()

	for attempt, name := range order {
		pb := o.backendFor(name)
		if pb == nil {
			continue
		}

		request, connect := o.requestTimeoutForBackend(name)
		timeoutCfg := resilience.TimeoutConfig{
			RequestTimeout:          request,
			ConnectTimeout:          connect,
			CancellationGracePeriod: o.gracePeriodFor(),
		}

		value, err := o.retry.Execute(ctx, name, pb.breaker, o.classifier.Classify, func(ctx context.Context) (any, error) {
			timeoutResult := pb.timeout.ExecuteWithTimeout(ctx, func(ctx context.Context) (any, error) {
				return op(ctx, pb, "")
			}, timeoutCfg, string(operation))
			if !timeoutResult.Success {
				if timeoutResult.Err != nil {
					return timeoutResult.Value, timeoutResult.Err
				}
				return nil, fmt.Errorf("%w: %s", domain.ErrTimeout, name)
			}
			return timeoutResult.Value, nil
		})

		latency := time.Since(start)
		if err != nil {
			o.health.RecordFailure(name)
			o.recordBackendCall(name, operation, "failure")
			o.logger.Warn("backend failed", slog.String("backend", string(name)), slog.String("error", err.Error()))
			continue
		}

		o.health.RecordSuccess(name, latency)
		o.recordBackendCall(name, operation, "success")

		resp, ok := value.(domain.BackendResponse)
		if !ok {
			continue
		}

		o.refreshMode()
		if o.cacheEnabled && o.cache != nil {
			o.cache.Put(key, resp)
		}

		return Result{
			Content:         resp.Content,
			Mode:            o.currentMode(),
			ProviderUsed:    name,
			Confidence:      1.0,
			AttemptsInOrder: attempt + 1,
		}, nil
	}

	return o.fallback(key, operation)
}

// fallback implements the cached -> simplified -> error cascade from
// original_source/.../fallback_manager.py::execute_with_fallback's
// post-loop branch, once every backend in priority order has failed.
func (o *Orchestrator) fallback(key domain.CacheKey, operation domain.OperationType) (Result, error) {
	o.setMode(domain.ServiceModeFallback)

	if o.cacheEnabled && o.cache != nil {
		if cached, ok := o.cache.Get(key); ok {
			if resp, ok := cached.(domain.BackendResponse); ok {
				o.logger.Info("using cached response as fallback")
				return Result{
					Content:      resp.Content,
					Mode:         domain.ServiceModeFallback,
					IsCached:     true,
					Confidence:   0.7,
					ProviderUsed: domain.BackendMock,
				}, nil
			}
		}
	}

	if o.simplifiedResponses {
		if simplified, confidence, ok := simplifiedResponseFor(operation); ok {
			o.logger.Info("using simplified response as fallback")
			return Result{
				Content:      simplified,
				Mode:         domain.ServiceModeFallback,
				IsSimplified: true,
				Confidence:   confidence,
				ProviderUsed: domain.BackendMock,
			}, nil
		}
	}

	o.setMode(domain.ServiceModeMaintenance)
	return Result{}, fmt.Errorf("%w", domain.ErrAllBackendsDown)
}

// simplifiedResponseFor mirrors
// original_source/.../fallback_manager.py::_generate_simplified_response's
// per-operation-type canned JSON and its declared confidence (spec.md
// section 4.G step 4: 0.5 for evaluation, 0.3 for comparison).
func simplifiedResponseFor(operation domain.OperationType) (content string, confidence float64, ok bool) {
	switch operation {
	case domain.OperationEvaluate, domain.OperationMultiCriteria:
		return `{"score": 3, "reasoning": "Service temporarily unavailable. Using simplified scoring based on basic heuristics.", "confidence": 0.5}`, 0.5, true
	case domain.OperationCompare:
		return `{"winner": "tie", "reasoning": "Service temporarily unavailable. Cannot perform detailed comparison at this time.", "confidence": 0.3}`, 0.3, true
	default:
		return "", 0, false
	}
}

// providerOrder resolves the priority order for one call: preferred first
// (if it is currently available), then the rest of the configured priority
// order restricted to available backends, per spec.md section 4.G
// "_get_provider_order". If none are marked available, every configured
// backend is tried anyway -- matching the Python original's behavior of
// falling back to the full configured set rather than failing outright.
func (o *Orchestrator) providerOrder(preferred domain.BackendName) []domain.BackendName {
	o.mu.RLock()
	all := append([]domain.BackendName(nil), o.order...)
	o.mu.RUnlock()

	available := o.health.GetAvailable(all)
	if len(available) == 0 {
		available = all
	}

	availableSet := make(map[domain.BackendName]struct{}, len(available))
	for _, b := range available {
		availableSet[b] = struct{}{}
	}

	var ordered []domain.BackendName
	if preferred != "" {
		if _, ok := availableSet[preferred]; ok {
			ordered = append(ordered, preferred)
		}
	}
	for _, b := range available {
		if b == preferred {
			continue
		}
		ordered = append(ordered, b)
	}
	return ordered
}

func (o *Orchestrator) backendFor(name domain.BackendName) *perBackend {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.backends[name]
}

func (o *Orchestrator) requestTimeoutForBackend(name domain.BackendName) (time.Duration, time.Duration) {
	if o.requestTimeoutFor == nil {
		return 30 * time.Second, 10 * time.Second
	}
	return o.requestTimeoutFor(string(name))
}

func (o *Orchestrator) gracePeriodFor() time.Duration {
	if o.gracePeriod > 0 {
		return o.gracePeriod
	}
	return 2 * time.Second
}

func (o *Orchestrator) recordBackendCall(name domain.BackendName, operation domain.OperationType, outcome string) {
	if o.metrics == nil {
		return
	}
	o.metrics.BackendCalls.WithLabelValues(string(name), string(operation), outcome).Inc()
}

// refreshMode recomputes the current ServiceMode from live health records,
// per spec.md section 4.G's "_determine_service_mode": full when every
// configured backend is healthy, degraded when not all are healthy but at
// least one is available (healthy or degraded), fallback when none are.
func (o *Orchestrator) refreshMode() {
	o.mu.RLock()
	all := append([]domain.BackendName(nil), o.order...)
	o.mu.RUnlock()

	healthy := o.health.GetHealthy(all)
	available := o.health.GetAvailable(all)

	var mode domain.ServiceMode
	switch {
	case len(healthy) == len(all):
		mode = domain.ServiceModeFull
	case len(available) > 0:
		mode = domain.ServiceModeDegraded
	default:
		mode = domain.ServiceModeFallback
	}
	o.setMode(mode)
}

func (o *Orchestrator) setMode(mode domain.ServiceMode) {
	o.mu.Lock()
	if !o.maintMode {
		o.mode = mode
	}
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.FallbackMode.WithLabelValues().Set(serviceModeValue(mode))
	}
}

func (o *Orchestrator) currentMode() domain.ServiceMode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.mode
}

func (o *Orchestrator) inMaintenance() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.maintMode
}

func serviceModeValue(m domain.ServiceMode) float64 {
	switch m {
	case domain.ServiceModeDegraded:
		return 1
	case domain.ServiceModeFallback:
		return 2
	case domain.ServiceModeMaintenance:
		return 3
	default:
		return 0
	}
}

// SystemStatus is the caller-facing snapshot GetSystemStatus returns,
// mirroring original_source/.../fallback_manager.py::get_system_status.
type SystemStatus struct {
	Mode             domain.ServiceMode
	Providers        map[domain.BackendName]domain.ProviderHealth
	Breakers         map[domain.BackendName]domain.CircuitBreakerSnapshot
	Timeouts         map[domain.BackendName]resilience.TimeoutStats
	Cache            resilience.CacheStats
	ProviderPriority []domain.BackendName
}

// GetSystemStatus reports current mode, per-backend health, breaker, and
// timeout-manager state, and cache statistics. Timeout introspection is the
// SPEC_FULL.md section 4 supplemented feature grounded on
// original_source/.../fallback_manager.py::get_system_status's inclusion of
// get_timeout_stats() per provider.
func (o *Orchestrator) GetSystemStatus() SystemStatus {
	o.mu.RLock()
	order := append([]domain.BackendName(nil), o.order...)
	mode := o.mode
	o.mu.RUnlock()

	providers := make(map[domain.BackendName]domain.ProviderHealth, len(order))
	breakers := make(map[domain.BackendName]domain.CircuitBreakerSnapshot, len(order))
	timeouts := make(map[domain.BackendName]resilience.TimeoutStats, len(order))
	for _, name := range order {
		providers[name] = o.health.Get(name)
		if pb := o.backendFor(name); pb != nil {
			breakers[name] = pb.breaker.State()
			timeouts[name] = pb.timeout.GetTimeoutStats()
		}
	}

	var cacheStats resilience.CacheStats
	if o.cache != nil {
		cacheStats = o.cache.Stats()
	}

	return SystemStatus{
		Mode:             mode,
		Providers:        providers,
		Breakers:         breakers,
		Timeouts:         timeouts,
		Cache:            cacheStats,
		ProviderPriority: order,
	}
}

// SetMaintenanceMode enables or disables maintenance mode for the whole
// orchestrator, or (when backend is non-empty) for a single backend via the
// HealthMonitor. Grounded on
// original_source/.../fallback_manager.py::set_maintenance_mode.
func (o *Orchestrator) SetMaintenanceMode(enabled bool, backend domain.BackendName) {
	if backend != "" {
		o.health.SetMaintenance(backend, enabled)
		if !enabled {
			if pb := o.backendFor(backend); pb != nil {
				pb.breaker.Reset()
			}
		}
		return
	}

	o.mu.Lock()
	o.maintMode = enabled
	if enabled {
		o.mode = domain.ServiceModeMaintenance
	}
	o.mu.Unlock()

	if !enabled {
		o.refreshMode()
	} else if o.metrics != nil {
		o.metrics.FallbackMode.WithLabelValues().Set(serviceModeValue(domain.ServiceModeMaintenance))
	}
}

// RunHealthSweep runs the health monitor's idle-provider sweep until ctx is
// cancelled. Intended to run in its own goroutine for the lifetime of the
// process.
func (o *Orchestrator) RunHealthSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	o.health.RunSweep(ctx, interval)
}

// Close cancels every in-flight timeout-bounded operation and clears the
// response cache. Grounded on
// original_source/.../fallback_manager.py::cleanup.
func (o *Orchestrator) Close() {
	o.mu.RLock()
	backends := make([]*perBackend, 0, len(o.backends))
	for _, pb := range o.backends {
		backends = append(backends, pb)
	}
	o.mu.RUnlock()

	for _, pb := range backends {
		pb.timeout.CancelAll()
	}
	if o.cache != nil {
		o.cache.Clear()
	}
}
