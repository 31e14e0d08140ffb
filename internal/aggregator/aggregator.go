// Package aggregator executes routing plans against upstream providers and
// reconciles the results into a single unified record. Provider failures are
// absorbed into the response's error list; only a fault inside the
// aggregation machinery itself produces a non-recoverable error entry.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/CardaLabs/sdk/internal/domain"
	"github.com/CardaLabs/sdk/internal/metrics"
	"github.com/CardaLabs/sdk/internal/providers"
	"github.com/CardaLabs/sdk/internal/resilience"
	"github.com/CardaLabs/sdk/internal/router"
	sdkerrors "github.com/CardaLabs/sdk/pkg/errors"
	"github.com/CardaLabs/sdk/pkg/logger"
)

// defaultTimeout bounds one provider call unless the request overrides it.
const defaultTimeout = 30 * time.Second

// Config tunes the aggregator's execution layer.
type Config struct {
	Strategy domain.AggregationStrategy
	Timeout  time.Duration
	Retry    resilience.RetryConfig
	Breaker  resilience.BreakerConfig
}

// Request asks for a set of fields on one entity.
type Request struct {
	// ID is the entity identifier: a token unit or a wallet address. The
	// aggregator treats it as opaque.
	ID string
	// RequestID is an optional correlation identifier echoed in the
	// response metadata.
	RequestID string
	Fields    []string
	Options   *domain.RequestOptions
	// Strategy overrides the aggregator-level strategy for this request.
	Strategy *domain.AggregationStrategy
}

// Aggregator fans requests out to providers and merges the results.
type Aggregator struct {
	router  *router.Router
	limiter *resilience.Limiter
	config  Config
	log     *logger.Logger

	mu       sync.Mutex
	breakers map[string]*resilience.Breaker
}

// New creates an aggregator around the given router. The router is shared
// with the facade by constructor injection; registration is the only
// mutation path into its provider registry.
func New(r *router.Router, cfg Config, log *logger.Logger) *Aggregator {
	if log == nil {
		log = logger.NewDefault("aggregator")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Strategy.Routing == "" {
		cfg.Strategy = domain.DefaultStrategy()
	}
	return &Aggregator{
		router:   r,
		limiter:  resilience.NewLimiter(),
		config:   cfg,
		log:      log,
		breakers: make(map[string]*resilience.Breaker),
	}
}

// RegisterProvider registers the provider with the router and installs its
// rate limiter and circuit breaker.
func (a *Aggregator) RegisterProvider(p providers.Provider) error {
	if err := a.router.RegisterProvider(p); err != nil {
		return err
	}

	name := p.Name()
	a.limiter.Register(name, p.Capabilities().RateLimits)

	breakerCfg := a.config.Breaker
	breakerCfg.OnStateChange = func(_, to resilience.BreakerState) {
		metrics.RecordBreakerTransition(name, to.String())
	}

	a.mu.Lock()
	a.breakers[name] = resilience.NewBreaker(breakerCfg)
	a.mu.Unlock()
	return nil
}

// UnregisterProvider removes the provider everywhere.
func (a *Aggregator) UnregisterProvider(name string) {
	a.router.UnregisterProvider(name)
	a.limiter.Unregister(name)

	a.mu.Lock()
	delete(a.breakers, name)
	a.mu.Unlock()
}

// SetFieldPriority configures the ordered provider preference for a field.
func (a *Aggregator) SetFieldPriority(field string, providerNames []string) {
	a.router.SetFieldPriority(field, providerNames)
}

// Router exposes the underlying router for metrics and priority queries.
func (a *Aggregator) Router() *router.Router {
	return a.router
}

// Health checks every registered provider concurrently.
func (a *Aggregator) Health(ctx context.Context) map[string]domain.HealthStatus {
	names := a.router.ProviderNames()
	out := make(map[string]domain.HealthStatus, len(names))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range names {
		p, ok := a.router.Provider(name)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(name string, p providers.Provider) {
			defer wg.Done()
			status := p.HealthCheck(ctx)
			mu.Lock()
			out[name] = status
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()
	return out
}

// Shutdown destroys every registered provider. Errors are logged, not
// returned; shutdown always completes.
func (a *Aggregator) Shutdown(ctx context.Context) {
	for _, name := range a.router.ProviderNames() {
		p, ok := a.router.Provider(name)
		if !ok {
			continue
		}
		if err := p.Destroy(ctx); err != nil {
			a.log.WithError(err).Warnf("provider %s shutdown failed", name)
		}
		a.UnregisterProvider(name)
	}
}

// AggregateTokenData aggregates the requested token fields for one unit.
// Provider failures never produce a Go error; they land in response.Errors.
func (a *Aggregator) AggregateTokenData(ctx context.Context, req Request) *domain.TokenResponse {
	record := &domain.TokenData{Unit: req.ID}
	meta, errs := a.aggregate(ctx, domain.KindToken, req, record)
	metrics.RecordAggregation(string(domain.KindToken), aggregationStatus(errs), meta.ResponseTime)
	return &domain.TokenResponse{Data: *record, Metadata: meta, Errors: errs}
}

// AggregateWalletData aggregates the requested wallet fields for one address.
func (a *Aggregator) AggregateWalletData(ctx context.Context, req Request) *domain.WalletResponse {
	record := &domain.WalletData{Address: req.ID}
	meta, errs := a.aggregate(ctx, domain.KindWallet, req, record)
	metrics.RecordAggregation(string(domain.KindWallet), aggregationStatus(errs), meta.ResponseTime)
	return &domain.WalletResponse{Data: *record, Metadata: meta, Errors: errs}
}

// aggregate runs the full plan-execute-resolve pipeline for one request,
// filling the supplied record in place.
func (a *Aggregator) aggregate(ctx context.Context, kind domain.RecordKind, req Request, record domain.Record) (meta domain.ResponseMetadata, errs []domain.ProviderError) {
	start := time.Now()

	defer func() {
		// A fault in the machinery itself (not a provider) yields a single
		// non-recoverable error entry instead of a panic escaping the SDK.
		if r := recover(); r != nil {
			a.log.Warnf("aggregation fault: %v", r)
			meta = domain.ResponseMetadata{
				RequestID:    req.RequestID,
				CacheStatus:  domain.CacheMiss,
				ResponseTime: elapsedFloor(start),
				Timestamp:    time.Now().UTC(),
			}
			errs = []domain.ProviderError{{
				Provider:    "aggregator",
				Message:     fmt.Sprintf("internal aggregation error: %v", r),
				Recoverable: false,
			}}
		}
	}()

	strategy := a.config.Strategy
	if req.Strategy != nil {
		strategy = *req.Strategy
	}

	plans := a.router.PlanRouting(req.Fields, kind, strategy.Routing, req.Options)

	// Every requested field must yield either data or a surfaced error.
	// Fields absent from the plan get a synthesized failed execution naming
	// the first configured-priority provider, or "unknown".
	executions := make(map[string]*domain.ProviderExecution)
	for _, field := range req.Fields {
		if _, planned := plans[field]; planned {
			continue
		}
		name := "unknown"
		if priority := a.router.FieldPriority(field); len(priority) > 0 {
			name = priority[0]
		}
		executions["missing:"+field] = &domain.ProviderExecution{
			Provider: name,
			Success:  false,
			Err: sdkerrors.Newf(sdkerrors.ErrCodeProviderNotFound,
				"no provider found for field %s", field).WithProvider(name),
			Fields: []string{field},
		}
	}

	// Group fields by the provider that must be called. With the
	// fetch-all-priority policy on, every priority-listed provider that
	// declares a field is queried too, so conflicts are detectable even
	// when providers would agree by default.
	required := make(map[string][]string)
	for field, plan := range plans {
		if _, registered := a.router.Provider(plan.Primary); registered {
			required[plan.Primary] = append(required[plan.Primary], field)
		} else {
			executions["missing:"+field] = &domain.ProviderExecution{
				Provider: plan.Primary,
				Success:  false,
				Err: sdkerrors.Newf(sdkerrors.ErrCodeProviderNotFound,
					"provider %s not found", plan.Primary).WithProvider(plan.Primary),
				Fields: []string{field},
			}
		}

		if strategy.FetchAllPriority {
			priority := a.router.FieldPriority(field)
			if len(priority) < 2 {
				continue
			}
			for _, name := range priority {
				if name == plan.Primary {
					continue
				}
				p, ok := a.router.Provider(name)
				if !ok || !p.Capabilities().Supports(field, kind) {
					continue
				}
				required[name] = append(required[name], field)
			}
		}
	}

	// Primary calls run concurrently with no defined completion order.
	var wg sync.WaitGroup
	var execMu sync.Mutex
	for name, fields := range required {
		wg.Add(1)
		go func(name string, fields []string) {
			defer wg.Done()
			exec := a.executeProvider(ctx, name, kind, req, fields)
			execMu.Lock()
			executions[name] = exec
			execMu.Unlock()
		}(name, dedup(fields))
	}
	wg.Wait()

	// Fallback chains: strictly sequential within a field, first success
	// wins; different fields' chains may interleave freely. The fields
	// needing a chain are decided before any chain goroutine starts, so the
	// chains are the only writers into executions from here on.
	type fallbackChain struct {
		field     string
		fallbacks []string
	}
	var chains []fallbackChain
	for field, plan := range plans {
		if primary, ok := executions[plan.Primary]; ok && primary.Success {
			continue
		}
		if len(plan.Fallbacks) == 0 {
			continue
		}
		chains = append(chains, fallbackChain{field: field, fallbacks: plan.Fallbacks})
	}

	// inflight holds a claim per provider a chain is currently dialing.
	// A chain reaching a claimed provider waits for that call's outcome
	// instead of issuing a duplicate upstream call.
	inflight := make(map[string]chan struct{})
	var fbWg sync.WaitGroup
	for _, c := range chains {
		fbWg.Add(1)
		go func(field string, fallbacks []string) {
			defer fbWg.Done()
			for _, name := range fallbacks {
				execMu.Lock()
				prior, tried := executions[name]
				if tried {
					execMu.Unlock()
					if prior.Success {
						return
					}
					continue
				}
				if wait, claimed := inflight[name]; claimed {
					execMu.Unlock()
					<-wait
					execMu.Lock()
					prior = executions[name]
					execMu.Unlock()
					if prior != nil && prior.Success {
						return
					}
					continue
				}
				claim := make(chan struct{})
				inflight[name] = claim
				execMu.Unlock()

				exec := a.executeProvider(ctx, name, kind, req, []string{field})
				execMu.Lock()
				executions[name] = exec
				delete(inflight, name)
				execMu.Unlock()
				close(claim)
				if exec.Success {
					return
				}
			}
		}(c.field, c.fallbacks)
	}
	fbWg.Wait()

	// Resolve every requested field from the successful executions. The
	// full per-field result, losing values and confidence included, is kept
	// for the response metadata.
	fieldOrder := a.priorityOrder(req.Fields, executions)
	fieldResults := make(map[string]domain.FieldResult)
	contributing := make(map[string]bool)
	for _, field := range req.Fields {
		values := collectValues(field, executions, fieldOrder[field])
		if len(values) == 0 {
			continue
		}
		result := resolveConflict(field, values, strategy.Conflict)
		fieldResults[field] = result
		record.SetField(field, result.Value)
		for _, source := range result.Sources {
			contributing[source] = true
		}
	}

	finalizeRecord(record, sortedKeys(contributing))

	meta = domain.ResponseMetadata{
		RequestID:      req.RequestID,
		CacheStatus:    domain.CacheMiss,
		ResponseTime:   elapsedFloor(start),
		Timestamp:      time.Now().UTC(),
		ProviderHealth: make(map[string]bool),
	}
	if len(fieldResults) > 0 {
		meta.Fields = fieldResults
	}
	var succeeded []string
	for key, exec := range executions {
		if strings.HasPrefix(key, "missing:") {
			errs = append(errs, providerError(exec))
			continue
		}
		meta.ProviderHealth[exec.Provider] = exec.Success
		if exec.Success {
			succeeded = append(succeeded, exec.Provider)
		} else {
			errs = append(errs, providerError(exec))
		}
	}
	sort.Strings(succeeded)
	meta.DataSources = succeeded
	sort.Slice(errs, func(i, j int) bool { return errs[i].Provider < errs[j].Provider })

	return meta, errs
}

// executeProvider runs one provider call through the rate limiter, circuit
// breaker, and retryer, raced against the request timeout. A call losing the
// race keeps running in its goroutine; the late result is discarded.
func (a *Aggregator) executeProvider(ctx context.Context, name string, kind domain.RecordKind, req Request, fields []string) *domain.ProviderExecution {
	start := time.Now()
	exec := &domain.ProviderExecution{Provider: name, Fields: fields}

	finish := func(success bool, err error) *domain.ProviderExecution {
		exec.Success = success
		exec.Err = err
		exec.Elapsed = time.Since(start)
		exec.ObservedAt = time.Now().UTC()
		a.router.UpdateMetrics(name, exec.Elapsed, success)
		metrics.RecordProviderCall(name, exec.Elapsed, success)
		return exec
	}

	provider, ok := a.router.Provider(name)
	if !ok {
		return finish(false, sdkerrors.Newf(sdkerrors.ErrCodeProviderNotFound,
			"provider %s not found", name).WithProvider(name))
	}

	timeout := a.config.Timeout
	retryCfg := a.config.Retry
	if req.Options != nil {
		if req.Options.Timeout > 0 {
			timeout = req.Options.Timeout
		}
		if req.Options.MaxRetries > 0 {
			retryCfg.MaxAttempts = req.Options.MaxRetries
		}
		if req.Options.RetryDelay > 0 {
			retryCfg.InitialDelay = req.Options.RetryDelay
		}
	}

	if err := a.limiter.Wait(ctx, name); err != nil {
		return finish(false, sdkerrors.Wrap(err, sdkerrors.ErrCodeRateLimit,
			"rate limit wait").WithProvider(name))
	}

	breaker := a.breaker(name)
	retryer := resilience.NewRetryer(retryCfg)

	var result providers.Result
	err := breaker.Execute(ctx, func(ctx context.Context) error {
		return retryer.Do(ctx, func(ctx context.Context) error {
			r, err := a.fetchWithTimeout(ctx, provider, kind, req, timeout)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		a.log.WithError(err).WithField("provider", name).Warn("provider call failed")
		return finish(false, err)
	}

	exec.Data = result.Data
	return finish(true, nil)
}

// fetchWithTimeout races the provider call against the per-request timeout.
// The buffered channel lets a late-arriving response be dropped harmlessly.
func (a *Aggregator) fetchWithTimeout(ctx context.Context, p providers.Provider, kind domain.RecordKind, req Request, timeout time.Duration) (providers.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan providers.Result, 1)
	go func() {
		if kind == domain.KindWallet {
			done <- p.GetWalletData(callCtx, req.ID, req.Options)
			return
		}
		done <- p.GetTokenData(callCtx, req.ID, req.Options)
	}()

	select {
	case <-callCtx.Done():
		return providers.Result{}, sdkerrors.Wrap(callCtx.Err(), sdkerrors.ErrCodeTimeout,
			"provider call timed out").WithProvider(p.Name())
	case result := <-done:
		if !result.Success {
			err := result.Err
			if err == nil {
				err = sdkerrors.New(sdkerrors.ErrCodeProvider, "provider returned no data")
			}
			return providers.Result{}, err
		}
		return result, nil
	}
}

func (a *Aggregator) breaker(name string) *resilience.Breaker {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.breakers[name]
	if !ok {
		b = resilience.NewBreaker(a.config.Breaker)
		a.breakers[name] = b
	}
	return b
}

// BreakerState exposes the provider's circuit state for health snapshots.
func (a *Aggregator) BreakerState(name string) resilience.BreakerState {
	return a.breaker(name).State()
}

// priorityOrder derives, per field, the provider ordering used during
// conflict resolution: configured priority first, then the remaining
// executed providers in name order.
func (a *Aggregator) priorityOrder(fields []string, executions map[string]*domain.ProviderExecution) map[string][]string {
	executed := make([]string, 0, len(executions))
	for key, exec := range executions {
		if strings.HasPrefix(key, "missing:") {
			continue
		}
		executed = append(executed, exec.Provider)
	}
	sort.Strings(executed)

	order := make(map[string][]string, len(fields))
	for _, field := range fields {
		priority := a.router.FieldPriority(field)
		seen := make(map[string]bool, len(priority))
		ordered := make([]string, 0, len(executed))
		for _, name := range priority {
			ordered = append(ordered, name)
			seen[name] = true
		}
		for _, name := range executed {
			if !seen[name] {
				ordered = append(ordered, name)
			}
		}
		order[field] = ordered
	}
	return order
}

// collectValues gathers every successful execution's non-nil value for the
// field, in the given provider order.
func collectValues(field string, executions map[string]*domain.ProviderExecution, order []string) []domain.ConflictingValue {
	byProvider := make(map[string]*domain.ProviderExecution, len(executions))
	for key, exec := range executions {
		if strings.HasPrefix(key, "missing:") {
			continue
		}
		byProvider[exec.Provider] = exec
	}

	var values []domain.ConflictingValue
	for _, name := range order {
		exec, ok := byProvider[name]
		if !ok || !exec.Success || exec.Data == nil {
			continue
		}
		if value, present := exec.Data.FieldValue(field); present {
			values = append(values, domain.ConflictingValue{Provider: name, Value: value})
		}
	}
	return values
}

func providerError(exec *domain.ProviderExecution) domain.ProviderError {
	msg := "provider call failed"
	if exec.Err != nil {
		msg = exec.Err.Error()
	}
	return domain.ProviderError{
		Provider:    exec.Provider,
		Message:     msg,
		Recoverable: sdkerrors.Recoverable(exec.Err),
	}
}

// finalizeRecord stamps provenance onto the assembled record.
func finalizeRecord(record domain.Record, sources []string) {
	now := time.Now().UTC()
	switch r := record.(type) {
	case *domain.TokenData:
		r.DataSource = sources
		r.LastUpdated = now
	case *domain.WalletData:
		r.DataSource = sources
		r.LastUpdated = now
	}
}

// elapsedFloor reports elapsed time with a 1ms floor so callers never see a
// zero response time.
func elapsedFloor(start time.Time) time.Duration {
	elapsed := time.Since(start)
	if elapsed < time.Millisecond {
		return time.Millisecond
	}
	return elapsed
}

func aggregationStatus(errs []domain.ProviderError) string {
	if len(errs) == 0 {
		return "ok"
	}
	return "partial"
}

func dedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
