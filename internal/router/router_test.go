package router

import (
	"context"
	"testing"
	"time"

	"github.com/CardaLabs/sdk/internal/domain"
	"github.com/CardaLabs/sdk/internal/providers"
	sdkerrors "github.com/CardaLabs/sdk/pkg/errors"
)

type fakeProvider struct {
	name string
	caps domain.Capabilities
}

func (f *fakeProvider) Name() string                      { return f.name }
func (f *fakeProvider) Capabilities() domain.Capabilities { return f.caps }
func (f *fakeProvider) Initialize(context.Context, providers.Config) error {
	return nil
}
func (f *fakeProvider) HealthCheck(context.Context) domain.HealthStatus {
	return domain.HealthStatus{Healthy: true}
}
func (f *fakeProvider) GetTokenData(context.Context, string, *domain.RequestOptions) providers.Result {
	return providers.Result{Success: true, Data: &domain.TokenData{}}
}
func (f *fakeProvider) GetWalletData(context.Context, string, *domain.RequestOptions) providers.Result {
	return providers.Result{Success: true, Data: &domain.WalletData{}}
}
func (f *fakeProvider) Destroy(context.Context) error { return nil }

var _ providers.Provider = (*fakeProvider)(nil)

func tokenProvider(name string, cost float64, fields ...string) *fakeProvider {
	return &fakeProvider{
		name: name,
		caps: domain.Capabilities{TokenFields: fields, Cost: cost},
	}
}

func newTestRouter(t *testing.T, ps ...providers.Provider) *Router {
	t.Helper()
	r := New(nil)
	for _, p := range ps {
		if err := r.RegisterProvider(p); err != nil {
			t.Fatalf("register %s: %v", p.Name(), err)
		}
	}
	return r
}

func TestRegisterDuplicateProvider(t *testing.T) {
	r := newTestRouter(t, tokenProvider("a", 1, "price"))
	err := r.RegisterProvider(tokenProvider("a", 1, "price"))
	if sdkerrors.CodeOf(err) != sdkerrors.ErrCodeConfiguration {
		t.Fatalf("want CONFIGURATION error, got %v", err)
	}
}

func TestCandidatesFilterByCapability(t *testing.T) {
	r := newTestRouter(t,
		tokenProvider("a", 1, "price", "name"),
		tokenProvider("b", 1, "name"),
	)

	got := r.ProvidersForField("price", domain.KindToken)
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("want [a], got %v", got)
	}
	if got := r.ProvidersForField("holders", domain.KindToken); len(got) != 0 {
		t.Fatalf("unsupported field must have no candidates, got %v", got)
	}
}

func TestPrioritySkipsNonSupportingProviders(t *testing.T) {
	// "b" leads the priority list but does not declare price, so the
	// primary for price must be "a".
	r := newTestRouter(t,
		tokenProvider("a", 1, "price"),
		tokenProvider("b", 1, "name"),
	)
	r.SetFieldPriority("price", []string{"b", "a"})

	plans := r.PlanRouting([]string{"price"}, domain.KindToken, domain.RoutePriority, nil)
	plan, ok := plans["price"]
	if !ok {
		t.Fatal("expected plan for price")
	}
	if plan.Primary != "a" {
		t.Fatalf("want primary a, got %s", plan.Primary)
	}
}

func TestPriorityFallsBackToFirstCandidate(t *testing.T) {
	r := newTestRouter(t,
		tokenProvider("z", 1, "price"),
		tokenProvider("m", 1, "price"),
	)
	// No priority list set; the first candidate in sorted order wins.
	plans := r.PlanRouting([]string{"price"}, domain.KindToken, domain.RoutePriority, nil)
	if plans["price"].Primary != "m" {
		t.Fatalf("want m, got %s", plans["price"].Primary)
	}
}

func TestUnroutableFieldWithPriorityEmitsStubPlan(t *testing.T) {
	r := newTestRouter(t, tokenProvider("a", 1, "name"))
	r.SetFieldPriority("price", []string{"coingecko"})

	plans := r.PlanRouting([]string{"price"}, domain.KindToken, domain.RoutePriority, nil)
	plan, ok := plans["price"]
	if !ok {
		t.Fatal("priority-referenced field should still plan")
	}
	if plan.Primary != "coingecko" || plan.EstimatedSuccess != 0 {
		t.Fatalf("unexpected stub plan: %+v", plan)
	}
}

func TestFastestStrategyUsesLatencyMetrics(t *testing.T) {
	r := newTestRouter(t,
		tokenProvider("slow", 1, "price"),
		tokenProvider("fast", 1, "price"),
	)
	r.UpdateMetrics("slow", 500*time.Millisecond, true)
	r.UpdateMetrics("fast", 50*time.Millisecond, true)

	got := r.OptimalProvider("price", []string{"slow", "fast"}, domain.RouteFastest)
	if got != "fast" {
		t.Fatalf("want fast, got %s", got)
	}
}

func TestReliabilityStrategyUsesSuccessRate(t *testing.T) {
	r := newTestRouter(t,
		tokenProvider("flaky", 1, "price"),
		tokenProvider("steady", 1, "price"),
	)
	r.UpdateMetrics("flaky", 10*time.Millisecond, false)
	r.UpdateMetrics("flaky", 10*time.Millisecond, true)
	r.UpdateMetrics("steady", 10*time.Millisecond, true)

	got := r.OptimalProvider("price", []string{"flaky", "steady"}, domain.RouteReliability)
	if got != "steady" {
		t.Fatalf("want steady, got %s", got)
	}
}

func TestCostStrategyPrefersCheapest(t *testing.T) {
	r := newTestRouter(t,
		tokenProvider("pricey", 5, "price"),
		tokenProvider("cheap", 1, "price"),
	)
	got := r.OptimalProvider("price", []string{"pricey", "cheap"}, domain.RouteCost)
	if got != "cheap" {
		t.Fatalf("want cheap, got %s", got)
	}
}

func TestUpdateMetricsEMA(t *testing.T) {
	r := newTestRouter(t, tokenProvider("a", 1, "price"))

	// First sample seeds the average directly.
	r.UpdateMetrics("a", 100*time.Millisecond, true)
	m := r.AllMetrics()["a"]
	if m.AvgResponseTime != 100*time.Millisecond {
		t.Fatalf("first sample should seed raw, got %v", m.AvgResponseTime)
	}

	// Second sample folds in with alpha 0.1: 0.1*200 + 0.9*100 = 110ms.
	r.UpdateMetrics("a", 200*time.Millisecond, true)
	m = r.AllMetrics()["a"]
	if m.AvgResponseTime != 110*time.Millisecond {
		t.Fatalf("want 110ms EMA, got %v", m.AvgResponseTime)
	}
	if m.RequestCount != 2 || m.SuccessRate != 1.0 {
		t.Fatalf("unexpected counters: %+v", m)
	}
}

func TestUpdateMetricsSuccessRate(t *testing.T) {
	r := newTestRouter(t, tokenProvider("a", 1, "price"))
	r.UpdateMetrics("a", time.Millisecond, true)
	r.UpdateMetrics("a", time.Millisecond, false)
	r.UpdateMetrics("a", time.Millisecond, true)
	r.UpdateMetrics("a", time.Millisecond, true)

	m := r.AllMetrics()["a"]
	if m.SuccessRate != 0.75 {
		t.Fatalf("want 0.75, got %v", m.SuccessRate)
	}
	if m.FailureCount != 1 {
		t.Fatalf("want 1 failure, got %d", m.FailureCount)
	}
}

func TestPlanRoutingFallbackOrdering(t *testing.T) {
	r := newTestRouter(t,
		tokenProvider("a", 1, "price"),
		tokenProvider("b", 1, "price"),
		tokenProvider("c", 1, "price"),
	)
	r.SetFieldPriority("price", []string{"a"})

	// b fails often, c is reliable: fallbacks must order c before b.
	r.UpdateMetrics("b", 10*time.Millisecond, false)
	r.UpdateMetrics("b", 10*time.Millisecond, true)
	r.UpdateMetrics("c", 10*time.Millisecond, true)

	plans := r.PlanRouting([]string{"price"}, domain.KindToken, domain.RoutePriority, nil)
	plan := plans["price"]
	if plan.Primary != "a" {
		t.Fatalf("want primary a, got %s", plan.Primary)
	}
	if len(plan.Fallbacks) != 2 || plan.Fallbacks[0] != "c" || plan.Fallbacks[1] != "b" {
		t.Fatalf("want fallbacks [c b], got %v", plan.Fallbacks)
	}
}

func TestPlanRoutingPreferredProviders(t *testing.T) {
	r := newTestRouter(t,
		tokenProvider("a", 1, "price"),
		tokenProvider("b", 1, "price"),
	)
	plans := r.PlanRouting([]string{"price"}, domain.KindToken, domain.RoutePriority,
		&domain.RequestOptions{PreferredProviders: []string{"b"}})
	if plans["price"].Primary != "b" {
		t.Fatalf("preferred provider should lead, got %s", plans["price"].Primary)
	}
}

func TestPlanRoutingFallbackProvidersLeadChain(t *testing.T) {
	r := newTestRouter(t,
		tokenProvider("a", 1, "price"),
		tokenProvider("b", 1, "price"),
		tokenProvider("c", 1, "price"),
	)
	r.SetFieldPriority("price", []string{"a"})

	// Metrics alone would order b before c.
	r.UpdateMetrics("b", 10*time.Millisecond, true)
	r.UpdateMetrics("c", 10*time.Millisecond, false)
	r.UpdateMetrics("c", 10*time.Millisecond, true)

	plans := r.PlanRouting([]string{"price"}, domain.KindToken, domain.RoutePriority,
		&domain.RequestOptions{FallbackProviders: []string{"c"}})
	plan := plans["price"]
	if plan.Primary != "a" {
		t.Fatalf("want primary a, got %s", plan.Primary)
	}
	if len(plan.Fallbacks) != 2 || plan.Fallbacks[0] != "c" || plan.Fallbacks[1] != "b" {
		t.Fatalf("requested fallbacks must lead the chain, got %v", plan.Fallbacks)
	}
}

func TestUnregisterProviderRemovesCandidates(t *testing.T) {
	r := newTestRouter(t, tokenProvider("a", 1, "price"))
	r.UnregisterProvider("a")
	if got := r.ProvidersForField("price", domain.KindToken); len(got) != 0 {
		t.Fatalf("unregistered provider still routed: %v", got)
	}
}
