package usecase

import (
	"context"
	"math"
	"testing"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

type semanticRouterFake struct {
	result domain.RouteResult
	ok     bool
	calls  int
}

func (f *semanticRouterFake) Route(context.Context, string) (domain.RouteResult, bool) {
	f.calls++
	return f.result, f.ok
}

func TestDomainRouterKeywordMatch(t *testing.T) {
	route := NewDomainRouter(nil, nil).Route(context.Background(), "დღგ-ს განაკვეთი")
	if route.Domain != domain.DomainVAT || route.Method != domain.RouteKeyword || route.Confidence != 1 {
		t.Fatalf("unexpected route %+v", route)
	}
}

func TestDomainRouterCompoundMatch(t *testing.T) {
	route := NewDomainRouter(nil, nil).Route(context.Background(), "დღგ იმპორტისას და საბაჟო დეკლარაცია")
	if route.Method != domain.RouteCompound {
		t.Fatalf("expected compound route, got %+v", route)
	}
	if route.Domain != domain.DomainCustoms {
		t.Fatalf("expected CUSTOMS, got %+v", route)
	}
	if math.Abs(route.Confidence-2.0/3.0) > 1e-9 {
		t.Fatalf("expected confidence 2/3, got %.4f", route.Confidence)
	}
}

func TestDomainRouterSemanticTierAndDefault(t *testing.T) {
	semantic := &semanticRouterFake{
		result: domain.RouteResult{Domain: domain.DomainExcise, Confidence: 0.8},
		ok:     true,
	}
	route := NewDomainRouter(nil, semantic).Route(context.Background(), "თამბაქოს ნაწარმი")
	if route.Domain != domain.DomainExcise || route.Method != domain.RouteSemantic {
		t.Fatalf("unexpected route %+v", route)
	}

	route = NewDomainRouter(nil, &semanticRouterFake{}).Route(context.Background(), "რაიმე კითხვა")
	if route != domain.DefaultRoute() {
		t.Fatalf("expected default route, got %+v", route)
	}
}

func TestDomainRouterCustomTable(t *testing.T) {
	table := []DomainKeywords{{Domain: domain.DomainPropertyTax, Keywords: []string{" Property "}}}
	route := NewDomainRouter(table, nil).Route(context.Background(), "PROPERTY tax rate")
	if route.Domain != domain.DomainPropertyTax {
		t.Fatalf("expected PROPERTY_TAX, got %+v", route)
	}
}
