package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

// DomainKeywords lists the unambiguous terms that identify a tax domain.
type DomainKeywords struct {
	Domain   domain.TaxDomain `yaml:"domain"`
	Keywords []string         `yaml:"keywords"`
}

// DefaultDomainKeywords is the built-in routing table.
var DefaultDomainKeywords = []DomainKeywords{
	{Domain: domain.DomainVAT, Keywords: []string{"დღგ", "დამატებული ღირებულების"}},
	{Domain: domain.DomainIncomeTax, Keywords: []string{"საშემოსავლო"}},
	{Domain: domain.DomainProfitTax, Keywords: []string{"მოგების გადასახადი"}},
	{Domain: domain.DomainPropertyTax, Keywords: []string{"ქონების გადასახადი"}},
	{Domain: domain.DomainExcise, Keywords: []string{"აქციზ"}},
	{Domain: domain.DomainCustoms, Keywords: []string{"საბაჟო", "იმპორტ"}},
}

// SemanticRouter is an optional second routing tier.
type SemanticRouter interface {
	Route(ctx context.Context, query string) (domain.RouteResult, bool)
}

// DomainRouter classifies queries: keyword scan first, then the optional
// semantic tier, then GENERAL.
type DomainRouter struct {
	table    []DomainKeywords
	semantic SemanticRouter
}

func NewDomainRouter(table []DomainKeywords, semantic SemanticRouter) *DomainRouter {
	if len(table) == 0 {
		table = DefaultDomainKeywords
	}
	normalized := make([]DomainKeywords, 0, len(table))
	for _, entry := range table {
		keywords := make([]string, 0, len(entry.Keywords))
		for _, kw := range entry.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if entry.Domain == "" || len(keywords) == 0 {
			continue
		}
		normalized = append(normalized, DomainKeywords{Domain: entry.Domain, Keywords: keywords})
	}
	return &DomainRouter{table: normalized, semantic: semantic}
}

// Route returns a single-domain keyword match with confidence 1. When terms
// of several domains occur the domain with most hits wins (earlier table
// entries win ties) with method compound and confidence hits/total.
func (r *DomainRouter) Route(ctx context.Context, query string) domain.RouteResult {
	if strings.TrimSpace(query) == "" {
		slog.Debug("route_empty_query")
		return domain.DefaultRoute()
	}
	lower := strings.ToLower(query)

	total := 0
	matched := 0
	best := domain.DomainGeneral
	bestHits := 0
	for _, entry := range r.table {
		hits := 0
		for _, kw := range entry.Keywords {
			hits += strings.Count(lower, kw)
		}
		if hits == 0 {
			continue
		}
		matched++
		total += hits
		if hits > bestHits {
			best, bestHits = entry.Domain, hits
		}
	}

	switch {
	case matched == 1:
		slog.Info("route_keyword_match", "domain", string(best))
		return domain.RouteResult{Domain: best, Confidence: 1.0, Method: domain.RouteKeyword}
	case matched > 1:
		confidence := float64(bestHits) / float64(total)
		slog.Info("route_compound_match", "domain", string(best), "domains", matched, "confidence", confidence)
		return domain.RouteResult{Domain: best, Confidence: confidence, Method: domain.RouteCompound}
	}

	if r.semantic != nil {
		if result, ok := r.semantic.Route(ctx, query); ok {
			result.Method = domain.RouteSemantic
			return result
		}
	}
	slog.Debug("route_no_keyword_match")
	return domain.DefaultRoute()
}
