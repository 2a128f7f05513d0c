package domain

// TaxDomain is a legal sub-topic used to pre-filter semantic search.
type TaxDomain string

const (
	DomainGeneral     TaxDomain = "GENERAL"
	DomainVAT         TaxDomain = "VAT"
	DomainIncomeTax   TaxDomain = "INCOME_TAX"
	DomainProfitTax   TaxDomain = "PROFIT_TAX"
	DomainPropertyTax TaxDomain = "PROPERTY_TAX"
	DomainExcise      TaxDomain = "EXCISE"
	DomainCustoms     TaxDomain = "CUSTOMS"
)

type RouteMethod string

const (
	RouteCompound RouteMethod = "compound"
	RouteKeyword  RouteMethod = "keyword"
	RouteSemantic RouteMethod = "semantic"
	RouteDefault  RouteMethod = "default"
)

// RouteResult is the router's classification of a query.
type RouteResult struct {
	Domain     TaxDomain   `json:"domain"`
	Confidence float64     `json:"confidence"`
	Method     RouteMethod `json:"method"`
}

// Filter returns the semantic-search filter for the routed domain.
func (r RouteResult) Filter() SearchFilter {
	if r.Domain == "" || r.Domain == DomainGeneral {
		return SearchFilter{}
	}
	return SearchFilter{Domain: string(r.Domain)}
}

func DefaultRoute() RouteResult {
	return RouteResult{Domain: DomainGeneral, Confidence: 0, Method: RouteDefault}
}
