package domain

// SearchType records which retrieval source produced a result. It decides the
// fusion partition a result is ranked in.
type SearchType int

const (
	SearchDirect SearchType = iota
	SearchSemantic
	SearchKeyword
	SearchCrossRef
)

// PrimarySearchTypes lists the partitions fused by RRF, in the fixed order
// they are accumulated. The order makes score ties resolve deterministically.
var PrimarySearchTypes = []SearchType{SearchDirect, SearchSemantic, SearchKeyword}

func (t SearchType) String() string {
	switch t {
	case SearchDirect:
		return "direct"
	case SearchSemantic:
		return "semantic"
	case SearchKeyword:
		return "keyword"
	case SearchCrossRef:
		return "cross_ref"
	default:
		return "unknown"
	}
}

func (t SearchType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// SearchResult is a single statute article flowing through retrieval,
// fusion, expansion, reranking and packing.
type SearchResult struct {
	ArticleNumber   int        `json:"article_number"`
	Title           string     `json:"title"`
	Body            string     `json:"body"`
	Kari            string     `json:"kari"`
	Tavi            string     `json:"tavi"`
	Score           float64    `json:"score"`
	SearchType      SearchType `json:"search_type"`
	IsException     bool       `json:"is_exception"`
	RelatedArticles []int      `json:"related_articles,omitempty"`
	IsCrossRef      bool       `json:"is_cross_ref"`
	RRFScore        float64    `json:"rrf_score,omitempty"`
}

// References reports whether the result cross-references the given article.
func (r SearchResult) References(articleNumber int) bool {
	for _, n := range r.RelatedArticles {
		if n == articleNumber {
			return true
		}
	}
	return false
}

// Article is a stored statute article as held by the document store.
type Article struct {
	ArticleNumber   int       `json:"article_number"`
	Kari            string    `json:"kari"`
	Tavi            string    `json:"tavi"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	Domain          string    `json:"domain"`
	Status          string    `json:"status"`
	IsException     bool      `json:"is_exception"`
	RelatedArticles []int     `json:"related_articles"`
	Embedding       []float32 `json:"-"`
}

const ArticleStatusActive = "active"

// AsResult converts the stored article to a SearchResult of the given provenance.
func (a Article) AsResult(searchType SearchType, score float64) SearchResult {
	related := make([]int, len(a.RelatedArticles))
	copy(related, a.RelatedArticles)
	return SearchResult{
		ArticleNumber:   a.ArticleNumber,
		Title:           a.Title,
		Body:            a.Body,
		Kari:            a.Kari,
		Tavi:            a.Tavi,
		Score:           score,
		SearchType:      searchType,
		IsException:     a.IsException,
		RelatedArticles: related,
		IsCrossRef:      searchType == SearchCrossRef,
	}
}

// SearchFilter narrows semantic search. An empty Domain disables filtering.
type SearchFilter struct {
	Domain string
}

// Definition is a glossary term injected into prompts when the query mentions it.
type Definition struct {
	TermKA     string `json:"term_ka"`
	TermEN     string `json:"term_en,omitempty"`
	Definition string `json:"definition"`
}
