package pagination

const (
	DefaultLimit = 20
	MaxLimit     = 100
	// MaxPage keeps (Page-1)*Limit far from int overflow.
	MaxPage = 100000
)

// Pagination is a 1-based page request bound from the query string.
type Pagination struct {
	Page  int `form:"page,default=1"`
	Limit int `form:"limit,default=20"`
}

type PageInfo struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
}

// Normalize clamps page to [1, MaxPage] and limit to [1, maxLimit].
func (p Pagination) Normalize(maxLimit int) Pagination {
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// BuildPageInfo reports HasMore when at least one record exists after the current page.
func BuildPageInfo(p Pagination, total int64) *PageInfo {
	return &PageInfo{
		Page:    p.Page,
		Limit:   p.Limit,
		Total:   total,
		HasMore: int64(p.Offset()+p.Limit) < total,
	}
}

type Page[T any] struct {
	Data []*T     `json:"data"`
	Page PageInfo `json:"page"`
}

func NewPage[T any](data []*T, p Pagination, total int64) *Page[T] {
	if data == nil {
		data = []*T{}
	}
	return &Page[T]{Data: data, Page: *BuildPageInfo(p, total)}
}
