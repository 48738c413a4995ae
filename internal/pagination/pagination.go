package pagination

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

type Page struct {
	Page     int
	PageSize int
	Offset   int
}

func Calculate(page, size int) Page {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return Page{Page: page, PageSize: size, Offset: (page - 1) * size}
}

type Meta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
	Pages    int   `json:"pages"`
	HasNext  bool  `json:"has_next"`
	HasPrev  bool  `json:"has_prev"`
}

func (p Page) Meta(total int64) Meta {
	pages := int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	return Meta{
		Page:     p.Page,
		PageSize: p.PageSize,
		Total:    total,
		Pages:    pages,
		HasNext:  p.Page < pages,
		HasPrev:  p.Page > 1,
	}
}
