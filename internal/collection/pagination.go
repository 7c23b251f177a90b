package collection

const DefaultPageSize = 10

// Pagination describes a 1-based page window. Prev/Next controls are disabled
// exactly when HasPrev/HasNext are false.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalItems int  `json:"totalItems"`
	TotalPages int  `json:"totalPages"`
	HasPrev    bool `json:"hasPrev"`
	HasNext    bool `json:"hasNext"`
	PrevPage   int  `json:"prevPage"`
	NextPage   int  `json:"nextPage"`
}

// Paginate clamps page into [1, TotalPages]; an empty collection still has page 1.
func Paginate(page, size, total int) Pagination {
	if size <= 0 {
		size = DefaultPageSize
	}
	if total < 0 {
		total = 0
	}
	pages := (total + size - 1) / size
	if page < 1 {
		page = 1
	}
	if pages > 0 && page > pages {
		page = pages
	}

	p := Pagination{
		Page:       page,
		PageSize:   size,
		TotalItems: total,
		TotalPages: pages,
		HasPrev:    page > 1,
		HasNext:    page < pages,
		PrevPage:   page,
		NextPage:   page,
	}
	if p.HasPrev {
		p.PrevPage = page - 1
	}
	if p.HasNext {
		p.NextPage = page + 1
	}
	return p
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}
