package models

// Pagination describes one page of a list result.
type Pagination struct {
	Page       int
	PerPage    int
	TotalCount int
	TotalPages int
}

// NewPagination derives the descriptor for page of perPage items out of total.
func NewPagination(page, perPage, total int) Pagination {
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return Pagination{Page: page, PerPage: perPage, TotalCount: total, TotalPages: pages}
}
