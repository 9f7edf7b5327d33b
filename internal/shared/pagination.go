package shared

import (
	"math"
	"net/url"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"pagina"`
	PerPage    int `json:"por_pagina"`
	Total      int `json:"total"`
	TotalPages int `json:"total_paginas"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	page, perPage = normalizePage(page, perPage)
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// PageFromQuery reads pagina/por_pagina and returns limit and offset.
func PageFromQuery(q url.Values) (page, limit, offset int) {
	page, _ = strconv.Atoi(q.Get("pagina"))
	perPage, _ := strconv.Atoi(q.Get("por_pagina"))
	page, perPage = normalizePage(page, perPage)
	return page, perPage, (page - 1) * perPage
}

func normalizePage(page, perPage int) (int, int) {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page <= 0 {
		page = 1
	}
	return page, perPage
}
