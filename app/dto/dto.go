package dto

// APIResponse represents the standard API response structure
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty" validate:"omitempty"`
	Error   any    `json:"error,omitempty" validate:"omitempty"`
}

// ErrorDetail represents error details in API responses
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}

// PageRequest carries 1-based pagination parameters
type PageRequest struct {
	Page    int `query:"page" validate:"omitempty,min=1"`
	PerPage int `query:"perPage" validate:"omitempty,min=1,max=200"`
}

// Normalize fills defaults and returns limit and offset
func (p PageRequest) Normalize(defaultPerPage int) (page, perPage, offset int) {
	page = p.Page
	if page < 1 {
		page = 1
	}
	perPage = p.PerPage
	if perPage < 1 {
		perPage = defaultPerPage
	}
	return page, perPage, (page - 1) * perPage
}

// PageInfo describes one page of a listing
type PageInfo struct {
	TotalItems              int64 `json:"totalItems"`
	CurrentPage             int   `json:"currentPage"`
	TotalPages              int64 `json:"totalPages"`
	TotalItemsOnCurrentPage int   `json:"totalItemsOnCurrentPage"`
}

// NewPageInfo computes paging metadata
func NewPageInfo(total int64, page, perPage, onPage int) PageInfo {
	pages := int64(0)
	if perPage > 0 {
		pages = (total + int64(perPage) - 1) / int64(perPage)
	}
	return PageInfo{
		TotalItems:              total,
		CurrentPage:             page,
		TotalPages:              pages,
		TotalItemsOnCurrentPage: onPage,
	}
}
