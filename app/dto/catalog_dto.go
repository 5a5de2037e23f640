package dto

// CreateCompanyRequest creates a tenant company
type CreateCompanyRequest struct {
	Name string `json:"companyName" validate:"required,min=2,max=255"`
}

// CompanyDTO is the API view of a company
type CompanyDTO struct {
	ID          uint   `json:"id"`
	Name        string `json:"companyName"`
	CompanyCode string `json:"companyID"`
	CreatedAt   string `json:"createdAt"`
}

// ListCompaniesRequest filters the company listing
type ListCompaniesRequest struct {
	PageRequest
	Query string `query:"q" validate:"omitempty,max=100"`
}

// ListCompaniesResponse is a page of companies
type ListCompaniesResponse struct {
	Results []CompanyDTO `json:"results"`
	PageInfo
}

// CreateProjectRequest creates a project; media are URLs of externally stored files
type CreateProjectRequest struct {
	Title       string   `json:"project_title" validate:"required,min=2,max=255"`
	Description string   `json:"description" validate:"omitempty,max=5000"`
	Location    string   `json:"location" validate:"omitempty,max=255"`
	MinPrice    int64    `json:"min_price" validate:"gte=0"`
	MaxPrice    int64    `json:"max_price" validate:"gtefield=MinPrice"`
	Images      []string `json:"images" validate:"omitempty,dive,url"`
	Brochures   []string `json:"brochures" validate:"omitempty,dive,url"`
}

// ProjectDTO is the API view of a project
type ProjectDTO struct {
	ID          uint     `json:"id"`
	Title       string   `json:"project_title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	MinPrice    int64    `json:"min_price"`
	MaxPrice    int64    `json:"max_price"`
	Images      []string `json:"images"`
	Brochures   []string `json:"brochures"`
	ProjectCode string   `json:"projectID"`
	CreatedAt   string   `json:"createdAt"`
}

// ListProjectsRequest filters the project listing
type ListProjectsRequest struct {
	PageRequest
	Query string `query:"q" validate:"omitempty,max=100"`
}

// ListProjectsResponse is a page of projects
type ListProjectsResponse struct {
	Results []ProjectDTO `json:"results"`
	PageInfo
}

// MasterStatusRequest creates or renames a master status
type MasterStatusRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// MasterStatusDTO is the API view of a master status
type MasterStatusDTO struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}
