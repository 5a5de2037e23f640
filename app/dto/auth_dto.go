package dto

// RegisterAdminRequest registers the single admin account
type RegisterAdminRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=255"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// LoginRequest is shared by admin, user and associate logins
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RegisterUserRequest registers a primary agent or channel partner
type RegisterUserRequest struct {
	FullName    string `json:"full_name" validate:"required,min=2,max=255"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phone_number" validate:"required,userphone"`
	Location    string `json:"location" validate:"omitempty,max=255"`
	CompanyID   uint   `json:"company" validate:"required,gt=0"`
	Role        string `json:"role" validate:"required,oneof=agent channel_partner"`
	Password    string `json:"password" validate:"required,min=6,max=128"`
}

// CreateAssociateRequest creates an associate under the calling user
type CreateAssociateRequest struct {
	FullName    string `json:"full_name" validate:"required,min=2,max=255"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phone_number" validate:"required,userphone"`
	Location    string `json:"location" validate:"omitempty,max=255"`
	Role        string `json:"role" validate:"required,oneof=agent channel_partner"`
	Password    string `json:"password" validate:"required,min=6,max=128"`
}

// PrincipalDTO is the public view of an admin, user or associate
type PrincipalDTO struct {
	ID            string  `json:"id"`
	Kind          string  `json:"kind"`
	FullName      string  `json:"full_name"`
	Email         string  `json:"email"`
	PhoneNumber   string  `json:"phone_number,omitempty"`
	Location      string  `json:"location,omitempty"`
	Role          string  `json:"role"`
	Status        string  `json:"status"`
	CompanyID     *uint   `json:"company_id,omitempty"`
	CompanyName   string  `json:"company_name,omitempty"`
	CreatedByID   *string `json:"created_by_id,omitempty"`
	CreatedByName *string `json:"created_by_name,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

// LoginResponse returns the principal and its tokens
type LoginResponse struct {
	Principal    PrincipalDTO `json:"user"`
	IsAssociate  bool         `json:"isAssociate"`
	AccessToken  string       `json:"token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	TokenType    string       `json:"token_type"`
}

// TokenPairResponse is returned on refresh
type TokenPairResponse struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// ListUsersRequest filters the admin user listing
type ListUsersRequest struct {
	PageRequest
	Role  string `query:"role" validate:"omitempty,oneof=agent channel_partner"`
	Query string `query:"q" validate:"omitempty,max=100"`
}

// UserWithCountsDTO is a user row with lead counters
type UserWithCountsDTO struct {
	PrincipalDTO
	CustomerCount     int64 `json:"customerCount"`
	AssociatedCPCount int64 `json:"associatedCPCount"`
}

// ListUsersResponse is a page of users
type ListUsersResponse struct {
	Results []UserWithCountsDTO `json:"results"`
	PageInfo
}

// ListAssociatesResponse is a page of associates
type ListAssociatesResponse struct {
	Results []PrincipalDTO `json:"results"`
	PageInfo
}

// UpdateUserStatusRequest toggles a principal's account status
type UpdateUserStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

// AgentsResponse lists agents of a company
type AgentsResponse struct {
	Results []PrincipalDTO `json:"results"`
}
