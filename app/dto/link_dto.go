package dto

// GenerateLinkResponse returns a freshly generated registration code
type GenerateLinkResponse struct {
	Code      string `json:"code"`
	Path      string `json:"path"`
	Purpose   string `json:"purpose,omitempty"`
	ExpiresAt string `json:"expiresAt"`
}

// GenerateAssociateLinkRequest chooses what the associate link registers
type GenerateAssociateLinkRequest struct {
	Purpose string `json:"purpose" validate:"required,oneof=associate_registration customer_registration"`
}

// RedeemCustomerLinkRequest carries the self-registering customer's details
type RedeemCustomerLinkRequest struct {
	FullName            string  `json:"full_name" validate:"required,min=2,max=255"`
	PhoneNumber         string  `json:"phone_number" validate:"required,leadphone"`
	Email               string  `json:"email" validate:"required,email"`
	ProjectID           uint    `json:"project" validate:"required,gt=0"`
	PersonalPhoneNumber *string `json:"personal_phone_number,omitempty" validate:"omitempty,leadphone"`
}

// RedeemAssociateLinkRequest carries either associate or customer details depending on the link purpose
type RedeemAssociateLinkRequest struct {
	FullName            string  `json:"full_name" validate:"required,min=2,max=255"`
	Email               string  `json:"email" validate:"required,email"`
	PhoneNumber         string  `json:"phone_number" validate:"required"`
	Location            string  `json:"location" validate:"omitempty,max=255"`
	Role                string  `json:"role" validate:"omitempty,oneof=agent channel_partner"`
	Password            string  `json:"password" validate:"omitempty,min=6,max=128"`
	ProjectID           uint    `json:"project" validate:"omitempty,gt=0"`
	PersonalPhoneNumber *string `json:"personal_phone_number,omitempty" validate:"omitempty,leadphone"`
}

// RedeemAssociateLinkResponse holds whichever entity the link created
type RedeemAssociateLinkResponse struct {
	Purpose   string        `json:"purpose"`
	Associate *PrincipalDTO `json:"associate,omitempty"`
	Lead      *LeadDTO      `json:"customer,omitempty"`
}
