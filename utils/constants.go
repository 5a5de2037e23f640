package utils

import (
	"time"
)

// Token time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for access tokens in seconds
	AccessTokenTTLSeconds = 86400
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Lead pipeline constants
const (
	// LeadStatusNew is the status every lead starts in and the first entry of its history
	LeadStatusNew = "New"

	// UnknownActorName is displayed for history entries whose actor no longer resolves
	UnknownActorName = "Unknown User"

	// DefaultLinkTTL is the lifetime of a registration link (7 days)
	DefaultLinkTTL = 7 * 24 * time.Hour

	// DefaultLinkCodeLength is the length of generated registration codes
	DefaultLinkCodeLength = 10

	// CompanyCodePrefix and ProjectCodePrefix prefix sequential human readable codes
	CompanyCodePrefix = "C-"
	ProjectCodePrefix = "P-"

	// FirstSequentialCode is the first number handed out for company and project codes
	FirstSequentialCode = 101

	// MasterStatusCacheKey is the redis key suffix for the cached master status list
	MasterStatusCacheKey = "master_statuses"
)

// Pagination defaults
const (
	DefaultPerPage = 20
	CompanyPerPage = 50
	MaxPerPage     = 200
)

// Request context keys
type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
)
