package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/middleware"
	"github.com/amirphl/leadflow/app/services"
	businessflow "github.com/amirphl/leadflow/business_flow"
	"github.com/amirphl/leadflow/models"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	mu         sync.Mutex
	principals map[uuid.UUID]*businessflow.Principal
}

func (r *stubResolver) Resolve(_ context.Context, id uuid.UUID) (*businessflow.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[id]
	if !ok {
		return nil, businessflow.ErrPrincipalNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubResolver) ResolveName(ctx context.Context, id uuid.UUID) string {
	if p, err := r.Resolve(ctx, id); err == nil {
		return p.Name
	}
	return "Unknown User"
}

func (r *stubResolver) Profile(context.Context, uuid.UUID) (*dto.PrincipalDTO, error) {
	return nil, businessflow.ErrPrincipalNotFound
}

// stubLeads implements every lead-facing flow with overridable hooks
type stubLeads struct {
	mu       sync.Mutex
	created  []*dto.CreateLeadRequest
	getErr   error
	accept   func(leadID uint) (*dto.AcceptLeadResponse, error)
	redeemed []string
}

func (s *stubLeads) CreateLead(_ context.Context, actor *businessflow.Principal, req *dto.CreateLeadRequest) (*dto.LeadDTO, error) {
	s.mu.Lock()
	s.created = append(s.created, req)
	s.mu.Unlock()
	return &dto.LeadDTO{ID: 1, FullName: req.FullName, PhoneNumber: req.PhoneNumber, Status: "New", CompanyID: actor.CompanyID}, nil
}

func (s *stubLeads) ListLeads(context.Context, *businessflow.Principal, *dto.ListLeadsRequest) (*dto.ListLeadsResponse, error) {
	return &dto.ListLeadsResponse{}, nil
}

func (s *stubLeads) GetLead(_ context.Context, _ *businessflow.Principal, id uint) (*dto.LeadDTO, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &dto.LeadDTO{ID: id, Status: "New"}, nil
}

func (s *stubLeads) ExportLeads(context.Context, *businessflow.Principal) (string, []byte, error) {
	return "customers.xlsx", []byte("PK\x03\x04"), nil
}

func (s *stubLeads) BroadcastLead(_ context.Context, _ *businessflow.Principal, leadID uint, _ *dto.BroadcastLeadRequest) (*dto.BroadcastLeadResponse, error) {
	return &dto.BroadcastLeadResponse{}, nil
}

func (s *stubLeads) AcceptLead(_ context.Context, _ *businessflow.Principal, leadID uint) (*dto.AcceptLeadResponse, error) {
	return s.accept(leadID)
}

func (s *stubLeads) DeclineLead(_ context.Context, _ *businessflow.Principal, leadID uint) (*dto.DeclineLeadResponse, error) {
	return &dto.DeclineLeadResponse{LeadID: leadID, Message: "Customer declined successfully"}, nil
}

func (s *stubLeads) UpdateLeadStatus(_ context.Context, _ *businessflow.Principal, leadID uint, _ *dto.UpdateLeadStatusRequest) (*dto.LeadDTO, error) {
	return &dto.LeadDTO{ID: leadID}, nil
}

func (s *stubLeads) LeadStatusHistory(_ context.Context, _ *businessflow.Principal, leadID uint) (*dto.StatusHistoryResponse, error) {
	return &dto.StatusHistoryResponse{LeadID: leadID}, nil
}

func (s *stubLeads) LeadStats(context.Context, *businessflow.Principal) (*dto.LeadStatsResponse, error) {
	return &dto.LeadStatsResponse{}, nil
}

func (s *stubLeads) AddFollowUp(context.Context, *businessflow.Principal, uint, *dto.AddFollowUpRequest) (*dto.FollowUpDTO, error) {
	return &dto.FollowUpDTO{}, nil
}

func (s *stubLeads) ListFollowUps(context.Context, *businessflow.Principal, uint) ([]dto.FollowUpDTO, error) {
	return nil, nil
}

func (s *stubLeads) AddNote(context.Context, *businessflow.Principal, uint, *dto.AddNoteRequest) (*dto.NoteDTO, error) {
	return &dto.NoteDTO{}, nil
}

func (s *stubLeads) ListNotes(context.Context, *businessflow.Principal, uint) ([]dto.NoteDTO, error) {
	return nil, nil
}

func (s *stubLeads) GenerateCustomerLink(context.Context, *businessflow.Principal) (*dto.GenerateLinkResponse, error) {
	return &dto.GenerateLinkResponse{}, nil
}

func (s *stubLeads) RedeemCustomerLink(_ context.Context, code string, req *dto.RedeemCustomerLinkRequest) (*dto.LeadDTO, error) {
	s.mu.Lock()
	s.redeemed = append(s.redeemed, code)
	s.mu.Unlock()
	return &dto.LeadDTO{ID: 9, FullName: req.FullName, Status: "New"}, nil
}

func (s *stubLeads) GenerateAssociateLink(context.Context, *businessflow.Principal, *dto.GenerateAssociateLinkRequest) (*dto.GenerateLinkResponse, error) {
	return &dto.GenerateLinkResponse{}, nil
}

func (s *stubLeads) RedeemAssociateLink(context.Context, string, *dto.RedeemAssociateLinkRequest) (*dto.RedeemAssociateLinkResponse, error) {
	return &dto.RedeemAssociateLinkResponse{}, nil
}

func (s *stubLeads) CleanupExpiredLinks(context.Context) (int64, error) {
	return 0, nil
}

type handlerEnv struct {
	app      *fiber.App
	tokens   services.TokenService
	resolver *stubResolver
	leads    *stubLeads
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	tokens, err := services.NewTokenService(time.Hour, 24*time.Hour, "leadflow", "leadflow-api", false, "", "", "handler-test-secret", nil, "")
	require.NoError(t, err)

	env := &handlerEnv{
		app:      fiber.New(),
		tokens:   tokens,
		resolver: &stubResolver{principals: map[uuid.UUID]*businessflow.Principal{}},
		leads:    &stubLeads{},
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	v := NewValidator()
	leads := NewLeadHandler(env.leads, env.leads, env.leads, env.leads, v, logger)
	links := NewLinkHandler(env.leads, v, logger)
	authn := middleware.NewAuthMiddleware(tokens, env.resolver).Authenticate()
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	env.app.Post("/customers", authn, leads.CreateLead)
	env.app.Get("/customers/:id", authn, leads.GetLead)
	env.app.Post("/customers/:id/accept", authn, leads.AcceptLead)
	env.app.Get("/admin/customers/export", authn, adminOnly, leads.ExportLeads)
	env.app.Post("/customer-links/:code", links.RedeemCustomerLink)
	return env
}

func (e *handlerEnv) principal(role, status string) *businessflow.Principal {
	p := &businessflow.Principal{
		ID:        uuid.New(),
		Kind:      businessflow.PrincipalKindUser,
		Name:      "Asha Rao",
		Role:      role,
		Status:    status,
		CompanyID: 7,
	}
	e.resolver.mu.Lock()
	e.resolver.principals[p.ID] = p
	e.resolver.mu.Unlock()
	return p
}

func (e *handlerEnv) token(t *testing.T, p *businessflow.Principal) string {
	t.Helper()
	access, _, err := e.tokens.GenerateTokens(services.TokenSubject{PrincipalID: p.ID, Role: p.Role})
	require.NoError(t, err)
	return access
}

func (e *handlerEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if json.Valid(raw) {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func errorCode(body map[string]any) string {
	detail, _ := body["error"].(map[string]any)
	code, _ := detail["code"].(string)
	return code
}

func TestAuthenticate(t *testing.T) {
	env := newHandlerEnv(t)
	active := env.principal(models.RoleAgent, models.UserStatusActive)
	inactive := env.principal(models.RoleAgent, models.UserStatusInactive)
	ghost := &businessflow.Principal{ID: uuid.New(), Role: models.RoleAgent}

	_, refresh, err := env.tokens.GenerateTokens(services.TokenSubject{PrincipalID: active.ID, Role: active.Role})
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{name: "MissingHeader", wantStatus: fiber.StatusUnauthorized, wantCode: "MISSING_AUTHORIZATION_HEADER"},
		{name: "WrongScheme", header: "Token abc", wantStatus: fiber.StatusUnauthorized, wantCode: "INVALID_AUTHORIZATION_FORMAT"},
		{name: "Garbage", header: "Bearer not-a-jwt", wantStatus: fiber.StatusUnauthorized},
		{name: "RefreshToken", header: "Bearer " + refresh, wantStatus: fiber.StatusUnauthorized},
		{name: "UnknownPrincipal", header: "Bearer " + env.token(t, ghost), wantStatus: fiber.StatusUnauthorized, wantCode: "PRINCIPAL_NOT_FOUND"},
		{name: "InactiveAccount", header: "Bearer " + env.token(t, inactive), wantStatus: fiber.StatusForbidden, wantCode: "ACCOUNT_INACTIVE"},
		{name: "Active", header: "Bearer " + env.token(t, active), wantStatus: fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/customers/5", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := env.app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantCode != "" {
				var body map[string]any
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.wantCode, errorCode(body))
			}
		})
	}
}

func TestCreateLead(t *testing.T) {
	env := newHandlerEnv(t)
	agent := env.principal(models.RoleAgent, models.UserStatusActive)
	tok := env.token(t, agent)

	t.Run("RejectsInvalidPhone", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/customers", tok, map[string]any{
			"full_name":    "Ravi Kumar",
			"phone_number": "1234567890",
			"email":        "ravi@example.com",
			"project":      3,
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(body))
		errBody, ok := body["error"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, errBody["details"], "Phone number must be a 10 digit mobile number starting with 6-9")
	})

	t.Run("RejectsMalformedEmail", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/customers", tok, map[string]any{
			"full_name":    "Ravi Kumar",
			"phone_number": "9876543210",
			"email":        "ravi@",
			"project":      3,
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(body))
	})

	t.Run("RejectsMalformedBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/customers", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err := env.app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Creates", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/customers", tok, map[string]any{
			"full_name":    "Ravi Kumar",
			"phone_number": "9876543210",
			"email":        "ravi@example.com",
			"project":      3,
		})
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		data := body["data"].(map[string]any)
		assert.Equal(t, "New", data["status"])
		assert.EqualValues(t, 7, data["company_id"])
	})

	env.leads.mu.Lock()
	defer env.leads.mu.Unlock()
	assert.Len(t, env.leads.created, 1, "invalid requests never reach the flow")
}

func TestAcceptLeadResponses(t *testing.T) {
	env := newHandlerEnv(t)
	agent := env.principal(models.RoleAgent, models.UserStatusActive)
	tok := env.token(t, agent)
	winner := "Meera Shah"

	env.leads.accept = func(leadID uint) (*dto.AcceptLeadResponse, error) {
		switch leadID {
		case 1:
			return &dto.AcceptLeadResponse{LeadID: 1, Accepted: true, Message: "Customer accepted successfully"}, nil
		case 2:
			return &dto.AcceptLeadResponse{LeadID: 2, Accepted: false, AcceptedByName: &winner, Message: "Customer already accepted by another agent"}, nil
		default:
			return nil, businessflow.NewBusinessError("CUSTOMER_NOT_FOUND", "Customer not found", businessflow.ErrLeadNotFound)
		}
	}

	tests := []struct {
		name         string
		path         string
		wantStatus   int
		wantMessage  string
		wantAccepted any
	}{
		{name: "Winner", path: "/customers/1/accept", wantStatus: fiber.StatusOK, wantMessage: "Customer accepted successfully", wantAccepted: true},
		{name: "Loser", path: "/customers/2/accept", wantStatus: fiber.StatusOK, wantMessage: "Customer already accepted by another agent", wantAccepted: false},
		{name: "Missing", path: "/customers/3/accept", wantStatus: fiber.StatusNotFound, wantMessage: "Customer not found"},
		{name: "BadID", path: "/customers/abc/accept", wantStatus: fiber.StatusBadRequest, wantMessage: invalidLeadID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, tt.path, tok, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantMessage, body["message"])
			if tt.wantAccepted != nil {
				assert.Equal(t, tt.wantAccepted, body["data"].(map[string]any)["accepted"])
			}
		})
	}
}

func TestHandleBusinessErrorMapping(t *testing.T) {
	env := newHandlerEnv(t)
	agent := env.principal(models.RoleAgent, models.UserStatusActive)
	tok := env.token(t, agent)

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "SentinelNotFound",
			err:         businessflow.ErrLeadNotFound,
			wantStatus:  fiber.StatusNotFound,
			wantCode:    "NOT_FOUND",
			wantMessage: "customer not found",
		},
		{
			name:        "BusinessForbidden",
			err:         businessflow.NewBusinessError("ACCESS_DENIED", "Access denied to this customer", businessflow.ErrLeadAccessDenied),
			wantStatus:  fiber.StatusForbidden,
			wantCode:    "ACCESS_DENIED",
			wantMessage: "Access denied to this customer",
		},
		{
			name:        "InternalIsHidden",
			err:         errors.New("connection reset by peer"),
			wantStatus:  fiber.StatusInternalServerError,
			wantCode:    "INTERNAL_ERROR",
			wantMessage: "Failed to load customer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.leads.getErr = tt.err
			resp, body := env.do(t, http.MethodGet, "/customers/5", tok, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, errorCode(body))
			assert.Equal(t, tt.wantMessage, body["message"])
		})
	}
}

func TestExportLeads(t *testing.T) {
	env := newHandlerEnv(t)
	admin := env.principal(models.RoleAdmin, models.UserStatusActive)
	agent := env.principal(models.RoleAgent, models.UserStatusActive)

	t.Run("AgentDenied", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/admin/customers/export", env.token(t, agent), nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "ACCESS_DENIED", errorCode(body))
	})

	t.Run("AdminDownloads", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/customers/export", nil)
		req.Header.Set("Authorization", "Bearer "+env.token(t, admin))
		resp, err := env.app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))
		assert.Equal(t, `attachment; filename="customers.xlsx"`, resp.Header.Get("Content-Disposition"))
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, []byte("PK\x03\x04"), raw)
	})
}

func TestRedeemCustomerLinkIsPublic(t *testing.T) {
	env := newHandlerEnv(t)

	resp, body := env.do(t, http.MethodPost, "/customer-links/ab12CD34ef", "", map[string]any{
		"full_name":    "Neha Patel",
		"phone_number": "8123456789",
		"email":        "neha@example.com",
		"project":      2,
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Customer registered successfully", body["message"])

	env.leads.mu.Lock()
	defer env.leads.mu.Unlock()
	assert.Equal(t, []string{"ab12CD34ef"}, env.leads.redeemed)
}
