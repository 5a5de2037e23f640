package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/services"
	businessflow "github.com/amirphl/leadflow/business_flow"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Gateway authenticates websocket upgrades and dispatches inbound commands
type Gateway struct {
	hub      *Hub
	tokens   services.TokenService
	resolver businessflow.PrincipalResolver
	leads    businessflow.LeadAssignmentFlow
	upgrader websocket.Upgrader
	cfg      Config
	logger   *logrus.Logger
}

// NewGateway wires the websocket entry point
func NewGateway(
	hub *Hub,
	tokens services.TokenService,
	resolver businessflow.PrincipalResolver,
	leads businessflow.LeadAssignmentFlow,
	cfg Config,
	logger *logrus.Logger,
) *Gateway {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cfg = cfg.withDefaults()
	g := &Gateway{
		hub:      hub,
		tokens:   tokens,
		resolver: resolver,
		leads:    leads,
		cfg:      cfg,
		logger:   logger,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 || slices.Contains(g.cfg.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(g.cfg.AllowedOrigins, origin) {
		return true
	}
	g.logger.WithField("origin", origin).Warn("websocket origin rejected")
	return false
}

func bearerToken(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	if tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(tok)
	}
	return ""
}

// ServeHTTP upgrades /ws?token=<jwt>. Inactive principals get a force-logout
// frame and the socket is closed without registration.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, err := g.tokens.ValidateToken(ctx, bearerToken(r))
	if err != nil || claims.TokenType != services.TokenTypeAccess {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}
	principal, err := g.resolver.Resolve(ctx, claims.PrincipalID)
	if err != nil {
		http.Error(w, "principal not found", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	if !principal.IsActive() {
		g.rejectInactive(conn, principal)
		return
	}

	client := newClient(g.hub, conn, principal.ID, g.cfg, g.logger)
	if !g.hub.Register(client, roomsFor(principal)...) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(g.handleMessage)
}

func (g *Gateway) rejectInactive(conn *websocket.Conn, principal *businessflow.Principal) {
	defer conn.Close()

	frame, err := encodeFrame(dto.EventForceLogout, businessflow.AccountInactiveEvent())
	if err != nil {
		return
	}
	deadline := time.Now().Add(g.cfg.WriteWait)
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.WriteMessage(websocket.TextMessage, frame)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "account inactive"), deadline)

	g.logger.WithField("principal", principal.ID).Info("inactive account refused at websocket join")
}

func roomsFor(p *businessflow.Principal) []string {
	rooms := []string{identityRoom(p.ID)}
	if p.HasCompany() {
		rooms = append(rooms, companyRoom(p.CompanyID))
	}
	if p.IsAdmin() {
		rooms = append(rooms, adminRoom)
	}
	return rooms
}

type inboundFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func (g *Gateway) handleMessage(c *Client, message []byte) {
	var in inboundFrame
	if err := json.Unmarshal(message, &in); err != nil {
		c.reply(dto.EventError, dto.ErrorEvent{Code: "BAD_FRAME", Message: "Malformed message"})
		return
	}

	switch in.Event {
	case dto.EventAcceptLead:
		g.acceptLead(c, in.Payload)
	default:
		c.reply(dto.EventError, dto.ErrorEvent{Event: in.Event, Code: "UNKNOWN_EVENT", Message: "Unsupported event"})
	}
}

func (g *Gateway) acceptLead(c *Client, payload json.RawMessage) {
	var cmd dto.AcceptLeadCommand
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.LeadID == 0 {
		c.reply(dto.EventError, dto.ErrorEvent{Event: dto.EventAcceptLead, Code: "INVALID_LEAD_ID", Message: "Invalid customer ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.WriteWait)
	defer cancel()

	actor, err := g.resolver.Resolve(ctx, c.PrincipalID())
	if err != nil || !actor.IsActive() {
		g.hub.ForceDisconnect(c.PrincipalID(), dto.EventForceLogout, businessflow.AccountInactiveEvent())
		return
	}

	out, err := g.leads.AcceptLead(ctx, actor, cmd.LeadID)
	if err != nil {
		ev := dto.ErrorEvent{Event: dto.EventAcceptLead, Message: businessflow.ErrorMessage(err)}
		var be *businessflow.BusinessError
		if errors.As(err, &be) {
			ev.Code = be.Code
		}
		c.reply(dto.EventError, ev)
		return
	}
	if !out.Accepted {
		name := ""
		if out.AcceptedByName != nil {
			name = *out.AcceptedByName
		}
		c.reply(dto.EventLeadAlreadyAccepted, dto.LeadAlreadyAcceptedEvent{LeadID: out.LeadID, AgentName: name})
	}
}
