package realtime

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/services"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testClient(h *Hub, id uuid.UUID, buffer int) *Client {
	return &Client{hub: h, send: make(chan []byte, buffer), principalID: id, logger: h.logger}
}

func drain(t *testing.T, c *Client) []dto.Envelope {
	t.Helper()
	var out []dto.Envelope
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return out
			}
			var env dto.Envelope
			require.NoError(t, json.Unmarshal(frame, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestHubRooms(t *testing.T) {
	h := NewHub(quietLogger())
	agent, partner, admin := uuid.New(), uuid.New(), uuid.New()

	agentPhone := testClient(h, agent, 8)
	agentLaptop := testClient(h, agent, 8)
	partnerConn := testClient(h, partner, 8)
	adminConn := testClient(h, admin, 8)

	require.True(t, h.Register(agentPhone, identityRoom(agent), companyRoom(1)))
	require.True(t, h.Register(agentLaptop, identityRoom(agent), companyRoom(1)))
	require.True(t, h.Register(partnerConn, identityRoom(partner), companyRoom(2)))
	require.True(t, h.Register(adminConn, identityRoom(admin), adminRoom))
	assert.Equal(t, 4, h.Count())
	assert.Len(t, h.Lookup(agent), 2)

	tests := []struct {
		name string
		emit func() int
		want int
		recv []*Client
	}{
		{"Identity", func() int { return h.EmitToIdentity(agent, dto.EventLeadAccepted, nil) }, 2, []*Client{agentPhone, agentLaptop}},
		{"Company", func() int { return h.EmitToCompany(2, dto.EventLeadCreated, nil) }, 1, []*Client{partnerConn}},
		{"Admins", func() int { return h.EmitToAdmins(dto.EventLeadDeclined, nil) }, 1, []*Client{adminConn}},
		{"NobodyListening", func() int { return h.EmitToCompany(99, dto.EventLeadCreated, nil) }, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.emit())
			for _, c := range tt.recv {
				assert.Len(t, drain(t, c), 1)
			}
			for _, c := range []*Client{agentPhone, agentLaptop, partnerConn, adminConn} {
				assert.Empty(t, drain(t, c))
			}
		})
	}
}

func TestHubDropsFullClient(t *testing.T) {
	h := NewHub(quietLogger())
	id := uuid.New()
	slow := testClient(h, id, 1)
	require.True(t, h.Register(slow, identityRoom(id)))

	assert.Equal(t, 1, h.EmitToIdentity(id, dto.EventLeadBroadcasted, nil))
	assert.Equal(t, 0, h.EmitToIdentity(id, dto.EventLeadBroadcasted, nil))
	assert.Equal(t, 0, h.Count())
	assert.Empty(t, h.Lookup(id))

	// The queued frame survives, then the channel reports closed
	frames := drain(t, slow)
	assert.Len(t, frames, 1)
	_, ok := <-slow.send
	assert.False(t, ok)
}

func TestHubForceDisconnect(t *testing.T) {
	h := NewHub(quietLogger())
	id, other := uuid.New(), uuid.New()
	c := testClient(h, id, 4)
	keep := testClient(h, other, 4)
	require.True(t, h.Register(c, identityRoom(id), companyRoom(3)))
	require.True(t, h.Register(keep, identityRoom(other), companyRoom(3)))

	n := h.ForceDisconnect(id, dto.EventForceLogout, dto.ForceLogoutEvent{Reason: "account_inactive"})
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, h.Count())

	frames := drain(t, c)
	require.Len(t, frames, 1)
	assert.Equal(t, dto.EventForceLogout, frames[0].Event)
	_, ok := <-c.send
	assert.False(t, ok)

	assert.Equal(t, 1, h.EmitToCompany(3, dto.EventLeadCreated, nil))
	assert.Equal(t, 0, h.ForceDisconnect(id, dto.EventForceLogout, nil))
}

func TestHubAcceptFanOut(t *testing.T) {
	h := NewHub(quietLogger())
	notifier := services.NewNotificationService(h, quietLogger())
	winner, rival, creator := uuid.New(), uuid.New(), uuid.New()

	winnerPhone := testClient(h, winner, 4)
	winnerLaptop := testClient(h, winner, 4)
	rivalConn := testClient(h, rival, 4)
	creatorConn := testClient(h, creator, 4)
	require.True(t, h.Register(winnerPhone, identityRoom(winner), companyRoom(1)))
	require.True(t, h.Register(winnerLaptop, identityRoom(winner), companyRoom(1)))
	require.True(t, h.Register(rivalConn, identityRoom(rival), companyRoom(1)))
	require.True(t, h.Register(creatorConn, identityRoom(creator)))

	ctx := context.Background()
	notifier.NotifyIdentities(ctx, []uuid.UUID{winner, creator}, dto.EventLeadAccepted, dto.LeadAcceptedEvent{LeadID: 5})
	notifier.NotifyCompanyExcept(ctx, 1, winner, dto.EventLeadAlreadyAccepted, dto.LeadAlreadyAcceptedEvent{LeadID: 5})

	events := func(c *Client) []string {
		var out []string
		for _, env := range drain(t, c) {
			out = append(out, env.Event)
		}
		return out
	}
	assert.Equal(t, []string{dto.EventLeadAccepted}, events(winnerPhone))
	assert.Equal(t, []string{dto.EventLeadAccepted}, events(winnerLaptop))
	assert.Equal(t, []string{dto.EventLeadAlreadyAccepted}, events(rivalConn))
	assert.Equal(t, []string{dto.EventLeadAccepted}, events(creatorConn))

	assert.Equal(t, 1, h.EmitToCompanyExcept(1, winner, dto.EventLeadAlreadyAccepted, nil))
}

func TestHubUnregisterAndClose(t *testing.T) {
	h := NewHub(quietLogger())
	id := uuid.New()
	c := testClient(h, id, 1)
	require.True(t, h.Register(c, identityRoom(id)))

	h.Unregister(c)
	assert.NotPanics(t, func() { h.Unregister(c) })
	assert.Equal(t, 0, h.EmitToIdentity(id, dto.EventLeadAccepted, nil))

	again := testClient(h, id, 1)
	require.True(t, h.Register(again, identityRoom(id)))
	h.Close()
	assert.Equal(t, 0, h.Count())
	assert.False(t, h.Register(testClient(h, id, 1), identityRoom(id)))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{PongWait: 0, PingPeriod: 90}.withDefaults()
	assert.Equal(t, DefaultConfig().PongWait, cfg.PongWait)
	assert.Less(t, cfg.PingPeriod, cfg.PongWait)
	assert.Equal(t, 256, cfg.SendBuffer)
	assert.Equal(t, int64(512), cfg.MaxMessageSize)
}
