package businessflow

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptLead(t *testing.T) {
	ctx := context.Background()

	t.Run("ConcurrentAcceptHasSingleWinner", func(t *testing.T) {
		env := newTestEnv(t)
		company := env.company(t, "Acme")
		project := env.project(t)
		partner := env.user(t, company, models.RoleChannelPartner, "Chitra Nair")

		const agents = 16
		principals := make([]*Principal, agents)
		for i := range agents {
			principals[i] = env.user(t, company, models.RoleAgent, fmt.Sprintf("Agent %d", i))
		}
		lead := env.lead(t, partner, company, project)
		env.notifier.reset()

		flow := env.assignmentFlow()
		results := make([]*dto.AcceptLeadResponse, agents)
		var wg sync.WaitGroup
		for i := range agents {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out, err := flow.AcceptLead(ctx, principals[i], lead.ID)
				assert.NoError(t, err)
				results[i] = out
			}(i)
		}
		wg.Wait()

		var winners []int
		for i, r := range results {
			require.NotNil(t, r)
			if r.Accepted {
				winners = append(winners, i)
			}
		}
		require.Len(t, winners, 1)
		winner := principals[winners[0]]

		for _, r := range results {
			require.NotNil(t, r.AcceptedByName)
			assert.Equal(t, winner.Name, *r.AcceptedByName)
			require.NotNil(t, r.AcceptedBy)
			assert.Equal(t, winner.ID.String(), *r.AcceptedBy)
		}

		stored, err := env.customers.ByID(ctx, lead.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsAccepted)
		assert.True(t, stored.IsAcceptedBy(winner.ID))
		assert.Equal(t, "New", stored.Status)

		// Only the winner's acceptance is announced
		accepted := env.notifier.find(dto.EventLeadAccepted, "")
		assert.Len(t, accepted, 2)
		assert.Len(t, env.notifier.find(dto.EventLeadAccepted, winner.ID.String()), 1)
		assert.Len(t, env.notifier.find(dto.EventLeadAccepted, partner.ID.String()), 1)
		taken := env.notifier.find(dto.EventLeadAlreadyAccepted, "")
		require.Len(t, taken, 1)
		assert.Equal(t, winner.ID, taken[0].Except, "the winner is left out of the already-taken broadcast")
	})

	t.Run("RepeatAcceptByHolderIsIdempotent", func(t *testing.T) {
		env := newTestEnv(t)
		company := env.company(t, "Acme")
		project := env.project(t)
		agent := env.user(t, company, models.RoleAgent, "Asha Rao")
		lead := env.lead(t, agent, company, project)

		first, err := env.assignmentFlow().AcceptLead(ctx, agent, lead.ID)
		require.NoError(t, err)
		assert.True(t, first.Accepted)

		second, err := env.assignmentFlow().AcceptLead(ctx, agent, lead.ID)
		require.NoError(t, err)
		assert.True(t, second.Accepted)
		assert.Equal(t, first.AcceptedAt, second.AcceptedAt)
	})

	t.Run("Rejections", func(t *testing.T) {
		env := newTestEnv(t)
		acme := env.company(t, "Acme")
		globex := env.company(t, "Globex")
		project := env.project(t)
		partner := env.user(t, acme, models.RoleChannelPartner, "Chitra Nair")
		outsider := env.user(t, globex, models.RoleAgent, "Omar Said")
		lead := env.lead(t, partner, acme, project)

		_, err := env.assignmentFlow().AcceptLead(ctx, partner, lead.ID)
		assert.ErrorIs(t, err, ErrRoleNotAllowed)

		_, err = env.assignmentFlow().AcceptLead(ctx, outsider, lead.ID)
		assert.ErrorIs(t, err, ErrLeadWrongCompany)

		_, err = env.assignmentFlow().AcceptLead(ctx, outsider, 9999)
		assert.ErrorIs(t, err, ErrLeadNotFound)
	})
}

func TestDeclineLead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	company := env.company(t, "Acme")
	project := env.project(t)
	partner := env.user(t, company, models.RoleChannelPartner, "Chitra Nair")
	a1 := env.user(t, company, models.RoleAgent, "Asha Rao")
	a2 := env.user(t, company, models.RoleAgent, "Bala Iyer")
	lead := env.lead(t, partner, company, project)
	env.notifier.reset()

	t.Run("FirstDeclineNotifies", func(t *testing.T) {
		out, err := env.assignmentFlow().DeclineLead(ctx, a1, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, "Customer declined successfully.", out.Message)
		assert.NotEmpty(t, out.DeclinedAt)

		assert.Len(t, env.notifier.find(dto.EventLeadDeclined, a1.ID.String()), 1)
		assert.Len(t, env.notifier.find(dto.EventLeadDeclined, partner.ID.String()), 1)
		assert.Len(t, env.notifier.find(dto.EventLeadDeclined, "admins"), 1)
	})

	t.Run("RepeatDeclineIsNoop", func(t *testing.T) {
		env.notifier.reset()
		out, err := env.assignmentFlow().DeclineLead(ctx, a1, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, "Customer already declined.", out.Message)
		assert.Empty(t, env.notifier.find(dto.EventLeadDeclined, ""))

		stored, err := env.customers.ByID(ctx, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{a1.ID.String()}, []string(stored.DeclinedBy))
	})

	t.Run("AcceptedLeadCannotBeDeclined", func(t *testing.T) {
		_, err := env.assignmentFlow().AcceptLead(ctx, a2, lead.ID)
		require.NoError(t, err)

		_, err = env.assignmentFlow().DeclineLead(ctx, a1, lead.ID)
		assert.ErrorIs(t, err, ErrLeadAlreadyAccepted)
		assert.True(t, IsConflict(err))
	})

	t.Run("DeclineThenAcceptByOtherAgent", func(t *testing.T) {
		fresh := env.lead(t, partner, company, project)
		_, err := env.assignmentFlow().DeclineLead(ctx, a1, fresh.ID)
		require.NoError(t, err)

		out, err := env.assignmentFlow().AcceptLead(ctx, a2, fresh.ID)
		require.NoError(t, err)
		assert.True(t, out.Accepted)
	})
}

func TestBroadcastLead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	acme := env.company(t, "Acme")
	globex := env.company(t, "Globex")
	project := env.project(t)
	admin := env.admin(t)
	partner := env.user(t, acme, models.RoleChannelPartner, "Chitra Nair")

	// The lead is created before any agent exists, so its broadcast set starts empty
	lead := env.lead(t, partner, acme, project)
	assert.Empty(t, lead.BroadcastedTo)

	a1 := env.user(t, acme, models.RoleAgent, "Asha Rao")
	a2 := env.associate(t, partner, models.RoleAgent, "Bala Iyer")
	outsider := env.user(t, globex, models.RoleAgent, "Omar Said")

	t.Run("SingleAgent", func(t *testing.T) {
		env.notifier.reset()
		out, err := env.assignmentFlow().BroadcastLead(ctx, admin, lead.ID, &dto.BroadcastLeadRequest{CompanyID: acme.ID, Agents: a1.ID.String()})
		require.NoError(t, err)
		assert.Equal(t, 1, out.TotalAgents)
		assert.Equal(t, []string{a1.ID.String()}, out.NewlyAdded)
		assert.Len(t, env.notifier.find(dto.EventLeadBroadcasted, a1.ID.String()), 1)
	})

	t.Run("AllAgentsUnionNotifiesOnlyNewcomers", func(t *testing.T) {
		env.notifier.reset()
		out, err := env.assignmentFlow().BroadcastLead(ctx, admin, lead.ID, &dto.BroadcastLeadRequest{CompanyID: acme.ID, Agents: BroadcastAllAgents})
		require.NoError(t, err)
		assert.Equal(t, 2, out.TotalAgents)
		assert.Equal(t, []string{a2.ID.String()}, out.NewlyAdded)

		assert.Empty(t, env.notifier.find(dto.EventLeadBroadcasted, a1.ID.String()))
		assert.Len(t, env.notifier.find(dto.EventLeadBroadcasted, a2.ID.String()), 1)

		stored, err := env.customers.ByID(ctx, lead.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a1.ID.String(), a2.ID.String()}, []string(stored.BroadcastedTo))
	})

	t.Run("Rejections", func(t *testing.T) {
		tests := []struct {
			name  string
			actor *Principal
			req   *dto.BroadcastLeadRequest
			want  error
		}{
			{"NotAdmin", partner, &dto.BroadcastLeadRequest{CompanyID: acme.ID, Agents: BroadcastAllAgents}, ErrRoleNotAllowed},
			{"MissingCompany", admin, &dto.BroadcastLeadRequest{Agents: BroadcastAllAgents}, ErrCompanyRequired},
			{"UnknownCompany", admin, &dto.BroadcastLeadRequest{CompanyID: 404, Agents: BroadcastAllAgents}, ErrCompanyNotFound},
			{"OtherCompany", admin, &dto.BroadcastLeadRequest{CompanyID: globex.ID, Agents: BroadcastAllAgents}, ErrBroadcastCompany},
			{"AgentOfOtherCompany", admin, &dto.BroadcastLeadRequest{CompanyID: acme.ID, Agents: outsider.ID.String()}, ErrAgentNotInCompany},
			{"ChannelPartnerIsNotAnAgent", admin, &dto.BroadcastLeadRequest{CompanyID: acme.ID, Agents: partner.ID.String()}, ErrAgentNotInCompany},
			{"GarbageTarget", admin, &dto.BroadcastLeadRequest{CompanyID: acme.ID, Agents: "some"}, ErrInvalidAgentsTarget},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := env.assignmentFlow().BroadcastLead(ctx, tt.actor, lead.ID, tt.req)
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})

	t.Run("NoActiveAgents", func(t *testing.T) {
		empty := env.company(t, "Initech")
		other := env.lead(t, admin, empty, project)
		_, err := env.assignmentFlow().BroadcastLead(ctx, admin, other.ID, &dto.BroadcastLeadRequest{CompanyID: empty.ID, Agents: BroadcastAllAgents})
		assert.ErrorIs(t, err, ErrNoActiveAgents)
	})
}
