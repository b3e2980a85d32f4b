package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/lead-distribution/internal/domain"
)

func startEmbeddedNATS(t *testing.T) *nats.Conn {
	t.Helper()

	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("embedded nats not ready")
	}

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return nc
}

func TestInMemoryDispatcher(t *testing.T) {
	t.Run("runs every handler and joins their errors", func(t *testing.T) {
		d := NewInMemoryDispatcher()
		first := errors.New("first")
		calls := 0
		d.Subscribe(EventLeadsAssigned, func(context.Context, Event) error { calls++; return first })
		d.Subscribe(EventLeadsAssigned, func(context.Context, Event) error { calls++; return nil })
		d.Subscribe(EventSettingsUpdated, func(context.Context, Event) error { calls += 10; return nil })

		err := d.Publish(context.Background(), NewEvent(EventLeadsAssigned, 1, ActorFor(nil), nil))

		require.ErrorIs(t, err, first)
		require.Equal(t, 2, calls)
	})

	t.Run("a panicking handler becomes an error", func(t *testing.T) {
		d := NewInMemoryDispatcher()
		reached := false
		d.Subscribe(EventLeadsAssigned, func(context.Context, Event) error { panic("boom") })
		d.Subscribe(EventLeadsAssigned, func(context.Context, Event) error { reached = true; return nil })

		err := d.Publish(context.Background(), NewEvent(EventLeadsAssigned, 1, ActorFor(nil), nil))

		require.ErrorContains(t, err, "boom")
		require.True(t, reached)
	})

	t.Run("no listeners is fine", func(t *testing.T) {
		d := NewInMemoryDispatcher()
		require.NoError(t, d.Publish(context.Background(), NewEvent(EventRoundRobinReseeded, 1, ActorFor(nil), nil)))
	})
}

func TestActorFor(t *testing.T) {
	require.Equal(t, Actor{Type: ActorSystem}, ActorFor(nil))

	staff := int64(9)
	actor := ActorFor(&staff)
	require.Equal(t, ActorStaff, actor.Type)
	require.Equal(t, int64(9), *actor.StaffID)
}

func TestNATSPublisher(t *testing.T) {
	t.Run("publishes on the company scoped subject", func(t *testing.T) {
		nc := startEmbeddedNATS(t)
		sub, err := nc.SubscribeSync("crm.42.leads.assigned")
		require.NoError(t, err)
		require.NoError(t, nc.Flush())

		dispatcher := NewInMemoryDispatcher()
		publisher := NewNATSPublisher(nc, "crm", nil)
		publisher.Attach(dispatcher)

		event := NewEvent(EventLeadsAssigned, 42, ActorFor(nil), LeadsAssignedPayload{
			Strategy: domain.StrategyRoundRobin,
			StaffID:  3,
			LeadIDs:  []int64{100},
		})
		require.NoError(t, dispatcher.Publish(context.Background(), event))

		msg, err := sub.NextMsg(2 * time.Second)
		require.NoError(t, err)
		var decoded struct {
			ID        string    `json:"id"`
			Type      EventType `json:"type"`
			CompanyID int64     `json:"company_id"`
			Payload   LeadsAssignedPayload
		}
		require.NoError(t, json.Unmarshal(msg.Data, &decoded))
		require.Equal(t, event.ID, decoded.ID)
		require.Equal(t, EventLeadsAssigned, decoded.Type)
		require.Equal(t, int64(42), decoded.CompanyID)
		require.Equal(t, []int64{100}, decoded.Payload.LeadIDs)
	})

	t.Run("subjects per event type", func(t *testing.T) {
		p := NewNATSPublisher(nil, "crm", nil)
		require.Equal(t, "crm.7.distribution.settings.updated", p.SubjectFor(Event{Type: EventSettingsUpdated, CompanyID: 7}))
		require.Equal(t, "crm.7.distribution.round_robin.reseeded", p.SubjectFor(Event{Type: EventRoundRobinReseeded, CompanyID: 7}))
	})

	t.Run("without a connection it is inert", func(t *testing.T) {
		dispatcher := NewInMemoryDispatcher()
		p := NewNATSPublisher(nil, "crm", nil)
		p.Attach(dispatcher)
		require.NoError(t, p.Forward(context.Background(), Event{}))
		require.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventLeadsAssigned}))
	})
}
