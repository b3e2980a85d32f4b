package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/lead-distribution/internal/config"
	"github.com/spec-kit/lead-distribution/internal/domain"
	"github.com/spec-kit/lead-distribution/internal/events"
)

func TestNotificationService_LeadsAssigned(t *testing.T) {
	t.Run("posts the event to the webhook", func(t *testing.T) {
		received := make(chan events.Event, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var e events.Event
			_ = json.NewDecoder(r.Body).Decode(&e)
			received <- e
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		dispatcher := events.NewInMemoryDispatcher()
		NewNotificationService(dispatcher, nil, config.NotificationConfig{WebhookURL: srv.URL}).RegisterHandlers()
		event := events.NewEvent(events.EventLeadsAssigned, 3, events.ActorFor(nil), events.LeadsAssignedPayload{
			Strategy: domain.StrategyAutomatic,
			StaffID:  1,
			LeadIDs:  []int64{5},
		})

		require.NoError(t, dispatcher.Publish(context.Background(), event))
		got := <-received
		require.Equal(t, event.ID, got.ID)
		require.Equal(t, int64(3), got.CompanyID)
	})

	t.Run("surfaces webhook rejections", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		dispatcher := events.NewInMemoryDispatcher()
		NewNotificationService(dispatcher, nil, config.NotificationConfig{WebhookURL: srv.URL}).RegisterHandlers()

		err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventLeadsAssigned, 3, events.ActorFor(nil),
			events.LeadsAssignedPayload{Strategy: domain.StrategyManual, StaffID: 1, LeadIDs: []int64{5}}))
		require.Error(t, err)
	})

	t.Run("no webhook configured", func(t *testing.T) {
		dispatcher := events.NewInMemoryDispatcher()
		NewNotificationService(dispatcher, nil, config.NotificationConfig{}).RegisterHandlers()

		require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventLeadsAssigned, 3, events.ActorFor(nil),
			events.LeadsAssignedPayload{Strategy: domain.StrategyManual, StaffID: 1, LeadIDs: []int64{5}})))
	})

	t.Run("rejects a foreign payload", func(t *testing.T) {
		dispatcher := events.NewInMemoryDispatcher()
		NewNotificationService(dispatcher, nil, config.NotificationConfig{}).RegisterHandlers()

		require.Error(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventLeadsAssigned, 3, events.ActorFor(nil), "oops")))
	})
}
