package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
)

// Notifier fans a payload out to every device subscribed in a household.
// Subscriptions the push service reports as gone are deleted.
type Notifier struct {
	service *Service
	subs    *store.PushStore
	logger  *slog.Logger
}

func NewNotifier(svc *Service, subs *store.PushStore, logger *slog.Logger) *Notifier {
	return &Notifier{service: svc, subs: subs, logger: logger}
}

// NotifyHousehold sends payload to the household's devices and reports how
// many deliveries succeeded.
func (n *Notifier) NotifyHousehold(ctx context.Context, householdID string, payload Payload) (int, error) {
	subs, err := n.subs.ListByHousehold(householdID)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}
	return n.Deliver(ctx, subs, payload), nil
}

// Deliver sends payload to each subscription, returning the success count.
func (n *Notifier) Deliver(ctx context.Context, subs []model.PushSubscription, payload Payload) int {
	sent := 0
	for _, sub := range subs {
		err := n.service.Send(ctx, &sub, payload)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrExpired):
			if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				n.logger.Error("delete expired subscription", "id", sub.ID, "error", err)
			} else {
				n.logger.Info("expired subscription removed", "id", sub.ID, "user_id", sub.UserID)
			}
		default:
			n.logger.Error("send push", "id", sub.ID, "error", err)
		}
	}
	return sent
}
