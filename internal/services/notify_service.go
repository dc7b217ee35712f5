package services

import (
	"fmt"
	"log/slog"
	"time"

	pubnub "github.com/pubnub/go"

	"concert-tix/utils"
)

// NotifyService pushes order lifecycle events to the buyer's PubNub channel
// so the storefront can react without polling. Publishing is best effort;
// a failed publish never fails the order mutation that triggered it, and a
// circuit breaker stops hammering PubNub when it is down.
type NotifyService struct {
	PubNub  *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewNotifyService(pn *pubnub.PubNub) *NotifyService {
	return &NotifyService{
		PubNub:  pn,
		breaker: utils.NewCircuitBreaker("pubnub"),
	}
}

// OrderStatusChanged publishes the new status to the user's channel.
func (s *NotifyService) OrderStatusChanged(userID, orderID, newStatus string) {
	if s == nil || s.PubNub == nil {
		return
	}

	channel := fmt.Sprintf("user-%s", userID)
	go func() {
		err := s.breaker.Execute(func() error {
			_, _, err := s.PubNub.Publish().
				Channel(channel).
				Message(map[string]interface{}{
					"type":      "order_status",
					"order_id":  orderID,
					"status":    newStatus,
					"timestamp": time.Now().Unix(),
				}).
				Execute()
			return err
		})
		if err != nil {
			slog.Error("order notification publish failed",
				"orderId", orderID,
				"channel", channel,
				"error", err,
			)
		}
	}()
}
