package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/9ssi7/exponent"
)

type OrderEvent string

const (
	OrderCreated   OrderEvent = "CREATED"
	OrderAccepted  OrderEvent = "ACCEPTED"
	OrderSupplied  OrderEvent = "SUPPLIED"
	OrderPaid      OrderEvent = "PAID"
	OrderCancelled OrderEvent = "CANCELLED"
)

// TokenSource is the slice of storage the notifier needs.
type TokenSource interface {
	GetTokensByUserIDs(ctx context.Context, userIDs []int64) (map[int64][]string, error)
}

// SendOrderNotification pushes an order transition to every registered device
// of the target user.
func SendOrderNotification(ctx context.Context, push PushSender, tokens TokenSource, userID int64, event OrderEvent, orderRef string) error {
	tokensMap, err := tokens.GetTokensByUserIDs(ctx, []int64{userID})
	if err != nil {
		return err
	}
	deviceTokens := tokensMap[userID]
	if len(deviceTokens) == 0 {
		return errors.New("no push tokens")
	}

	var title, body string
	switch event {
	case OrderCreated:
		title = "New Supply Order"
		body = fmt.Sprintf("A farmer pledged supply against your request (order %s)", orderRef)
	case OrderAccepted:
		title = "Order Accepted"
		body = fmt.Sprintf("Your order %s has been booked for supply", orderRef)
	case OrderSupplied:
		title = "Supply Confirmed"
		body = fmt.Sprintf("Order %s has been supplied", orderRef)
	case OrderPaid:
		title = "Payment Confirmed"
		body = fmt.Sprintf("Order %s has been paid", orderRef)
	case OrderCancelled:
		title = "Order Cancelled"
		body = fmt.Sprintf("Order %s has been cancelled", orderRef)
	default:
		title = "Order Update"
		body = fmt.Sprintf("Order %s has an update", orderRef)
	}

	msgs := make([]*exponent.Message, 0, len(deviceTokens))
	for _, t := range deviceTokens {
		token := exponent.Token(t)
		msgs = append(msgs, &exponent.Message{
			To:    []*exponent.Token{&token},
			Title: title,
			Body:  body,
			Data: map[string]string{
				"type":     "order",
				"event":    string(event),
				"orderRef": orderRef,
				"screen":   "orders-screen",
			},
		})
	}

	_, err = push.Publish(ctx, msgs)
	return err
}
