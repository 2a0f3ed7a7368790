package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"shamba/internal/compliance"
	"shamba/internal/events"
	"shamba/internal/ledger"
	"shamba/internal/mailer"
	"shamba/internal/notifications"
	"shamba/internal/store"
)

type CreateOrderPayload struct {
	Quantity float64 `json:"quantity" validate:"required,gt=0"`
}

// createOrderHandler records a farmer's pledge against an open request. The
// ACTIVE check happens inside the insert, so an order can never land on a
// request that closed between read and write.
func (app *application) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	requestID, err := parseIDParam(r, "requestID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload CreateOrderPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ref, err := app.refcodes.Order()
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	p := getPrincipalFromContext(r)

	order := &store.RequestOrder{
		Ref:       ref,
		RequestID: requestID,
		FarmerID:  p.ActorID,
		Quantity:  payload.Quantity,
	}

	ctx := r.Context()

	if err := app.store.Orders.Create(ctx, order); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		case errors.Is(err, store.ErrRequestNotOpen):
			app.invalidTransitionResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.publishOrderEvent(order, events.OrderAddedToRequest)

	if req, err := app.store.Requests.GetByID(ctx, requestID); err == nil {
		app.notifyOrderParty(ctx, store.RoleBuyer, req.BuyerID, notifications.OrderCreated, order.Ref)
	}

	if err := app.jsonResponse(w, http.StatusCreated, order); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseIDParam(r, "orderID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	order, err := app.store.Orders.GetByID(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, order); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) listRequestOrdersHandler(w http.ResponseWriter, r *http.Request) {
	requestID, err := parseIDParam(r, "requestID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	orders, err := app.store.Orders.ListByRequest(r.Context(), requestID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, orders); err != nil {
		app.internalServerError(w, r, err)
	}
}

// acceptOrderHandler books an order for supply. Only the buyer who owns the
// parent request may accept.
func (app *application) acceptOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, ok := app.guardedTransition(w, r, app.store.Orders.Accept, app.requestOwnerOnly)
	if !ok {
		return
	}

	ctx := r.Context()
	app.publishOrderEvent(order, events.OrderAccepted)
	app.notifyOrderParty(ctx, store.RoleFarmer, order.FarmerID, notifications.OrderAccepted, order.Ref)

	if err := app.jsonResponse(w, http.StatusOK, order); err != nil {
		app.internalServerError(w, r, err)
	}
}

// confirmSupplyHandler marks the produce delivered. Only the pledging farmer
// may confirm, and confirmation files the compliance paperwork for the
// shipment in the background.
func (app *application) confirmSupplyHandler(w http.ResponseWriter, r *http.Request) {
	order, ok := app.guardedTransition(w, r, app.store.Orders.ConfirmSupply, app.orderFarmerOnly)
	if !ok {
		return
	}

	ctx := r.Context()
	app.publishOrderEvent(order, events.SupplyConfirmed)

	if req, err := app.store.Requests.GetByID(ctx, order.RequestID); err == nil {
		app.notifyOrderParty(ctx, store.RoleBuyer, req.BuyerID, notifications.OrderSupplied, order.Ref)
	}

	app.compliance.Enqueue(compliance.Job{
		OrderID:  order.ID,
		OrderRef: order.Ref,
		Kind:     compliance.KindEUDR,
	})

	if err := app.jsonResponse(w, http.StatusOK, order); err != nil {
		app.internalServerError(w, r, err)
	}
}

// confirmPaymentHandler settles the order. Only the buyer may confirm; the
// settled milestone is anchored on the ledger and a receipt is emailed to
// the farmer.
func (app *application) confirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	order, ok := app.guardedTransition(w, r, app.store.Orders.ConfirmPayment, app.requestOwnerOnly)
	if !ok {
		return
	}

	ctx := r.Context()
	app.publishOrderEvent(order, events.PaymentConfirmed)
	app.notifyOrderParty(ctx, store.RoleFarmer, order.FarmerID, notifications.OrderPaid, order.Ref)

	app.anchorer.Enqueue(ledger.Job{
		OrderID:   order.ID,
		OrderRef:  order.Ref,
		Milestone: store.OrderSuppliedAndPaid,
	})

	app.sendOrderReceipt(ctx, order)

	if err := app.jsonResponse(w, http.StatusOK, order); err != nil {
		app.internalServerError(w, r, err)
	}
}

// cancelOrderHandler withdraws an order. Either side of the deal may cancel
// any time before settlement.
func (app *application) cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, ok := app.guardedTransition(w, r, app.store.Orders.Cancel, app.eitherPartyOnly)
	if !ok {
		return
	}

	ctx := r.Context()
	app.publishOrderEvent(order, events.OrderCancelled)

	// Notify the side that did not cancel.
	p := getPrincipalFromContext(r)
	if p.ActorID == order.FarmerID && p.Role == store.RoleFarmer {
		if req, err := app.store.Requests.GetByID(ctx, order.RequestID); err == nil {
			app.notifyOrderParty(ctx, store.RoleBuyer, req.BuyerID, notifications.OrderCancelled, order.Ref)
		}
	} else {
		app.notifyOrderParty(ctx, store.RoleFarmer, order.FarmerID, notifications.OrderCancelled, order.Ref)
	}

	if err := app.jsonResponse(w, http.StatusOK, order); err != nil {
		app.internalServerError(w, r, err)
	}
}

type orderLedgerResponse struct {
	Ledger     []store.LedgerRecord       `json:"ledger"`
	Compliance []store.ComplianceDocument `json:"compliance"`
}

// listOrderLedgerHandler returns the order's audit trail: anchored ledger
// milestones plus filed compliance documents.
func (app *application) listOrderLedgerHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseIDParam(r, "orderID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	records, err := app.store.Ledger.ListByOrder(ctx, orderID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	docs, err := app.store.Compliance.ListByOrder(ctx, orderID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	resp := orderLedgerResponse{Ledger: records, Compliance: docs}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

type orderGuard func(ctx context.Context, p *principal, order *store.RequestOrder) error

var errNotParty = errors.New("you are not a party to this order")

// guardedTransition loads the order, checks the caller is the right party,
// then applies the status-guarded transition. The transition itself is the
// linearization point: two racing confirms resolve inside the store, and the
// loser gets the invalid-transition response.
func (app *application) guardedTransition(w http.ResponseWriter, r *http.Request, transition func(ctx context.Context, orderID int64) (*store.RequestOrder, error), guard orderGuard) (*store.RequestOrder, bool) {
	orderID, err := parseIDParam(r, "orderID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return nil, false
	}

	ctx := r.Context()

	order, err := app.store.Orders.GetByID(ctx, orderID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return nil, false
	}

	p := getPrincipalFromContext(r)
	if err := guard(ctx, p, order); err != nil {
		if errors.Is(err, errNotParty) {
			app.forbiddenResponse(w, r)
		} else {
			app.internalServerError(w, r, err)
		}
		return nil, false
	}

	order, err = transition(ctx, orderID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidTransition):
			app.invalidTransitionResponse(w, r, err)
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return nil, false
	}

	return order, true
}

func (app *application) requestOwnerOnly(ctx context.Context, p *principal, order *store.RequestOrder) error {
	req, err := app.store.Requests.GetByID(ctx, order.RequestID)
	if err != nil {
		return err
	}
	if req.BuyerID != p.ActorID {
		return errNotParty
	}
	return nil
}

func (app *application) orderFarmerOnly(ctx context.Context, p *principal, order *store.RequestOrder) error {
	if order.FarmerID != p.ActorID {
		return errNotParty
	}
	return nil
}

func (app *application) eitherPartyOnly(ctx context.Context, p *principal, order *store.RequestOrder) error {
	if p.Role == store.RoleFarmer && order.FarmerID == p.ActorID {
		return nil
	}
	if p.Role == store.RoleBuyer {
		req, err := app.store.Requests.GetByID(ctx, order.RequestID)
		if err != nil {
			return err
		}
		if req.BuyerID == p.ActorID {
			return nil
		}
	}
	return errNotParty
}

// publishOrderEvent pushes the order's new state to everyone streaming the
// parent request. Serialization failure only costs the event, never the
// transition.
func (app *application) publishOrderEvent(order *store.RequestOrder, name string) {
	payload, err := json.Marshal(order)
	if err != nil {
		app.logger.Errorw("error serializing order event", "order", order.Ref, "error", err)
		return
	}
	app.broker.Publish(order.RequestID, name, string(payload))
}

// notifyOrderParty pushes an order transition to the devices of the user
// behind a role profile. Failures are logged, never surfaced: notification
// is best effort.
func (app *application) notifyOrderParty(ctx context.Context, role string, profileID int64, event notifications.OrderEvent, orderRef string) {
	userID, err := app.store.Profiles.UserIDByProfile(ctx, role, profileID)
	if err != nil {
		app.logger.Errorw("error resolving notification target", "role", role, "profile", profileID, "error", err)
		return
	}

	if err := notifications.SendOrderNotification(ctx, app.push, app.store.PushTokens, userID, event, orderRef); err != nil {
		app.logger.Errorw("error sending order notification", "user", userID, "error", err)
	}
}

// sendOrderReceipt emails a settlement receipt to the farmer. Best effort:
// the payment already stuck.
func (app *application) sendOrderReceipt(ctx context.Context, order *store.RequestOrder) {
	userID, err := app.store.Profiles.UserIDByProfile(ctx, store.RoleFarmer, order.FarmerID)
	if err != nil {
		app.logger.Errorw("error resolving receipt recipient", "order", order.Ref, "error", err)
		return
	}

	user, err := app.store.Users.GetByID(ctx, userID)
	if err != nil {
		app.logger.Errorw("error loading receipt recipient", "order", order.Ref, "error", err)
		return
	}

	req, err := app.store.Requests.GetByID(ctx, order.RequestID)
	if err != nil {
		app.logger.Errorw("error loading request for receipt", "order", order.Ref, "error", err)
		return
	}

	vars := struct {
		Username string
		OrderRef string
		Quantity float64
		Unit     string
		Produce  string
	}{
		Username: user.FirstName,
		OrderRef: order.Ref,
		Quantity: order.Quantity,
		Unit:     req.Unit,
		Produce:  req.Produce,
	}

	if _, err := app.mailer.Send(mailer.OrderReceiptTemplate, user.FirstName, user.Email, vars); err != nil {
		app.logger.Errorw("error sending order receipt", "order", order.Ref, "error", err)
	}
}
