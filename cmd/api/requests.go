package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"shamba/internal/params"
	"shamba/internal/store"
)

type CreateRequestPayload struct {
	Produce      string     `json:"produce" validate:"required,max=100"`
	Quantity     float64    `json:"quantity" validate:"required,gt=0"`
	Unit         string     `json:"unit" validate:"required,max=20"`
	PricePerUnit float64    `json:"price_per_unit" validate:"required,gt=0"`
	Deadline     *time.Time `json:"deadline,omitempty"`
}

// createRequestHandler publishes a buyer's standing ask for produce. The
// request opens ACTIVE and carries a generated reference code.
func (app *application) createRequestHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateRequestPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if payload.Deadline != nil && payload.Deadline.Before(time.Now()) {
		app.badRequestResponse(w, r, fmt.Errorf("deadline must be in the future"))
		return
	}

	ref, err := app.refcodes.Request()
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	p := getPrincipalFromContext(r)

	req := &store.ProduceRequest{
		Ref:          ref,
		BuyerID:      p.ActorID,
		Produce:      payload.Produce,
		Quantity:     payload.Quantity,
		Unit:         payload.Unit,
		PricePerUnit: payload.PricePerUnit,
		Deadline:     payload.Deadline,
	}

	if err := app.store.Requests.Create(r.Context(), req); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, req); err != nil {
		app.internalServerError(w, r, err)
	}
}

type requestListResponse struct {
	Requests   []store.ProduceRequest `json:"requests"`
	Pagination params.Pagination      `json:"pagination"`
}

// listRequestsHandler returns the open marketplace: every ACTIVE request,
// newest first by default.
func (app *application) listRequestsHandler(w http.ResponseWriter, r *http.Request) {
	p := params.ParsePagination(r.URL.Query())

	requests, total, err := app.store.Requests.ListActive(r.Context(), p)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	resp := requestListResponse{Requests: requests, Pagination: p}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// listBuyerRequestsHandler returns the caller's own requests in any status.
func (app *application) listBuyerRequestsHandler(w http.ResponseWriter, r *http.Request) {
	pag := params.ParsePagination(r.URL.Query())
	p := getPrincipalFromContext(r)

	requests, total, err := app.store.Requests.ListByBuyer(r.Context(), p.ActorID, pag)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	pag.ComputeMeta(total)

	resp := requestListResponse{Requests: requests, Pagination: pag}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID, err := parseIDParam(r, "requestID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	req, err := app.store.Requests.GetByID(r.Context(), requestID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, req); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) cancelRequestHandler(w http.ResponseWriter, r *http.Request) {
	app.transitionRequest(w, r, app.store.Requests.Cancel)
}

func (app *application) closeRequestHandler(w http.ResponseWriter, r *http.Request) {
	app.transitionRequest(w, r, app.store.Requests.Close)
}

// transitionRequest guards a buyer-only request transition: the caller must
// own the request, and the request must still be ACTIVE.
func (app *application) transitionRequest(w http.ResponseWriter, r *http.Request, transition func(ctx context.Context, requestID int64) error) {
	requestID, err := parseIDParam(r, "requestID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	req, err := app.store.Requests.GetByID(ctx, requestID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	p := getPrincipalFromContext(r)
	if req.BuyerID != p.ActorID {
		app.forbiddenResponse(w, r)
		return
	}

	if err := transition(ctx, requestID); err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidTransition):
			app.invalidTransitionResponse(w, r, err)
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	req, err = app.store.Requests.GetByID(ctx, requestID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, req); err != nil {
		app.internalServerError(w, r, err)
	}
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}
