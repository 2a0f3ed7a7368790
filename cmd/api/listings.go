package main

import (
	"errors"
	"net/http"
	"time"

	"shamba/internal/params"
	"shamba/internal/store"
)

type CreateListingPayload struct {
	Produce       string     `json:"produce" validate:"required,max=100"`
	Quantity      float64    `json:"quantity" validate:"required,gt=0"`
	Unit          string     `json:"unit" validate:"required,max=20"`
	PricePerUnit  float64    `json:"price_per_unit" validate:"required,gt=0"`
	County        string     `json:"county" validate:"required,max=50"`
	AvailableFrom *time.Time `json:"available_from,omitempty"`
}

// createListingHandler publishes a farmer's offer of produce for sale.
func (app *application) createListingHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateListingPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p := getPrincipalFromContext(r)

	listing := &store.ProduceListing{
		FarmerID:      p.ActorID,
		Produce:       payload.Produce,
		Quantity:      payload.Quantity,
		Unit:          payload.Unit,
		PricePerUnit:  payload.PricePerUnit,
		County:        payload.County,
		AvailableFrom: payload.AvailableFrom,
	}

	if err := app.store.Listings.Create(r.Context(), listing); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, listing); err != nil {
		app.internalServerError(w, r, err)
	}
}

type listingListResponse struct {
	Listings   []store.ProduceListing `json:"listings"`
	Pagination params.Pagination      `json:"pagination"`
}

// listListingsHandler browses open listings, optionally narrowed by produce
// name or county.
func (app *application) listListingsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := params.ParsePagination(q)
	filter := store.ListingFilter{
		Produce: q.Get("produce"),
		County:  q.Get("county"),
	}

	listings, total, err := app.store.Listings.List(r.Context(), filter, p)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	resp := listingListResponse{Listings: listings, Pagination: p}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getListingHandler(w http.ResponseWriter, r *http.Request) {
	listingID, err := parseIDParam(r, "listingID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	listing, err := app.store.Listings.GetByID(r.Context(), listingID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, listing); err != nil {
		app.internalServerError(w, r, err)
	}
}

// closeListingHandler takes the caller's own listing off the market. The
// farmer scope lives in the store query, so closing someone else's listing
// reads as not found.
func (app *application) closeListingHandler(w http.ResponseWriter, r *http.Request) {
	listingID, err := parseIDParam(r, "listingID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p := getPrincipalFromContext(r)

	if err := app.store.Listings.Close(r.Context(), listingID, p.ActorID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		case errors.Is(err, store.ErrInvalidTransition):
			app.invalidTransitionResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "listing closed"); err != nil {
		app.internalServerError(w, r, err)
	}
}

// uploadListingPhotoHandler accepts a multipart photo, pushes it to
// Cloudinary and appends the URL to the listing.
func (app *application) uploadListingPhotoHandler(w http.ResponseWriter, r *http.Request) {
	listingID, err := parseIDParam(r, "listingID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	listing, err := app.store.Listings.GetByID(ctx, listingID)
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
	if listing.FarmerID != p.ActorID {
		app.forbiddenResponse(w, r)
		return
	}

	// 10 MB cap per upload.
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	defer file.Close()

	url, err := app.uploadListingPhoto(file, listingID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Listings.AddPhotoURL(ctx, listingID, url); err != nil {
		if delErr := app.deletePhotoFromCloudinary(url); delErr != nil {
			app.logger.Errorw("cloudinary cleanup failed", "url", url, "error", delErr)
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, map[string]string{"url": url}); err != nil {
		app.internalServerError(w, r, err)
	}
}

type DeleteListingPhotoPayload struct {
	URL string `json:"url" validate:"required,url"`
}

func (app *application) deleteListingPhotoHandler(w http.ResponseWriter, r *http.Request) {
	listingID, err := parseIDParam(r, "listingID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload DeleteListingPhotoPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	listing, err := app.store.Listings.GetByID(ctx, listingID)
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
	if listing.FarmerID != p.ActorID {
		app.forbiddenResponse(w, r)
		return
	}

	if err := app.store.Listings.RemovePhotoURL(ctx, listingID, payload.URL); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.deletePhotoFromCloudinary(payload.URL); err != nil {
		app.logger.Errorw("cloudinary delete failed", "url", payload.URL, "error", err)
	}

	if err := app.jsonResponse(w, http.StatusOK, "photo removed"); err != nil {
		app.internalServerError(w, r, err)
	}
}
