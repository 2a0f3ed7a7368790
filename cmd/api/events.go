package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"shamba/internal/store"
)

// requestEventsHandler streams order workflow events for one produce request
// over Server-Sent Events. The stream stays open until the client
// disconnects, the idle timeout fires, a newer subscriber displaces this
// one, or the server shuts down.
func (app *application) requestEventsHandler(w http.ResponseWriter, r *http.Request) {
	requestID, err := parseIDParam(r, "requestID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	if _, err := app.store.Requests.GetByID(ctx, requestID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		app.internalServerError(w, r, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := app.broker.Subscribe(requestID)
	defer sub.Close()

	heartbeat := time.NewTicker(app.broker.Heartbeat)
	defer heartbeat.Stop()

	idle := time.NewTimer(app.broker.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-idle.C:
			app.logger.Infow("event stream idle timeout", "request_id", requestID)
			return

		case <-heartbeat.C:
			// SSE comment line, keeps proxies from reaping the connection.
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case ev, open := <-sub.C:
			if !open {
				// Displaced by a newer subscriber or broker shutdown.
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Payload); err != nil {
				return
			}
			flusher.Flush()

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(app.broker.IdleTimeout)
		}
	}
}
