package app

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"

	"stoplayer.opentransportdata.swiss/internal/middleware"
)

// Routes builds the daemon's HTTP handler:
//
//   - GET /v1/healthcheck: JSON snapshot of availability and readiness.
//   - GET /metrics: Prometheus exposition, served through the cached
//     handler so frequent scrapes don't re-gather everything.
//
// The router is wrapped with Sentry panic capture and the standard
// security headers.
func (app *Application) Routes(ctx context.Context) http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)
	router.Handler(http.MethodGet, "/metrics", middleware.NewCachedPromHandler(ctx, prometheus.DefaultGatherer, 10*time.Second))

	handler := middleware.SentryMiddleware(router)
	return middleware.SecurityHeaders(handler)
}
