package report

import (
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

// SetupSentry initializes the global Sentry client from SENTRY_DSN.
// An empty DSN leaves reporting as a no-op, which is what local
// development wants.
func SetupSentry() {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              os.Getenv("SENTRY_DSN"),
		EnableTracing:    true,
		TracesSampleRate: 1.0,
	}); err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	sentry.CaptureMessage("stoplayerd started")
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
