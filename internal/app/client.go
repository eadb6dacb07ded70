package app

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"stoplayer.opentransportdata.swiss/internal/metrics"
)

// latencyTrackingRoundTripper wraps another RoundTripper to record the
// latency of every outgoing request as a Prometheus histogram, labeled
// by URL, method and status.
type latencyTrackingRoundTripper struct {
	next http.RoundTripper
}

func (rt *latencyTrackingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := rt.next.RoundTrip(req)
	duration := time.Since(start).Seconds()

	status := "error"
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}

	// Scheme + host + path only; query strings would explode label
	// cardinality (every viewport is a distinct where clause).
	safeURL := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path

	metrics.OutgoingLatency.WithLabelValues(
		safeURL,
		req.Method,
		status,
	).Observe(duration)

	return resp, err
}

// NewPooledClient returns an HTTP client tuned for polling the same
// few APIs repeatedly: generous keep-alive pooling so the dataset and
// venue hosts stay connected between sweeps, short dial and handshake
// timeouts so a dead host fails fast, and a 10 second cap on the whole
// request. The transport is instrumented with the latency histogram.
func NewPooledClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	instrumentedTransport := &latencyTrackingRoundTripper{next: transport}

	client := &http.Client{
		Transport: instrumentedTransport,
		Timeout:   10 * time.Second,
	}
	return client
}
