// Package relay is a pass-through proxy in front of the detection
// service, so the browser surface can reach it through the agent's own
// origin. Method, headers and body are forwarded verbatim; only the
// Host header is stripped so the upstream sees its own.
package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Relay struct {
	upstreamURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

func New(upstreamURL string, logger *slog.Logger) *Relay {
	return &Relay{
		upstreamURL: strings.TrimRight(upstreamURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		logger: logger,
	}
}

func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	url := rl.upstreamURL + r.URL.Path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, url, r.Body)
	if err != nil {
		rl.fail(w, err)
		return
	}

	for key, values := range r.Header {
		if strings.EqualFold(key, "Host") {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := rl.httpClient.Do(req)
	if err != nil {
		rl.fail(w, err)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func (rl *Relay) fail(w http.ResponseWriter, err error) {
	if rl.logger != nil {
		rl.logger.Error("relay failure", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
