package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/m-lab/speedtest-statuspage/internal/query"
	"github.com/m-lab/speedtest-statuspage/pkg/speedtest/model"
	"github.com/m-lab/speedtest-statuspage/pkg/speedtest/spec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "speedtest_requests_total",
		Help: "Number of requests for the latest result, by status code.",
	},
	[]string{"code"},
)

// Querier returns the latest result or query.ErrNotReady.
type Querier interface {
	Current() (model.Result, error)
}

// Handler serves the latest speedtest result over HTTP.
type Handler struct {
	query Querier
}

// New returns a Handler serving results from q.
func New(q Querier) *Handler {
	return &Handler{
		query: q,
	}
}

// Speed writes the latest result as JSON. Possible status codes are:
// - 200 with the result
// - 405 if the method is not GET or HEAD
// - 503 if no result is available yet
// - 500 if the result cannot be marshalled
func (h *Handler) Speed(rw http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		rw.Header().Set("Allow", "GET, HEAD")
		writeStatus(rw, http.StatusMethodNotAllowed)
		return
	}

	result, err := h.query.Current()
	if errors.Is(err, query.ErrNotReady) {
		// Expected until the first measurement completes.
		log.Debug("No result available yet", "source", req.RemoteAddr)
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		writeStatus(rw, http.StatusServiceUnavailable)
		rw.Write([]byte(spec.NotReadyMessage))
		return
	}
	if err != nil {
		log.Error("Failed to read result", "error", err)
		writeStatus(rw, http.StatusInternalServerError)
		return
	}

	b, err := json.Marshal(result)
	if err != nil {
		log.Error("Failed to marshal result", "error", err)
		writeStatus(rw, http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	writeStatus(rw, http.StatusOK)
	_, err = rw.Write(b)
	if err != nil {
		log.Debug("Failed to write response", "source", req.RemoteAddr, "error", err)
	}
}

func writeStatus(rw http.ResponseWriter, code int) {
	requestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	rw.WriteHeader(code)
}
