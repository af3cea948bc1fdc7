package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/campus-gateway/pkg/apiclient"
)

// maxBodyBytes caps the request bodies the gateway will forward.
const maxBodyBytes = 10 << 20

// relayedHeaders are copied from the incoming request onto the forwarded one.
var relayedHeaders = []string{"Authorization", apiclient.RequestIDHeader, "Accept-Language"}

// Forwarder sends one logical request to the backend.
type Forwarder interface {
	Send(ctx context.Context, r *apiclient.Request) (json.RawMessage, error)
}

type GatewayHandler struct {
	logger *slog.Logger
	client Forwarder
	prefix string
}

type errorBody struct {
	Detail string `json:"detail"`
}

// NewGatewayHandler forwards every request under prefix, with the prefix
// removed, to the client.
func NewGatewayHandler(logger *slog.Logger, client Forwarder, prefix string) *GatewayHandler {
	return &GatewayHandler{
		logger: logger,
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
	}
}

func (h *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)

	path := strings.TrimPrefix(r.URL.EscapedPath(), h.prefix)
	if path == "" {
		path = "/"
	}
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	h.logger.Debug("Received request",
		slog.String("from", clientIP),
		slog.String("method", r.Method),
		slog.String("path", path))

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	header := http.Header{}
	for _, key := range relayedHeaders {
		if v := r.Header.Get(key); v != "" {
			header.Set(key, v)
		}
	}

	start := time.Now()
	data, err := h.client.Send(r.Context(), &apiclient.Request{
		Method: r.Method,
		Path:   path,
		Body:   body,
		Header: header,
	})
	if err != nil {
		h.writeClientError(w, r, path, err)
		return
	}

	h.logger.Debug("Forwarded request",
		slog.String("method", r.Method),
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))

	if len(data) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *GatewayHandler) writeClientError(w http.ResponseWriter, r *http.Request, path string, err error) {
	var apiErr *apiclient.APIError
	var netErr *apiclient.NetworkError

	switch {
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// Client went away; nothing to write to.
	case errors.As(err, &apiErr):
		writeAPIError(w, apiErr)
	case errors.As(err, &netErr):
		status := http.StatusBadGateway
		if netErr.Timeout() {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, "backend unreachable: "+netErr.Err.Error())
	case errors.Is(err, apiclient.ErrNoReachableEndpoint):
		writeError(w, http.StatusBadGateway, "no reachable backend endpoint")
	case errors.Is(err, apiclient.ErrInvalidResponse):
		writeError(w, http.StatusBadGateway, "backend returned an invalid response")
	default:
		h.logger.Error("Forwarding failed",
			slog.String("method", r.Method),
			slog.String("path", path),
			slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "internal gateway error")
	}
}

// readBody returns the request body as raw JSON, or nil when there is none.
func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.New("could not read request body")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, errors.New("request body must be JSON")
	}
	return json.RawMessage(data), nil
}

// writeAPIError relays the backend's JSON error body as is, so validation
// lists and extra fields reach the caller unchanged.
func writeAPIError(w http.ResponseWriter, apiErr *apiclient.APIError) {
	if len(apiErr.Body) == 0 {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_, _ = w.Write(apiErr.Body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
