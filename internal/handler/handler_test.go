package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/campus-gateway/internal/candidate"
	"github.com/angeloszaimis/campus-gateway/internal/discovery"
	"github.com/angeloszaimis/campus-gateway/internal/handler"
	"github.com/angeloszaimis/campus-gateway/internal/health"
	"github.com/angeloszaimis/campus-gateway/internal/probe"
	"github.com/angeloszaimis/campus-gateway/pkg/apiclient"
	"github.com/angeloszaimis/campus-gateway/pkg/logger"
)

type fakeForwarder struct {
	last *apiclient.Request
	data json.RawMessage
	err  error
}

func (f *fakeForwarder) Send(ctx context.Context, r *apiclient.Request) (json.RawMessage, error) {
	f.last = r
	return f.data, f.err
}

func decodeDetail(w *httptest.ResponseRecorder) string {
	var body struct {
		Detail string `json:"detail"`
	}
	Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
	return body.Detail
}

var _ = Describe("GatewayHandler", func() {
	var (
		fwd *fakeForwarder
		h   *handler.GatewayHandler
	)

	BeforeEach(func() {
		fwd = &fakeForwarder{data: json.RawMessage(`{"ok":true}`)}
		h = handler.NewGatewayHandler(logger.Discard(), fwd, "/api/")
	})

	It("should strip the prefix and keep the query string", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/students/?page=2&size=20", nil)
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"ok":true}`))
		Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))
		Expect(fwd.last.Method).To(Equal(http.MethodGet))
		Expect(fwd.last.Path).To(Equal("/students/?page=2&size=20"))
		Expect(fwd.last.Body).To(BeNil())
	})

	It("should forward JSON bodies and relay auth headers", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/grades/", strings.NewReader(`{"score":19}`))
		req.Header.Set("Authorization", "Bearer abc")
		req.Header.Set(apiclient.RequestIDHeader, "req-1")
		req.Header.Set("Cookie", "session=secret")
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(fwd.last.Body).To(Equal(json.RawMessage(`{"score":19}`)))
		Expect(fwd.last.Header.Get("Authorization")).To(Equal("Bearer abc"))
		Expect(fwd.last.Header.Get(apiclient.RequestIDHeader)).To(Equal("req-1"))
		Expect(fwd.last.Header.Get("Cookie")).To(BeEmpty())
	})

	It("should reject a body that is not JSON", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/grades/", strings.NewReader("score=19"))
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(fwd.last).To(BeNil())
	})

	It("should answer 204 for an empty response", func() {
		fwd.data = nil
		req := httptest.NewRequest(http.MethodDelete, "/api/students/3", nil)
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusNoContent))
	})

	It("should relay a JSON error body byte for byte", func() {
		body := `{"detail":[{"loc":["body","email"],"msg":"bad email","type":"value_error"}]}`
		fwd.err = &apiclient.APIError{
			Status:  http.StatusUnprocessableEntity,
			Message: "bad email",
			Body:    json.RawMessage(body),
		}
		req := httptest.NewRequest(http.MethodPost, "/api/students/", strings.NewReader(`{"email":"x"}`))
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
		Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))
		Expect(w.Body.String()).To(Equal(body))
	})

	It("should keep percent-encoded path segments", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/students/a%2Fb", nil)
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		Expect(fwd.last.Path).To(Equal("/students/a%2Fb"))
	})

	It("should write nothing when the caller has gone away", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		fwd.err = &apiclient.NetworkError{Endpoint: "http://localhost:8000/api", Err: context.Canceled}
		req := httptest.NewRequest(http.MethodGet, "/api/students/", nil).WithContext(ctx)
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		Expect(w.Body.Len()).To(BeZero())
		Expect(w.Header().Get("Content-Type")).To(BeEmpty())
	})

	DescribeTable("error mapping",
		func(err error, status int, detail string) {
			fwd.err = err
			req := httptest.NewRequest(http.MethodGet, "/api/students/", nil)
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(status))
			Expect(decodeDetail(w)).To(ContainSubstring(detail))
		},
		Entry("api error keeps its status",
			&apiclient.APIError{Status: http.StatusUnprocessableEntity, Message: "email is invalid"},
			http.StatusUnprocessableEntity, "email is invalid"),
		Entry("wrapped api error",
			fmt.Errorf("loading: %w", &apiclient.APIError{Status: http.StatusUnauthorized, Message: "Not authenticated"}),
			http.StatusUnauthorized, "Not authenticated"),
		Entry("network error",
			&apiclient.NetworkError{Endpoint: "http://localhost:8000/api", Err: errors.New("connection refused")},
			http.StatusBadGateway, "connection refused"),
		Entry("network timeout",
			&apiclient.NetworkError{Endpoint: "http://localhost:8000/api", Err: context.DeadlineExceeded},
			http.StatusGatewayTimeout, "backend unreachable"),
		Entry("no endpoint",
			fmt.Errorf("discovery: %w", apiclient.ErrNoReachableEndpoint),
			http.StatusBadGateway, "no reachable backend endpoint"),
		Entry("invalid response",
			apiclient.ErrInvalidResponse,
			http.StatusBadGateway, "invalid response"),
		Entry("anything else",
			errors.New("boom"),
			http.StatusInternalServerError, "internal gateway error"),
	)
})

var _ = Describe("GatewayHandler with a live backend", func() {
	var (
		backend  *httptest.Server
		gateway  *httptest.Server
		lastPath atomic.Value
	)

	BeforeEach(func() {
		backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/health" {
				w.WriteHeader(http.StatusOK)
				return
			}
			lastPath.Store(r.URL.EscapedPath())
			w.Header().Set("Content-Type", "application/json")
			if r.Method == http.MethodPost {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = io.WriteString(w, `{"detail":[{"loc":["body","email"],"msg":"bad email","type":"value_error"}]}`)
				return
			}
			_, _ = io.WriteString(w, `{"ok":true}`)
		}))

		registry, err := candidate.NewRegistry([]string{backend.URL + "/api"}, "")
		Expect(err).NotTo(HaveOccurred())
		log := logger.Discard()
		coord := discovery.NewCoordinator(registry, probe.NewProber(log), log, nil)
		client, err := apiclient.New(coord, health.NewTracker(3, time.Minute), apiclient.Logger(log))
		Expect(err).NotTo(HaveOccurred())

		gateway = httptest.NewServer(handler.NewGatewayHandler(log, client, "/api/"))
	})

	AfterEach(func() {
		gateway.Close()
		backend.Close()
	})

	It("should pass a validation error through unchanged", func() {
		resp, err := http.Post(gateway.URL+"/api/students/", "application/json", strings.NewReader(`{"email":"x"}`))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		body, _ := io.ReadAll(resp.Body)
		Expect(body).To(MatchJSON(`{"detail":[{"loc":["body","email"],"msg":"bad email","type":"value_error"}]}`))
	})

	It("should forward encoded segments to the backend as sent", func() {
		resp, err := http.Get(gateway.URL + "/api/students/a%2Fb")
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(lastPath.Load()).To(Equal("/api/students/a%2Fb"))
	})
})

type fakeDiscovery struct {
	status discovery.Status
}

func (f fakeDiscovery) Status() discovery.Status { return f.status }

var _ = Describe("StatusHandler", func() {
	It("should report discovery and health state", func() {
		tracker := health.NewTracker(3, 30*time.Second)
		tracker.ReportFailure()

		d := fakeDiscovery{status: discovery.Status{
			Resolved: "http://localhost:8000/api",
			Degraded: true,
			Candidates: []candidate.Status{
				{URL: "http://localhost:8000/api", Fallback: true},
			},
		}}
		h := handler.NewStatusHandler(d, tracker)

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

		Expect(w.Code).To(Equal(http.StatusOK))

		var body struct {
			Resolved   string `json:"resolved"`
			Degraded   bool   `json:"degraded"`
			Candidates []struct {
				URL      string `json:"url"`
				Fallback bool   `json:"fallback"`
			} `json:"candidates"`
			Health struct {
				Condition           string `json:"condition"`
				ConsecutiveFailures int    `json:"consecutive_failures"`
			} `json:"health"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Resolved).To(Equal("http://localhost:8000/api"))
		Expect(body.Degraded).To(BeTrue())
		Expect(body.Candidates).To(HaveLen(1))
		Expect(body.Candidates[0].Fallback).To(BeTrue())
		Expect(body.Health.ConsecutiveFailures).To(Equal(1))
		Expect(body.Health.Condition).To(Equal("DEGRADED"))
	})

	It("should only answer GET", func() {
		h := handler.NewStatusHandler(fakeDiscovery{}, health.NewTracker(3, time.Second))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/status", nil))
		Expect(w.Code).To(Equal(http.StatusMethodNotAllowed))
	})
})
