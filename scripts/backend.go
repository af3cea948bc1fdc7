// Backend is a fake school API used to exercise the gateway by hand. It
// serves /api/health, /api/auth/login and a small in-memory course list.
//
// Usage:
//
//	go run backend.go -port 8000
//	go run backend.go -port 8001 -fail-rate 0.5
//
// Run two instances and stop one to watch the gateway redetect.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type Course struct {
	UUID        string `json:"uuid"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type createCourseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type courseStore struct {
	mutex   sync.Mutex
	courses []Course
}

func (s *courseStore) add(c Course) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.courses = append(s.courses, c)
}

func (s *courseStore) list() []Course {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]Course(nil), s.courses...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func detail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func main() {
	port := flag.Int("port", 8000, "port to listen on")
	failRate := flag.Float64("fail-rate", 0, "fraction of API calls answered with 500")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil)).With(slog.Int("port", *port))
	store := &courseStore{}
	tokens := sync.Map{}

	authorized := func(r *http.Request) bool {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			return false
		}
		_, found := tokens.Load(token)
		return found
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			detail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
			return
		}
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
			detail(w, http.StatusUnprocessableEntity, "username and password are required")
			return
		}
		access, refresh := uuid.NewString(), uuid.NewString()
		tokens.Store(access, req.Username)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  access,
			"refresh_token": refresh,
			"user":          map[string]string{"username": req.Username},
		})
	})

	mux.HandleFunc("/api/courses/", func(w http.ResponseWriter, r *http.Request) {
		log.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", r.Header.Get("X-Request-ID")))

		if *failRate > 0 && rand.Float64() < *failRate {
			detail(w, http.StatusInternalServerError, "simulated failure")
			return
		}
		if !authorized(r) {
			detail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, store.list())
		case http.MethodPost:
			var req createCourseRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				detail(w, http.StatusUnprocessableEntity, "invalid json")
				return
			}
			if req.Title == "" {
				detail(w, http.StatusUnprocessableEntity, "title is required")
				return
			}
			course := Course{UUID: uuid.NewString(), Title: req.Title, Description: req.Description}
			store.add(course)
			writeJSON(w, http.StatusCreated, course)
		default:
			detail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		}
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Info("starting backend", slog.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("server failed", slog.Any("err", err))
		os.Exit(1)
	}
}
