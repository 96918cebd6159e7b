// Package api exposes the pipeline, profiles and history over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/abhisek/querywise/internal/cognitive"
	"github.com/abhisek/querywise/internal/pipeline"
	"github.com/abhisek/querywise/internal/profile"
	"github.com/abhisek/querywise/internal/store"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Runner processes one question.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
}

// History reads recorded interactions.
type History interface {
	QueryInteractions(ctx context.Context, opts store.QueryOpts) ([]store.InteractionEvent, error)
	InteractionStatsFor(ctx context.Context, userID string) (store.InteractionStats, error)
}

// Deps holds the collaborators of both transports. History is optional.
type Deps struct {
	Pipeline Runner
	Profiles *profile.Store
	History  History
	Logger   *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	UserID        string `json:"user_id"`
	InteractionID string `json:"interaction_id,omitempty"`
	cognitive.Feedback
}

// LevelRequest is the body of PUT /profiles/{id}/level.
type LevelRequest struct {
	Expertise int `json:"expertise_level"`
}

// NewHandler returns the REST API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(deps.logger()))

	r.Get("/healthz", handleHealth)
	r.Post("/ask", handleAsk(deps))
	r.Post("/feedback", handleFeedback(deps))
	r.Get("/history", handleHistory(deps))
	r.Route("/profiles", func(r chi.Router) {
		r.Get("/", handleListProfiles(deps))
		r.Get("/{id}", handleGetProfile(deps))
		r.Put("/{id}/level", handleSetLevel(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.Request
		if !decode(w, r, &req) {
			return
		}

		out, err := deps.Pipeline.Run(r.Context(), req)
		if err != nil {
			httpError(w, askStatus(err), "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// askStatus maps pipeline errors to HTTP status codes.
func askStatus(err error) int {
	switch {
	case errors.Is(err, profile.ErrEmptyUserID), errors.Is(err, pipeline.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrParseFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func handleFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FeedbackRequest
		if !decode(w, r, &req) {
			return
		}
		eval := cognitive.EvaluateFeedback(req.Feedback)
		deps.logger().Info("feedback evaluated",
			zap.String("user_id", req.UserID),
			zap.String("interaction_id", req.InteractionID),
			zap.String("result", string(eval.Result)),
			zap.Float64("effectiveness", eval.Effectiveness),
		)
		writeJSON(w, http.StatusOK, eval)
	}
}

func handleHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.History == nil {
			httpError(w, http.StatusNotImplemented, "history is not recorded")
			return
		}
		opts := store.QueryOpts{UserID: r.URL.Query().Get("user"), Limit: 20}
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid limit %q", v)
				return
			}
			opts.Limit = min(n, 500)
		}

		events, err := deps.History.QueryInteractions(r.Context(), opts)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "query history: %v", err)
			return
		}
		stats, err := deps.History.InteractionStatsFor(r.Context(), opts.UserID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "history stats: %v", err)
			return
		}
		if events == nil {
			events = []store.InteractionEvent{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"events": events,
			"stats":  stats,
		})
	}
}

func handleListProfiles(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profiles, err := deps.Profiles.List(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "list profiles: %v", err)
			return
		}
		if profiles == nil {
			profiles = []*profile.Profile{}
		}
		writeJSON(w, http.StatusOK, profiles)
	}
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profiles.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "get profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleSetLevel(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LevelRequest
		if !decode(w, r, &req) {
			return
		}
		p, err := deps.Profiles.Seed(r.Context(), chi.URLParam(r, "id"), req.Expertise)
		if err != nil {
			httpError(w, http.StatusBadRequest, "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"code":    code,
		},
	})
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
