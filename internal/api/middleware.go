package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ocap-agent/internal/common/auth"
	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/common/logger"
	"ocap-agent/internal/common/metrics"
	"ocap-agent/internal/models"
)

const HeaderRequestID = "X-Request-ID"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userKey      contextKey = "user"
)

// RequestID returns the id assigned to the request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// CurrentUser returns the authenticated user stored by the bearer middleware.
func CurrentUser(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// instrument logs and counts one request against its route pattern.
func instrument(route string, log logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		defer func() {
			if p := recover(); p != nil {
				log.Error("handler panicked", map[string]interface{}{
					"route":      route,
					"panic":      fmt.Sprint(p),
					"request_id": RequestID(r.Context()),
				})
				if rec.status == 0 {
					writeError(rec, errors.NewInternalError(fmt.Errorf("panic: %v", p)))
				}
			}

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

			fields := map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"route":       route,
				"status":      status,
				"bytes":       rec.bytes,
				"duration_ms": elapsed.Milliseconds(),
				"request_id":  RequestID(r.Context()),
			}
			if status >= http.StatusInternalServerError {
				log.Error("http request", fields)
			} else {
				log.Info("http request", fields)
			}
		}()

		next.ServeHTTP(rec, r)
	})
}

// requireUser resolves the bearer token to an active user.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ExtractBearer(r)
		if err != nil {
			writeError(w, errors.NewAuthenticationError(err.Error()))
			return
		}
		claims, err := s.deps.Tokens.Parse(token)
		if err != nil {
			writeError(w, errors.NewAuthenticationError(err.Error()))
			return
		}
		user, err := s.deps.Users.GetByUsername(r.Context(), claims.Subject)
		if err != nil {
			if stdErr, ok := errors.As(err); !ok || stdErr.Code != errors.ErrCodeRecordNotFound {
				s.logger.Warn("user lookup failed during authentication", map[string]interface{}{
					"username": claims.Subject,
					"error":    err.Error(),
				})
			}
			writeError(w, errors.NewAuthenticationError("unknown user"))
			return
		}
		if !user.IsActive {
			writeError(w, errors.NewInactiveUserError(user.Username))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}
