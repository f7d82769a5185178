package api

import (
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/vaidashi/delivery-orders/internal/auth"
	"github.com/vaidashi/delivery-orders/internal/models"
	apperrors "github.com/vaidashi/delivery-orders/pkg/errors"
)

const (
	msgUnauthenticated = "Non autenticato"
	msgInvalidSession  = "Sessione non valida"
	msgForbidden       = "Permesso negato"
	msgTooManyAttempts = "Troppi tentativi, riprova più tardi"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs each request and records it under its route template
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		duration := time.Since(start)
		s.metrics.Observe(r.Method, route, rec.status, duration)

		s.logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", duration,
			"remoteAddr", r.RemoteAddr,
		)
	})
}

// authMiddleware requires a valid bearer token and stores its claims in the
// request context
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			s.respondWithError(w, http.StatusUnauthorized, msgUnauthenticated)
			return
		}

		claims, err := auth.ParseToken(s.authConfig, strings.TrimSpace(raw))
		if err != nil {
			s.logger.Debug("Rejected token", "error", err, "path", r.URL.Path)
			s.respondWithError(w, http.StatusUnauthorized, msgInvalidSession)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

// requireRole allows callers whose role ranks at least min
func (s *Server) requireRole(min models.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFrom(r.Context())
		if !ok {
			s.respondWithError(w, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		if !claims.Role.Allows(min) {
			s.respondWithError(w, http.StatusForbidden, msgForbidden)
			return
		}
		next(w, r)
	}
}

// loginThrottle limits login attempts per client IP. It is a no-op without a
// limiter, and lets requests through when the limiter itself fails.
func (s *Server) loginThrottle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || s.authConfig.LoginLimit <= 0 {
			next(w, r)
			return
		}

		ip := s.clientIP(r)
		allowed, count, err := s.limiter.FixedWindowAllow(r.Context(), "login:"+ip,
			int64(s.authConfig.LoginLimit), s.authConfig.LoginWindow)
		if err != nil {
			s.logger.Warn("Login throttle unavailable", "error", err)
			next(w, r)
			return
		}
		if !allowed {
			s.logger.Warn("Login throttled", "ip", ip, "attempts", count)
			w.Header().Set("Retry-After", strconv.Itoa(int(s.authConfig.LoginWindow.Seconds())))
			s.respondWithAppError(w, r, apperrors.NewRateLimitedError(msgTooManyAttempts))
			return
		}

		next(w, r)
	}
}

// clientIP returns the address the throttle counts. X-Forwarded-For is only
// read when the direct peer is a trusted proxy; the rightmost untrusted hop
// in it is the client.
func (s *Server) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	peer, err := netip.ParseAddr(host)
	if err != nil || !s.trustedProxy(peer) {
		return host
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			return host
		}
		if !s.trustedProxy(addr) {
			return addr.String()
		}
	}
	return host
}

func (s *Server) trustedProxy(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range s.trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
