// ABOUTME: HTTP routes for signup, login, profile, health, metrics and the websocket endpoint
// ABOUTME: Built on chi with request ids, panic recovery, CORS and request metrics

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/huddle-gateway/internal/auth"
	"github.com/2389/huddle-gateway/internal/metrics"
	"github.com/2389/huddle-gateway/internal/store"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 8 * 1024

// routes builds the HTTP router.
func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(metrics.Middleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(g.requestLogger)
	r.Use(chimw.Recoverer)

	origins := g.config.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", g.handleHealth)
	r.Get("/health/ready", g.handleReady)
	if g.config.Metrics.Enabled {
		r.Handle(g.config.Metrics.Path, promhttp.Handler())
	}

	r.Post("/api/signup", g.handleSignup)
	r.Post("/api/login", g.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(auth.HTTPAuthMiddleware(g.auth))
		r.Get("/api/me", g.handleMe)
		r.Post("/api/password", g.handleChangePassword)
	})

	r.Get("/ws", g.handleWebsocket)

	return r
}

// requestLogger logs each completed request at debug level.
func (g *Gateway) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			g.logger.Debug("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"latency", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// userView is the public profile of a user, without credentials.
type userView struct {
	Username  string     `json:"username"`
	Role      store.Role `json:"role"`
	Muted     bool       `json:"muted"`
	CreatedAt time.Time  `json:"created_at"`
}

func viewOf(u *store.User) userView {
	return userView{Username: u.Username, Role: u.Role, Muted: u.Muted, CreatedAt: u.CreatedAt}
}

type credentialsRequest struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Role     store.Role `json:"role,omitempty"`
}

// handleSignup creates a student account. Staff accounts come from the
// bootstrap command or an existing staff member.
func (g *Gateway) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Role == store.RoleStaff {
		writeError(w, http.StatusForbidden, "staff accounts cannot be created by signup")
		return
	}

	user, err := g.auth.Register(r.Context(), req.Username, req.Password, req.Role)
	switch {
	case errors.Is(err, auth.ErrUsernameTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrEmptyPassword), errors.Is(err, auth.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		g.logger.Error("signup failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusCreated, viewOf(user))
	}
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userView  `json:"user"`
}

func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := g.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		g.logger.Error("login failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      viewOf(session.User),
	})
}

func (g *Gateway) handleMe(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	user, err := g.auth.GetUser(r.Context(), authCtx.Username)
	if errors.Is(err, auth.ErrUnknownUser) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		g.logger.Error("loading profile", "username", authCtx.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(user))
}

type passwordRequest struct {
	Current string `json:"current"`
	New     string `json:"new"`
}

func (g *Gateway) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	authCtx := auth.FromContext(r.Context())

	err := g.auth.ChangePassword(r.Context(), authCtx.Username, req.Current, req.New)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrEmptyPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		g.logger.Error("changing password", "username", authCtx.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the database answers.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := g.store.Ping(r.Context()); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
