package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"grocery-price-assistant/internal/config"
	"grocery-price-assistant/internal/derror"
	"grocery-price-assistant/internal/infra/metrics"
	red "grocery-price-assistant/internal/infra/redis"
	"grocery-price-assistant/internal/usecase"
)

const turnLockTTL = 10 * time.Second

const (
	replyTurnInProgress = "Please wait for your previous message to be answered."
	replyRateLimited    = "You are sending messages too quickly. Please slow down."
	replyServerTrouble  = "Sorry, something went wrong. Please try again."
)

// TurnLimiter is the slice of the rate limiter the server needs.
type TurnLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Pinger reports backend liveness for the health endpoint.
type Pinger func(ctx context.Context) error

type Server struct {
	chat     usecase.ChatUseCase
	catalog  *usecase.CatalogUseCase
	sessions *SessionManager
	locker   red.Locker
	limiter  TurnLimiter
	cfg      *config.Config
	log      *zerolog.Logger
	pingers  map[string]Pinger

	server *http.Server
}

func NewServer(
	cfg *config.Config,
	chat usecase.ChatUseCase,
	catalog *usecase.CatalogUseCase,
	sessions *SessionManager,
	locker red.Locker,
	limiter TurnLimiter,
	logger *zerolog.Logger,
	pingers map[string]Pinger,
) *Server {
	return &Server{
		chat:     chat,
		catalog:  catalog,
		sessions: sessions,
		locker:   locker,
		limiter:  limiter,
		cfg:      cfg,
		log:      logger,
		pingers:  pingers,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/get", s.handleTurn)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Str("addr", s.cfg.Server.Addr).Msg("http server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// handleTurn is the chat endpoint: one form-encoded message in, one HTML
// fragment out. The reply is always 200 with user-readable text; errors
// from the state machine are advisory and only logged.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	msg := r.PostFormValue("msg")

	sid, err := s.sessions.SessionID(w, r)
	if err != nil {
		s.log.Error().Err(err).Msg("issue session")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	ok, err := s.limiter.Allow(ctx, red.TurnKey(sid), s.cfg.Chat.RateLimit, s.cfg.Chat.RateWindow)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sid).Msg("rate limiter")
		s.writeReply(w, replyServerTrouble)
		return
	}
	if !ok {
		metrics.IncRateLimited()
		s.writeReply(w, replyRateLimited)
		return
	}

	// Serialize turns per session: concurrent requests must not race on the
	// stored conversation state.
	lockKey := red.TurnLockKey(sid)
	token, err := s.locker.TryLock(ctx, lockKey, turnLockTTL)
	if err != nil {
		if errors.Is(err, derror.ErrTurnInProgress) {
			s.writeReply(w, replyTurnInProgress)
			return
		}
		s.log.Error().Err(err).Str("session_id", sid).Msg("turn lock")
		s.writeReply(w, replyServerTrouble)
		return
	}
	defer func() {
		if err := s.locker.Unlock(ctx, lockKey, token); err != nil {
			s.log.Warn().Err(err).Str("session_id", sid).Msg("turn unlock")
		}
	}()

	reply, err := s.chat.HandleTurn(ctx, sid, msg)
	if err != nil {
		// Validation errors still carry a user-facing reply; infrastructure
		// errors come with the generic retry text. Either way the caller
		// gets the reply and the log gets the cause.
		s.log.Warn().Err(err).Str("session_id", sid).Msg("turn finished with error")
	}
	if reply == "" {
		reply = replyServerTrouble
	}
	s.writeReply(w, reply)
}

func (s *Server) writeReply(w http.ResponseWriter, reply string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, reply)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := chatPage.Execute(w, nil); err != nil {
		s.log.Error().Err(err).Msg("render chat page")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, ping := range s.pingers {
		if err := ping(ctx); err != nil {
			s.log.Error().Err(err).Str("backend", name).Msg("health check failed")
			http.Error(w, name+" unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.Stats(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("catalog stats")
		http.Error(w, "Failed to get stats", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Sources interface{} `json:"sources"`
	}{Sources: stats})
}

// authMiddleware provides simple Bearer token authentication for the admin API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Server.AdminAPIKey == "" {
			s.log.Error().Msg("admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "bearer") {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if tokenParts[1] != s.cfg.Server.AdminAPIKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

var chatPage = template.Must(template.New("chat").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>Grocery Price Assistant</title>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<style>
		body { font-family: Arial, sans-serif; max-width: 640px; margin: 40px auto; }
		#log { border: 1px solid #ccc; padding: 12px; min-height: 280px; }
		.user { color: #333; font-weight: bold; }
		.bot { color: #1a7f37; }
	</style>
</head>
<body>
	<h2>Grocery Price Assistant</h2>
	<div id="log"></div>
	<form id="chat">
		<input id="msg" name="msg" autocomplete="off" placeholder="Say hi to get started">
		<button type="submit">Send</button>
	</form>
	<script>
		const log = document.getElementById("log");
		document.getElementById("chat").addEventListener("submit", async (e) => {
			e.preventDefault();
			const input = document.getElementById("msg");
			const msg = input.value.trim();
			if (!msg) return;
			log.innerHTML += '<p class="user">You: ' + msg + '</p>';
			input.value = "";
			const resp = await fetch("/get", {
				method: "POST",
				headers: {"Content-Type": "application/x-www-form-urlencoded"},
				body: new URLSearchParams({msg}),
			});
			log.innerHTML += '<p class="bot">Bot: ' + await resp.text() + '</p>';
			log.scrollTop = log.scrollHeight;
		});
	</script>
</body>
</html>
`))
