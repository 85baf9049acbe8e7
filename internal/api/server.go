// Package api is the HTTP surface: account management, room CRUD,
// message history and the websocket upgrade endpoint.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"

	"github.com/chatstack/chatservice/internal/chat"
	"github.com/chatstack/chatservice/internal/config"
	"github.com/chatstack/chatservice/internal/database"
	"github.com/chatstack/chatservice/internal/server"
)

type App struct {
	log            *log.Logger
	db             database.Repository
	coordinator    *chat.Coordinator
	sessions       *server.SessionServer
	validate       *validator.Validate
	signingKey     []byte
	allowedOrigins []string
	srv            *http.Server
}

func NewApp(
	mux *http.ServeMux,
	logger *log.Logger,
	db database.Repository,
	coordinator *chat.Coordinator,
	sessions *server.SessionServer,
	cfg *config.Config,
) *App {
	a := &App{
		log:            logger,
		db:             db,
		coordinator:    coordinator,
		sessions:       sessions,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("POST /api/auth/register", a.register)
	mux.HandleFunc("POST /api/auth/login", a.login)
	mux.HandleFunc("GET /api/auth/session", a.authMiddleware(a.session))
	mux.HandleFunc("GET /api/auth/logout", a.authMiddleware(a.logout))
	mux.HandleFunc("POST /api/rooms", a.authMiddleware(a.createRoom))
	mux.HandleFunc("GET /api/rooms", a.authMiddleware(a.getRoom))
	mux.HandleFunc("POST /api/rooms/messages", a.authMiddleware(a.postMessage))
	mux.HandleFunc("GET /api/rooms/messages", a.authMiddleware(a.getMessages))
	mux.HandleFunc("GET /ws", a.authMiddleware(a.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = a.recoverHandler(h)

	a.srv = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: h,
	}

	return a
}

func (a *App) recoverHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				a.log.Printf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				a.writeJson(w, errResp.StatusCode, errResp)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (a *App) Start() error {
	a.log.Printf("starting server on %s", a.srv.Addr)
	return a.srv.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.log.Println("shutting down HTTP server...")
	if err := a.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
