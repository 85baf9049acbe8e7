package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/chatstack/chatservice/internal/chat"
	"github.com/chatstack/chatservice/internal/database"
	"github.com/chatstack/chatservice/internal/types"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type CreateRoomRequest struct {
	Name    string   `json:"name" validate:"required,min=1,max=128"`
	Members []string `json:"members" validate:"dive,email"`
}

type PostMessageRequest struct {
	RoomID  string `json:"room_id" validate:"required"`
	Content string `json:"content" validate:"required,max=4096"`
}

func (a *App) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Printf("json encode: %v", err)
	}
}

// decodeValid decodes the request body and runs struct validation.
func (a *App) decodeValid(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return a.validate.Struct(v)
}

func (a *App) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := a.decodeValid(r, &req); err != nil {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := a.db.GetAccountByEmail(req.Email); err == nil {
		errResp := NewConflictError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := a.db.CreateAccount(database.CreateAccountParams{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: pwdHash,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.writeJson(w, http.StatusCreated, types.User{
		Email:     account.Email,
		Username:  account.Username,
		CreatedAt: account.CreatedAt,
	})
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := a.decodeValid(r, &req); err != nil {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := a.db.GetAccountByEmail(req.Email)
	if err != nil || !verifyPassword(account.PasswordHash, req.Password) {
		// identical response for unknown email and bad password
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	token, err := a.createToken(account.Email, defaultJwtExp)
	if err != nil {
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExp))
	a.writeJson(w, http.StatusOK, LoginResponse{AccessToken: token, TokenType: "bearer"})
}

func (a *App) logout(w http.ResponseWriter, _ *http.Request) {
	// overwrite the cookie with an expired empty token
	http.SetCookie(w, createJwtCookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) session(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := a.db.GetAccountByEmail(identity)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.writeJson(w, http.StatusOK, types.User{
		Email:     account.Email,
		Username:  account.Username,
		CreatedAt: account.CreatedAt,
	})
}

func (a *App) createRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateRoomRequest
	if err := a.decodeValid(r, &req); err != nil {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := a.coordinator.CreateRoom(identity, req.Name, req.Members)
	if err != nil {
		a.log.Printf("create room: %v", err)
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.writeJson(w, http.StatusCreated, room)
}

func (a *App) getRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	roomID := r.URL.Query().Get("id")
	if roomID == "" {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := a.coordinator.GetRoom(roomID, identity)
	if err != nil {
		errResp := a.chatError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.writeJson(w, http.StatusOK, room)
}

func (a *App) postMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req PostMessageRequest
	if err := a.decodeValid(r, &req); err != nil {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := a.coordinator.PostMessage(req.RoomID, identity, req.Content)
	if err != nil {
		errResp := a.chatError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.writeJson(w, http.StatusCreated, msg)
}

func (a *App) getMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, err := a.coordinator.ListMessages(roomID, identity)
	if err != nil {
		errResp := a.chatError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.writeJson(w, http.StatusOK, messages)
}

// chatError maps coordinator errors to API responses. Forbidden and
// not-found responses carry no room data.
func (a *App) chatError(err error) *ApiError {
	switch {
	case errors.Is(err, chat.ErrAuthRequired):
		return NewUnauthorizedError()
	case errors.Is(err, chat.ErrForbidden):
		return NewForbiddenError()
	case errors.Is(err, chat.ErrNotFound):
		return NewNotFoundError()
	default:
		a.log.Printf("chat error: %v", err)
		return NewInternalServerError(err)
	}
}

func (a *App) serveWs(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return slices.Contains(a.allowedOrigins, origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Printf("ws upgrade: %v", err)
		return
	}

	a.sessions.Accept(identity, conn)
}
