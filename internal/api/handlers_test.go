package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/chatstack/chatservice/internal/database"
	"github.com/chatstack/chatservice/internal/types"
)

func doJSON(t *testing.T, app *App, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	app.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func authToken(t *testing.T, app *App, identity string) string {
	t.Helper()
	token, err := app.createToken(identity, time.Hour)
	assert.NoError(t, err)
	return token
}

func TestRegister(t *testing.T) {
	t.Run("rejects invalid payload", func(t *testing.T) {
		app := newTestApp(t, &database.MockRepository{})

		rec := doJSON(t, app, http.MethodPost, "/api/auth/register", "", RegisterRequest{
			Email:    "not-an-email",
			Username: "alice",
			Password: "password123",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetAccountByEmail", "a@example.com").
			Return(database.Account{ID: 1, Email: "a@example.com"}, nil)
		app := newTestApp(t, db)

		rec := doJSON(t, app, http.MethodPost, "/api/auth/register", "", RegisterRequest{
			Email:    "a@example.com",
			Username: "alice",
			Password: "password123",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("creates account with hashed password", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetAccountByEmail", "a@example.com").
			Return(database.Account{}, database.ErrNotFound)
		db.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
			return p.Email == "a@example.com" &&
				p.Username == "alice" &&
				verifyPassword(p.PasswordHash, "password123")
		})).Return(database.Account{ID: 1, Email: "a@example.com", Username: "alice", CreatedAt: time.Now()}, nil)
		app := newTestApp(t, db)

		rec := doJSON(t, app, http.MethodPost, "/api/auth/register", "", RegisterRequest{
			Email:    "a@example.com",
			Username: "alice",
			Password: "password123",
		})

		assert.Equal(t, http.StatusCreated, rec.Code)
		var user types.User
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
		assert.Equal(t, "a@example.com", user.Email)
		db.AssertExpectations(t)
	})
}

func TestLogin(t *testing.T) {
	hash, err := hashPassword("password123")
	assert.NoError(t, err)
	account := database.Account{ID: 1, Email: "a@example.com", Username: "alice", PasswordHash: hash}

	t.Run("unknown email", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetAccountByEmail", "ghost@example.com").
			Return(database.Account{}, database.ErrNotFound)
		app := newTestApp(t, db)

		rec := doJSON(t, app, http.MethodPost, "/api/auth/login", "", LoginRequest{
			Email:    "ghost@example.com",
			Password: "password123",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetAccountByEmail", "a@example.com").Return(account, nil)
		app := newTestApp(t, db)

		rec := doJSON(t, app, http.MethodPost, "/api/auth/login", "", LoginRequest{
			Email:    "a@example.com",
			Password: "wrong password",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("issues token and cookie", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetAccountByEmail", "a@example.com").Return(account, nil)
		app := newTestApp(t, db)

		rec := doJSON(t, app, http.MethodPost, "/api/auth/login", "", LoginRequest{
			Email:    "a@example.com",
			Password: "password123",
		})

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp LoginResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "bearer", resp.TokenType)

		identity, err := app.verifyToken(resp.AccessToken)
		assert.NoError(t, err)
		assert.Equal(t, "a@example.com", identity)

		var sessionCookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == tokenCookieKey {
				sessionCookie = c
			}
		}
		if assert.NotNil(t, sessionCookie) {
			assert.Equal(t, resp.AccessToken, sessionCookie.Value)
			assert.True(t, sessionCookie.HttpOnly)
		}
	})
}

func TestSession(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		app := newTestApp(t, &database.MockRepository{})

		rec := doJSON(t, app, http.MethodGet, "/api/auth/session", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("returns the authenticated account", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetAccountByEmail", "a@example.com").
			Return(database.Account{ID: 1, Email: "a@example.com", Username: "alice"}, nil)
		app := newTestApp(t, db)

		rec := doJSON(t, app, http.MethodGet, "/api/auth/session", authToken(t, app, "a@example.com"), nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		var user types.User
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
		assert.Equal(t, "alice", user.Username)
	})
}

func TestCreateRoomHandler(t *testing.T) {
	t.Run("creator is always a member", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("CreateRoom", "general", []string{"b@example.com", "a@example.com"}).
			Return(database.Room{ID: "r1", Name: "general", Members: []string{"b@example.com", "a@example.com"}}, nil)
		app := newTestApp(t, db)

		rec := doJSON(t, app, http.MethodPost, "/api/rooms", authToken(t, app, "a@example.com"), CreateRoomRequest{
			Name:    "general",
			Members: []string{"b@example.com"},
		})

		assert.Equal(t, http.StatusCreated, rec.Code)
		var room types.Room
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &room))
		assert.Equal(t, "r1", room.ID)
		db.AssertExpectations(t)
	})

	t.Run("rejects invalid member email", func(t *testing.T) {
		app := newTestApp(t, &database.MockRepository{})

		rec := doJSON(t, app, http.MethodPost, "/api/rooms", authToken(t, app, "a@example.com"), CreateRoomRequest{
			Name:    "general",
			Members: []string{"not-an-email"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetRoomHandler(t *testing.T) {
	room := database.Room{ID: "r1", Name: "general", Members: []string{"a@example.com"}}

	t.Run("missing id", func(t *testing.T) {
		app := newTestApp(t, &database.MockRepository{})

		rec := doJSON(t, app, http.MethodGet, "/api/rooms", authToken(t, app, "a@example.com"), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("member sees the room", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetRoomByID", "r1").Return(room, nil)
		app := newTestApp(t, db)

		rec := doJSON(t, app, http.MethodGet, "/api/rooms?id=r1", authToken(t, app, "a@example.com"), nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		var got types.Room
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, []string{"a@example.com"}, got.Members)
	})

	t.Run("non-member gets 403 without room data", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetRoomByID", "r1").Return(room, nil)
		app := newTestApp(t, db)

		rec := doJSON(t, app, http.MethodGet, "/api/rooms?id=r1", authToken(t, app, "b@example.com"), nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.NotContains(t, rec.Body.String(), "members")
		assert.NotContains(t, rec.Body.String(), "general")
	})

	t.Run("unknown room", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetRoomByID", "nope").Return(database.Room{}, database.ErrNotFound)
		app := newTestApp(t, db)

		rec := doJSON(t, app, http.MethodGet, "/api/rooms?id=nope", authToken(t, app, "a@example.com"), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPostMessageHandler(t *testing.T) {
	room := database.Room{ID: "r1", Name: "general", Members: []string{"a@example.com"}}

	t.Run("member posts a message", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetRoomByID", "r1").Return(room, nil)
		db.On("AppendMessage", "r1", mock.AnythingOfType("database.Message")).
			Return(database.Message{ID: "m1", Seq: 1, RoomID: "r1", Sender: "a@example.com", Content: "hi", CreatedAt: time.Now()}, nil)
		app := newTestApp(t, db)

		rec := doJSON(t, app, http.MethodPost, "/api/rooms/messages", authToken(t, app, "a@example.com"), PostMessageRequest{
			RoomID:  "r1",
			Content: "hi",
		})

		assert.Equal(t, http.StatusCreated, rec.Code)
		var msg types.Message
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
		assert.Equal(t, "hi", msg.Content)
		assert.Equal(t, int64(1), msg.Seq)
	})

	t.Run("empty content is rejected before the coordinator", func(t *testing.T) {
		db := &database.MockRepository{}
		app := newTestApp(t, db)

		rec := doJSON(t, app, http.MethodPost, "/api/rooms/messages", authToken(t, app, "a@example.com"), PostMessageRequest{
			RoomID: "r1",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		db.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything)
	})

	t.Run("non-member gets 403", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetRoomByID", "r1").Return(room, nil)
		app := newTestApp(t, db)

		rec := doJSON(t, app, http.MethodPost, "/api/rooms/messages", authToken(t, app, "b@example.com"), PostMessageRequest{
			RoomID:  "r1",
			Content: "hi",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestGetMessagesHandler(t *testing.T) {
	room := database.Room{ID: "r1", Name: "general", Members: []string{"a@example.com"}}

	t.Run("returns the log in order", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetRoomByID", "r1").Return(room, nil)
		db.On("ListMessages", "r1").Return([]database.Message{
			{ID: "m1", Seq: 1, Content: "first"},
			{ID: "m2", Seq: 2, Content: "second"},
		}, nil)
		app := newTestApp(t, db)

		rec := doJSON(t, app, http.MethodGet, "/api/rooms/messages?room_id=r1", authToken(t, app, "a@example.com"), nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		var msgs []types.Message
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
		assert.Len(t, msgs, 2)
		assert.Equal(t, "first", msgs[0].Content)
	})

	t.Run("missing room id", func(t *testing.T) {
		app := newTestApp(t, &database.MockRepository{})

		rec := doJSON(t, app, http.MethodGet, "/api/rooms/messages", authToken(t, app, "a@example.com"), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
