package ws_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgo/internal/domain"
	"chatgo/internal/event"
	"chatgo/internal/security"
	"chatgo/internal/service"
	"chatgo/internal/store/sqlite"
	"chatgo/internal/ws"
)

const testOrigin = "http://localhost:5173"

type wsFixture struct {
	srv      *httptest.Server
	hub      *ws.Hub
	tokens   *security.TokenService
	users    domain.UserRepository
	chats    domain.ChatRepository
	messages *service.MessageService
	db       *sql.DB
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })

	users := sqlite.NewUserRepo(db)
	chats := sqlite.NewChatRepo(db)
	msgs := sqlite.NewMessageRepo(db)

	tokens := security.NewTokenService("test-secret", time.Hour)
	guard := service.NewMembershipGuard(chats)
	hub := ws.NewHub(guard)
	msgSvc := service.NewMessageService(msgs, guard, hub, 0)

	handler := ws.MakeHandler(hub, tokens, users, guard, msgSvc, []string{testOrigin})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &wsFixture{
		srv:      srv,
		hub:      hub,
		tokens:   tokens,
		users:    users,
		chats:    chats,
		messages: msgSvc,
		db:       db,
	}
}

func (f *wsFixture) createUser(t *testing.T, username string) *domain.User {
	t.Helper()
	u := &domain.User{
		Username:       username,
		Name:           username,
		ShareID:        "share-" + username,
		HashedPassword: "irrelevant",
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *wsFixture) createChat(t *testing.T, memberIDs ...int64) *domain.Chat {
	t.Helper()
	chat := &domain.Chat{CreatedAt: time.Now().UTC()}
	require.NoError(t, f.chats.Create(context.Background(), chat, memberIDs))
	return chat
}

func (f *wsFixture) dial(t *testing.T, u *domain.User) *websocket.Conn {
	t.Helper()
	token, err := f.tokens.CreateForUser(u.Username)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http")
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("Origin", testOrigin)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, name string, cmd any) {
	t.Helper()
	env, err := event.EncodeCommand(name, cmd)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) event.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env event.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func readMessage(t *testing.T, conn *websocket.Conn, wantEvent string) domain.Message {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, wantEvent, env.Event)
	var m domain.Message
	require.NoError(t, json.Unmarshal(env.Data, &m))
	return m
}

func waitRoomSize(t *testing.T, hub *ws.Hub, chatID int64, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.RoomSize(chatID) == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLiveChannelDelivery(t *testing.T) {
	f := newWSFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	chat := f.createChat(t, alice.ID, bob.ID)

	aliceConn := f.dial(t, alice)
	bobConn := f.dial(t, bob)

	sendCommand(t, aliceConn, event.JoinChat, event.JoinChatCommand{ChatID: chat.ID})
	sendCommand(t, bobConn, event.JoinChat, event.JoinChatCommand{ChatID: chat.ID})
	waitRoomSize(t, f.hub, chat.ID, 2)

	// alice creates over the live channel; both subscribers get the echo
	sendCommand(t, aliceConn, event.NewMessage, event.NewMessageCommand{ChatID: chat.ID, Body: "hello"})

	got := readMessage(t, bobConn, event.NewMessage)
	assert.Equal(t, "hello", got.Body)
	assert.Equal(t, alice.ID, got.AuthorID)
	assert.Equal(t, domain.StatusSent, got.Status)

	echo := readMessage(t, aliceConn, event.NewMessage)
	assert.Equal(t, got.ID, echo.ID)

	// an edit through the lifecycle engine reaches both live subscribers
	_, err := f.messages.Edit(context.Background(), alice.ID, got.ID, "hello, edited")
	require.NoError(t, err)

	updated := readMessage(t, bobConn, event.UpdateMessage)
	assert.Equal(t, got.ID, updated.ID)
	assert.Equal(t, "hello, edited", updated.Body)
	assert.Equal(t, domain.StatusEdited, updated.Status)
	readMessage(t, aliceConn, event.UpdateMessage)

	// a delete broadcasts the cleared message, same id, empty body
	_, err = f.messages.Delete(context.Background(), alice.ID, got.ID)
	require.NoError(t, err)

	deleted := readMessage(t, bobConn, event.DeleteMessage)
	assert.Equal(t, got.ID, deleted.ID)
	assert.Empty(t, deleted.Body)
	assert.Equal(t, domain.StatusDeleted, deleted.Status)
}

func TestLiveChannelMembershipGate(t *testing.T) {
	f := newWSFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	mallory := f.createUser(t, "mallory")
	chat := f.createChat(t, alice.ID, bob.ID)

	aliceConn := f.dial(t, alice)
	malloryConn := f.dial(t, mallory)

	sendCommand(t, aliceConn, event.JoinChat, event.JoinChatCommand{ChatID: chat.ID})
	waitRoomSize(t, f.hub, chat.ID, 1)

	// the outsider's join is refused without any reply frame
	sendCommand(t, malloryConn, event.JoinChat, event.JoinChatCommand{ChatID: chat.ID})
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, f.hub.RoomSize(chat.ID))

	sendCommand(t, aliceConn, event.NewMessage, event.NewMessageCommand{ChatID: chat.ID, Body: "members only"})
	readMessage(t, aliceConn, event.NewMessage)

	// mallory never receives the broadcast
	require.NoError(t, malloryConn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	var env event.Envelope
	err := malloryConn.ReadJSON(&env)
	assert.Error(t, err)
}

func TestLiveChannelTyping(t *testing.T) {
	f := newWSFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	chat := f.createChat(t, alice.ID, bob.ID)

	aliceConn := f.dial(t, alice)
	bobConn := f.dial(t, bob)
	sendCommand(t, aliceConn, event.JoinChat, event.JoinChatCommand{ChatID: chat.ID})
	sendCommand(t, bobConn, event.JoinChat, event.JoinChatCommand{ChatID: chat.ID})
	waitRoomSize(t, f.hub, chat.ID, 2)

	sendCommand(t, aliceConn, event.TypingStart, event.TypingCommand{ChatID: chat.ID})

	env := readEnvelope(t, bobConn)
	require.Equal(t, event.Typing, env.Event)
	var typing event.TypingEvent
	require.NoError(t, json.Unmarshal(env.Data, &typing))
	assert.Equal(t, chat.ID, typing.ChatID)
	assert.Equal(t, alice.ID, typing.User.ID)
	assert.True(t, typing.IsTyping)

	sendCommand(t, aliceConn, event.TypingStop, event.TypingCommand{ChatID: chat.ID})
	env = readEnvelope(t, bobConn)
	require.Equal(t, event.Typing, env.Event)
	require.NoError(t, json.Unmarshal(env.Data, &typing))
	assert.False(t, typing.IsTyping)
}

func TestLiveChannelTeardown(t *testing.T) {
	f := newWSFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	chat := f.createChat(t, alice.ID, bob.ID)

	aliceConn := f.dial(t, alice)
	bobConn := f.dial(t, bob)
	sendCommand(t, aliceConn, event.JoinChat, event.JoinChatCommand{ChatID: chat.ID})
	sendCommand(t, bobConn, event.JoinChat, event.JoinChatCommand{ChatID: chat.ID})
	waitRoomSize(t, f.hub, chat.ID, 2)

	// dropping the transport unregisters the connection from its rooms
	require.NoError(t, aliceConn.Close())
	waitRoomSize(t, f.hub, chat.ID, 1)

	// the survivor still receives broadcasts
	sendCommand(t, bobConn, event.NewMessage, event.NewMessageCommand{ChatID: chat.ID, Body: "still here"})
	got := readMessage(t, bobConn, event.NewMessage)
	assert.Equal(t, "still here", got.Body)
}

func TestLiveChannelRejectsBadOrigin(t *testing.T) {
	f := newWSFixture(t)
	alice := f.createUser(t, "alice")
	token, err := f.tokens.CreateForUser(alice.Username)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http")
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("Origin", "http://evil.example")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
