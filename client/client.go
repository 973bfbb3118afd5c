package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatgo/internal/domain"
	"chatgo/internal/event"
)

const (
	// DefaultPollInterval is how often an open chat re-fetches the full
	// history to reconcile anything the live channel missed.
	DefaultPollInterval = 5 * time.Second

	// DefaultTypingIdle is how long after the last Typing call the client
	// emits typing:stop on the caller's behalf.
	DefaultTypingIdle = time.Second
)

// Client talks to a chat server over its REST API and live channel.
type Client struct {
	baseURL      string
	token        string
	http         *http.Client
	dialer       *websocket.Dialer
	pollInterval time.Duration
	typingIdle   time.Duration
}

type Option func(*Client)

// WithPollInterval tunes the reconciliation poll of open chats.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithTypingIdle tunes the inactivity window before typing:stop is sent.
func WithTypingIdle(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.typingIdle = d
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New returns a client for the server at baseURL, authenticating every
// request with the given bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		http:         &http.Client{Timeout: 10 * time.Second},
		dialer:       websocket.DefaultDialer,
		pollInterval: DefaultPollInterval,
		typingIdle:   DefaultTypingIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Messages fetches the full ordered history for a chat.
func (c *Client) Messages(ctx context.Context, chatID int64) ([]domain.Message, error) {
	var msgs []domain.Message
	path := "/api/messages?chatId=" + strconv.FormatInt(chatID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs, http.StatusOK); err != nil {
		return nil, err
	}
	return msgs, nil
}

type sendRequest struct {
	ChatID      int64               `json:"chat_id"`
	Body        string              `json:"body"`
	ReplyTo     *int64              `json:"reply_to,omitempty"`
	Attachments []domain.Attachment `json:"attachments,omitempty"`
}

// Send creates a message through the REST API and returns the persisted
// record. Room members (this client included, if subscribed) also receive
// it as a message:new broadcast.
func (c *Client) Send(ctx context.Context, chatID int64, body string, replyTo *int64) (*domain.Message, error) {
	var msg domain.Message
	req := sendRequest{ChatID: chatID, Body: body, ReplyTo: replyTo}
	if err := c.do(ctx, http.MethodPost, "/api/messages/", req, &msg, http.StatusCreated); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Edit replaces the body of an own message.
func (c *Client) Edit(ctx context.Context, messageID int64, body string) (*domain.Message, error) {
	var msg domain.Message
	path := "/api/messages/" + strconv.FormatInt(messageID, 10)
	req := map[string]string{"body": body}
	if err := c.do(ctx, http.MethodPut, path, req, &msg, http.StatusOK); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Delete soft-deletes an own message and returns its cleared record.
func (c *Client) Delete(ctx context.Context, messageID int64) (*domain.Message, error) {
	var msg domain.Message
	path := "/api/messages/" + strconv.FormatInt(messageID, 10)
	if err := c.do(ctx, http.MethodDelete, path, nil, &msg, http.StatusOK); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, out any, wantStatus int) error {
	var body io.Reader
	if reqBody != nil {
		buf, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	return u.String(), nil
}

// OpenChat subscribes to a chat's live channel and returns a view that
// stays reconciled with the server: events apply as they arrive, and a
// periodic poll re-fetches the full history to repair any gaps.
//
// The server admits the subscription only if the caller is a participant;
// a non-member's view simply never receives events (and its polls fail),
// matching the silent refusal on the server side.
func (c *Client) OpenChat(ctx context.Context, chatID int64) (*ChatView, error) {
	wsURL, err := c.wsURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	header.Set("Origin", c.baseURL)

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", wsURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	v := &ChatView{
		client: c,
		chatID: chatID,
		conn:   conn,
		hist:   NewHistory(),
		typing: make(map[int64]domain.Participant),
		done:   make(chan struct{}),
	}

	if err := v.writeCommand(event.JoinChat, event.JoinChatCommand{ChatID: chatID}); err != nil {
		conn.Close()
		return nil, err
	}

	// seed after joining so nothing lands in the gap between fetch and
	// subscribe; a broadcast racing the fetch is deduped by the history
	if msgs, err := c.Messages(ctx, chatID); err == nil {
		v.hist.Replace(msgs)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	go v.readLoop()
	go v.pollLoop(loopCtx)

	return v, nil
}

// ChatView is a live, self-reconciling view of one chat.
type ChatView struct {
	client *Client
	chatID int64
	conn   *websocket.Conn
	hist   *History
	cancel context.CancelFunc
	done   chan struct{}

	writeMu sync.Mutex

	mu          sync.Mutex
	typing      map[int64]domain.Participant
	typingTimer *time.Timer
	closed      bool
}

// Messages returns the current reconciled history snapshot.
func (v *ChatView) Messages() []domain.Message {
	return v.hist.Messages()
}

// SendLive creates a message over the live channel instead of REST. The
// created message arrives back through the room broadcast.
func (v *ChatView) SendLive(body string, replyTo *int64) error {
	return v.writeCommand(event.NewMessage, event.NewMessageCommand{
		ChatID:  v.chatID,
		Body:    body,
		ReplyTo: replyTo,
	})
}

// Typing signals input activity. The first call (and every call after a
// stop) emits typing:start; a stop is emitted automatically once no call
// has arrived for the idle window.
func (v *ChatView) Typing() error {
	v.mu.Lock()
	if v.typingTimer != nil {
		v.typingTimer.Stop()
	}
	v.typingTimer = time.AfterFunc(v.client.typingIdle, func() {
		_ = v.StopTyping()
	})
	v.mu.Unlock()

	return v.writeCommand(event.TypingStart, event.TypingCommand{ChatID: v.chatID})
}

// StopTyping emits typing:stop immediately.
func (v *ChatView) StopTyping() error {
	v.mu.Lock()
	if v.typingTimer != nil {
		v.typingTimer.Stop()
		v.typingTimer = nil
	}
	v.mu.Unlock()

	return v.writeCommand(event.TypingStop, event.TypingCommand{ChatID: v.chatID})
}

// TypingUsers returns who is currently typing in this chat, per the last
// received indicators. Staleness is possible until the next event or poll
// cycle; indicators are ephemeral and never persisted.
func (v *ChatView) TypingUsers() []domain.Participant {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]domain.Participant, 0, len(v.typing))
	for _, p := range v.typing {
		out = append(out, p)
	}
	return out
}

// Close leaves the room and tears the view down. Idempotent.
func (v *ChatView) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	if v.typingTimer != nil {
		v.typingTimer.Stop()
		v.typingTimer = nil
	}
	v.mu.Unlock()

	v.cancel()
	_ = v.writeCommand(event.LeaveChat, event.LeaveChatCommand{ChatID: v.chatID})
	err := v.conn.Close()
	<-v.done
	return err
}

func (v *ChatView) writeCommand(name string, cmd any) error {
	env, err := event.EncodeCommand(name, cmd)
	if err != nil {
		return err
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	return v.conn.WriteJSON(env)
}

func (v *ChatView) readLoop() {
	defer close(v.done)
	for {
		var env event.Envelope
		if err := v.conn.ReadJSON(&env); err != nil {
			return
		}
		v.apply(env)
	}
}

// apply routes one received frame into local state. Events for other
// chats (possible when the same connection joins several rooms) are
// dropped here.
func (v *ChatView) apply(env event.Envelope) {
	switch env.Event {

	case event.NewMessage, event.UpdateMessage, event.DeleteMessage:
		var m domain.Message
		if err := json.Unmarshal(env.Data, &m); err != nil || m.ChatID != v.chatID {
			return
		}
		switch env.Event {
		case event.NewMessage:
			v.hist.ApplyNew(m)
		case event.UpdateMessage:
			v.hist.ApplyUpdate(m)
		case event.DeleteMessage:
			v.hist.ApplyDelete(m)
		}

	case event.Typing:
		var t event.TypingEvent
		if err := json.Unmarshal(env.Data, &t); err != nil || t.ChatID != v.chatID {
			return
		}
		v.mu.Lock()
		if t.IsTyping {
			v.typing[t.User.ID] = t.User
		} else {
			delete(v.typing, t.User.ID)
		}
		v.mu.Unlock()
	}
}

func (v *ChatView) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(v.client.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.refresh(ctx)
		}
	}
}

// refresh re-fetches the authoritative history and swaps it in. Errors
// are swallowed: a transient failure is repaired by the next tick.
func (v *ChatView) refresh(ctx context.Context) {
	msgs, err := v.client.Messages(ctx, v.chatID)
	if err != nil {
		return
	}
	v.hist.Replace(msgs)
}
