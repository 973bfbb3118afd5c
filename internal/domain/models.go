package domain

import "time"

// User represents an application user. The public projection embedded into
// chat responses is Participant; the remaining fields exist for the thin
// auth layer.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Name           string    `json:"name"`
	ShareID        string    `json:"share_id"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Participant is the read-model projection of a user embedded into chats.
type Participant struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	ShareID string `json:"share_id"`
}

// Participant returns the public projection of the user.
func (u *User) Participant() Participant {
	return Participant{ID: u.ID, Name: u.Name, ShareID: u.ShareID}
}

// Chat is a room shared by a set of participants. A chat always has at least
// one participant; removing the last one deletes the chat.
type Chat struct {
	ID           int64         `json:"id"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"created_at"`
}

// MessageStatus is the lifecycle state of a message.
type MessageStatus string

const (
	StatusSent    MessageStatus = "sent"
	StatusEdited  MessageStatus = "edited"
	StatusDeleted MessageStatus = "deleted"
)

// Attachment describes a file attached to a message. The file itself lives
// behind the URL; this subsystem only carries the descriptor.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
}

// Message is a single chat message. ChatID is immutable after creation.
// A deleted message keeps its id and chat reference with an empty body so
// reply references stay resolvable.
type Message struct {
	ID          int64         `json:"id"`
	ChatID      int64         `json:"chat_id"`
	AuthorID    int64         `json:"author_id"`
	Body        string        `json:"body"`
	ReplyTo     *int64        `json:"reply_to,omitempty"`
	Status      MessageStatus `json:"status"`
	Attachments []Attachment  `json:"attachments,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
