package model

import (
	"time"

	"AirChat/tools/ids"
)

type MessageID = string

// Message is immutable once created. Two messages are the same logical
// entity iff their ids match.
type Message struct {
	ID        MessageID `json:"id" bson:"message_id"`
	Text      string    `json:"text" bson:"text"`
	Author    User      `json:"author" bson:"author"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// NewMessage assigns a fresh snowflake id.
func NewMessage(text string, author User) Message {
	return Message{
		ID:        ids.GenerateString(),
		Text:      text,
		Author:    author,
		CreatedAt: time.Now().UTC(),
	}
}

func (m Message) SameAs(o Message) bool { return m.ID == o.ID }

// IsFrom reports whether u authored m.
func (m Message) IsFrom(u User) bool { return m.Author.Equal(u) }
