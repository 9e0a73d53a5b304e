package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is a render-local message in a room. Messages are kept in
// insertion order and are not propagated to other participants.
type ChatMessage struct {
	ID        uuid.UUID
	RoomID    string
	UserID    uuid.UUID
	Sender    string
	Content   string
	CreatedAt time.Time
}

func NewChatMessage(roomID string, userID uuid.UUID, sender string, content string) *ChatMessage {
	return &ChatMessage{
		ID:        uuid.New(),
		RoomID:    roomID,
		UserID:    userID,
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Reaction is a short-lived emoji reaction, render-local like chat.
type Reaction struct {
	ID       uuid.UUID
	Emoji    string
	UserID   uuid.UUID
	UserName string
	At       time.Time
}

func NewReaction(emoji string, userID uuid.UUID, userName string) *Reaction {
	return &Reaction{
		ID:       uuid.New(),
		Emoji:    emoji,
		UserID:   userID,
		UserName: userName,
		At:       time.Now().UTC(),
	}
}
