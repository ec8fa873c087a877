package models

import (
	"encoding/json"
	"time"
)

// FrameType is the "type" of a frame sent by a client.
type FrameType string

const (
	FramePing          FrameType = "ping"
	FrameTyping        FrameType = "typing"
	FrameStopTyping    FrameType = "stop_typing"
	FrameReadMessage   FrameType = "read_message"
	FrameDeleteMessage FrameType = "delete_message"
	FrameEditMessage   FrameType = "edit_message"
)

// Known reports whether the frame type is part of the client protocol.
func (t FrameType) Known() bool {
	switch t {
	case FramePing, FrameTyping, FrameStopTyping, FrameReadMessage, FrameDeleteMessage, FrameEditMessage:
		return true
	}
	return false
}

// InboundFrame is the envelope every client frame must decode into.
type InboundFrame struct {
	Type    FrameType       `json:"type"`
	Message json.RawMessage `json:"message,omitempty"`
}

// EventType tags an event delivered through the connection registry.
type EventType string

const (
	EventChatMessage   EventType = "chat_message"
	EventNotifyMessage EventType = "notify_message"
	EventPong          EventType = "pong"
)

// OutboundEvent is built per dispatch and pushed to every handle of a channel.
type OutboundEvent struct {
	Type    EventType
	Message json.RawMessage
}

// ChatMessageEvent wraps a serialized message for a room channel.
func ChatMessageEvent(payload json.RawMessage) OutboundEvent {
	return OutboundEvent{Type: EventChatMessage, Message: payload}
}

// NotifyMessageEvent wraps a serialized message for an inbox channel.
func NotifyMessageEvent(payload json.RawMessage) OutboundEvent {
	return OutboundEvent{Type: EventNotifyMessage, Message: payload}
}

// PongEvent acknowledges a client heartbeat.
func PongEvent() OutboundEvent {
	return OutboundEvent{Type: EventPong}
}

type pongFrame struct {
	Type EventType `json:"type"`
}

type messageFrame struct {
	Message json.RawMessage `json:"message"`
}

// Encode renders the frame written to the socket: {"type":"pong"} for pongs,
// {"message": ...} for room broadcasts and inbox notifications.
func (e OutboundEvent) Encode() ([]byte, error) {
	if e.Type == EventPong {
		return json.Marshal(pongFrame{Type: EventPong})
	}
	msg := e.Message
	if len(msg) == 0 {
		msg = json.RawMessage("null")
	}
	return json.Marshal(messageFrame{Message: msg})
}

// CommittedMessage is handed to the fanout once a message row is committed.
// Payload is the final serialized message and is forwarded untouched.
type CommittedMessage struct {
	SenderID string
	ChatID   string
	Payload  json.RawMessage
}

// SenderInfo is the public part of a sender embedded in every message.
type SenderInfo struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	ProfilePicture *string `json:"profile_picture"`
}

// MediaPayload describes one attachment of a serialized message.
type MediaPayload struct {
	ID   string      `json:"id"`
	Type MessageType `json:"type"`
	File string      `json:"file"`
}

// MessagePayload is the client-facing representation of a Message.
type MessagePayload struct {
	ID          string         `json:"id"`
	ChatID      string         `json:"chat_id"`
	SenderInfo  SenderInfo     `json:"sender_info"`
	Text        *string        `json:"text"`
	Type        MessageType    `json:"type"`
	Media       []MediaPayload `json:"media"`
	ReplyTo     *string        `json:"reply_to"`
	IsForwarded bool           `json:"is_forwarded"`
	IsDeleted   bool           `json:"is_deleted"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewMessagePayload builds the payload; m.Sender must be loaded.
func NewMessagePayload(m *Message) MessagePayload {
	media := make([]MediaPayload, 0, len(m.Media))
	for _, md := range m.Media {
		media = append(media, MediaPayload{ID: md.ID, Type: md.Type, File: md.File})
	}
	return MessagePayload{
		ID:     m.ID,
		ChatID: m.ChatID,
		SenderInfo: SenderInfo{
			ID:             m.Sender.ID,
			Name:           m.Sender.Name,
			ProfilePicture: m.Sender.ProfilePicture,
		},
		Text:        m.Text,
		Type:        m.Type,
		Media:       media,
		ReplyTo:     m.ReplyToID,
		IsForwarded: m.IsForwarded,
		IsDeleted:   m.IsDeleted,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// SerializeMessage returns the JSON payload used for every delivery of m.
func SerializeMessage(m *Message) (json.RawMessage, error) {
	b, err := json.Marshal(NewMessagePayload(m))
	if err != nil {
		return nil, err
	}
	return b, nil
}
