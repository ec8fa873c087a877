package models_test

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"chatpulse/backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBeforeCreate_GeneratesUUID verifies every model hook assigns a valid UUID.
func TestBeforeCreate_GeneratesUUID(t *testing.T) {
	user := &models.User{Name: "alice"}
	chat := &models.Chat{}
	participant := &models.ChatParticipant{}
	message := &models.Message{}
	media := &models.MessageMedia{}

	require.NoError(t, user.BeforeCreate(nil))
	require.NoError(t, chat.BeforeCreate(nil))
	require.NoError(t, participant.BeforeCreate(nil))
	require.NoError(t, message.BeforeCreate(nil))
	require.NoError(t, media.BeforeCreate(nil))

	for _, id := range []string{user.ID, chat.ID, participant.ID, message.ID, media.ID} {
		parsed, err := uuid.Parse(id)
		assert.NoError(t, err, "ID must be a valid UUID string")
		assert.NotEqual(t, uuid.Nil, parsed)
	}

	assert.Equal(t, models.ChatTypeIndividual, chat.Type, "chat type defaults to Individual")
	assert.Equal(t, models.RoleMember, participant.Role, "role defaults to Member")
	assert.Equal(t, models.MessageText, message.Type, "message type defaults to Text")
}

// TestBeforeCreate_PreservesExistingID verifies the hook doesn't overwrite an existing ID.
func TestBeforeCreate_PreservesExistingID(t *testing.T) {
	existingID := uuid.New().String()
	user := &models.User{ID: existingID}

	err := user.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.Equal(t, existingID, user.ID)
}

// TestParticipantStructTags guards the membership columns used by the storage queries.
func TestParticipantStructTags(t *testing.T) {
	pType := reflect.TypeOf(models.ChatParticipant{})

	chatField, found := pType.FieldByName("ChatID")
	assert.True(t, found)
	assert.Contains(t, chatField.Tag.Get("gorm"), "index:idx_participant_chat_user")

	leftField, found := pType.FieldByName("LeftAt")
	assert.True(t, found)
	assert.Equal(t, reflect.TypeOf(&time.Time{}), leftField.Type, "LeftAt must be nullable")
}

func TestFrameType_Known(t *testing.T) {
	for _, ft := range []models.FrameType{"ping", "typing", "stop_typing", "read_message", "delete_message", "edit_message"} {
		assert.True(t, ft.Known(), ft)
	}
	assert.False(t, models.FrameType("shout").Known())
	assert.False(t, models.FrameType("").Known())
}

func TestMessageType_Valid(t *testing.T) {
	assert.True(t, models.MessageImage.Valid())
	assert.False(t, models.MessageType("Sticker").Valid())
}

func TestOutboundEvent_Encode(t *testing.T) {
	tests := []struct {
		name  string
		event models.OutboundEvent
		want  string
	}{
		{"pong", models.PongEvent(), `{"type":"pong"}`},
		{"chat message", models.ChatMessageEvent(json.RawMessage(`{"text":"hi"}`)), `{"message":{"text":"hi"}}`},
		{"notify message", models.NotifyMessageEvent(json.RawMessage(`{"text":"hi"}`)), `{"message":{"text":"hi"}}`},
		{"empty payload", models.ChatMessageEvent(nil), `{"message":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.event.Encode()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestSerializeMessage(t *testing.T) {
	text := "hi"
	pic := "/media/user/profile/a.png"
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := &models.Message{
		ID:       "m1",
		ChatID:   "c1",
		SenderID: "u1",
		Sender:   models.User{ID: "u1", Name: "alice", ProfilePicture: &pic},
		Text:     &text,
		Type:     models.MessageText,
		Media: []models.MessageMedia{
			{ID: "f1", Type: models.MessageImage, File: "messages/media/f1.png"},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}

	raw, err := models.SerializeMessage(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "m1", decoded["id"])
	assert.Equal(t, "c1", decoded["chat_id"])
	assert.Equal(t, "hi", decoded["text"])
	assert.Equal(t, "Text", decoded["type"])
	assert.Nil(t, decoded["reply_to"])
	assert.Equal(t, map[string]any{"id": "u1", "name": "alice", "profile_picture": pic}, decoded["sender_info"])
	assert.Len(t, decoded["media"], 1)
	assert.Equal(t, "2026-01-02T03:04:05Z", decoded["created_at"])
}

// BenchmarkUserBeforeCreate measures UUID generation performance.
func BenchmarkUserBeforeCreate(b *testing.B) {
	user := &models.User{Name: "benchmark_user"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		user.ID = ""
		_ = user.BeforeCreate(nil)
	}
}
