package storage

import (
	"context"
	"errors"
	"fmt"
	"log"

	"chatpulse/backend/internal/models"

	"gorm.io/gorm"
)

// ErrInvalidReply is returned when reply_to does not name a message of the same chat.
var ErrInvalidReply = errors.New("reply target is not a message of this chat")

// CommitHook receives every message once its transaction has committed.
type CommitHook func(models.CommittedMessage)

type Storage interface {
	ChatMemberIDs(ctx context.Context, chatID string) ([]string, error)
	IsChatMember(ctx context.Context, chatID, userID string) (bool, error)
	SaveMessage(ctx context.Context, msg *models.Message) (*models.CommittedMessage, error)
}

type Service struct {
	DB   *gorm.DB
	hook CommitHook
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// AutoMigrate creates or updates the tables used by the service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.ChatParticipant{},
		&models.Message{},
		&models.MessageMedia{},
	)
}

// SetCommitHook installs the function called after each committed message.
// It must not block; the fanout dispatcher only enqueues.
func (s *Service) SetCommitHook(hook CommitHook) {
	s.hook = hook
}

// activeMembers selects current participants of a chat that is not deleted.
func (s *Service) activeMembers(ctx context.Context, chatID string) *gorm.DB {
	return s.DB.WithContext(ctx).
		Model(&models.ChatParticipant{}).
		Joins("JOIN chats ON chats.id = chat_participants.chat_id").
		Where("chat_participants.chat_id = ?", chatID).
		Where("chat_participants.left_at IS NULL").
		Where("chats.is_deleted = ?", false)
}

// ChatMemberIDs returns the user ids of every current member of chatID.
// Members who left the chat are excluded.
func (s *Service) ChatMemberIDs(ctx context.Context, chatID string) ([]string, error) {
	var ids []string
	if err := s.activeMembers(ctx, chatID).
		Distinct().
		Pluck("chat_participants.user_id", &ids).Error; err != nil {
		log.Printf("ERROR: Failed to load members of chat %s: %v", chatID, err)
		return nil, err
	}
	return ids, nil
}

// IsChatMember reports whether userID currently belongs to chatID.
func (s *Service) IsChatMember(ctx context.Context, chatID, userID string) (bool, error) {
	var count int64
	if err := s.activeMembers(ctx, chatID).
		Where("chat_participants.user_id = ?", userID).
		Count(&count).Error; err != nil {
		log.Printf("ERROR: Failed to check membership of user %s in chat %s: %v", userID, chatID, err)
		return false, err
	}
	return count > 0, nil
}

// SaveMessage stores msg with its media in one transaction. The message is
// reloaded with its sender and serialized before the commit, so a message is
// never durable without a payload. The payload is handed to the commit hook
// once the transaction has committed.
func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) (*models.CommittedMessage, error) {
	var payload []byte
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if msg.ReplyToID != nil {
			var count int64
			if err := tx.Model(&models.Message{}).
				Where("id = ? AND chat_id = ?", *msg.ReplyToID, msg.ChatID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrInvalidReply
			}
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		if err := tx.Preload("Sender").
			Preload("Media").
			Where("id = ?", msg.ID).
			First(msg).Error; err != nil {
			return fmt.Errorf("reload message %s: %w", msg.ID, err)
		}

		var err error
		payload, err = models.SerializeMessage(msg)
		if err != nil {
			return fmt.Errorf("serialize message %s: %w", msg.ID, err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrInvalidReply) {
			log.Printf("ERROR: Failed to save message for chat %s: %v", msg.ChatID, err)
		}
		return nil, err
	}

	committed := &models.CommittedMessage{SenderID: msg.SenderID, ChatID: msg.ChatID, Payload: payload}
	if s.hook != nil {
		s.hook(*committed)
	}
	return committed, nil
}
