// Package presence records who is looking at which chat room and who is
// online at all. Markers are Redis keys with a short TTL refreshed by client
// heartbeats; an expired key is the only "offline" signal.
//
// Key layout, shared with the admin CLI:
//
//	chat_{chat_id}:active_users:{user_id}  room marker
//	last_seen:{user_id}                    global online marker
package presence

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"chatpulse/backend/internal/config"

	"github.com/redis/go-redis/v9"
)

const globalPrefix = "last_seen:"

// UserSet is a set of user IDs.
type UserSet map[string]struct{}

// NewUserSet builds a set from ids.
func NewUserSet(ids ...string) UserSet {
	s := make(UserSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s UserSet) Add(id string) { s[id] = struct{}{} }

func (s UserSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s UserSet) Len() int { return len(s) }

// Sorted returns the members in lexical order.
func (s UserSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Store reads and writes presence markers. It shares the process-wide Redis
// client; it never owns or closes it.
type Store struct {
	rdb       redis.Cmdable
	scanCount int64
}

// NewStore wraps the shared Redis client.
func NewStore(rdb redis.Cmdable) *Store {
	return &Store{rdb: rdb, scanCount: config.PresenceScanCount}
}

// RoomPrefix is the key prefix of every room marker of chatID.
func RoomPrefix(chatID string) string {
	return "chat_" + chatID + ":active_users:"
}

// RoomKey is the room marker key for userID in chatID.
func RoomKey(chatID, userID string) string {
	return RoomPrefix(chatID) + userID
}

// GlobalKey is the online marker key for userID.
func GlobalKey(userID string) string {
	return globalPrefix + userID
}

// HeartbeatRoom sets or refreshes the room marker of userID in chatID.
func (s *Store) HeartbeatRoom(ctx context.Context, chatID, userID string, ttl time.Duration) error {
	return s.rdb.Set(ctx, RoomKey(chatID, userID), userID, ttl).Err()
}

// HeartbeatGlobal sets or refreshes the online marker of userID.
func (s *Store) HeartbeatGlobal(ctx context.Context, userID string, ttl time.Duration) error {
	return s.rdb.Set(ctx, GlobalKey(userID), time.Now().UTC().Format(time.RFC3339), ttl).Err()
}

// ClearRoom drops the room marker right away instead of waiting for the TTL.
func (s *Store) ClearRoom(ctx context.Context, chatID, userID string) error {
	return s.rdb.Del(ctx, RoomKey(chatID, userID)).Err()
}

// ActiveUsersInRoom returns the users with a live room marker in chatID.
// Store errors yield an empty set.
func (s *Store) ActiveUsersInRoom(ctx context.Context, chatID string) UserSet {
	return s.scan(ctx, RoomPrefix(chatID))
}

// AllOnlineUsers returns the users with a live global marker.
// Store errors yield an empty set.
func (s *Store) AllOnlineUsers(ctx context.Context) UserSet {
	return s.scan(ctx, globalPrefix)
}

// scan walks every key under prefix until Redis hands back cursor 0.
// SCAN may return a key more than once; the set absorbs duplicates.
func (s *Store) scan(ctx context.Context, prefix string) UserSet {
	users := make(UserSet)
	pattern := escapePattern(prefix) + "*"

	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, s.scanCount).Result()
		if err != nil {
			log.Printf("WARNING: presence scan %q failed, treating as empty: %v", pattern, err)
			return make(UserSet)
		}
		for _, key := range keys {
			if id := strings.TrimPrefix(key, prefix); id != "" && id != key {
				users.Add(id)
			}
		}
		if next == 0 {
			return users
		}
		cursor = next
	}
}

// escapePattern quotes the glob metacharacters understood by SCAN MATCH.
func escapePattern(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
