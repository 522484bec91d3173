package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"lingua-backend/internal/learning"
)

var (
	ErrNoLiveSession = errors.New("no live learning session")
	ErrSessionBusy   = errors.New("learning session is locked by another request")
)

// LiveSession is an in-progress learning session as kept in Redis between requests.
type LiveSession struct {
	StudySessionID uuid.UUID         `json:"study_session_id"`
	Snapshot       learning.Snapshot `json:"snapshot"`
	Recorded       bool              `json:"recorded"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

type LiveSessionRepo struct {
	redis   *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

func NewLiveSessionRepo(redisClient *redis.Client, ttl time.Duration) *LiveSessionRepo {
	return &LiveSessionRepo{
		redis:   redisClient,
		ttl:     ttl,
		lockTTL: 10 * time.Second,
	}
}

func liveSessionKey(userID, deckID uuid.UUID) string {
	return fmt.Sprintf("learning_session:%s:%s", userID, deckID)
}

func liveSessionLockKey(userID, deckID uuid.UUID) string {
	return fmt.Sprintf("learning_lock:%s:%s", userID, deckID)
}

func (r *LiveSessionRepo) Get(ctx context.Context, userID, deckID uuid.UUID) (*LiveSession, error) {
	data, err := r.redis.Get(ctx, liveSessionKey(userID, deckID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoLiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load learning session: %w", err)
	}

	var ls LiveSession
	if err := json.Unmarshal(data, &ls); err != nil {
		return nil, fmt.Errorf("failed to decode learning session: %w", err)
	}
	return &ls, nil
}

// Save writes the session and refreshes its TTL.
func (r *LiveSessionRepo) Save(ctx context.Context, userID, deckID uuid.UUID, ls *LiveSession) error {
	ls.UpdatedAt = time.Now()
	data, err := json.Marshal(ls)
	if err != nil {
		return fmt.Errorf("failed to encode learning session: %w", err)
	}
	return r.redis.Set(ctx, liveSessionKey(userID, deckID), data, r.ttl).Err()
}

func (r *LiveSessionRepo) Delete(ctx context.Context, userID, deckID uuid.UUID) error {
	return r.redis.Del(ctx, liveSessionKey(userID, deckID)).Err()
}

// Lock serializes requests against one live session. The returned func releases the lock.
func (r *LiveSessionRepo) Lock(ctx context.Context, userID, deckID uuid.UUID) (func(), error) {
	key := liveSessionLockKey(userID, deckID)
	token := uuid.NewString()

	for attempt := 0; attempt < 20; attempt++ {
		ok, err := r.redis.SetNX(ctx, key, token, r.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if ok {
			return func() { r.unlock(key, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil, ErrSessionBusy
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// unlock only deletes the lock if it still holds our token, so an expired lock taken over by
// another request is left alone.
func (r *LiveSessionRepo) unlock(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	unlockScript.Run(ctx, r.redis, []string{key}, token)
}
