package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"lingua-backend/internal/models"
)

// UserChannel is the pub/sub channel the websocket hub subscribes to for one user.
func UserChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_updates:%s", userID.String())
}

// Notifier publishes WebSocket updates via Redis pub/sub.
type Notifier struct {
	redis *redis.Client
}

func NewNotifier(redisClient *redis.Client) *Notifier {
	return &Notifier{redis: redisClient}
}

func (n *Notifier) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("notifier: failed to encode %s message: %v", msg.Type, err)
		return
	}
	if err := n.redis.Publish(ctx, UserChannel(userID), string(data)).Err(); err != nil {
		log.Printf("notifier: failed to publish %s to user %s: %v", msg.Type, userID, err)
	}
}
