package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classroom-backend/internal/catalog"
	"github.com/stemsi/classroom-backend/internal/config"
)

// noticePublishTimeout bounds a single Redis PUBLISH.
const noticePublishTimeout = 2 * time.Second

// NoticeService fans catalog notices out over Redis Pub/Sub so every open
// connection of the user receives them.
type NoticeService struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewNoticeService creates a new NoticeService.
func NewNoticeService(rdb *redis.Client, log zerolog.Logger) *NoticeService {
	return &NoticeService{
		rdb: rdb,
		log: log.With().Str("component", "notice_service").Logger(),
	}
}

// Notify implements catalog.Notifier. Delivery is best effort.
func (s *NoticeService) Notify(userID int, n catalog.Notice) {
	evt := s.log.Info()
	if n.Level != catalog.NoticeInfo {
		evt = s.log.Warn()
	}
	evt.Int("user_id", userID).Str("code", n.Code).Msg(n.Message)

	raw, err := json.Marshal(n)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), noticePublishTimeout)
	defer cancel()

	if err := s.rdb.Publish(ctx, config.CacheKey.UserNoticeChannel(userID), raw).Err(); err != nil {
		s.log.Error().Err(err).Int("user_id", userID).Msg("Failed to publish notice")
	}
}

// Subscribe opens a Pub/Sub subscription to a user's notices. The caller closes it.
func (s *NoticeService) Subscribe(ctx context.Context, userID int) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.UserNoticeChannel(userID))
}
