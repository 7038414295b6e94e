package message

import (
	"context"
	"encoding/json"
	"fmt"

	"cipher_chat/internal/model"
	"cipher_chat/internal/service/redis"
)

type RedisStore struct {
	redisService *redis.RedisService
}

func NewRedisStore(redisService *redis.RedisService) *RedisStore {
	return &RedisStore{
		redisService: redisService,
	}
}

func channelKey(channel string) string {
	return fmt.Sprintf("chat:%s", channel)
}

func (s *RedisStore) Append(ctx context.Context, channel string, rec model.RawMessage) (int, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}
	n, err := s.redisService.RPush(ctx, channelKey(channel), data)
	return int(n), err
}

func (s *RedisStore) List(ctx context.Context, channel string) ([]model.RawMessage, error) {
	vals, err := s.redisService.LRange(ctx, channelKey(channel))
	if err != nil {
		return nil, err
	}

	res := make([]model.RawMessage, 0, len(vals))
	for _, v := range vals {
		var m model.RawMessage
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, nil
}

func (s *RedisStore) Count(ctx context.Context, channel string) (int, error) {
	n, err := s.redisService.LLen(ctx, channelKey(channel))
	return int(n), err
}
