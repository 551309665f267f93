// Package redis implements the journal's domain/repositories interfaces
// against the store schema described in the core: per-identifier and
// per-tag sorted sets, and their paired pub/sub channels.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ghuser/persistredis/services/journal/domain/repositories"
)

// StoreGateway implements repositories.StoreGateway against a redis.Client.
type StoreGateway struct {
	client *redis.Client
}

// NewStoreGateway returns a StoreGateway backed by client.
func NewStoreGateway(client *redis.Client) *StoreGateway {
	return &StoreGateway{client: client}
}

// Range issues ZRANGEBYSCORE key lo hi WITHSCORES, ascending by score.
func (g *StoreGateway) Range(ctx context.Context, key string, lo, hi uint64) ([]repositories.ScoredValue, error) {
	rows, err := g.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", lo),
		Max: fmt.Sprintf("%d", hi),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore %s [%d,%d]: %w", key, lo, hi, err)
	}

	out := make([]repositories.ScoredValue, 0, len(rows))
	for _, row := range rows {
		member, ok := row.Member.(string)
		if !ok {
			return nil, fmt.Errorf("zrangebyscore %s: unexpected member type %T", key, row.Member)
		}
		out = append(out, repositories.ScoredValue{
			Score: uint64(row.Score),
			Value: []byte(member),
		})
	}
	return out, nil
}

// Subscribe opens a Redis pub/sub subscription on channel.
func (g *StoreGateway) Subscribe(ctx context.Context, channel string) (repositories.Subscription, error) {
	ps := g.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return newRedisSubscription(ps), nil
}

// redisSubscription adapts *redis.PubSub to repositories.Subscription,
// translating its *redis.Message channel into a plain payload-string channel.
type redisSubscription struct {
	ps   *redis.PubSub
	out  chan string
	done chan struct{}
}

func newRedisSubscription(ps *redis.PubSub) *redisSubscription {
	s := &redisSubscription{
		ps:   ps,
		out:  make(chan string),
		done: make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *redisSubscription) pump() {
	defer close(s.out)
	ch := s.ps.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case s.out <- msg.Payload:
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan string {
	return s.out
}

func (s *redisSubscription) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.ps.Close()
}
