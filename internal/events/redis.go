package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes audit events on a per-client redis channel.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(ctx context.Context, addr, password string, db int) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("events.NewRedisPublisher: ping: %w", err)
	}

	return &RedisPublisher{client: client}, nil
}

func (p *RedisPublisher) Close() error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("events.RedisPublisher.Close: %w", err)
	}
	return nil
}

func (p *RedisPublisher) PublishAuditCompleted(ctx context.Context, evt AuditCompleted) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events.RedisPublisher.Publish: %w", err)
	}
	if err := p.client.Publish(ctx, ClientChannel(evt.ClientID), payload).Err(); err != nil {
		return fmt.Errorf("events.RedisPublisher.Publish: %w", err)
	}
	return nil
}

// Subscribe streams the events of one client until ctx is done or the
// returned cleanup is called.
func (p *RedisPublisher) Subscribe(ctx context.Context, clientID string) (<-chan AuditCompleted, func(), error) {
	sub := p.client.Subscribe(ctx, ClientChannel(clientID))

	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("events.RedisPublisher.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan AuditCompleted, 16)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				var evt AuditCompleted
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, func() { _ = sub.Close() }, nil
}

// ClientChannel returns the redis channel carrying a client's audit events.
func ClientChannel(clientID string) string {
	return "audits:" + clientID
}
