package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// deletion marker published on the document channel. Documents are JSON
// objects and can never be the bare literal.
const redisDeleted = "null"

// RedisStore implements Store on a Redis backend: documents as JSON strings,
// lists via RPUSH, change fan-out via pub/sub. Subscribers snapshot (or
// replay) first and then follow the channel.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	doc, err := s.client.Get(ctx, redisDocKey(collection, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return doc, nil
}

func (s *RedisStore) Create(ctx context.Context, collection, key string, doc []byte) error {
	ok, err := s.client.SetNX(ctx, redisDocKey(collection, key), doc, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return s.publishDoc(ctx, collection, key, doc)
}

func (s *RedisStore) Set(ctx context.Context, collection, key string, doc []byte) error {
	if err := s.client.Set(ctx, redisDocKey(collection, key), doc, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.publishDoc(ctx, collection, key, doc)
}

func (s *RedisStore) Update(ctx context.Context, collection, key string, mutate func(doc []byte) ([]byte, error)) error {
	current, err := s.Get(ctx, collection, key)
	if err != nil {
		return err
	}

	next, err := mutate(current)
	if err != nil {
		return err
	}

	// Read-modify-write without a transaction: last write wins, per the
	// store's consistency contract.
	return s.Set(ctx, collection, key, next)
}

func (s *RedisStore) Delete(ctx context.Context, collection, key string) error {
	n, err := s.client.Del(ctx, redisDocKey(collection, key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := s.client.Publish(ctx, redisDocChannel(collection, key), redisDeleted).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Subscribe(ctx context.Context, collection, key string, h DocHandler) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, redisDocChannel(collection, key))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	stop := make(chan struct{})

	go func() {
		doc, err := s.Get(ctx, collection, key)
		if err != nil {
			h(nil, false)
		} else {
			h(doc, true)
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-stop:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == redisDeleted {
					h(nil, false)
					continue
				}
				h([]byte(msg.Payload), true)
			}
		}
	}()

	return newCancelSub(func() {
		close(stop)
		pubsub.Close()
	}), nil
}

func (s *RedisStore) Append(ctx context.Context, collection, key, list string, item []byte) error {
	if err := s.client.RPush(ctx, redisListKey(collection, key, list), item).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.client.Publish(ctx, redisListChannel(collection, key, list), item).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) SubscribeList(ctx context.Context, collection, key, list string, h ItemHandler) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, redisListChannel(collection, key, list))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	stop := make(chan struct{})

	go func() {
		// Replay after the channel is open: an append racing the replay may
		// be seen twice, never missed.
		items, err := s.client.LRange(ctx, redisListKey(collection, key, list), 0, -1).Result()
		if err == nil {
			for _, item := range items {
				h([]byte(item))
			}
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-stop:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				h([]byte(msg.Payload))
			}
		}
	}()

	return newCancelSub(func() {
		close(stop)
		pubsub.Close()
	}), nil
}

func (s *RedisStore) publishDoc(ctx context.Context, collection, key string, doc []byte) error {
	if err := s.client.Publish(ctx, redisDocChannel(collection, key), doc).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func redisDocKey(collection, key string) string {
	return collection + ":" + key
}

func redisDocChannel(collection, key string) string {
	return "doc:" + collection + ":" + key
}

func redisListKey(collection, key, list string) string {
	return collection + ":" + key + ":" + list
}

func redisListChannel(collection, key, list string) string {
	return "list:" + collection + ":" + key + ":" + list
}
