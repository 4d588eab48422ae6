// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements [Sender] as an outbox list in Redis.
//
// Messages are LPUSHed, so a consumer doing BRPOP reads them in FIFO order.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a new Redis-backed [Sender] writing to the list at key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

/*
Deliver enqueues the message.

Parameters:
  - context: context.Context
  - message: Message

Returns:
  - error: Encoding or connectivity errors
*/
func (queue *RedisQueue) Deliver(context context.Context, message Message) error {

	// Encode the message
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("redis_notify_encode_failed: %w", err)
	}

	// Push onto the outbox
	if err := queue.client.LPush(context, queue.key, payload).Err(); err != nil {
		return fmt.Errorf("redis_notify_push_failed: %w", err)
	}

	return nil
}

// Len reports how many messages are waiting in the outbox.
func (queue *RedisQueue) Len(context context.Context) (int64, error) {
	length, err := queue.client.LLen(context, queue.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis_notify_len_failed: %w", err)
	}
	return length, nil
}
