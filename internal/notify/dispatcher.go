// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/warden/internal/platform/metrics"
	"github.com/taibuivan/warden/pkg/uuid"
)

// Dispatcher sends notifications in the background.
type Dispatcher struct {
	sender   Sender
	timeout  time.Duration
	observer *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
	inflight sync.WaitGroup
}

// NewDispatcher wraps sender. Each delivery is bounded by timeout.
func NewDispatcher(sender Sender, timeout time.Duration, observer *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		timeout:  timeout,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

/*
Notify schedules a message and returns immediately.

The delivery runs detached from the caller's cancellation, so a request that
finishes first does not abort its own welcome email.

Parameters:
  - context: context.Context (values only, used for log correlation)
  - to: string (recipient address)
  - kind: Kind
  - data: map[string]string (template data)
*/
func (dispatcher *Dispatcher) Notify(context context.Context, to string, kind Kind, data map[string]string) {
	message := Message{
		ID:        uuid.New(),
		To:        to,
		Kind:      kind,
		Data:      data,
		CreatedAt: dispatcher.now().UTC(),
	}

	dispatcher.inflight.Add(1)
	go func() {
		defer dispatcher.inflight.Done()
		dispatcher.deliver(context, message)
	}()
}

func (dispatcher *Dispatcher) deliver(parent context.Context, message Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), dispatcher.timeout)
	defer cancel()

	err := dispatcher.sender.Deliver(ctx, message)
	dispatcher.observer.Notification(string(message.Kind), err == nil)

	if err != nil {
		dispatcher.logger.ErrorContext(ctx, "notification_delivery_failed",
			slog.String("id", message.ID),
			slog.String("kind", string(message.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

// Wait blocks until every scheduled delivery has finished or ctx ends.
func (dispatcher *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		dispatcher.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
