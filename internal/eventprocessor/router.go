// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package eventprocessor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// Metadata keys set on abandoned messages.
const (
	MetadataAbandonReason  = "abandon_reason"
	MetadataAbandonHandler = "abandon_handler"
	MetadataAbandonedAt    = "abandoned_at"
)

// AbandonFunc is called once per message after its final failed attempt.
type AbandonFunc func(msg *message.Message, err error)

// Router wraps the Watermill router with the job delivery policy.
//
// Middleware, outer to inner:
//
//	Abandon   - after the final failure: hook, optional poison publish, ack
//	Retry     - MaxAttempts-1 retries with exponential backoff
//	Recoverer - handler panics become errors and are retried
type Router struct {
	router    *message.Router
	config    RouterConfig
	logger    watermill.LoggerAdapter
	poisonPub message.Publisher
	onAbandon AbandonFunc

	mu       sync.Mutex
	handlers map[string]*message.Handler
	running  atomic.Bool
}

// NewRouter builds a router. poisonPublisher and onAbandon may be nil.
func NewRouter(
	cfg *RouterConfig,
	poisonPublisher message.Publisher,
	onAbandon AbandonFunc,
	logger watermill.LoggerAdapter,
) (*Router, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg == nil {
		defaultCfg := DefaultRouterConfig()
		cfg = &defaultCfg
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	r := &Router{
		router:    wmRouter,
		config:    *cfg,
		logger:    logger,
		poisonPub: poisonPublisher,
		onAbandon: onAbandon,
		handlers:  make(map[string]*message.Handler),
	}

	wmRouter.AddMiddleware(r.abandonMiddleware)

	if cfg.MaxAttempts > 1 {
		retry := middleware.Retry{
			MaxRetries:      cfg.MaxAttempts - 1,
			InitialInterval: cfg.InitialInterval,
			MaxInterval:     cfg.MaxInterval,
			Multiplier:      cfg.Multiplier,
			OnRetryHook: func(retryNum int, delay time.Duration) {
				logger.Info("Retrying job", watermill.LogFields{
					"retry":    retryNum,
					"delay_ms": delay.Milliseconds(),
				})
			},
			Logger: logger,
		}
		wmRouter.AddMiddleware(retry.Middleware)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	return r, nil
}

// abandonMiddleware acks a message whose handler failed after retries.
// The job is removed from the queue; the failure is surfaced via onAbandon.
func (r *Router) abandonMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		produced, err := h(msg)
		if err == nil {
			return produced, nil
		}

		// Shutting down: nack so the broker redelivers after restart.
		if msg.Context().Err() != nil {
			return nil, err
		}

		handler := message.HandlerNameFromCtx(msg.Context())
		if r.poisonPub != nil && r.config.PoisonTopic != "" {
			poisoned := msg.Copy()
			poisoned.Metadata.Set(MetadataAbandonReason, err.Error())
			poisoned.Metadata.Set(MetadataAbandonHandler, handler)
			poisoned.Metadata.Set(MetadataAbandonedAt, time.Now().UTC().Format(time.RFC3339))
			if pubErr := r.poisonPub.Publish(r.config.PoisonTopic, poisoned); pubErr != nil {
				r.logger.Error("Failed to publish abandoned job", pubErr, watermill.LogFields{
					"message_uuid": msg.UUID,
					"topic":        r.config.PoisonTopic,
				})
			}
		}

		r.logger.Error("Job abandoned after final attempt", err, watermill.LogFields{
			"message_uuid": msg.UUID,
			"handler":      handler,
			"attempts":     r.config.MaxAttempts,
		})
		if r.onAbandon != nil {
			r.onAbandon(msg, err)
		}
		return nil, nil
	}
}

// AddConsumerHandler registers a handler that produces no messages.
func (r *Router) AddConsumerHandler(
	name string,
	subscribeTopic string,
	subscriber message.Subscriber,
	handler message.NoPublishHandlerFunc,
) *message.Handler {
	h := r.router.AddConsumerHandler(name, subscribeTopic, subscriber, handler)
	r.mu.Lock()
	r.handlers[name] = h
	r.mu.Unlock()
	return h
}

// Run starts the router and blocks until ctx is cancelled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	r.running.Store(true)
	defer r.running.Store(false)
	return r.router.Run(ctx)
}

// Running returns a channel that is closed once handlers are subscribed.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for handlers.
func (r *Router) Close() error {
	return r.router.Close()
}

// IsRunning reports whether the router is processing messages.
func (r *Router) IsRunning() bool {
	return r.running.Load()
}

// Config returns the retry policy.
func (r *Router) Config() RouterConfig {
	return r.config
}
