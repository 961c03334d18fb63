// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"
)

// MessageRouter is satisfied by *eventprocessor.Router.
type MessageRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// MessageRouterService runs the alert job consumer.
//
// A Watermill router cannot be started twice, so a router that stops on
// its own is reported with suture.ErrDoNotRestart and stays down. Queries
// and ingestion keep running without it.
type MessageRouterService struct {
	router       MessageRouter
	closeTimeout time.Duration
	name         string
}

// NewMessageRouterService wraps router. closeTimeout bounds Close during
// shutdown; non-positive means 10s.
func NewMessageRouterService(router MessageRouter, closeTimeout time.Duration) *MessageRouterService {
	if closeTimeout <= 0 {
		closeTimeout = defaultShutdownTimeout
	}
	return &MessageRouterService{
		router:       router,
		closeTimeout: closeTimeout,
		name:         "alert-router",
	}
}

// Serve implements suture.Service.
func (s *MessageRouterService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.router.Run(ctx)
	}()

	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return fmt.Errorf("%w: alert router stopped: %v", suture.ErrDoNotRestart, err)
		}
		return suture.ErrDoNotRestart

	case <-ctx.Done():
		done := make(chan struct{})
		go func() {
			_ = s.router.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(s.closeTimeout):
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *MessageRouterService) String() string {
	return s.name
}
