// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultMosquittoImage is the Eclipse Mosquitto broker image.
	DefaultMosquittoImage = "eclipse-mosquitto:2"

	// DefaultMosquittoPort is the plain MQTT listener.
	DefaultMosquittoPort = "1883/tcp"
)

// MosquittoContainer is a running MQTT broker.
type MosquittoContainer struct {
	testcontainers.Container

	// BrokerURL is a paho-style tcp://host:port address.
	BrokerURL string
}

// MosquittoOption configures the broker container.
type MosquittoOption func(*mosquittoConfig)

type mosquittoConfig struct {
	image        string
	startTimeout time.Duration
}

// WithMosquittoImage overrides the image.
func WithMosquittoImage(image string) MosquittoOption {
	return func(c *mosquittoConfig) {
		c.image = image
	}
}

// WithMosquittoStartTimeout sets how long to wait for the listener.
func WithMosquittoStartTimeout(timeout time.Duration) MosquittoOption {
	return func(c *mosquittoConfig) {
		c.startTimeout = timeout
	}
}

// NewMosquittoContainer starts an anonymous-access broker.
//
//	broker, err := testinfra.NewMosquittoContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer testinfra.CleanupContainer(t, ctx, broker.Container)
//
//	client := push.NewClient(&config.MQTTConfig{BrokerURL: broker.BrokerURL})
func NewMosquittoContainer(ctx context.Context, opts ...MosquittoOption) (*MosquittoContainer, error) {
	cfg := &mosquittoConfig{
		image:        DefaultMosquittoImage,
		startTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	// Mosquitto 2 binds to localhost only unless given a config; the image
	// ships one that listens on all interfaces without auth.
	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultMosquittoPort},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort(DefaultMosquittoPort).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create mosquitto container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, DefaultMosquittoPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &MosquittoContainer{
		Container: container,
		BrokerURL: fmt.Sprintf("tcp://%s:%s", host, port.Port()),
	}, nil
}
