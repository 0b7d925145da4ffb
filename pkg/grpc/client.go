/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package grpc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	defaultMaxRetries                 = 3
	retryInterceptorTimeoutDuration   = 100 * time.Millisecond
	retryInterceptorAttemptMultiplier = 2
)

// ClientOption allows customization of the client.
type ClientOption func(*ClientConn)

// ClientConn is a health-checking client of a Server.
type ClientConn struct {
	conn         *grpc.ClientConn
	healthClient healthpb.HealthClient
	addr         string
	maxRetries   int
	logger       *zap.Logger
}

// WithMaxRetries sets the maximum number of attempts per call.
func WithMaxRetries(retries int) ClientOption {
	return func(c *ClientConn) {
		if retries > 0 {
			c.maxRetries = retries
		}
	}
}

func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *ClientConn) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a plaintext client of the server at addr.
func NewClient(addr string, opts ...ClientOption) (*ClientConn, error) {
	if addr == "" {
		return nil, errAddressRequired
	}

	c := &ClientConn{
		addr:       addr,
		maxRetries: defaultMaxRetries,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(
			ClientLoggingInterceptor(c.logger),
			RetryInterceptor(c.maxRetries),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	c.conn = conn
	c.healthClient = healthpb.NewHealthClient(conn)

	return c, nil
}

// Close closes the client connection.
func (c *ClientConn) Close() error {
	return c.conn.Close()
}

// CheckHealth reports whether service is serving. The empty service is the
// dashboard as a whole.
func (c *ClientConn) CheckHealth(ctx context.Context, service string) (bool, error) {
	resp, err := c.healthClient.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return false, fmt.Errorf("health check failed: %w", err)
	}

	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

// RequireServing returns an error unless service is serving.
func (c *ClientConn) RequireServing(ctx context.Context, service string) error {
	ok, err := c.CheckHealth(ctx, service)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: %q", errNotServing, service)
	}

	return nil
}

// RetryInterceptor retries failed calls with a growing delay.
func RetryInterceptor(maxRetries int) grpc.UnaryClientInterceptor {
	return func(ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption) error {
		var lastErr error

		for attempt := 0; attempt < maxRetries; attempt++ {
			if attempt > 0 {
				delay := time.Duration(attempt*retryInterceptorAttemptMultiplier) * retryInterceptorTimeoutDuration

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}

			lastErr = invoker(ctx, method, req, reply, cc, opts...)
			if lastErr == nil {
				return nil
			}
		}

		return fmt.Errorf("all retry attempts failed: %w", lastErr)
	}
}

// ClientLoggingInterceptor logs client-side RPC calls.
func ClientLoggingInterceptor(logger *zap.Logger) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req interface{},
		reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)

		logger.Debug("gRPC client call",
			zap.String("method", method),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))

		return err
	}
}
