// Package client is a gRPC client for the match service and the text client
// built on it.
package client

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/najoast/snakepit/game"
	"github.com/najoast/snakepit/protocol"
)

// Client calls the match service over one connection.
type Client struct {
	conn *grpc.ClientConn
	own  bool
}

// DefaultDialOptions returns the options Dial uses when none are given.
func DefaultDialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Dial connects to the match service at addr.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = DefaultDialOptions()
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, own: true}, nil
}

// New wraps an existing connection. Close leaves the connection open.
func New(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the connection if the client opened it.
func (c *Client) Close() error {
	if !c.own {
		return nil
	}
	return c.conn.Close()
}

// WaitForHealth blocks until the match service reports SERVING.
func (c *Client) WaitForHealth(ctx context.Context) error {
	resp, err := grpc_health_v1.NewHealthClient(c.conn).Check(ctx,
		&grpc_health_v1.HealthCheckRequest{Service: protocol.ServiceName},
		grpc.WaitForReady(true),
	)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("match service is %s", resp.GetStatus())
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	return c.conn.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(protocol.CodecName))
}

// CreateMatch creates a match. Zero arguments use the server defaults.
func (c *Client) CreateMatch(ctx context.Context, width, height int, tickMillis int64) (string, error) {
	var resp protocol.CreateMatchResponse
	err := c.invoke(ctx, protocol.MethodCreateMatch, &protocol.CreateMatchRequest{
		Width:            width,
		Height:           height,
		TickPeriodMillis: tickMillis,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.MatchID, nil
}

// JoinMatch joins a match as a new player.
func (c *Client) JoinMatch(ctx context.Context, matchID string) (*protocol.JoinMatchResponse, error) {
	var resp protocol.JoinMatchResponse
	if err := c.invoke(ctx, protocol.MethodJoinMatch, &protocol.JoinMatchRequest{MatchID: matchID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartMatch starts the match clock.
func (c *Client) StartMatch(ctx context.Context, matchID, playerID string) error {
	var resp protocol.StartMatchResponse
	return c.invoke(ctx, protocol.MethodStartMatch, &protocol.StartMatchRequest{MatchID: matchID, PlayerID: playerID}, &resp)
}

// SubmitDirection votes for a direction.
func (c *Client) SubmitDirection(ctx context.Context, matchID, playerID string, dir game.Direction) (*protocol.Snapshot, error) {
	var resp protocol.SubmitDirectionResponse
	err := c.invoke(ctx, protocol.MethodSubmitDirection, &protocol.SubmitDirectionRequest{
		MatchID:   matchID,
		PlayerID:  playerID,
		Direction: int(dir),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Snapshot, nil
}

// GetStatus reads the current snapshot.
func (c *Client) GetStatus(ctx context.Context, matchID, playerID string) (*protocol.Snapshot, error) {
	var resp protocol.GetStatusResponse
	if err := c.invoke(ctx, protocol.MethodGetStatus, &protocol.GetStatusRequest{MatchID: matchID, PlayerID: playerID}, &resp); err != nil {
		return nil, err
	}
	return resp.Snapshot, nil
}

// ListMatches lists every match on the server.
func (c *Client) ListMatches(ctx context.Context) ([]protocol.MatchSummary, error) {
	var resp protocol.ListMatchesResponse
	if err := c.invoke(ctx, protocol.MethodListMatches, &protocol.ListMatchesRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}
