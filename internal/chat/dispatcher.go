package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Push payload statuses as they appear on the wire. Identify reports
// "failed", sendMessage reports "fail"; both are load-bearing for clients.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusFail    = "fail"
)

// Payload is the event pushed to clients over the websocket channel.
type Payload struct {
	Action  string        `json:"action"`
	Status  string        `json:"status"`
	History []ChatMessage `json:"sortedLatestLogs,omitempty"`
}

// PushClient is the slice of the API Gateway management API used to push.
type PushClient interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

const defaultFanOutLimit = 8

// Dispatcher pushes payloads to one or all live connections. Fan-out runs
// with bounded parallelism; a failed push to one connection never blocks
// delivery to the others. No retries: a failed push is logged and dropped.
type Dispatcher struct {
	client   PushClient
	registry *Registry
	log      *slog.Logger
	limit    int
}

func NewDispatcher(client PushClient, registry *Registry, log *slog.Logger) *Dispatcher {
	return &Dispatcher{client: client, registry: registry, log: log, limit: defaultFanOutLimit}
}

func (d *Dispatcher) PushToOne(ctx context.Context, connectionID string, p Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = d.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("post to connection %s: %w", connectionID, err)
	}
	return nil
}

// PushToAll delivers p to every connection in the registry. The only error
// it returns is a failure to enumerate targets; per-connection push faults
// are captured inside the group.
func (d *Dispatcher) PushToAll(ctx context.Context, p Payload) error {
	conns, err := d.registry.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list broadcast targets: %w", err)
	}
	ids := lo.Map(conns, func(c Connection, _ int) string { return c.ConnectionID })

	var g errgroup.Group
	g.SetLimit(d.limit)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := d.PushToOne(ctx, id, p); err != nil {
				// Stale connections surface here (e.g. GoneException).
				d.log.Warn("push failed", "connectionId", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return nil
}
