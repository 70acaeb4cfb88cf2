package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// AnonymousName is the display name for senders that never identified.
const AnonymousName = "Anonymous"

// Controller orchestrates the relay events. Each event is stateless at this
// level; all cross-event state lives in the registry and the log. Faults are
// handled at the handler boundary only, with no partial-operation rollback:
// a message may be logged even if the broadcast after it partially fails.
type Controller struct {
	registry   *Registry
	messages   *Log
	dispatcher *Dispatcher
	log        *slog.Logger
	now        func() time.Time
}

func NewController(registry *Registry, messages *Log, dispatcher *Dispatcher, log *slog.Logger) *Controller {
	return &Controller{
		registry:   registry,
		messages:   messages,
		dispatcher: dispatcher,
		log:        log,
		now:        time.Now,
	}
}

// Connect registers the transport-assigned connection id with no username.
func (c *Controller) Connect(ctx context.Context, connectionID string) error {
	return c.registry.Upsert(ctx, Connection{
		ConnectionID: connectionID,
		ConnectedAt:  c.now().UTC().Format(time.RFC3339Nano),
	})
}

// Identify binds a display name to an existing connection and replays the
// full history to it. The upsert writes connectionId and username together
// so the overwrite cannot drop a name set earlier.
func (c *Controller) Identify(ctx context.Context, connectionID, username string) error {
	if _, err := c.registry.Get(ctx, connectionID); err != nil {
		return err
	}

	err := c.registry.Upsert(ctx, Connection{
		ConnectionID: connectionID,
		Username:     username,
		ConnectedAt:  c.now().UTC().Format(time.RFC3339Nano),
	})
	if err == nil {
		var history []ChatMessage
		history, err = c.messages.RecentHistory(ctx)
		if err == nil {
			err = c.dispatcher.PushToOne(ctx, connectionID, Payload{
				Action:  "identify",
				Status:  StatusSuccess,
				History: history,
			})
		}
	}
	if err != nil {
		c.log.Error("identify failed", "connectionId", connectionID, "error", err)
		if pushErr := c.dispatcher.PushToOne(ctx, connectionID, Payload{
			Action: "identify",
			Status: StatusFailed,
		}); pushErr != nil {
			c.log.Warn("failure notification not delivered", "connectionId", connectionID, "error", pushErr)
		}
		return err
	}
	return nil
}

// SendMessage logs a message from a known connection and broadcasts the
// refreshed history to everyone. The sender's name comes from the registry,
// never from the client, so displayed names cannot be spoofed. An unknown
// sender gets ErrNotFound with no log write and no broadcast.
func (c *Controller) SendMessage(ctx context.Context, connectionID, text string) error {
	conn, err := c.registry.Get(ctx, connectionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.log.Warn("message from unknown connection", "connectionId", connectionID)
		}
		return err
	}

	username := conn.Username
	if username == "" {
		username = AnonymousName
	}
	c.log.Info("message received", "connectionId", connectionID, "username", username)

	if _, err := c.messages.Append(ctx, connectionID, username, text); err != nil {
		return c.failSend(ctx, connectionID, err)
	}
	history, err := c.messages.RecentHistory(ctx)
	if err != nil {
		return c.failSend(ctx, connectionID, err)
	}
	if err := c.dispatcher.PushToAll(ctx, Payload{
		Action:  "sendMessage",
		Status:  StatusSuccess,
		History: history,
	}); err != nil {
		return c.failSend(ctx, connectionID, err)
	}
	return nil
}

func (c *Controller) failSend(ctx context.Context, connectionID string, err error) error {
	c.log.Error("sendMessage failed", "connectionId", connectionID, "error", err)
	if pushErr := c.dispatcher.PushToOne(ctx, connectionID, Payload{
		Action: "sendMessage",
		Status: StatusFail,
	}); pushErr != nil {
		c.log.Warn("failure notification not delivered", "connectionId", connectionID, "error", pushErr)
	}
	return fmt.Errorf("send message: %w", err)
}

// Disconnect drops the registry entry. Removing an absent id still succeeds,
// so a late or duplicate disconnect is harmless.
func (c *Controller) Disconnect(ctx context.Context, connectionID string) error {
	return c.registry.Remove(ctx, connectionID)
}

// ManualDisconnect notifies the client only. The registry entry stays until
// the transport fires its own disconnect event.
func (c *Controller) ManualDisconnect(ctx context.Context, connectionID string) error {
	return c.dispatcher.PushToOne(ctx, connectionID, Payload{
		Action: "manualDisconnect",
		Status: StatusSuccess,
	})
}
