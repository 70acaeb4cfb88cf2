package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"backend/internal/chat"
	"backend/internal/config"
	"backend/internal/db"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
)

// ChatHandler adapts websocket gateway events to the relay controller. One
// instance is built per process; every route lambda reuses the same
// collaborators for the lifetime of the execution environment.
type ChatHandler struct {
	relay *chat.Controller
	log   *slog.Logger
}

func NewChatHandler(awsCfg aws.Config, cfg config.Config, log *slog.Logger) *ChatHandler {
	ddb := db.NewDynamoClient(awsCfg)
	gateway := db.NewGatewayClient(awsCfg, cfg.WebsocketEndpoint)

	registry := chat.NewRegistry(ddb, cfg.ConnectionsTable)
	messages := chat.NewLog(ddb, cfg.MessagesTable)
	dispatcher := chat.NewDispatcher(gateway, registry, log)

	return &ChatHandler{
		relay: chat.NewController(registry, messages, dispatcher, log),
		log:   log,
	}
}

type identifyRequest struct {
	Username string `json:"username" validate:"required,max=64"`
}

type sendMessageRequest struct {
	Message string `json:"message" validate:"required,max=4096"`
}

func (h *ChatHandler) Connect(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	id := req.RequestContext.ConnectionID
	if id == "" {
		return wsResp(400, "Missing connection id."), nil
	}
	h.log.Info("connect", "connectionId", id)

	if err := h.relay.Connect(ctx, id); err != nil {
		h.log.Error("connect failed", "connectionId", id, "error", err)
		return wsResp(500, "Failed to connect."), nil
	}
	return wsResp(200, fmt.Sprintf("%s Connected.", id)), nil
}

func (h *ChatHandler) Identify(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	id := req.RequestContext.ConnectionID

	var in identifyRequest
	if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
		return wsResp(400, "Invalid request body."), nil
	}
	if err := validate.Struct(in); err != nil {
		return wsResp(400, "username is required."), nil
	}

	switch err := h.relay.Identify(ctx, id, in.Username); {
	case errors.Is(err, chat.ErrNotFound):
		return wsResp(404, "Connection not found."), nil
	case err != nil:
		return wsResp(500, "Failed to identify username."), nil
	}
	return wsResp(200, "Username identified."), nil
}

func (h *ChatHandler) SendMessage(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	id := req.RequestContext.ConnectionID

	var in sendMessageRequest
	if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
		return wsResp(400, "Invalid request body."), nil
	}
	if err := validate.Struct(in); err != nil {
		return wsResp(400, "message is required."), nil
	}

	switch err := h.relay.SendMessage(ctx, id, in.Message); {
	case errors.Is(err, chat.ErrNotFound):
		return wsResp(404, "Connection not found."), nil
	case err != nil:
		return wsResp(500, "Failed to handle message."), nil
	}
	return wsResp(200, "Message sent."), nil
}

func (h *ChatHandler) Disconnect(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	id := req.RequestContext.ConnectionID
	h.log.Info("disconnect", "connectionId", id)

	if err := h.relay.Disconnect(ctx, id); err != nil {
		h.log.Error("disconnect failed", "connectionId", id, "error", err)
		return wsResp(500, "Failed to disconnect."), nil
	}
	return wsResp(200, fmt.Sprintf("%s Disconnected.", id)), nil
}

func (h *ChatHandler) ManualDisconnect(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	id := req.RequestContext.ConnectionID

	if err := h.relay.ManualDisconnect(ctx, id); err != nil {
		h.log.Error("manual disconnect failed", "connectionId", id, "error", err)
		return wsResp(500, "Failed to disconnect."), nil
	}
	return wsResp(200, fmt.Sprintf("%s Disconnected.", id)), nil
}

// KeepAlive is a pure liveness ack; it touches nothing.
func (h *ChatHandler) KeepAlive(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	return wsResp(200, fmt.Sprintf("%s Connection kept alive.", req.RequestContext.ConnectionID)), nil
}
