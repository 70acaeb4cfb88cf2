package handlers

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"backend/internal/chat"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

type memTable struct {
	mu      sync.Mutex
	keyAttr string
	items   map[string]map[string]types.AttributeValue
}

func newMemTable(keyAttr string) *memTable {
	return &memTable{keyAttr: keyAttr, items: map[string]map[string]types.AttributeValue{}}
}

func key(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (m *memTable) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key(params.Item[m.keyAttr])] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *memTable) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key(params.Key[m.keyAttr])]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (m *memTable) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key(params.Key[m.keyAttr]))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *memTable) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &dynamodb.ScanOutput{}
	for _, item := range m.items {
		out.Items = append(out.Items, item)
	}
	return out, nil
}

type memPush struct {
	mu    sync.Mutex
	count map[string]int
}

func (p *memPush) PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.count == nil {
		p.count = map[string]int{}
	}
	p.count[*params.ConnectionId]++
	return &apigatewaymanagementapi.PostToConnectionOutput{}, nil
}

func newTestChatHandler() *ChatHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := chat.NewRegistry(newMemTable("connectionId"), "WebSocketConnections")
	messages := chat.NewLog(newMemTable("id"), "MessageLogs")
	dispatcher := chat.NewDispatcher(&memPush{}, registry, logger)
	return &ChatHandler{
		relay: chat.NewController(registry, messages, dispatcher, logger),
		log:   logger,
	}
}

func wsReq(connectionID, body string) events.APIGatewayWebsocketProxyRequest {
	req := events.APIGatewayWebsocketProxyRequest{Body: body}
	req.RequestContext.ConnectionID = connectionID
	return req
}

func TestConnectHandler(t *testing.T) {
	req := require.New(t)
	h := newTestChatHandler()

	resp, err := h.Connect(context.Background(), wsReq("conn1", ""))
	req.NoError(err)
	req.Equal(200, resp.StatusCode)
	req.Contains(resp.Body, "conn1")
}

func TestConnectHandler_MissingID(t *testing.T) {
	req := require.New(t)
	h := newTestChatHandler()

	resp, err := h.Connect(context.Background(), wsReq("", ""))
	req.NoError(err)
	req.Equal(400, resp.StatusCode)
}

func TestIdentifyHandler_Validation(t *testing.T) {
	req := require.New(t)
	h := newTestChatHandler()
	ctx := context.Background()

	resp, err := h.Identify(ctx, wsReq("conn1", "not json"))
	req.NoError(err)
	req.Equal(400, resp.StatusCode)

	resp, err = h.Identify(ctx, wsReq("conn1", `{"username":""}`))
	req.NoError(err)
	req.Equal(400, resp.StatusCode)
}

func TestIdentifyHandler_UnknownConnection(t *testing.T) {
	req := require.New(t)
	h := newTestChatHandler()

	resp, err := h.Identify(context.Background(), wsReq("ghost", `{"username":"alice"}`))
	req.NoError(err)
	req.Equal(404, resp.StatusCode)
}

func TestSendMessageHandler_UnknownConnection(t *testing.T) {
	req := require.New(t)
	h := newTestChatHandler()

	resp, err := h.SendMessage(context.Background(), wsReq("ghost", `{"message":"hi"}`))
	req.NoError(err)
	req.Equal(404, resp.StatusCode)
}

func TestChatHandlers_HappyPath(t *testing.T) {
	req := require.New(t)
	h := newTestChatHandler()
	ctx := context.Background()

	resp, err := h.Connect(ctx, wsReq("conn1", ""))
	req.NoError(err)
	req.Equal(200, resp.StatusCode)

	resp, err = h.Identify(ctx, wsReq("conn1", `{"username":"bob"}`))
	req.NoError(err)
	req.Equal(200, resp.StatusCode)
	req.Equal("Username identified.", resp.Body)

	resp, err = h.SendMessage(ctx, wsReq("conn1", `{"message":"hello"}`))
	req.NoError(err)
	req.Equal(200, resp.StatusCode)

	resp, err = h.Disconnect(ctx, wsReq("conn1", ""))
	req.NoError(err)
	req.Equal(200, resp.StatusCode)
}

func TestKeepAliveHandler(t *testing.T) {
	req := require.New(t)
	h := newTestChatHandler()

	resp, err := h.KeepAlive(context.Background(), wsReq("conn1", ""))
	req.NoError(err)
	req.Equal(200, resp.StatusCode)
	req.Contains(resp.Body, "kept alive")
}
