package chat

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDynamo is an in-memory single-key table.
type fakeDynamo struct {
	mu      sync.Mutex
	keyAttr string
	items   map[string]map[string]types.AttributeValue

	putErr    error
	getErr    error
	deleteErr error
	scanErr   error
}

func newFakeDynamo(keyAttr string) *fakeDynamo {
	return &fakeDynamo{
		keyAttr: keyAttr,
		items:   map[string]map[string]types.AttributeValue{},
	}
}

func attrString(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items[attrString(params.Item[f.keyAttr])] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	item, ok := f.items[attrString(params.Key[f.keyAttr])]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.items, attrString(params.Key[f.keyAttr]))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	out := &dynamodb.ScanOutput{}
	for _, item := range f.items {
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (f *fakeDynamo) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// fakePush records every PostToConnection call and can fail per connection.
type fakePush struct {
	mu      sync.Mutex
	posts   map[string][][]byte
	failFor map[string]error
}

func newFakePush() *fakePush {
	return &fakePush{
		posts:   map[string][][]byte{},
		failFor: map[string]error{},
	}
}

func (f *fakePush) PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := *params.ConnectionId
	if err := f.failFor[id]; err != nil {
		return nil, err
	}
	f.posts[id] = append(f.posts[id], params.Data)
	return &apigatewaymanagementapi.PostToConnectionOutput{}, nil
}

func (f *fakePush) payloadsFor(id string) []Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Payload
	for _, data := range f.posts[id] {
		var p Payload
		if err := json.Unmarshal(data, &p); err == nil {
			out = append(out, p)
		}
	}
	return out
}
