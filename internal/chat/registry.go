package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrNotFound reports a connection id with no record in the registry.
var ErrNotFound = errors.New("connection not found")

// DynamoClient is the slice of the DynamoDB API the relay core uses.
type DynamoClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Connection is one live websocket session. connectionId is the table's
// primary key, so a second put for the same id is a full overwrite; callers
// must write every field they want to keep.
type Connection struct {
	ConnectionID string `dynamodbav:"connectionId" json:"connectionId"`
	Username     string `dynamodbav:"username,omitempty" json:"username,omitempty"`
	ConnectedAt  string `dynamodbav:"timestamp" json:"timestamp"`
}

// Registry is the live-connection directory backed by a DynamoDB table.
type Registry struct {
	client DynamoClient
	table  string
}

func NewRegistry(client DynamoClient, table string) *Registry {
	return &Registry{client: client, table: table}
}

func (r *Registry) Upsert(ctx context.Context, conn Connection) error {
	av, err := attributevalue.MarshalMap(conn)
	if err != nil {
		return fmt.Errorf("marshal connection: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put connection %s: %w", conn.ConnectionID, err)
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, connectionID string) (Connection, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"connectionId": &types.AttributeValueMemberS{Value: connectionID},
		},
	})
	if err != nil {
		return Connection{}, fmt.Errorf("get connection %s: %w", connectionID, err)
	}
	if out.Item == nil {
		return Connection{}, ErrNotFound
	}

	var conn Connection
	if err := attributevalue.UnmarshalMap(out.Item, &conn); err != nil {
		return Connection{}, fmt.Errorf("unmarshal connection: %w", err)
	}
	return conn, nil
}

// Remove is idempotent: deleting an absent id succeeds.
func (r *Registry) Remove(ctx context.Context, connectionID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"connectionId": &types.AttributeValueMemberS{Value: connectionID},
		},
	})
	if err != nil {
		return fmt.Errorf("delete connection %s: %w", connectionID, err)
	}
	return nil
}

// ListAll returns every live connection. Used only to enumerate broadcast
// targets; the snapshot may be stale by the time pushes complete.
func (r *Registry) ListAll(ctx context.Context) ([]Connection, error) {
	var conns []Connection

	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.table, err)
		}

		var page []Connection
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal connections: %w", err)
		}
		conns = append(conns, page...)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return conns, nil
}
