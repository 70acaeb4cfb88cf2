package chat

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// ChatMessage is one logged utterance. Immutable once written; username is a
// snapshot of the sender's display name at send time, not a live reference.
type ChatMessage struct {
	ID           string `dynamodbav:"id" json:"id"`
	ConnectionID string `dynamodbav:"connectionId" json:"connectionId"`
	Username     string `dynamodbav:"username" json:"username"`
	Message      string `dynamodbav:"message" json:"message"`
	Timestamp    string `dynamodbav:"timestamp" json:"timestamp"`
}

// Log is the append-only message store backed by a DynamoDB table.
type Log struct {
	client DynamoClient
	table  string
	now    func() time.Time
}

func NewLog(client DynamoClient, table string) *Log {
	return &Log{client: client, table: table, now: time.Now}
}

// Append writes a new message with a fresh id and the current timestamp and
// returns it. Appends never deduplicate.
func (l *Log) Append(ctx context.Context, connectionID, username, text string) (ChatMessage, error) {
	msg := ChatMessage{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		Username:     username,
		Message:      text,
		Timestamp:    l.now().UTC().Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(msg)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("marshal message: %w", err)
	}
	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item:      av,
	})
	if err != nil {
		return ChatMessage{}, fmt.Errorf("put message: %w", err)
	}
	return msg, nil
}

// RecentHistory scans the whole table and returns messages newest first.
// The scan is not atomic with respect to concurrent appends; a message
// landing mid-scan may or may not appear. Accepted, not a bug.
func (l *Log) RecentHistory(ctx context.Context) ([]ChatMessage, error) {
	var msgs []ChatMessage

	var startKey map[string]types.AttributeValue
	for {
		out, err := l.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(l.table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", l.table, err)
		}

		var page []ChatMessage
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal messages: %w", err)
		}
		msgs = append(msgs, page...)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.Slice(msgs, func(i, j int) bool {
		ti, _ := time.Parse(time.RFC3339Nano, msgs[i].Timestamp)
		tj, _ := time.Parse(time.RFC3339Nano, msgs[j].Timestamp)
		return tj.Before(ti)
	})
	return msgs, nil
}
