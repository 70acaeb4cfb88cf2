package archive

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"backend/internal/chat"
	"backend/internal/config"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
)

// MessageRow is the parquet schema of one archived chat message.
type MessageRow struct {
	Id           string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ConnectionId string `parquet:"name=connection_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Username     string `parquet:"name=username, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Message      string `parquet:"name=message, type=BYTE_ARRAY, convertedtype=UTF8"`
	Ts           string `parquet:"name=ts, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type scanClient interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type putClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Exporter snapshots the message log to parquet files on S3, one file per
// UTC day. It never deletes from the log; retention stays with the table.
type Exporter struct {
	ddb    scanClient
	s3     putClient
	table  string
	bucket string
	prefix string
	log    *slog.Logger
}

func NewExporter(awsCfg aws.Config, cfg config.Config, log *slog.Logger) *Exporter {
	return &Exporter{
		ddb:    dynamodb.NewFromConfig(awsCfg),
		s3:     s3.NewFromConfig(awsCfg),
		table:  cfg.MessagesTable,
		bucket: cfg.ArchiveBucket,
		prefix: cfg.ArchivePrefix,
		log:    log,
	}
}

// Handle is triggered by an EventBridge schedule. It scans the whole
// messages table, groups rows by the day part of their timestamp, and writes
// <prefix>dt=YYYY-MM-DD/part-<rand>.parquet per day.
func (e *Exporter) Handle(ctx context.Context, _ events.CloudWatchEvent) (map[string]any, error) {
	if e.bucket == "" {
		return nil, fmt.Errorf("archive bucket not configured")
	}

	msgs, err := e.scanMessages(ctx)
	if err != nil {
		return nil, err
	}

	byDay := map[string][]MessageRow{}
	for _, m := range msgs {
		day := m.Timestamp
		if len(day) >= 10 {
			day = day[:10]
		}
		byDay[day] = append(byDay[day], MessageRow{
			Id:           m.ID,
			ConnectionId: m.ConnectionID,
			Username:     m.Username,
			Message:      m.Message,
			Ts:           m.Timestamp,
		})
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	rows := 0
	for _, day := range days {
		key := fmt.Sprintf("%sdt=%s/part-%s.parquet", ensureTrailingSlash(e.prefix), day, randHex(8))
		if err := e.writeParquetToS3(ctx, key, byDay[day]); err != nil {
			return nil, fmt.Errorf("archive day %s: %w", day, err)
		}
		rows += len(byDay[day])
		e.log.Info("archived day", "day", day, "rows", len(byDay[day]), "key", key)
	}

	return map[string]any{
		"ok":     true,
		"days":   len(days),
		"rows":   rows,
		"bucket": e.bucket,
	}, nil
}

func (e *Exporter) scanMessages(ctx context.Context) ([]chat.ChatMessage, error) {
	var msgs []chat.ChatMessage

	var startKey map[string]ddbtypes.AttributeValue
	for {
		out, err := e.ddb.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(e.table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", e.table, err)
		}

		var page []chat.ChatMessage
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal messages: %w", err)
		}
		msgs = append(msgs, page...)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return msgs, nil
}

func (e *Exporter) writeParquetToS3(ctx context.Context, key string, rows []MessageRow) error {
	localPath := filepath.Join(os.TempDir(), "chat_logs_"+randHex(8)+".parquet")

	fw, err := local.NewLocalFileWriter(localPath)
	if err != nil {
		return fmt.Errorf("parquet file writer: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(MessageRow), 1)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return fmt.Errorf("parquet write row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet write stop: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("parquet close: %w", err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read parquet tmp: %w", err)
	}
	defer func() { _ = os.Remove(localPath) }()

	_, err = e.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("s3 putobject failed: %w", err)
	}
	return nil
}

func ensureTrailingSlash(s string) string {
	if s == "" || s[len(s)-1] == '/' {
		return s
	}
	return s + "/"
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
