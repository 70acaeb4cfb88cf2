package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the lambdas read from the environment. Each main
// loads it once at cold start and passes it down; business logic never
// touches os.Getenv.
type Config struct {
	ConnectionsTable  string `envconfig:"CONNECTIONS_TABLE" default:"WebSocketConnections"`
	MessagesTable     string `envconfig:"MESSAGES_TABLE" default:"MessageLogs"`
	WebsocketEndpoint string `envconfig:"WEBSOCKET_ENDPOINT"`

	MongoURI      string `envconfig:"MONGODB_URI"`
	MongoURIParam string `envconfig:"MONGODB_URI_PARAM"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"audioBlog"`
	PostsColl     string `envconfig:"POSTS_COLLECTION" default:"posts"`

	ImageBucket   string `envconfig:"S3_BUCKET_NAME"`
	ArchiveBucket string `envconfig:"ARCHIVE_BUCKET"`
	ArchivePrefix string `envconfig:"ARCHIVE_PREFIX" default:"chat_logs/"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	return cfg, nil
}

// ParameterClient is the slice of the SSM API used to resolve secrets.
type ParameterClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ResolveMongoURI fills MongoURI from the SSM parameter named by
// MONGODB_URI_PARAM. A URI already present in the environment wins, so local
// runs can skip Parameter Store entirely.
func (c *Config) ResolveMongoURI(ctx context.Context, client ParameterClient) error {
	if strings.TrimSpace(c.MongoURI) != "" {
		return nil
	}
	param := strings.TrimSpace(c.MongoURIParam)
	if param == "" {
		return fmt.Errorf("neither MONGODB_URI nor MONGODB_URI_PARAM is set")
	}

	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(param),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("get parameter %s: %w", param, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil || *out.Parameter.Value == "" {
		return fmt.Errorf("parameter %s is empty", param)
	}

	c.MongoURI = *out.Parameter.Value
	return nil
}
