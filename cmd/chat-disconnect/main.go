package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"backend/internal/config"
	"backend/internal/handlers"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	h := handlers.NewChatHandler(awsCfg, cfg, logger)
	lambda.Start(h.Disconnect)
}
