package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"backend/internal/blog"
	"backend/internal/config"
	"backend/internal/db"
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

	images := blog.NewImageStore(db.NewS3Client(awsCfg), cfg.ImageBucket)
	h := handlers.NewUploadHandler(images, logger)
	lambda.Start(h.Upload)
}
