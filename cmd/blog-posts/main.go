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

	if err := cfg.ResolveMongoURI(ctx, db.NewSSMClient(awsCfg)); err != nil {
		log.Fatalf("resolve mongo uri: %v", err)
	}

	client, err := db.NewMongoClient(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("connect mongo: %v", err)
	}

	coll := client.Database(cfg.MongoDatabase).Collection(cfg.PostsColl)
	h := handlers.NewPostsHandler(blog.NewPostStore(coll), logger)
	lambda.Start(h.Posts)
}
