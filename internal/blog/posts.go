package blog

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Post is one blog entry stored in the posts collection.
type Post struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Content   string             `bson:"content" json:"content"`
	Author    string             `bson:"author,omitempty" json:"author,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// PostStore persists posts to MongoDB.
type PostStore struct {
	coll *mongo.Collection
}

func NewPostStore(coll *mongo.Collection) *PostStore {
	return &PostStore{coll: coll}
}

func (s *PostStore) Create(ctx context.Context, post Post) (primitive.ObjectID, error) {
	post.CreatedAt = time.Now().UTC()

	res, err := s.coll.InsertOne(ctx, post)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("insert post: %w", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return id, nil
}

func (s *PostStore) List(ctx context.Context) ([]Post, error) {
	cur, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	defer cur.Close(ctx)

	posts := make([]Post, 0)
	if err := cur.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return posts, nil
}
