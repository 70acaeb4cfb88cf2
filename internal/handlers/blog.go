package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"

	"backend/internal/blog"

	"github.com/aws/aws-lambda-go/events"
)

// PostsHandler serves the blog post endpoints (list + create).
type PostsHandler struct {
	posts *blog.PostStore
	log   *slog.Logger
}

func NewPostsHandler(posts *blog.PostStore, log *slog.Logger) *PostsHandler {
	return &PostsHandler{posts: posts, log: log}
}

type createPostRequest struct {
	Title   string `json:"title" validate:"required,max=256"`
	Content string `json:"content" validate:"required"`
	Author  string `json:"author" validate:"max=128"`
}

func (h *PostsHandler) Posts(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	switch req.RequestContext.HTTP.Method {
	case "GET":
		return h.listPosts(ctx)
	case "POST":
		return h.createPost(ctx, req.Body)
	default:
		return errResp(405, "method not allowed")
	}
}

func (h *PostsHandler) listPosts(ctx context.Context) (events.APIGatewayV2HTTPResponse, error) {
	posts, err := h.posts.List(ctx)
	if err != nil {
		h.log.Error("list posts failed", "error", err)
		return errResp(500, "Failed to fetch posts")
	}
	return jsonResp(200, posts)
}

func (h *PostsHandler) createPost(ctx context.Context, body string) (events.APIGatewayV2HTTPResponse, error) {
	var in createPostRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return errResp(400, "invalid json body")
	}
	if err := validate.Struct(in); err != nil {
		return errResp(400, "title and content are required")
	}

	id, err := h.posts.Create(ctx, blog.Post{
		Title:   in.Title,
		Content: in.Content,
		Author:  in.Author,
	})
	if err != nil {
		h.log.Error("create post failed", "error", err)
		return errResp(500, "Failed to create post")
	}

	return jsonResp(201, map[string]any{
		"message": "Post created successfully",
		"postId":  id.Hex(),
	})
}

// UploadHandler serves the image upload endpoint.
type UploadHandler struct {
	images *blog.ImageStore
	log    *slog.Logger
}

func NewUploadHandler(images *blog.ImageStore, log *slog.Logger) *UploadHandler {
	return &UploadHandler{images: images, log: log}
}

type uploadRequest struct {
	FileName    string `json:"fileName" validate:"required,max=512"`
	FileContent string `json:"fileContent" validate:"required"`
}

func (h *UploadHandler) Upload(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	var in uploadRequest
	if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
		return errResp(400, "invalid json body")
	}
	if err := validate.Struct(in); err != nil {
		return errResp(400, "fileName and fileContent are required")
	}

	data, err := base64.StdEncoding.DecodeString(in.FileContent)
	if err != nil {
		return errResp(400, "fileContent must be base64 encoded")
	}

	if err := h.images.Upload(ctx, in.FileName, data); err != nil {
		h.log.Error("upload failed", "fileName", in.FileName, "error", err)
		return errResp(500, "Failed to upload picture")
	}

	return jsonResp(200, map[string]any{
		"message":  "Picture uploaded successfully",
		"fileName": in.FileName,
	})
}
