// Package blobstore turns uploaded receipt images into URIs the vision model
// can fetch and the receipt row can reference.
package blobstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyObject = errors.New("blobstore: empty object")
	ErrInvalidRef  = errors.New("blobstore: invalid reference")
)

// Store persists an image and returns a stable reference to it. URL turns a
// reference into something the vision model or a client can fetch right now.
type Store interface {
	Put(ctx context.Context, userID int64, data []byte, contentType string) (string, error)
	URL(ctx context.Context, ref string) (string, error)
}

// InlineStore keeps images inside the row as data URIs.
type InlineStore struct{}

func NewInlineStore() *InlineStore {
	return &InlineStore{}
}

func (s *InlineStore) Put(_ context.Context, _ int64, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyObject
	}
	return DataURI(data, contentType), nil
}

// URL returns ref unchanged; data URIs are already self-contained.
func (s *InlineStore) URL(_ context.Context, ref string) (string, error) {
	return ref, nil
}

func DataURI(data []byte, contentType string) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
}

// extensionFor maps an image content type onto an object key suffix.
func extensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/heic":
		return ".heic"
	default:
		return ""
	}
}
