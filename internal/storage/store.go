package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

var ErrObjectNotFound = errors.New("stored image not found")

// ImageStore keeps the original reference photos. Keys are slash separated,
// e.g. "biryani/5f0c....jpg".
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes one image. A missing key is not an error.
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// NewReferenceKey returns a fresh key for an image of a dish.
func NewReferenceKey(dishID, ext string) string {
	return path.Join(dishID, uuid.NewString()+ext)
}

// DishPrefix is the key prefix under which all images of a dish live.
func DishPrefix(dishID string) string {
	return dishID + "/"
}

func cleanKey(key string) (string, error) {
	k := path.Clean(strings.TrimPrefix(key, "/"))
	if k == "." || k == ".." || strings.HasPrefix(k, "../") {
		return "", fmt.Errorf("invalid image key %q", key)
	}
	return k, nil
}
