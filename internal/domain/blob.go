package domain

import "context"

// BlobWriter archives immutable payloads, keyed by path, to object storage.
type BlobWriter interface {
	Write(ctx context.Context, key string, contentType string, payload []byte) (location string, err error)
}
