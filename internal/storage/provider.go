// Package storage keeps uploaded originals (documents, PDFs, audio) in a
// local object store addressed by slash-separated keys.
package storage

import (
	"context"
	"time"
)

// Object describes a stored blob.
type Object struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Checksum    string    `json:"checksum"`
	ModTime     time.Time `json:"mod_time"`
}

// Provider is the object store used by ingestion and the uploads endpoint.
type Provider interface {
	// Put atomically stores data under key, replacing any previous object.
	Put(ctx context.Context, key string, data []byte) (*Object, error)
	// Get returns the bytes and metadata of key.
	Get(ctx context.Context, key string) ([]byte, *Object, error)
	// Stat returns the metadata of key.
	Stat(ctx context.Context, key string) (*Object, error)
	// Delete removes key.
	Delete(ctx context.Context, key string) error
	// List returns the objects whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]Object, error)
}
