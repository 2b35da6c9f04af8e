package api

import (
	"context"
	"net/http"

	"github.com/starford/alignos/internal/assistant"
	"github.com/starford/alignos/internal/graphview"
	"github.com/starford/alignos/internal/ingest"
	"github.com/starford/alignos/internal/ledger"
	"github.com/starford/alignos/internal/org"
	"github.com/starford/alignos/internal/storage"
	"github.com/starford/alignos/internal/store"
	"github.com/starford/alignos/internal/voice"
)

// defaultMaxUploadBytes leaves room for multipart framing around a file at
// the default ingest limit, so oversize files reach the ingest check and get
// its message.
const defaultMaxUploadBytes = ingest.DefaultMaxFileBytes + 1<<20

// SnapshotSource loads the rows the graph endpoints build from.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*store.Snapshot, error)
}

// VoiceTokens issues voice-agent sessions.
type VoiceTokens interface {
	SignedURL(ctx context.Context) (*voice.Token, error)
}

// Services bundles what the handlers call into. Events may be nil, in which
// case GET /events is not mounted.
type Services struct {
	Snapshots SnapshotSource
	Views     *graphview.Manager
	Ledger    *ledger.Service
	Org       *org.Service
	Ingest    *ingest.Service
	Assistant *assistant.Service
	Voice     VoiceTokens
	Uploads   storage.Provider
	Events    http.Handler

	// MaxUploadBytes caps multipart bodies.
	MaxUploadBytes int64
}

func (s Services) maxUpload() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}
