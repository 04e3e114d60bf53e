// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"
	"time"

	"github.com/0xcro3dile/policyqa-go/internal/domain/entities"
)

// Generator produces text from a hosted language model.
// Response shape beyond "returns text or fails" is opaque to callers.
type Generator interface {
	// Generate answers userPrompt under the instructions in systemPrompt.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Name identifies the provider and model for logs and diagnostics.
	Name() string
}

// ChunkSource loads the retrievable chunk collection.
type ChunkSource interface {
	LoadChunks(ctx context.Context) ([]entities.Chunk, error)
}

// DocumentSource loads the structured policy document.
type DocumentSource interface {
	LoadDocument(ctx context.Context) (*entities.PolicyDocument, error)
}

// UsageCounter is an external counter store for daily question quotas.
// Keys expire after the ttl given on the increment that created them.
type UsageCounter interface {
	// Get returns the current count for key, 0 if absent or expired.
	Get(ctx context.Context, key string) (int, error)

	// Increment adds one to key and returns the new count.
	Increment(ctx context.Context, key string, ttl time.Duration) (int, error)
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}
