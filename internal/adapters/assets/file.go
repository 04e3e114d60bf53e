// Package assets loads the policy document and its chunk index from the
// static JSON assets produced by the document build.
package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/0xcro3dile/policyqa-go/internal/domain/entities"
	"github.com/0xcro3dile/policyqa-go/internal/domain/ports"
)

// Default asset file names.
const (
	ChunksFile = "chunks.json"
	PolicyFile = "policy.json"
)

// FileStore implements ports.ChunkSource and ports.DocumentSource over a
// local directory. Decoded assets are cached until the file changes.
type FileStore struct {
	dir        string
	chunksFile string
	policyFile string
	logger     *zap.Logger

	// readFile is os.ReadFile outside tests.
	readFile func(string) ([]byte, error)

	mu     sync.RWMutex
	chunks []entities.Chunk
	doc    *entities.PolicyDocument
	// Bumped by Invalidate. A load only caches its result when the
	// generation it started under is still current.
	chunksGen uint64
	docGen    uint64
}

// NewFileStore creates a store reading chunksFile and policyFile from dir.
// Empty names fall back to chunks.json and policy.json.
func NewFileStore(dir, chunksFile, policyFile string, logger *zap.Logger) *FileStore {
	if chunksFile == "" {
		chunksFile = ChunksFile
	}
	if policyFile == "" {
		policyFile = PolicyFile
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		dir:        dir,
		chunksFile: chunksFile,
		policyFile: policyFile,
		logger:     logger,
		readFile:   os.ReadFile,
	}
}

// Dir returns the asset directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the full path of an asset file name.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// LoadChunks returns the chunk collection, decoding it on first use.
func (s *FileStore) LoadChunks(ctx context.Context) ([]entities.Chunk, error) {
	s.mu.RLock()
	cached, gen := s.chunks, s.chunksGen
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	var set entities.ChunkSet
	if err := s.decode(s.chunksFile, &set); err != nil {
		return nil, err
	}
	if set.Chunks == nil {
		set.Chunks = []entities.Chunk{}
	}

	s.mu.Lock()
	if s.chunksGen == gen {
		s.chunks = set.Chunks
	}
	s.mu.Unlock()

	s.logger.Info("loaded chunks", zap.String("file", s.chunksFile), zap.Int("count", len(set.Chunks)))
	return set.Chunks, nil
}

// LoadDocument returns the policy document, decoding it on first use.
func (s *FileStore) LoadDocument(ctx context.Context) (*entities.PolicyDocument, error) {
	s.mu.RLock()
	cached, gen := s.doc, s.docGen
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	var doc entities.PolicyDocument
	if err := s.decode(s.policyFile, &doc); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.docGen == gen {
		s.doc = &doc
	}
	s.mu.Unlock()

	s.logger.Info("loaded policy document",
		zap.String("file", s.policyFile),
		zap.Int("blocks", len(doc.Blocks)),
		zap.Int("toc", len(doc.TOC)),
	)
	return &doc, nil
}

// Invalidate drops the cached copy of the named asset so the next load
// re-reads it. Names are matched on their base name; unknown names are
// ignored.
func (s *FileStore) Invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch filepath.Base(name) {
	case filepath.Base(s.chunksFile):
		s.chunks = nil
		s.chunksGen++
	case filepath.Base(s.policyFile):
		s.doc = nil
		s.docGen++
	default:
		return
	}
	s.logger.Info("asset changed, cache dropped", zap.String("file", filepath.Base(name)))
}

// Follow invalidates cached assets as the watcher reports changes in the
// asset directory. It returns once ctx is done or the watcher closes.
func (s *FileStore) Follow(ctx context.Context, watcher ports.FileWatcher) error {
	events, err := watcher.Watch(ctx, s.dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.logger.Debug("asset event", zap.String("path", ev.Path), zap.Stringer("op", ev.Operation))
			s.Invalidate(ev.Path)
		}
	}
}

func (s *FileStore) decode(name string, v any) error {
	path := s.Path(name)
	data, err := s.readFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}
