package assets

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/0xcro3dile/policyqa-go/internal/domain/entities"
)

// HTTPStore implements ports.ChunkSource and ports.DocumentSource by
// fetching the assets from a static host on every call.
type HTTPStore struct {
	baseURL    string
	chunksFile string
	policyFile string
	client     *http.Client
}

// NewHTTPStore creates a store fetching assets below baseURL.
func NewHTTPStore(baseURL, chunksFile, policyFile string, timeout time.Duration) *HTTPStore {
	if chunksFile == "" {
		chunksFile = ChunksFile
	}
	if policyFile == "" {
		policyFile = PolicyFile
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chunksFile: chunksFile,
		policyFile: policyFile,
		client:     &http.Client{Timeout: timeout},
	}
}

// LoadChunks fetches and decodes the chunk collection.
func (s *HTTPStore) LoadChunks(ctx context.Context) ([]entities.Chunk, error) {
	var set entities.ChunkSet
	if err := s.fetch(ctx, s.chunksFile, &set); err != nil {
		return nil, err
	}
	return set.Chunks, nil
}

// LoadDocument fetches and decodes the policy document.
func (s *HTTPStore) LoadDocument(ctx context.Context) (*entities.PolicyDocument, error) {
	var doc entities.PolicyDocument
	if err := s.fetch(ctx, s.policyFile, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *HTTPStore) fetch(ctx context.Context, name string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+name, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: status %d", name, resp.StatusCode)
	}

	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}
