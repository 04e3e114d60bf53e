package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xcro3dile/policyqa-go/internal/adapters/assets"
	"github.com/0xcro3dile/policyqa-go/internal/adapters/usage"
	"github.com/0xcro3dile/policyqa-go/internal/config"
	"github.com/0xcro3dile/policyqa-go/internal/domain/entities"
)

const policyJSON = `{
	"meta": {"title": "Personnel Policies"},
	"toc": [{"id": "s4", "label": "SECTION 4", "title": "Leave"}],
	"blocks": [
		{"id": "s4", "kind": "major_heading", "label": "SECTION 4", "title": "Leave"},
		{"id": "s4-5", "kind": "heading", "label": "4.5", "title": "Sick Leave"},
		{"kind": "paragraph", "text": "Employees accrue one sick day per month."},
		{"id": "s4-6", "kind": "heading", "label": "4.6", "title": "Vacation"},
		{"kind": "list_item", "text": "Requests need two weeks notice."}
	]
}`

func writePolicy(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.json"), []byte(policyJSON), 0644))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestChunksBuild(t *testing.T) {
	dir := writePolicy(t)
	out := filepath.Join(dir, "chunks.json")

	_, err := run(t, "chunks", "build", "--policy", filepath.Join(dir, "policy.json"), "--out", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var set entities.ChunkSet
	require.NoError(t, sonic.Unmarshal(data, &set))
	require.Len(t, set.Chunks, 2)
	assert.Equal(t, "4.5", set.Chunks[0].Label)
	assert.Equal(t, "4", set.Chunks[0].Section)
	assert.Contains(t, set.Chunks[1].Text, "two weeks notice")
}

func TestChunksBuild_Stdout(t *testing.T) {
	dir := writePolicy(t)

	out, err := run(t, "chunks", "build", "--policy", filepath.Join(dir, "policy.json"))
	require.NoError(t, err)
	assert.Contains(t, out, `"chunks"`)
	assert.Contains(t, out, "Sick Leave")
}

func TestChunksBuild_MissingPolicy(t *testing.T) {
	_, err := run(t, "chunks", "build", "--policy", filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestAsk_DryRun(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := writePolicy(t)
	_, err := run(t, "chunks", "build", "--policy", filepath.Join(dir, "policy.json"), "--out", filepath.Join(dir, "chunks.json"))
	require.NoError(t, err)

	out, err := run(t, "ask", "--dry-run", "--assets.dir", dir, "--log.level", "error", "how", "much", "sick", "leave")
	require.NoError(t, err)

	assert.Contains(t, out, "1. [8] 4.5 Sick Leave")
	assert.Contains(t, out, "1) 4 — 4.5 Sick Leave")
}

func TestAsk_NoGenerator(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := run(t, "ask", "--assets.dir", t.TempDir(), "--log.level", "error", "anything")
	assert.Error(t, err)
}

func TestBuildAssets(t *testing.T) {
	chunks, docs, files := buildAssets(config.AssetOptions{Dir: "x", ChunksFile: "chunks.json", PolicyFile: "policy.json"}, zap.NewNop())
	require.NotNil(t, files)
	assert.IsType(t, &assets.FileStore{}, chunks)
	assert.IsType(t, &assets.FileStore{}, docs)

	chunks, docs, files = buildAssets(config.AssetOptions{BaseURL: "https://example.com/assets"}, zap.NewNop())
	assert.Nil(t, files)
	assert.IsType(t, &assets.HTTPStore{}, chunks)
	assert.IsType(t, &assets.HTTPStore{}, docs)
}

func TestBuildCounter(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		counter, closer, err := buildCounter(config.LimitOptions{Backend: config.BackendNone})
		require.NoError(t, err)
		assert.Nil(t, counter)
		assert.Nil(t, closer)
	})

	t.Run("memory", func(t *testing.T) {
		counter, _, err := buildCounter(config.LimitOptions{Backend: config.BackendMemory})
		require.NoError(t, err)
		assert.IsType(t, &usage.MemoryCounter{}, counter)
	})

	t.Run("sqlite", func(t *testing.T) {
		counter, closer, err := buildCounter(config.LimitOptions{
			Backend:    config.BackendSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "usage.db"),
		})
		require.NoError(t, err)
		assert.IsType(t, &usage.SQLiteCounter{}, counter)
		assert.NoError(t, closer())
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		counter, closer, err := buildCounter(config.LimitOptions{Backend: config.BackendRedis, RedisAddr: mr.Addr()})
		require.NoError(t, err)
		assert.IsType(t, &usage.RedisCounter{}, counter)
		assert.NoError(t, closer())
	})

	t.Run("redis unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		_, _, err := buildCounter(config.LimitOptions{Backend: config.BackendRedis, RedisAddr: addr})
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := buildCounter(config.LimitOptions{Backend: "etcd"})
		assert.Error(t, err)
	})
}

func TestBuild(t *testing.T) {
	cfg := config.New()
	cfg.Assets.Dir = t.TempDir()
	cfg.Access.SiteKey = "open-sesame"

	c, err := build(cfg, "v1", zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	status := c.ask.Status()
	assert.Equal(t, "v1", status.Version)
	assert.False(t, status.HasAI)
	assert.True(t, status.HasKV)
	assert.True(t, status.SiteKeyRequired)
	assert.True(t, c.site.Enabled())
}
