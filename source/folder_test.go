package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func TestFolderLoaderResourceJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "resource.json", `{"name":"hello","type":"text","tag":"1.0"}`)
	writeFile(t, dir, "content", "Hello")

	chain := NewChain(&FolderLoader{})
	res, err := chain.Load(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "hello", res.Manifest.Definition.Name)
	assert.Equal(t, "text", res.Manifest.Definition.Type)
	assert.Equal(t, "1.0", res.Manifest.Definition.Tag)
	require.NotNil(t, res.Archive)

	content, err := res.Archive.File("content")
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(content))

	files, err := res.Archive.Extract()
	require.NoError(t, err)
	_, hasResourceJSON := files["resource.json"]
	assert.False(t, hasResourceJSON, "resource.json must never be packed")
}

func TestFolderLoaderSkillDetection(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-skill")
	writeFile(t, dir, "SKILL.md", "# skill")

	chain := NewChain(&FolderLoader{})
	res, err := chain.Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "skill", res.Manifest.Definition.Type)
	assert.Equal(t, "my-skill", res.Manifest.Definition.Name)
}

func TestFolderLoaderNoIndicator(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "random.txt", "nothing")

	chain := NewChain(&FolderLoader{})
	_, err := chain.Load(context.Background(), dir)
	assert.Error(t, err)
}
