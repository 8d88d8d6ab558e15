package rxa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackExtractRoundTrip(t *testing.T) {
	files := map[string][]byte{
		"content":           []byte("Hello"),
		"references/a.md":   []byte("A"),
		"references/sub/b.md": []byte("B"),
	}

	a, err := Pack(files)
	require.NoError(t, err)

	out, err := a.Extract()
	require.NoError(t, err)
	assert.Equal(t, files, out)
}

func TestDigestDeterminism(t *testing.T) {
	files1 := map[string][]byte{"content": []byte("Hello")}
	files2 := map[string][]byte{"content": []byte("Hello")}

	a1, err := Pack(files1)
	require.NoError(t, err)
	a2, err := Pack(files2)
	require.NoError(t, err)

	assert.Equal(t, a1.Digest(), a2.Digest())
}

func TestEmptyArchive(t *testing.T) {
	a, err := Pack(map[string][]byte{})
	require.NoError(t, err)
	assert.NotEmpty(t, a.Digest())

	out, err := a.Extract()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFileMissing(t *testing.T) {
	a, err := PackContent([]byte("Hello"))
	require.NoError(t, err)

	content, err := a.File("content")
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(content))

	_, err = a.File("nope")
	assert.Error(t, err)
}

func TestFromGzipRehashes(t *testing.T) {
	a, err := PackContent([]byte("Hello"))
	require.NoError(t, err)

	rehydrated, err := FromGzip(a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, a.Digest(), rehydrated.Digest())
}
