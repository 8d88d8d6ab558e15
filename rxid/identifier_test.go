package rxid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormatRoundTrip(t *testing.T) {
	cases := []string{
		"hello:1.0",
		"hello",
		"team/hello:1.0",
		"localhost:5000/hello:1.0",
		"registry.example.com/team/hello:1.0@sha256:" + sixtyFourHex,
		"hello@sha256:" + sixtyFourHex,
	}

	for _, s := range cases {
		id, err := Parse(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, Format(id), s)
	}
}

func TestParseRegistryDetection(t *testing.T) {
	id, err := Parse("localhost:5000/hello:1.0")
	require.NoError(t, err)
	assert.Equal(t, "localhost:5000", id.Registry)
	assert.Equal(t, "hello", id.Name)

	id, err = Parse("team/hello:1.0")
	require.NoError(t, err)
	assert.Equal(t, "", id.Registry)
	assert.Equal(t, []string{"team"}, id.Path)
}

// TestParseHostPortRegistryWithoutTag guards against peeling a tag out of
// a "host:port" registry segment when the locator carries no explicit
// tag — the ordinary untagged-pull shape.
func TestParseHostPortRegistryWithoutTag(t *testing.T) {
	id, err := Parse("localhost:5000/hello")
	require.NoError(t, err)
	assert.Equal(t, "localhost:5000", id.Registry)
	assert.Equal(t, "hello", id.Name)
	assert.Equal(t, "", id.Tag)
	assert.Equal(t, "localhost:5000/hello", Format(id))

	id, err = Parse("registry.example.com:8443/team/hello")
	require.NoError(t, err)
	assert.Equal(t, "registry.example.com:8443", id.Registry)
	assert.Equal(t, []string{"team"}, id.Path)
	assert.Equal(t, "hello", id.Name)
	assert.Equal(t, "", id.Tag)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)

	_, err = Parse("team/")
	assert.Error(t, err)

	_, err = Parse("hello@sha256:bad")
	assert.Error(t, err)
}

func TestWithoutTagAndDefault(t *testing.T) {
	id, err := Parse("hello:1.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0", id.TagOrDefault())

	id, err = Parse("hello")
	require.NoError(t, err)
	assert.Equal(t, "latest", id.TagOrDefault())

	stripped := id.WithoutTag()
	assert.Equal(t, "", stripped.Tag)
	assert.Equal(t, "", stripped.Digest)
}

const sixtyFourHex = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
