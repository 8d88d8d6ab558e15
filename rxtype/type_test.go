package rxtype

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepractice/resourcex/internal/rxerr"
	"github.com/deepractice/resourcex/resolve"
)

func TestRegisterAndLookupByAlias(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.Register(Type{Name: "greet", Aliases: []string{"hi"}, Resolver: resolve.ResolverFunc(
		func(ctx context.Context, rc resolve.Context, args interface{}) (interface{}, error) {
			return "hello", nil
		})}))

	byName, err := c.Lookup("greet")
	require.NoError(t, err)
	assert.Equal(t, "greet", byName.Name)

	byAlias, err := c.Lookup("hi")
	require.NoError(t, err)
	assert.Same(t, byName, byAlias)
}

func TestRegisterDuplicateNameRejected(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.Register(Type{Name: "greet"}))
	err := c.Register(Type{Name: "greet"})
	require.Error(t, err)
	assert.True(t, rxerr.Recoverable(err) == false)
	rxErr, ok := err.(*rxerr.Error)
	require.True(t, ok)
	assert.Equal(t, rxerr.ResourceType, rxErr.Kind)
}

func TestRegisterAliasCollisionRejected(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.Register(Type{Name: "a", Aliases: []string{"shared"}}))
	err := c.Register(Type{Name: "b", Aliases: []string{"shared"}})
	require.Error(t, err)
}

func TestLookupUnknownType(t *testing.T) {
	c := NewChain()
	_, err := c.Lookup("nope")
	require.Error(t, err)
	rxErr, ok := err.(*rxerr.Error)
	require.True(t, ok)
	assert.Equal(t, rxerr.ResourceType, rxErr.Kind)
	assert.Equal(t, "unknown-type", rxErr.Reason)
}

func TestRegisterBuiltins(t *testing.T) {
	c := NewChain()
	require.NoError(t, RegisterBuiltins(c))

	for _, name := range []string{"text", "txt", "plaintext", "json", "config", "manifest", "binary", "bin", "blob", "raw", "skill", "prototype"} {
		_, err := c.Lookup(name)
		assert.NoError(t, err, "expected builtin %q to be registered", name)
	}
}

func TestResolveTextBuiltin(t *testing.T) {
	c := NewChain()
	require.NoError(t, RegisterBuiltins(c))
	typ, err := c.Lookup("text")
	require.NoError(t, err)

	rc := resolve.Context{Files: map[string][]byte{"content": []byte("hello world")}}
	v, err := typ.Resolver.Resolve(context.Background(), rc, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello world", v)
}

func TestResolveJSONBuiltin(t *testing.T) {
	c := NewChain()
	require.NoError(t, RegisterBuiltins(c))
	typ, err := c.Lookup("config")
	require.NoError(t, err)

	rc := resolve.Context{Files: map[string][]byte{"content": []byte(`{"a":1}`)}}
	v, err := typ.Resolver.Resolve(context.Background(), rc, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, v)
}

func TestResolveSkillBuiltinDefaultsToSkillMD(t *testing.T) {
	c := NewChain()
	require.NoError(t, RegisterBuiltins(c))
	typ, err := c.Lookup("skill")
	require.NoError(t, err)

	rc := resolve.Context{Files: map[string][]byte{"SKILL.md": []byte("# Skill")}}
	v, err := typ.Resolver.Resolve(context.Background(), rc, nil)
	require.NoError(t, err)
	assert.Equal(t, "# Skill", v)
}

func TestResolveSkillBuiltinWithReference(t *testing.T) {
	c := NewChain()
	require.NoError(t, RegisterBuiltins(c))
	typ, err := c.Lookup("skill")
	require.NoError(t, err)

	rc := resolve.Context{Files: map[string][]byte{
		"SKILL.md":              []byte("# Skill"),
		"references/extra.md":   []byte("extra content"),
	}}
	v, err := typ.Resolver.Resolve(context.Background(), rc, map[string]interface{}{"reference": "extra.md"})
	require.NoError(t, err)
	assert.Equal(t, "extra content", v)
}

func TestResolvePrototypeBuiltinReplacesFileRefs(t *testing.T) {
	c := NewChain()
	require.NoError(t, RegisterBuiltins(c))
	typ, err := c.Lookup("prototype")
	require.NoError(t, err)

	rc := resolve.Context{Files: map[string][]byte{
		"content":     []byte(`{"name":"demo","body":"@body.txt"}`),
		"body.txt":    []byte("the body"),
	}}
	v, err := typ.Resolver.Resolve(context.Background(), rc, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "demo", "body": "the body"}, v)
}
