// Package resolve implements the resolver executor of §4.8: given a
// resolved archive and a type, it builds an Executable whose Execute
// method re-extracts files from the archive and runs either an
// in-process Resolver or a sandboxed subprocess, depending on whether it
// was built with NewInProcess or NewSandboxed. client.Engine.Resolve
// always builds an in-process Executable. This generalizes the source's
// "evaluate a resolver expression at runtime" design into the closed
// extension point §9 calls for: a Go interface for built-in/trusted
// types, a subprocess contract for remote-authored ones.
//
// The re-entrant, re-extract-on-every-call shape is grounded on the
// teacher's registry/storage/blobwriter.go Commit/Cancel pattern: an
// owning handle over archive bytes, safe to invoke repeatedly, that
// never caches decoded state across calls.
package resolve

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/deepractice/resourcex/internal/rxerr"
	"github.com/deepractice/resourcex/rxa"
	"github.com/deepractice/resourcex/rxm"
)

// Context is what a resolver sees: the manifest's definition fields and
// the archive's extracted file set, per §4.8's `ctx = {manifest, files}`.
type Context struct {
	Manifest map[string]interface{}
	Files    map[string][]byte
}

// Resolver is the extension point §9 replaces dynamic resolver code
// with: anything that can turn (ctx, args) into a value.
type Resolver interface {
	Resolve(ctx context.Context, rc Context, args interface{}) (interface{}, error)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(ctx context.Context, rc Context, args interface{}) (interface{}, error)

func (f ResolverFunc) Resolve(ctx context.Context, rc Context, args interface{}) (interface{}, error) {
	return f(ctx, rc, args)
}

// Sandbox is the generic external-runner contract of §4.8: a script
// plus a serialized payload in, stdout/stderr/exit code out. Cloud or
// container-specific sandbox backends are out of scope (§1); this
// package only defines the contract and a subprocess implementation.
type Sandbox interface {
	Execute(ctx context.Context, script string, payload []byte) (stdout, stderr []byte, exitCode int, err error)
}

// Executable is a built, re-entrant handle over one resolved resource's
// resolver. Repeated Execute calls are independent: there is no
// implicit memoization, per §4.8.
type Executable struct {
	definition map[string]interface{}
	archive    *rxa.Archive
	resolver   Resolver
	sandbox    Sandbox
	script     string
}

// NewInProcess builds an Executable that runs resolver directly in this
// process — the "none" isolator of §4.8, for trusted built-in types.
func NewInProcess(manifest *rxm.Manifest, archive *rxa.Archive, resolver Resolver) *Executable {
	return &Executable{definition: definitionMap(manifest), archive: archive, resolver: resolver}
}

// NewSandboxed builds an Executable that runs script in sandbox for
// every Execute call — the "sandboxed" isolator of §4.8.
func NewSandboxed(manifest *rxm.Manifest, archive *rxa.Archive, sandbox Sandbox, script string) *Executable {
	return &Executable{definition: definitionMap(manifest), archive: archive, sandbox: sandbox, script: script}
}

// Execute re-extracts the archive's files and runs the resolver (or
// sandboxed script) with args.
func (e *Executable) Execute(ctx context.Context, args interface{}) (interface{}, error) {
	files, err := e.archive.Extract()
	if err != nil {
		return nil, err
	}
	rc := Context{Manifest: e.definition, Files: files}

	if e.resolver != nil {
		v, err := e.resolver.Resolve(ctx, rc, args)
		if err != nil {
			return nil, rxerr.Wrap(rxerr.ResourceType, "resolver-failed", "resolver execution failed", err)
		}
		return v, nil
	}

	return e.executeSandboxed(ctx, rc, args)
}

type sandboxPayload struct {
	Manifest map[string]interface{} `json:"manifest"`
	Files    map[string]string      `json:"files"` // base64-encoded content
	Args     interface{}            `json:"args"`
}

func (e *Executable) executeSandboxed(ctx context.Context, rc Context, args interface{}) (interface{}, error) {
	filesB64 := make(map[string]string, len(rc.Files))
	for p, content := range rc.Files {
		filesB64[p] = base64.StdEncoding.EncodeToString(content)
	}
	payload, err := json.Marshal(sandboxPayload{Manifest: rc.Manifest, Files: filesB64, Args: args})
	if err != nil {
		return nil, rxerr.Wrap(rxerr.ResourceType, "", "encoding sandbox payload", err)
	}

	stdout, _, exitCode, err := e.sandbox.Execute(ctx, e.script, payload)
	if err != nil {
		return nil, rxerr.Wrap(rxerr.ResourceType, "sandbox-failed", "sandbox execution failed", err)
	}
	if exitCode != 0 {
		return nil, rxerr.New(rxerr.ResourceType, "sandbox-nonzero-exit", "sandbox exited non-zero")
	}

	var value interface{}
	if err := json.Unmarshal(stdout, &value); err != nil {
		return nil, rxerr.Wrap(rxerr.ResourceType, "", "decoding sandbox stdout as JSON", err)
	}
	return value, nil
}

func definitionMap(manifest *rxm.Manifest) map[string]interface{} {
	raw, _ := json.Marshal(manifest.Definition)
	var m map[string]interface{}
	_ = json.Unmarshal(raw, &m)
	return m
}
