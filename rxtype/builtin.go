package rxtype

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/deepractice/resourcex/internal/rxerr"
	"github.com/deepractice/resourcex/resolve"
)

// builtins returns the five built-in types of §4.7.
func builtins() []Type {
	return []Type{
		{
			Name:        "text",
			Aliases:     []string{"txt", "plaintext"},
			Description: "returns the UTF-8 content of the resource's content file",
			Resolver:    resolve.ResolverFunc(resolveText),
		},
		{
			Name:        "json",
			Aliases:     []string{"config", "manifest"},
			Description: "returns the JSON-parsed value of the resource's content file",
			Resolver:    resolve.ResolverFunc(resolveJSON),
		},
		{
			Name:        "binary",
			Aliases:     []string{"bin", "blob", "raw"},
			Description: "returns the raw bytes of the resource's content file",
			Resolver:    resolve.ResolverFunc(resolveBinary),
		},
		{
			Name:        "skill",
			Description: "returns SKILL.md, or a named file under references/ when args.reference is set",
			Resolver:    resolve.ResolverFunc(resolveSkill),
		},
		{
			Name:        "prototype",
			Description: "returns a JSON object with @filename references replaced by referenced file contents",
			Resolver:    resolve.ResolverFunc(resolvePrototype),
		},
	}
}

func resolveText(ctx context.Context, rc resolve.Context, args interface{}) (interface{}, error) {
	content, ok := rc.Files["content"]
	if !ok {
		return nil, rxerr.New(rxerr.Content, "missing-file", "text resource has no content file")
	}
	return string(content), nil
}

func resolveJSON(ctx context.Context, rc resolve.Context, args interface{}) (interface{}, error) {
	content, ok := rc.Files["content"]
	if !ok {
		return nil, rxerr.New(rxerr.Content, "missing-file", "json resource has no content file")
	}
	var v interface{}
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, rxerr.Wrap(rxerr.Content, "", "parsing content as JSON", err)
	}
	return v, nil
}

func resolveBinary(ctx context.Context, rc resolve.Context, args interface{}) (interface{}, error) {
	content, ok := rc.Files["content"]
	if !ok {
		return nil, rxerr.New(rxerr.Content, "missing-file", "binary resource has no content file")
	}
	return content, nil
}

func resolveSkill(ctx context.Context, rc resolve.Context, args interface{}) (interface{}, error) {
	if m, ok := args.(map[string]interface{}); ok {
		if ref, ok := m["reference"].(string); ok && ref != "" {
			path := "references/" + ref
			content, ok := rc.Files[path]
			if !ok {
				return nil, rxerr.New(rxerr.Content, "missing-file", "skill resource has no reference "+path)
			}
			return string(content), nil
		}
	}
	content, ok := rc.Files["SKILL.md"]
	if !ok {
		return nil, rxerr.New(rxerr.Content, "missing-file", "skill resource has no SKILL.md")
	}
	return string(content), nil
}

// resolvePrototype parses content as a JSON object and replaces any
// string value of the form "@filename" with the content of that file
// within the archive, per §4.7.
func resolvePrototype(ctx context.Context, rc resolve.Context, args interface{}) (interface{}, error) {
	content, ok := rc.Files["content"]
	if !ok {
		return nil, rxerr.New(rxerr.Content, "missing-file", "prototype resource has no content file")
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(content, &obj); err != nil {
		return nil, rxerr.Wrap(rxerr.Content, "", "parsing content as JSON object", err)
	}
	resolved := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		resolved[k] = resolveFileRefs(v, rc.Files)
	}
	return resolved, nil
}

func resolveFileRefs(v interface{}, files map[string][]byte) interface{} {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "@") {
			if content, ok := files[val[1:]]; ok {
				return string(content)
			}
		}
		return val
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[k] = resolveFileRefs(vv, files)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			out[i] = resolveFileRefs(vv, files)
		}
		return out
	default:
		return val
	}
}
