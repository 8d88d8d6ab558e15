// Package rxm implements the ResourceX manifest data model of §3/§4.2:
// a definition/archive/source triple describing a resource, serialized
// to the canonical JSON shape of §6. The split into three sub-structs
// mirrors the teacher's schema2.Manifest (config descriptor + layer
// descriptors + media type) in manifest/schema2/manifest.go.
package rxm

import (
	"github.com/deepractice/resourcex/internal/rxerr"
	"github.com/deepractice/resourcex/rxid"
)

// Definition is the authoritative identity of a resource.
type Definition struct {
	Registry string `json:"registry,omitempty"`
	Path     []string `json:"path,omitempty"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Tag      string `json:"tag"`

	Description string   `json:"description,omitempty"`
	Author      string   `json:"author,omitempty"`
	License     string   `json:"license,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Repository  string   `json:"repository,omitempty"`
}

// Archive carries the digest populated by CASRegistry.put.
type Archive struct {
	Digest string `json:"digest,omitempty"`
}

// FileEntry is one node of the recursive file tree in Source.Files.
// Directories are represented by a trailing "/" in their key and a zero
// Size; leaves carry Size and no children.
type FileEntry struct {
	Size     int64                 `json:"size,omitempty"`
	Children map[string]*FileEntry `json:"children,omitempty"`
}

// Source is metadata computed from the packed file set.
type Source struct {
	Files   map[string]*FileEntry `json:"files"`
	Preview string                `json:"preview,omitempty"`
}

// Manifest is the full RXM record.
type Manifest struct {
	Definition Definition `json:"definition"`
	Archive    Archive    `json:"archive"`
	Source     Source     `json:"source"`
}

// Input is the minimal record required to construct a Manifest: name and
// type are mandatory, everything else is optional/defaulted.
type Input struct {
	Registry    string
	Path        []string
	Name        string
	Type        string
	Tag         string
	Description string
	Author      string
	License     string
	Keywords    []string
	Repository  string
}

// New builds a Manifest from in, defaulting Tag to "latest" and
// rejecting missing required fields with a ManifestError.
func New(in Input) (*Manifest, error) {
	if in.Name == "" {
		return nil, rxerr.New(rxerr.Manifest, "missing-name", "manifest requires a name")
	}
	if in.Type == "" {
		return nil, rxerr.New(rxerr.Manifest, "missing-type", "manifest requires a type")
	}
	tag := in.Tag
	if tag == "" {
		tag = "latest"
	}
	return &Manifest{
		Definition: Definition{
			Registry:    in.Registry,
			Path:        in.Path,
			Name:        in.Name,
			Type:        in.Type,
			Tag:         tag,
			Description: in.Description,
			Author:      in.Author,
			License:     in.License,
			Keywords:    in.Keywords,
			Repository:  in.Repository,
		},
	}, nil
}

// Identifier projects a Manifest's Definition into an rxid.Identifier,
// the inverse of matching an Identifier against a Definition.
func (m *Manifest) Identifier() rxid.Identifier {
	return rxid.Identifier{
		Registry: m.Definition.Registry,
		Path:     m.Definition.Path,
		Name:     m.Definition.Name,
		Tag:      m.Definition.Tag,
		Digest:   m.Archive.Digest,
	}
}

// ToLocator renders the manifest's identifier as a canonical locator
// string, equivalent to rxid.Format(m.Identifier()).
func (m *Manifest) ToLocator() string {
	return rxid.Format(m.Identifier())
}

// MatchesIdentifier reports whether id and m identify the same resource
// on every field id specifies (registry/path/name/tag), the
// invariant §3 requires between an in-memory Resource's identifier and
// its manifest definition. An Identifier carries no type, so the type
// is not compared.
func MatchesIdentifier(id rxid.Identifier, m *Manifest) bool {
	if id.Name != m.Definition.Name {
		return false
	}
	if id.Tag != "" && id.Tag != m.Definition.Tag {
		return false
	}
	if id.Registry != "" && id.Registry != m.Definition.Registry {
		return false
	}
	if len(id.Path) > 0 && !equalPath(id.Path, m.Definition.Path) {
		return false
	}
	return true
}

func equalPath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
