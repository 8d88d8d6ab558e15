package source

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/deepractice/resourcex/internal/rxerr"
	"github.com/deepractice/resourcex/rxid"
	"github.com/deepractice/resourcex/rxm"
	"github.com/deepractice/resourcex/rxr"
)

// excludedNames are never packed into the archive, per §4.6.
var excludedNames = map[string]bool{
	".git":          true,
	"node_modules":  true,
	"resource.json": true,
}

// resourceJSON is the shape of an authoritative resource.json indicator.
type resourceJSON struct {
	Registry    string   `json:"registry,omitempty"`
	Path        []string `json:"path,omitempty"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Tag         string   `json:"tag,omitempty"`
	Description string   `json:"description,omitempty"`
	Author      string   `json:"author,omitempty"`
	License     string   `json:"license,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Repository  string   `json:"repository,omitempty"`
}

// FolderLoader loads a resource from a local directory, per §4.6's
// detection chain: resource.json (authoritative) > SKILL.md (type
// "skill") > prototype.json (type "prototype") > ResourceXError.
type FolderLoader struct {
	// Overrides, when non-nil, supplies user-specified definition
	// fields that take precedence over detected ones (the "user
	// overrides" merge §4.6 describes).
	Overrides *rxm.Input
}

// CanLoad reports whether src is a directory path string.
func (f *FolderLoader) CanLoad(src interface{}) bool {
	p, ok := src.(string)
	if !ok {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// Load reads dir's file set and constructs a Resource per §4.6.
func (f *FolderLoader) Load(ctx context.Context, src interface{}) (*rxr.Resource, map[string][]byte, error) {
	dir, ok := src.(string)
	if !ok {
		return nil, nil, rxerr.New(rxerr.Content, "bad-source", "folder loader requires a directory path")
	}

	files, err := readTree(dir)
	if err != nil {
		return nil, nil, rxerr.Wrap(rxerr.Content, "", "reading directory "+dir, err)
	}

	// resource.json is excluded from the packed file set, so it is read
	// from the directory itself for detection.
	indicators := files
	if raw, err := os.ReadFile(filepath.Join(dir, "resource.json")); err == nil {
		indicators = map[string][]byte{"resource.json": raw}
	}

	input, err := detect(indicators)
	if err != nil {
		return nil, nil, err
	}
	if input.Name == "" {
		input.Name = filepath.Base(dir)
	}
	if f.Overrides != nil {
		applyOverrides(&input, f.Overrides)
	}

	manifest, err := rxm.New(input)
	if err != nil {
		return nil, nil, err
	}

	id := rxid.Identifier{Registry: input.Registry, Path: input.Path, Name: input.Name, Tag: manifest.Definition.Tag}
	res, err := rxr.New(id, manifest, nil)
	if err != nil {
		return nil, nil, err
	}
	return res, files, nil
}

// detect runs the §4.6 indicator chain over the given file set, which
// carries resource.json when the directory has one.
func detect(files map[string][]byte) (rxm.Input, error) {
	if raw, ok := files["resource.json"]; ok {
		var rj resourceJSON
		if err := json.Unmarshal(raw, &rj); err != nil {
			return rxm.Input{}, rxerr.Wrap(rxerr.Manifest, "", "decoding resource.json", err)
		}
		return rxm.Input{
			Registry: rj.Registry, Path: rj.Path, Name: rj.Name, Type: rj.Type, Tag: rj.Tag,
			Description: rj.Description, Author: rj.Author, License: rj.License,
			Keywords: rj.Keywords, Repository: rj.Repository,
		}, nil
	}

	if _, ok := files["SKILL.md"]; ok {
		return rxm.Input{Type: "skill"}, nil
	}

	if _, ok := files["prototype.json"]; ok {
		return rxm.Input{Type: "prototype"}, nil
	}

	return rxm.Input{}, rxerr.New(rxerr.Content, "no-indicator", "directory has no resource.json, SKILL.md, or prototype.json")
}

func applyOverrides(detected *rxm.Input, overrides *rxm.Input) {
	if overrides.Registry != "" {
		detected.Registry = overrides.Registry
	}
	if len(overrides.Path) > 0 {
		detected.Path = overrides.Path
	}
	if overrides.Name != "" {
		detected.Name = overrides.Name
	}
	if overrides.Type != "" {
		detected.Type = overrides.Type
	}
	if overrides.Tag != "" {
		detected.Tag = overrides.Tag
	}
	if overrides.Description != "" {
		detected.Description = overrides.Description
	}
	if overrides.Author != "" {
		detected.Author = overrides.Author
	}
	if overrides.License != "" {
		detected.License = overrides.License
	}
	if len(overrides.Keywords) > 0 {
		detected.Keywords = overrides.Keywords
	}
	if overrides.Repository != "" {
		detected.Repository = overrides.Repository
	}
}

// readTree walks dir and returns every regular file (relative path ->
// bytes), excluding .git, node_modules, and resource.json.
func readTree(dir string) (map[string][]byte, error) {
	files := map[string][]byte{}
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		top := filepath.ToSlash(rel)
		if idx := indexOf(top, '/'); idx >= 0 {
			top = top[:idx]
		}
		if excludedNames[top] || excludedNames[filepath.Base(p)] {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = content
		return nil
	})
	return files, err
}

func indexOf(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
