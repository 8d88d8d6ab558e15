package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/deepractice/resourcex/store"
)

// ManifestStore is a store.ManifestStore laying manifests out at
// {root}/manifests/{registry|"local"}/{path...}/{name}.{type}/{tag}/manifest.json
// with a sibling .latest file, exactly the §6 on-disk layout.
type ManifestStore struct {
	root string
}

// NewManifestStore constructs a ManifestStore under root/manifests.
func NewManifestStore(root string) *ManifestStore {
	return &ManifestStore{root: filepath.Join(root, "manifests")}
}

func repoDir(root string, registry string, pathSegs []string, name, typ string) string {
	reg := registry
	if reg == "" {
		reg = "local"
	}
	parts := append([]string{root, reg}, pathSegs...)
	parts = append(parts, name+"."+typ)
	return filepath.Join(parts...)
}

func tagDir(root string, key store.TagKey) string {
	return filepath.Join(repoDir(root, key.Registry, key.Path, key.Name, key.Type), key.Tag)
}

func latestPath(root string, key store.LatestKey) string {
	return filepath.Join(repoDir(root, key.Registry, key.Path, key.Name, key.Type), ".latest")
}

func (m *ManifestStore) PutTag(ctx context.Context, key store.TagKey, digest string, manifestJSON []byte) error {
	dir := tagDir(m.root, key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return atomicWrite(filepath.Join(dir, "manifest.json"), manifestJSON)
}

func (m *ManifestStore) GetTag(ctx context.Context, key store.TagKey) ([]byte, string, error) {
	data, err := os.ReadFile(filepath.Join(tagDir(m.root, key), "manifest.json"))
	if os.IsNotExist(err) {
		return nil, "", store.ErrNotFound{Key: key.Name + ":" + key.Tag}
	}
	if err != nil {
		return nil, "", err
	}
	digest, err := extractDigest(data)
	return data, digest, err
}

func (m *ManifestStore) HasTag(ctx context.Context, key store.TagKey) (bool, error) {
	_, err := os.Stat(filepath.Join(tagDir(m.root, key), "manifest.json"))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (m *ManifestStore) DeleteTag(ctx context.Context, key store.TagKey) error {
	err := os.RemoveAll(tagDir(m.root, key))
	return err
}

func (m *ManifestStore) SetLatest(ctx context.Context, key store.LatestKey, tag string) error {
	dir := repoDir(m.root, key.Registry, key.Path, key.Name, key.Type)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return atomicWrite(latestPath(m.root, key), []byte(tag))
}

func (m *ManifestStore) GetLatest(ctx context.Context, key store.LatestKey) (string, bool, error) {
	data, err := os.ReadFile(latestPath(m.root, key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (m *ManifestStore) ClearLatestIfPointsTo(ctx context.Context, key store.LatestKey, tag string) error {
	current, ok, err := m.GetLatest(ctx, key)
	if err != nil || !ok || current != tag {
		return err
	}
	err = os.Remove(latestPath(m.root, key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (m *ManifestStore) List(ctx context.Context, filter string, limit, offset int) ([]store.TagKey, error) {
	var all []store.TagKey
	filter = strings.ToLower(filter)

	err := filepath.Walk(m.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || info.Name() != "manifest.json" {
			return nil
		}
		key, ok := tagKeyFromPath(m.root, p)
		if !ok {
			return nil
		}
		haystack := strings.ToLower(strings.Join([]string{key.Registry, strings.Join(key.Path, "/"), key.Name, key.Type}, " "))
		if filter != "" && !strings.Contains(haystack, filter) {
			return nil
		}
		all = append(all, key)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		return tagKeyString(all[i]) < tagKeyString(all[j])
	})

	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *ManifestStore) ClearCache(ctx context.Context, registry string) error {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if registry != "" {
			if name == registry {
				if err := os.RemoveAll(filepath.Join(m.root, name)); err != nil {
					return err
				}
			}
			continue
		}
		if name != "local" {
			if err := os.RemoveAll(filepath.Join(m.root, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// tagKeyFromPath reconstructs a store.TagKey from a manifest.json path
// under root, the inverse of tagDir.
func tagKeyFromPath(root, manifestPath string) (store.TagKey, bool) {
	rel, err := filepath.Rel(root, manifestPath)
	if err != nil {
		return store.TagKey{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	// parts: registry, path..., name.type, tag, manifest.json
	if len(parts) < 4 {
		return store.TagKey{}, false
	}
	registry := parts[0]
	if registry == "local" {
		registry = ""
	}
	tag := parts[len(parts)-2]
	nameType := parts[len(parts)-3]
	pathSegs := parts[1 : len(parts)-3]

	idx := strings.LastIndex(nameType, ".")
	if idx < 0 {
		return store.TagKey{}, false
	}
	return store.TagKey{
		Registry: registry,
		Path:     pathSegs,
		Name:     nameType[:idx],
		Type:     nameType[idx+1:],
		Tag:      tag,
	}, true
}

func tagKeyString(key store.TagKey) string {
	return strings.Join([]string{key.Registry, strings.Join(key.Path, "/"), key.Name, key.Type, key.Tag}, "/")
}

type manifestArchiveProbe struct {
	Archive struct {
		Digest string `json:"digest"`
	} `json:"archive"`
}

func extractDigest(manifestJSON []byte) (string, error) {
	var probe manifestArchiveProbe
	if err := json.Unmarshal(manifestJSON, &probe); err != nil {
		return "", err
	}
	return probe.Archive.Digest, nil
}

func atomicWrite(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-manifest-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
