package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/deepractice/resourcex/store"
)

type entry struct {
	digest       string
	manifestJSON []byte
}

// ManifestStore is an in-memory store.ManifestStore.
type ManifestStore struct {
	mu      sync.RWMutex
	tags    map[store.TagKey]entry
	latests map[store.LatestKey]string
}

func NewManifestStore() *ManifestStore {
	return &ManifestStore{
		tags:    map[store.TagKey]entry{},
		latests: map[store.LatestKey]string{},
	}
}

func (m *ManifestStore) PutTag(ctx context.Context, key store.TagKey, digest string, manifestJSON []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[key] = entry{digest: digest, manifestJSON: append([]byte(nil), manifestJSON...)}
	return nil
}

func (m *ManifestStore) GetTag(ctx context.Context, key store.TagKey) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.tags[key]
	if !ok {
		return nil, "", store.ErrNotFound{Key: key.Name + ":" + key.Tag}
	}
	return append([]byte(nil), e.manifestJSON...), e.digest, nil
}

func (m *ManifestStore) HasTag(ctx context.Context, key store.TagKey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tags[key]
	return ok, nil
}

func (m *ManifestStore) DeleteTag(ctx context.Context, key store.TagKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tags, key)
	return nil
}

func (m *ManifestStore) SetLatest(ctx context.Context, key store.LatestKey, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latests[key] = tag
	return nil
}

func (m *ManifestStore) GetLatest(ctx context.Context, key store.LatestKey) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tag, ok := m.latests[key]
	return tag, ok, nil
}

func (m *ManifestStore) ClearLatestIfPointsTo(ctx context.Context, key store.LatestKey, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latests[key] == tag {
		delete(m.latests, key)
	}
	return nil
}

func (m *ManifestStore) List(ctx context.Context, filter string, limit, offset int) ([]store.TagKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filter = strings.ToLower(filter)
	var all []store.TagKey
	for key := range m.tags {
		haystack := strings.ToLower(strings.Join([]string{key.Registry, strings.Join(key.Path, "/"), key.Name, key.Type}, " "))
		if filter != "" && !strings.Contains(haystack, filter) {
			continue
		}
		all = append(all, key)
	}
	sort.Slice(all, func(i, j int) bool {
		return keyString(all[i]) < keyString(all[j])
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
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.tags {
		if registry != "" {
			if key.Registry == registry {
				delete(m.tags, key)
			}
			continue
		}
		if key.Registry != "" {
			delete(m.tags, key)
		}
	}
	return nil
}

func keyString(key store.TagKey) string {
	return strings.Join([]string{key.Registry, strings.Join(key.Path, "/"), key.Name, key.Type, key.Tag}, "/")
}
