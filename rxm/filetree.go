package rxm

import (
	"sort"
	"strings"
)

// BuildFileTree turns a flat path -> bytes map into the recursive tree
// shape described in §3: directories are intermediate nodes ending in
// "/", named by their path segment in the parent's Children map.
func BuildFileTree(files map[string][]byte) map[string]*FileEntry {
	root := map[string]*FileEntry{}
	for path, content := range files {
		segments := strings.Split(path, "/")
		cur := root
		for i, seg := range segments {
			last := i == len(segments)-1
			if last {
				cur[seg] = &FileEntry{Size: int64(len(content))}
				continue
			}
			dirKey := seg + "/"
			entry, ok := cur[dirKey]
			if !ok {
				entry = &FileEntry{Children: map[string]*FileEntry{}}
				cur[dirKey] = entry
			}
			cur = entry.Children
		}
	}
	return root
}

// primaryCandidates is the §3 search order for the file whose content
// seeds Source.Preview.
var primaryCandidates = []string{"SKILL.md", "content", "README.md", "index.md"}

const previewMaxChars = 500

// BuildPreview picks the "primary" file per §3 (first of
// primaryCandidates present, else the first small text-ish file by
// lexical path order) and returns up to previewMaxChars runes of its
// content.
func BuildPreview(files map[string][]byte) string {
	for _, name := range primaryCandidates {
		if content, ok := files[name]; ok {
			return truncate(string(content), previewMaxChars)
		}
	}

	var paths []string
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		content := files[p]
		if looksTextish(content) && len(content) < 64*1024 {
			return truncate(string(content), previewMaxChars)
		}
	}
	return ""
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}

func looksTextish(content []byte) bool {
	for _, b := range content {
		if b == 0 {
			return false
		}
	}
	return true
}
