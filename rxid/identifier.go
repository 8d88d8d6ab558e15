// Package rxid implements the ResourceX locator grammar of §3/§4.1:
//
//	reference := [registry "/"] [path "/"] name [":" tag] ["@" digest]
//
// The parser mirrors the teacher's reference package (reference/reference.go,
// reference/normalize.go): peel the digest at the last "@", split the rest
// into slash-separated segments deciding whether the first one is a
// registry host, then peel the tag at the last ":" of the final segment.
package rxid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/deepractice/resourcex/internal/rxerr"
)

// Identifier is the parsed form of a locator.
type Identifier struct {
	Registry string // optional host[:port]
	Path     []string
	Name     string
	Tag      string // defaults to "latest" when formatting/resolving, empty here if absent at parse time
	Digest   string // "sha256:<hex64>", optional
}

var (
	digestPattern = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)
	nameCharset   = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

	// NameTotalLengthMax matches the teacher's reference.NameTotalLengthMax;
	// the spec's boundary test says exactly 255 UTF-8 bytes is accepted.
	NameTotalLengthMax = 255
)

// WithoutTag returns a copy of id with Tag and Digest cleared, the
// (registry, path, name) triple used as the key for "latest" pointers.
func (id Identifier) WithoutTag() Identifier {
	return Identifier{Registry: id.Registry, Path: append([]string(nil), id.Path...), Name: id.Name}
}

// TagOrDefault returns id.Tag, defaulting to "latest" per §3.
func (id Identifier) TagOrDefault() string {
	if id.Tag == "" {
		return "latest"
	}
	return id.Tag
}

// Parse parses s into an Identifier per the §4.1 grammar.
func Parse(s string) (Identifier, error) {
	if s == "" {
		return Identifier{}, rxerr.New(rxerr.Locator, "empty-name", "locator must not be empty")
	}

	var id Identifier
	rest := s

	// Peel digest: split on the LAST '@'.
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		digestPart := rest[i+1:]
		if !digestPattern.MatchString(digestPart) {
			return Identifier{}, rxerr.New(rxerr.Locator, "bad-digest", fmt.Sprintf("malformed digest %q", digestPart))
		}
		id.Digest = digestPart
		rest = rest[:i]
	}

	if rest == "" {
		return Identifier{}, rxerr.New(rxerr.Locator, "empty-name", "locator must contain a name")
	}

	segments := strings.Split(rest, "/")

	// First segment is a registry iff it contains '.' or ':', or equals
	// "localhost" — same rule as reference/normalize.go's splitDockerDomain.
	// This must happen BEFORE peeling the tag: a "host:port" registry
	// segment's ':' is not a tag separator, and the tag can only ever
	// live in the final (name) segment.
	if len(segments) > 1 && looksLikeHost(segments[0]) {
		id.Registry = segments[0]
		segments = segments[1:]
	}

	if len(segments) == 0 {
		return Identifier{}, rxerr.New(rxerr.Locator, "empty-name", "locator must contain a name")
	}

	// Peel tag: split the LAST segment on its LAST ':'.
	last := segments[len(segments)-1]
	if i := strings.LastIndex(last, ":"); i >= 0 {
		tagPart := last[i+1:]
		if err := validateTag(tagPart); err != nil {
			return Identifier{}, err
		}
		id.Tag = tagPart
		last = last[:i]
	}
	segments[len(segments)-1] = last

	if segments[len(segments)-1] == "" {
		return Identifier{}, rxerr.New(rxerr.Locator, "empty-name", "locator must contain a name")
	}

	id.Name = segments[len(segments)-1]
	if len(segments) > 1 {
		id.Path = segments[:len(segments)-1]
	}

	if err := validateName(id.Name); err != nil {
		return Identifier{}, err
	}

	return id, nil
}

func looksLikeHost(segment string) bool {
	return segment == "localhost" || strings.ContainsAny(segment, ".:")
}

func validateName(name string) error {
	if name == "" {
		return rxerr.New(rxerr.Locator, "empty-name", "name must not be empty")
	}
	if len(name) > NameTotalLengthMax {
		return rxerr.New(rxerr.Locator, "name-too-long", "name must not exceed 255 bytes")
	}
	if strings.ContainsAny(name, "/:@") {
		return rxerr.New(rxerr.Locator, "bad-name", "name must not contain '/', ':' or '@'")
	}
	return nil
}

func validateTag(tag string) error {
	if strings.ContainsAny(tag, ":@") {
		return rxerr.New(rxerr.Locator, "bad-tag", "tag must not contain ':' or '@'")
	}
	return nil
}

// Format renders id back into canonical locator string form. Format and
// Parse are bijective for canonical identifiers: parse(format(id)) == id.
func Format(id Identifier) string {
	var b strings.Builder
	if id.Registry != "" {
		b.WriteString(id.Registry)
		b.WriteString("/")
	}
	for _, p := range id.Path {
		b.WriteString(p)
		b.WriteString("/")
	}
	b.WriteString(id.Name)
	if id.Tag != "" {
		b.WriteString(":")
		b.WriteString(id.Tag)
	}
	if id.Digest != "" {
		b.WriteString("@")
		b.WriteString(id.Digest)
	}
	return b.String()
}

// String implements fmt.Stringer via Format, mirroring reference.Reference.
func (id Identifier) String() string { return Format(id) }
