// Package rxa implements the ResourceX archive codec of §4.3: a
// deterministic tar+gzip packaging of a file set, whose digest is a
// pure function of path -> bytes. It is the RXA analogue of the
// teacher's blob layer (digest/digest.go's NewDigest plus
// registry/storage/blobwriter.go's commit-time digest verification),
// generalized from Docker image layers to arbitrary file sets.
package rxa

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"path"
	"sort"
	"strings"

	digest "github.com/opencontainers/go-digest"

	"github.com/deepractice/resourcex/internal/rxerr"
)

// Archive is an opaque gzip-compressed canonical tar of a resource's
// file set, together with the digest of its uncompressed tar bytes.
type Archive struct {
	gzipBytes []byte
	digest    digest.Digest
}

// Digest returns the "sha256:<hex>" digest of the archive, stable across
// gzip implementations because it is computed over the uncompressed tar
// stream (§4.3).
func (a *Archive) Digest() string { return a.digest.String() }

// Bytes returns the gzip-compressed archive bytes, suitable for writing
// to a blob store or an HTTP body.
func (a *Archive) Bytes() []byte { return a.gzipBytes }

// singleton wraps a bare content buffer into the {"content": bytes} map
// form §4.3 describes for single-file resources.
func singleton(content []byte) map[string][]byte {
	return map[string][]byte{"content": content}
}

// PackContent packs a single content buffer as {"content": bytes}.
func PackContent(content []byte) (*Archive, error) {
	return Pack(singleton(content))
}

// Pack packs files into a canonical tar+gzip Archive. Packing is
// deterministic: the same path -> bytes map always yields the same
// digest and the same gzip bytes (fixed header, no filename, mtime 0),
// so CAS puts on unchanged content are true no-ops.
func Pack(files map[string][]byte) (*Archive, error) {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	for _, p := range paths {
		content := files[p]
		hdr := &tar.Header{
			Name:     p,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
			ModTime:  epoch,
			// Uid/Gid default to 0, Uname/Gname default to "", per §4.3.
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, rxerr.Wrap(rxerr.Content, "", "writing tar header", err)
		}
		if _, err := tw.Write(content); err != nil {
			return nil, rxerr.Wrap(rxerr.Content, "", "writing tar content", err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, rxerr.Wrap(rxerr.Content, "", "closing tar writer", err)
	}

	tarBytes := tarBuf.Bytes()
	d := digest.FromBytes(tarBytes)

	var gzBuf bytes.Buffer
	zw, _ := gzip.NewWriterLevel(&gzBuf, gzip.BestCompression)
	// Fixed header: no filename, no mtime, so gzip output (aside from
	// compression-level-dependent bytes the digest never sees) carries
	// no incidental provenance.
	zw.Name = ""
	zw.ModTime = epoch
	if _, err := zw.Write(tarBytes); err != nil {
		return nil, rxerr.Wrap(rxerr.Content, "", "gzip compression", err)
	}
	if err := zw.Close(); err != nil {
		return nil, rxerr.Wrap(rxerr.Content, "", "closing gzip writer", err)
	}

	return &Archive{gzipBytes: gzBuf.Bytes(), digest: d}, nil
}

// FromGzip wraps already-compressed archive bytes (e.g. read back from a
// blob store or fetched over HTTP) into an Archive, computing its digest
// by extracting and re-hashing the uncompressed tar stream.
func FromGzip(gzipBytes []byte) (*Archive, error) {
	tarBytes, err := decompress(gzipBytes)
	if err != nil {
		return nil, err
	}
	return &Archive{gzipBytes: gzipBytes, digest: digest.FromBytes(tarBytes)}, nil
}

// Extract parses the archive's tar stream into a path -> bytes map,
// rejecting symlinks, device nodes, and absolute or ".."-escaping paths
// per §4.3.
func (a *Archive) Extract() (map[string][]byte, error) {
	tarBytes, err := decompress(a.gzipBytes)
	if err != nil {
		return nil, err
	}
	return extractTar(tarBytes)
}

// File returns the content of a single path within the archive, or a
// ContentError if the path is absent.
func (a *Archive) File(p string) ([]byte, error) {
	files, err := a.Extract()
	if err != nil {
		return nil, err
	}
	content, ok := files[p]
	if !ok {
		return nil, rxerr.New(rxerr.Content, "missing-file", "archive has no file "+p)
	}
	return content, nil
}

func decompress(gzipBytes []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(gzipBytes))
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Content, "", "malformed gzip stream", err)
	}
	defer zr.Close()
	tarBytes, err := io.ReadAll(zr)
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Content, "", "reading gzip stream", err)
	}
	return tarBytes, nil
}

func extractTar(tarBytes []byte) (map[string][]byte, error) {
	tr := tar.NewReader(bytes.NewReader(tarBytes))
	files := map[string][]byte{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, rxerr.Wrap(rxerr.Content, "", "malformed tar stream", err)
		}
		if err := validateEntry(hdr); err != nil {
			return nil, err
		}
		if hdr.Typeflag == tar.TypeDir {
			continue
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, rxerr.Wrap(rxerr.Content, "", "reading tar entry", err)
		}
		files[hdr.Name] = content
	}
	return files, nil
}

func validateEntry(hdr *tar.Header) error {
	switch hdr.Typeflag {
	case tar.TypeSymlink, tar.TypeLink, tar.TypeChar, tar.TypeBlock, tar.TypeFifo:
		return rxerr.New(rxerr.Content, "unsafe-entry", "archive entry "+hdr.Name+" has an unsupported type")
	}
	clean := path.Clean(hdr.Name)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return rxerr.New(rxerr.Content, "unsafe-entry", "archive entry "+hdr.Name+" escapes the archive root")
	}
	return nil
}

var epoch = epochTime()
