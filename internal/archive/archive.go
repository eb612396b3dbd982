// Package archive bundles hook documents into portable tar archives,
// optionally compressed, for export and import between installations.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/watzon/relay/internal/hook"
)

// Supported compression types. The empty string means no compression.
const (
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// manifestName is the archive entry describing the export itself. It is
// never treated as a hook document.
const manifestName = "manifest.yaml"

// Manifest records when an archive was produced and how many hooks it
// carries.
type Manifest struct {
	ExportedAt time.Time `yaml:"exported_at"`
	Count      int       `yaml:"count"`
}

// DetectCompression infers the compression type from an archive
// filename. Unknown extensions mean no compression.
func DetectCompression(name string) string {
	switch {
	case strings.HasSuffix(name, ".tgz"), strings.HasSuffix(name, ".gz"):
		return CompressionGzip
	case strings.HasSuffix(name, ".zst"):
		return CompressionZstd
	default:
		return ""
	}
}

// Export writes the given hooks to w as a tar archive, one YAML
// document per hook named by id, preceded by a manifest entry.
func Export(w io.Writer, hooks []*hook.Hook, compression string) error {
	cw, err := compressWriter(w, compression)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(cw)

	manifest, err := yaml.Marshal(Manifest{
		ExportedAt: time.Now().UTC(),
		Count:      len(hooks),
	})
	if err != nil {
		return fmt.Errorf("serializing manifest: %w", err)
	}
	if err := writeEntry(tw, manifestName, manifest, time.Now().UTC()); err != nil {
		return err
	}

	for _, h := range hooks {
		data, err := yaml.Marshal(h)
		if err != nil {
			return fmt.Errorf("serializing hook %s: %w", h.ID, err)
		}

		mod := h.UpdatedAt
		if mod.IsZero() {
			mod = time.Now().UTC()
		}
		if err := writeEntry(tw, h.ID+".yaml", data, mod); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("finalizing compression: %w", err)
	}
	return nil
}

func writeEntry(tw *tar.Writer, name string, data []byte, mod time.Time) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  mod,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing archive header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("writing archive entry %s: %w", name, err)
	}
	return nil
}

// Import reads hook documents back out of an archive produced by
// Export. Entries that fail to parse are skipped with a logged warning,
// mirroring how the store loads its directory; a malformed archive
// stream is an error.
func Import(r io.Reader, compression string) ([]*hook.Hook, error) {
	cr, err := decompressReader(r, compression)
	if err != nil {
		return nil, err
	}
	defer cr.Close()

	tr := tar.NewReader(cr)
	var hooks []*hook.Hook
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.Base(hdr.Name)
		if name == manifestName {
			readManifest(tr)
			continue
		}
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		base := strings.TrimSuffix(name, ext)
		if hook.ReservedName(base) {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading archive entry %s: %w", hdr.Name, err)
		}

		h := &hook.Hook{}
		if err := yaml.Unmarshal(data, h); err != nil {
			log.Warn().Err(err).Str("entry", hdr.Name).Msg("Skipping unparseable archive entry")
			continue
		}
		if h.ID == "" {
			h.ID = base
		}
		hooks = append(hooks, h)
	}

	return hooks, nil
}

func readManifest(r io.Reader) {
	data, err := io.ReadAll(r)
	if err != nil {
		return
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return
	}
	log.Debug().Time("exported_at", m.ExportedAt).Int("count", m.Count).Msg("Archive manifest")
}

func compressWriter(w io.Writer, compression string) (io.WriteCloser, error) {
	switch compression {
	case "":
		return nopWriteCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionZstd:
		return zstd.NewWriter(w)
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", compression)
	}
}

func decompressReader(r io.Reader, compression string) (io.ReadCloser, error) {
	switch compression {
	case "":
		return io.NopCloser(r), nil
	case CompressionGzip:
		return gzip.NewReader(r)
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", compression)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
