package archive

import (
	"archive/tar"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/watzon/relay/internal/hook"
)

func sampleHook(id, name string) *hook.Hook {
	return &hook.Hook{
		ID:      id,
		Name:    name,
		Enabled: true,
		Trigger: hook.Trigger{Type: hook.TriggerFileChange, Pattern: "src/**/*.go"},
		Actions: []hook.Action{
			{Type: hook.ActionShell, Command: "make lint"},
		},
		Timeout:   10000,
		OnError:   hook.OnErrorStop,
		UpdatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	first := sampleHook("lint-on-save", "Lint on save")
	second := sampleHook("test-on-save", "Test on save")
	second.Enabled = false
	second.Variables = map[string]any{"suite": "unit"}

	var buf bytes.Buffer
	if err := Export(&buf, []*hook.Hook{first, second}, ""); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	hooks, err := Import(&buf, "")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(hooks) != 2 {
		t.Fatalf("Expected 2 hooks, got %d", len(hooks))
	}

	if hooks[0].ID != "lint-on-save" || hooks[1].ID != "test-on-save" {
		t.Errorf("Hook order not preserved: got %s, %s", hooks[0].ID, hooks[1].ID)
	}

	got := hooks[0]
	if got.Name != "Lint on save" {
		t.Errorf("Name = %q, want %q", got.Name, "Lint on save")
	}
	if got.Trigger.Type != hook.TriggerFileChange || got.Trigger.Pattern != "src/**/*.go" {
		t.Errorf("Trigger not preserved: %+v", got.Trigger)
	}
	if len(got.Actions) != 1 || got.Actions[0].Command != "make lint" {
		t.Errorf("Actions not preserved: %+v", got.Actions)
	}
	if got.Timeout != 10000 {
		t.Errorf("Timeout = %d, want 10000", got.Timeout)
	}

	if hooks[1].Enabled {
		t.Error("Disabled hook came back enabled")
	}
	if suite, ok := hooks[1].Variables["suite"]; !ok || suite != "unit" {
		t.Errorf("Variables not preserved: %+v", hooks[1].Variables)
	}
}

func TestExportImport_Gzip(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, []*hook.Hook{sampleHook("a", "A")}, CompressionGzip); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	raw := buf.Bytes()
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		t.Fatalf("Output is not gzip, first bytes: %x", raw[:2])
	}

	hooks, err := Import(bytes.NewReader(raw), CompressionGzip)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(hooks) != 1 || hooks[0].ID != "a" {
		t.Fatalf("Round trip lost the hook: %+v", hooks)
	}
}

func TestExportImport_Zstd(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, []*hook.Hook{sampleHook("a", "A")}, CompressionZstd); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	raw := buf.Bytes()
	magic := []byte{0x28, 0xb5, 0x2f, 0xfd}
	if len(raw) < 4 || !bytes.Equal(raw[:4], magic) {
		t.Fatalf("Output is not zstd, first bytes: %x", raw[:4])
	}

	hooks, err := Import(bytes.NewReader(raw), CompressionZstd)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(hooks) != 1 || hooks[0].ID != "a" {
		t.Fatalf("Round trip lost the hook: %+v", hooks)
	}
}

func TestExport_UnsupportedCompression(t *testing.T) {
	var buf bytes.Buffer
	err := Export(&buf, nil, "lz4")
	if err == nil || !strings.Contains(err.Error(), "unsupported compression") {
		t.Errorf("Expected unsupported compression error, got: %v", err)
	}

	_, err = Import(&buf, "lz4")
	if err == nil || !strings.Contains(err.Error(), "unsupported compression") {
		t.Errorf("Expected unsupported compression error on import, got: %v", err)
	}
}

func TestImport_EmptyArchive(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, nil, ""); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	hooks, err := Import(&buf, "")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(hooks) != 0 {
		t.Errorf("Expected no hooks from empty archive, got %d", len(hooks))
	}
}

type rawEntry struct {
	name string
	body string
	dir  bool
}

func craftArchive(t *testing.T, entries []rawEntry) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Typeflag: tar.TypeReg, Size: int64(len(e.body))}
		if e.dir {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader failed: %v", err)
		}
		if !e.dir {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return &buf
}

func TestImport_SkipsNonHookEntries(t *testing.T) {
	buf := craftArchive(t, []rawEntry{
		{name: "manifest.yaml", body: "exported_at: 2025-03-01T12:00:00Z\ncount: 1\n"},
		{name: "config.yaml", body: "name: Not a hook\n"},
		{name: "notes/", dir: true},
		{name: "README.md", body: "not yaml"},
		{name: "deploy.yaml", body: "name: Deploy\ntrigger:\n  type: manual\nactions:\n  - type: shell\n    command: make deploy\n"},
	})

	hooks, err := Import(buf, "")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(hooks) != 1 {
		t.Fatalf("Expected 1 hook, got %d", len(hooks))
	}
	if hooks[0].ID != "deploy" {
		t.Errorf("ID should default to filename, got %q", hooks[0].ID)
	}
	if hooks[0].Name != "Deploy" {
		t.Errorf("Name = %q, want Deploy", hooks[0].Name)
	}
}

func TestImport_SkipsUnparseableEntry(t *testing.T) {
	buf := craftArchive(t, []rawEntry{
		{name: "broken.yaml", body: "id: [unterminated\n"},
		{name: "good.yaml", body: "name: Good\ntrigger:\n  type: manual\nactions: []\n"},
	})

	hooks, err := Import(buf, "")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(hooks) != 1 || hooks[0].ID != "good" {
		t.Fatalf("Expected only the parseable hook, got %+v", hooks)
	}
}

func TestImport_AppliesDocumentDefaults(t *testing.T) {
	buf := craftArchive(t, []rawEntry{
		{name: "bare.yaml", body: "name: Bare\ntrigger:\n  type: manual\nactions: []\n"},
	})

	hooks, err := Import(buf, "")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(hooks) != 1 {
		t.Fatalf("Expected 1 hook, got %d", len(hooks))
	}
	h := hooks[0]
	if !h.Enabled {
		t.Error("Imported hook should default to enabled")
	}
	if h.Timeout != hook.DefaultTimeout {
		t.Errorf("Timeout = %d, want %d", h.Timeout, hook.DefaultTimeout)
	}
	if h.OnError != hook.OnErrorStop {
		t.Errorf("OnError = %q, want %q", h.OnError, hook.OnErrorStop)
	}
}

func TestImport_TruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, []*hook.Hook{sampleHook("a", "A")}, CompressionGzip); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	truncated := buf.Bytes()[:buf.Len()/2]
	if _, err := Import(bytes.NewReader(truncated), CompressionGzip); err == nil {
		t.Error("Expected error for truncated archive")
	}
}

func TestDetectCompression(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"hooks.tar.gz", CompressionGzip},
		{"hooks.tgz", CompressionGzip},
		{"hooks.tar.zst", CompressionZstd},
		{"hooks.tar", ""},
		{"hooks.yaml", ""},
	}

	for _, tt := range tests {
		if got := DetectCompression(tt.name); got != tt.want {
			t.Errorf("DetectCompression(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
