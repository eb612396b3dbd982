package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/watzon/relay/internal/config"
	"github.com/watzon/relay/internal/engine"
	"github.com/watzon/relay/internal/hook"
)

type runCall struct {
	id   string
	opts engine.RunOptions
}

type fakeRunner struct {
	runs chan runCall
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{runs: make(chan runCall, 16)}
}

func (f *fakeRunner) Run(ctx context.Context, id string, opts engine.RunOptions) (*engine.ExecutionResult, error) {
	f.runs <- runCall{id: id, opts: opts}
	return &engine.ExecutionResult{HookID: id, Success: true}, nil
}

func newWatcher(t *testing.T) (*Watcher, *fakeRunner, string) {
	t.Helper()

	root := t.TempDir()
	runner := newFakeRunner()
	w, err := New(root, runner, config.WatchConfig{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	w.Start()
	t.Cleanup(func() {
		require.NoError(t, w.Stop())
	})

	return w, runner, root
}

func fileHook(id, pattern string) *hook.Hook {
	return &hook.Hook{
		ID:          id,
		Name:        id,
		Description: "watch test hook",
		Enabled:     true,
		Trigger:     hook.Trigger{Type: hook.TriggerFileChange, Pattern: pattern},
		Actions:     []hook.Action{{Type: hook.ActionShell, Command: "true"}},
	}
}

func awaitRun(t *testing.T, runner *fakeRunner) runCall {
	t.Helper()
	select {
	case call := <-runner.runs:
		return call
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a triggered run")
		return runCall{}
	}
}

func requireNoRun(t *testing.T, runner *fakeRunner) {
	t.Helper()
	select {
	case call := <-runner.runs:
		t.Fatalf("unexpected run for hook %s", call.id)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcher_FiresOnMatchingChange(t *testing.T) {
	w, runner, root := newWatcher(t)
	require.NoError(t, w.Ensure(fileHook("on-save", "**/*.txt")))

	require.NoError(t, os.WriteFile(filepath.Join(root, "note.txt"), []byte("x"), 0o644))

	call := awaitRun(t, runner)
	require.Equal(t, "on-save", call.id)
	require.NotNil(t, call.opts.Trigger)
	require.Equal(t, "note.txt", call.opts.Trigger.Path)
	require.Equal(t, hook.TriggerFileChange, call.opts.Trigger.Type)
	require.Equal(t, root, call.opts.WorkingDir)
}

func TestWatcher_IgnoresNonMatchingPaths(t *testing.T) {
	w, runner, root := newWatcher(t)
	require.NoError(t, w.Ensure(fileHook("on-save", "**/*.txt")))

	require.NoError(t, os.WriteFile(filepath.Join(root, "binary.dat"), []byte("x"), 0o644))

	requireNoRun(t, runner)
}

func TestWatcher_DeletionDoesNotFire(t *testing.T) {
	w, runner, root := newWatcher(t)

	path := filepath.Join(root, "doomed.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.NoError(t, w.Ensure(fileHook("on-save", "*.txt")))
	require.NoError(t, os.Remove(path))

	requireNoRun(t, runner)
}

func TestWatcher_DebounceCoalescesBursts(t *testing.T) {
	w, runner, root := newWatcher(t)
	require.NoError(t, w.Ensure(fileHook("on-save", "*.txt")))

	path := filepath.Join(root, "burst.txt")
	for i := 0; i < 4; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0o644))
		time.Sleep(3 * time.Millisecond)
	}

	call := awaitRun(t, runner)
	require.Equal(t, "on-save", call.id)

	requireNoRun(t, runner)
}

func TestWatcher_RemoveStopsDelivery(t *testing.T) {
	w, runner, root := newWatcher(t)
	require.NoError(t, w.Ensure(fileHook("on-save", "*.txt")))

	w.Remove("on-save")

	require.NoError(t, os.WriteFile(filepath.Join(root, "late.txt"), []byte("x"), 0o644))
	requireNoRun(t, runner)
}

func TestWatcher_EnsureDisabledRemovesWatch(t *testing.T) {
	w, runner, root := newWatcher(t)

	h := fileHook("toggle", "*.txt")
	require.NoError(t, w.Ensure(h))

	h.Enabled = false
	require.NoError(t, w.Ensure(h))

	require.NoError(t, os.WriteFile(filepath.Join(root, "off.txt"), []byte("x"), 0o644))
	requireNoRun(t, runner)

	// Re-enabling establishes exactly one watch, never two.
	h.Enabled = true
	require.NoError(t, w.Ensure(h))
	require.NoError(t, w.Ensure(h))

	require.NoError(t, os.WriteFile(filepath.Join(root, "on.txt"), []byte("x"), 0o644))
	call := awaitRun(t, runner)
	require.Equal(t, "toggle", call.id)
	requireNoRun(t, runner)
}

func TestWatcher_CoversDirectoriesCreatedLater(t *testing.T) {
	w, runner, root := newWatcher(t)

	require.NoError(t, os.Mkdir(filepath.Join(root, "src"), 0o755))
	require.NoError(t, w.Ensure(fileHook("nested", "src/**/*.go")))

	require.NoError(t, os.Mkdir(filepath.Join(root, "src", "pkg"), 0o755))
	time.Sleep(150 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "pkg", "a.go"), []byte("package pkg\n"), 0o644))

	call := awaitRun(t, runner)
	require.Equal(t, "nested", call.id)
	require.Equal(t, "src/pkg/a.go", call.opts.Trigger.Path)
}

func TestWatcher_InvalidPattern(t *testing.T) {
	w, _, _ := newWatcher(t)

	err := w.Ensure(fileHook("bad", "src/[unclosed"))
	require.Error(t, err)
}

func TestWatcher_EnsureNonFileTriggerIsNoop(t *testing.T) {
	w, runner, root := newWatcher(t)

	h := fileHook("manual", "*.txt")
	h.Trigger = hook.Trigger{Type: hook.TriggerManual}
	require.NoError(t, w.Ensure(h))

	require.NoError(t, os.WriteFile(filepath.Join(root, "x.txt"), []byte("x"), 0o644))
	requireNoRun(t, runner)
}

func TestExtractBaseDir(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"/project/**/*.go", "/project"},
		{"/project/src/*.ts", "/project/src"},
		{"/project/config.yaml", "/project"},
		{"/project/src/**/test/*.go", "/project/src"},
	}

	for _, tt := range tests {
		if got := extractBaseDir(tt.pattern); got != tt.want {
			t.Errorf("extractBaseDir(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}
