package action

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func resolvePath(path, workingDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workingDir, path)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode()&0o111 != 0
}

func fileCreate(path, content, workingDir string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file_create requires a path")
	}
	path = resolvePath(path, workingDir)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return fmt.Sprintf("Created %s (%d bytes)", path, len(content)), nil
}

func fileCopy(source, target, workingDir string) (string, error) {
	if source == "" || target == "" {
		return "", fmt.Errorf("file_copy requires source and target")
	}
	source = resolvePath(source, workingDir)
	target = resolvePath(target, workingDir)

	in, err := os.Open(source)
	if err != nil {
		return "", fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", fmt.Errorf("inspecting source: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating parent directory: %w", err)
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return "", fmt.Errorf("creating target: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return "", fmt.Errorf("copying: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("flushing target: %w", err)
	}
	return fmt.Sprintf("Copied %s to %s (%d bytes)", source, target, n), nil
}

func fileMove(source, target, workingDir string) (string, error) {
	if source == "" || target == "" {
		return "", fmt.Errorf("file_move requires source and target")
	}
	source = resolvePath(source, workingDir)
	target = resolvePath(target, workingDir)

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.Rename(source, target); err != nil {
		return "", fmt.Errorf("moving: %w", err)
	}
	return fmt.Sprintf("Moved %s to %s", source, target), nil
}

func fileDelete(path, workingDir string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file_delete requires a path")
	}
	path = resolvePath(path, workingDir)

	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("deleting: %w", err)
	}
	return fmt.Sprintf("Deleted %s", path), nil
}
