package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/philipparndt/canalview/pkg/watcher"
)

// ReadUpload reads a mesh file from disk. An empty path means no file was
// chosen and returns nil without error.
func ReadUpload(path string) (*Upload, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &Upload{Name: filepath.Base(path), Data: data}, nil
}

// AnalyzeFiles reads both files and runs Analyze
func (s *Session) AnalyzeFiles(ctx context.Context, rightPath, leftPath string) error {
	right, err := ReadUpload(rightPath)
	if err != nil {
		s.setStatus(err.Error())
		return err
	}
	left, err := ReadUpload(leftPath)
	if err != nil {
		s.setStatus(err.Error())
		return err
	}
	return s.Analyze(ctx, right, left)
}

// WatchFiles re-runs the analysis whenever either file changes, until ctx
// is done. Runs triggered by the watcher never overlap. done, if not nil,
// is called after every run.
func (s *Session) WatchFiles(ctx context.Context, rightPath, leftPath string, debounce time.Duration, done func(error)) error {
	fw, err := watcher.NewFileWatcher(debounce)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	trigger := make(chan string, 1)
	callback := func(changed string) {
		select {
		case trigger <- changed:
		default:
		}
	}
	if err := fw.Watch([]string{rightPath, leftPath}, callback); err != nil {
		return fmt.Errorf("failed to watch files: %w", err)
	}
	fw.Start()
	slog.Info("watching for changes", "right", rightPath, "left", leftPath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case changed := <-trigger:
			slog.Info("file changed, re-analyzing", "file", changed)
			err := s.AnalyzeFiles(ctx, rightPath, leftPath)
			if err != nil {
				slog.Error("analysis failed", "error", err)
			}
			if done != nil {
				done(err)
			}
		}
	}
}
