package watcher

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches files for changes and triggers debounced callbacks.
// Parent directories are watched so files replaced by editors (write to a
// temp file, then rename) keep triggering.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	mu        sync.Mutex
	callbacks map[string]func(string)
	dirs      map[string]int
	debounce  time.Duration
	timers    map[string]*time.Timer
	closed    bool
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(debounce time.Duration) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &FileWatcher{
		watcher:   watcher,
		callbacks: make(map[string]func(string)),
		dirs:      make(map[string]int),
		debounce:  debounce,
		timers:    make(map[string]*time.Timer),
	}, nil
}

// Watch starts watching the specified files
// callback will be called with the absolute path of the file that changed
func (fw *FileWatcher) Watch(files []string, callback func(string)) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	for _, file := range files {
		absPath, err := filepath.Abs(file)
		if err != nil {
			return fmt.Errorf("failed to resolve path %s: %w", file, err)
		}
		if _, exists := fw.callbacks[absPath]; exists {
			fw.callbacks[absPath] = callback
			continue
		}

		dir := filepath.Dir(absPath)
		if fw.dirs[dir] == 0 {
			if err := fw.watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
		}
		fw.dirs[dir]++
		fw.callbacks[absPath] = callback
	}

	return nil
}

// Start begins watching for file changes
func (fw *FileWatcher) Start() {
	go func() {
		for {
			select {
			case event, ok := <-fw.watcher.Events:
				if !ok {
					return
				}

				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					fw.handleFileChange(filepath.Clean(event.Name))
				}

			case err, ok := <-fw.watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("watcher error", "error", err)
			}
		}
	}()
}

// handleFileChange handles a file change event with debouncing
func (fw *FileWatcher) handleFileChange(filePath string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.closed {
		return
	}
	callback, exists := fw.callbacks[filePath]
	if !exists {
		return
	}

	if timer, exists := fw.timers[filePath]; exists {
		timer.Stop()
	}

	fw.timers[filePath] = time.AfterFunc(fw.debounce, func() {
		callback(filePath)
	})
}

// Close stops the watcher and cancels pending callbacks
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	fw.closed = true
	for _, timer := range fw.timers {
		timer.Stop()
	}
	fw.timers = make(map[string]*time.Timer)
	fw.mu.Unlock()

	return fw.watcher.Close()
}

// RemoveAll removes all watched files
func (fw *FileWatcher) RemoveAll() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	for dir := range fw.dirs {
		if err := fw.watcher.Remove(dir); err != nil {
			return err
		}
	}

	for _, timer := range fw.timers {
		timer.Stop()
	}
	fw.callbacks = make(map[string]func(string))
	fw.dirs = make(map[string]int)
	fw.timers = make(map[string]*time.Timer)
	return nil
}
