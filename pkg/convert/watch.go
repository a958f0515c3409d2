package convert

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a watch waits for changes to settle
const DefaultDebounce = 300 * time.Millisecond

// Watcher re-runs a directory conversion whenever a header or source
// below the input changes.
type Watcher struct {
	conv     *Converter
	input    string
	output   string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	// OnRun receives the outcome of every run, including the first
	OnRun func(*Report, error)
}

// NewWatcher watches input and every directory below it except output.
func NewWatcher(conv *Converter, input, output string) (*Watcher, error) {
	input, err := filepath.Abs(input)
	if err != nil {
		return nil, err
	}
	output, err = filepath.Abs(conv.OutputDir(input, output))
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		conv:     conv,
		input:    input,
		output:   output,
		watcher:  fw,
		debounce: DefaultDebounce,
	}
	if err := w.addRecursive(input); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// SetDebounce changes the settle time.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if w.inOutput(path) || path != root && strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) inOutput(path string) bool {
	rel, err := filepath.Rel(w.output, path)
	return err == nil && !strings.HasPrefix(rel, "..")
}

// relevant reports whether an event should trigger a run.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if w.inOutput(ev.Name) {
		return false
	}
	return IsHeader(ev.Name) || IsSource(ev.Name)
}

func (w *Watcher) run(ctx context.Context) {
	report, err := w.conv.ConvertDirectory(ctx, w.input, w.output)
	if w.OnRun != nil {
		w.OnRun(report, err)
	}
}

// Run converts once, then again after every settled batch of changes,
// until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	w.run(ctx)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ev.Name); err != nil {
						w.conv.logger.WithError(err).WithField("dir", ev.Name).Warn("Failed to watch new directory")
					}
					continue
				}
			}
			if !w.relevant(ev) {
				continue
			}
			w.conv.logger.WithField("file", ev.Name).Debug("Change detected")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			w.run(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.conv.logger.WithError(err).Warn("File watcher error")
		}
	}
}
