package agents

import (
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the persona file when it changes on disk.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher starts watching the registry's persona file. Editors typically
// write via rename, so the parent directory is watched rather than the file.
func NewWatcher(registry *Registry) (*Watcher, error) {
	if registry.personaPath == "" {
		return nil, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(registry.personaPath)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		registry: registry,
		watcher:  fsw,
		done:     make(chan struct{}),
	}
	go w.loop()

	log.Printf("[Agents] Watching %s for persona changes", registry.personaPath)
	return w, nil
}

func (w *Watcher) loop() {
	target := filepath.Clean(w.registry.personaPath)

	// Debounce: editors fire several events per save.
	var timer *time.Timer

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(250*time.Millisecond, func() {
				if err := w.registry.Reload(); err != nil {
					log.Printf("[Agents] Persona reload failed: %v", err)
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[Agents] Persona watcher error: %v", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
