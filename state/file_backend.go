package state

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/navigator-sdk/navigator/logger"
)

// FileBackend persists a single key's snapshot as a flat JSON file and
// watches it for external edits, useful for local dev/test fixtures
// that hand-edit persisted state. It implements state.ExternalChangeNotifier:
// AppState wires SetExternalChangeHandler at construction time and the
// handler fires with the freshly loaded snapshot whenever the file
// changes on disk outside of Save.
type FileBackend struct {
	mu               sync.Mutex
	path             string
	watcher          *fsnotify.Watcher
	lastSaved        []byte
	onExternalChange func(snapshot map[string]any)
}

// NewFileBackend opens a watch on path's directory. path need not exist
// yet; Load returns not-found until the first Save.
func NewFileBackend(path string) (*FileBackend, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	b := &FileBackend{path: path, watcher: w}
	go b.watch()
	return b, nil
}

// SetExternalChangeHandler implements state.ExternalChangeNotifier.
func (b *FileBackend) SetExternalChangeHandler(h func(snapshot map[string]any)) {
	b.mu.Lock()
	b.onExternalChange = h
	b.mu.Unlock()
}

func (b *FileBackend) watch() {
	for event := range b.watcher.Events {
		if event.Name != b.path {
			continue
		}
		if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			continue
		}

		data, err := os.ReadFile(b.path)
		if err != nil {
			continue
		}
		b.mu.Lock()
		ownWrite := bytes.Equal(data, b.lastSaved)
		handler := b.onExternalChange
		b.mu.Unlock()
		if ownWrite {
			continue
		}

		var snapshot map[string]any
		if err := json.Unmarshal(data, &snapshot); err != nil {
			continue
		}
		if handler != nil {
			handler(snapshot)
		}
	}
}

// Save implements StorageBackend. key is ignored: a FileBackend owns
// exactly one file.
func (b *FileBackend) Save(key string, snapshot map[string]any) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.lastSaved = data
	b.mu.Unlock()

	return os.WriteFile(b.path, data, 0o644)
}

// Load implements StorageBackend. key is ignored.
func (b *FileBackend) Load(key string) (map[string]any, bool, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Close stops the filesystem watch.
func (b *FileBackend) Close() error {
	logger.State().Debug().Str("path", b.path).Msg("closing file backend watch")
	return b.watcher.Close()
}
