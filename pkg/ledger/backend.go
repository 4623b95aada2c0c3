package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"pricecheck/pkg/jsonfile"
	"pricecheck/pkg/model"
)

var (
	// ErrConflict is returned when another writer changed the stored
	// document since it was loaded.
	ErrConflict = errors.New("ledger modified concurrently")
	// ErrConsulDisabled is returned for the consul backend in builds
	// without the consul tag.
	ErrConsulDisabled = errors.New("consul ledger backend not compiled in (build with -tags consul)")
)

// Backend persists the whole ledger document. Load returns an empty
// document when nothing has been stored yet.
type Backend interface {
	Load() (model.LedgerDocument, error)
	Save(doc model.LedgerDocument) error
}

func emptyDoc() model.LedgerDocument {
	return model.LedgerDocument{Sites: map[string]model.LedgerEntry{}}
}

// FileBackend keeps the document in a JSON file.
type FileBackend struct {
	Path string
}

func (b FileBackend) Load() (model.LedgerDocument, error) {
	doc := emptyDoc()
	if err := jsonfile.Load(b.Path, &doc); err != nil {
		if jsonfile.NotExist(err) {
			return emptyDoc(), nil
		}
		return emptyDoc(), err
	}
	if doc.Sites == nil {
		doc.Sites = map[string]model.LedgerEntry{}
	}
	return doc, nil
}

func (b FileBackend) Save(doc model.LedgerDocument) error {
	return jsonfile.Save(b.Path, doc)
}

// MemoryBackend keeps an encoded copy of the document, so callers never
// share maps with it.
type MemoryBackend struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemoryBackend() *MemoryBackend { return &MemoryBackend{} }

func (m *MemoryBackend) Load() (model.LedgerDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc := emptyDoc()
	if m.data == nil {
		return doc, nil
	}
	if err := json.Unmarshal(m.data, &doc); err != nil {
		return emptyDoc(), err
	}
	if doc.Sites == nil {
		doc.Sites = map[string]model.LedgerEntry{}
	}
	return doc, nil
}

func (m *MemoryBackend) Save(doc model.LedgerDocument) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = b
	m.mu.Unlock()
	return nil
}

// OpenBackend selects the storage for kind ("file", "memory" or "consul").
func OpenBackend(kind, path, consulAddr, consulKey string, log *slog.Logger) (Backend, error) {
	switch kind {
	case "", "file":
		return FileBackend{Path: path}, nil
	case "memory":
		return NewMemoryBackend(), nil
	case "consul":
		return NewConsulBackend(consulAddr, consulKey, path, log)
	}
	return nil, fmt.Errorf("unknown ledger backend %q", kind)
}
