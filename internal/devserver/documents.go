package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDuplicateEmail   = errors.New("email already registered")
)

// Document is one stored record. Field values keep their JSON types;
// numbers are json.Number.
type Document map[string]any

// ID returns the document id or ""
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// Clone returns a shallow copy
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Matches reports whether every filter equals the string form of its field
func (d Document) Matches(filters map[string]string) bool {
	for field, want := range filters {
		if fieldString(d[field]) != want {
			return false
		}
	}
	return true
}

func fieldString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// DecodeDocument parses a JSON object, keeping numbers exact
func DecodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("data must be a JSON object: %w", err)
	}
	if doc == nil {
		return nil, errors.New("data must be a JSON object")
	}
	return doc, nil
}

// DocumentStore persists documents per (app, table)
type DocumentStore interface {
	// Put inserts doc with a fresh id when it has none, or replaces the
	// stored document with the same id. Replacing an unknown id fails with
	// ErrDocumentNotFound. created reports whether an insert happened.
	Put(ctx context.Context, appID, table string, doc Document) (stored Document, created bool, err error)
	// Query returns matching documents in insertion order
	Query(ctx context.Context, appID, table string, filters map[string]string) ([]Document, error)
	Close() error
}

// NewID returns a fresh document id
func NewID() string {
	return uuid.NewString()
}

type tableKey struct {
	app   string
	table string
}

// MemoryDocuments is an in-memory DocumentStore
type MemoryDocuments struct {
	mu     sync.RWMutex
	tables map[tableKey][]Document
}

// NewMemoryDocuments creates an empty in-memory store
func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{tables: make(map[tableKey][]Document)}
}

func (m *MemoryDocuments) Put(ctx context.Context, appID, table string, doc Document) (Document, bool, error) {
	key := tableKey{appID, table}
	doc = doc.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()

	if id := doc.ID(); id != "" {
		for i, existing := range m.tables[key] {
			if existing.ID() == id {
				m.tables[key][i] = doc
				return doc.Clone(), false, nil
			}
		}
		return nil, false, ErrDocumentNotFound
	}

	doc["id"] = NewID()
	m.tables[key] = append(m.tables[key], doc)
	return doc.Clone(), true, nil
}

func (m *MemoryDocuments) Query(ctx context.Context, appID, table string, filters map[string]string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Document{}
	for _, doc := range m.tables[tableKey{appID, table}] {
		if doc.Matches(filters) {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

func (m *MemoryDocuments) Close() error { return nil }
