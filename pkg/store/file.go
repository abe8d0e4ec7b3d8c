package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/taigrr/showroom/pkg/logging"
)

// File is a Store backed by a TOML document. The whole file is rewritten on
// every upsert through a temporary file and a rename.
type File struct {
	path string
	mu   sync.Mutex
	mem  *Memory
}

type fileDoc struct {
	Records []Record `toml:"record"`
}

// OpenFile loads path, or starts empty if it does not exist.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, mem: NewMemory()}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	var doc fileDoc
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode store %s: %w", path, err)
	}
	for _, r := range doc.Records {
		f.mem.records[r.Key()] = r
	}
	logging.Logger().Debug("store opened", "path", path, "records", len(doc.Records))
	return f, nil
}

func (f *File) Get(ctx context.Context, key Key) (Record, error) {
	return f.mem.Get(ctx, key)
}

func (f *File) Upsert(ctx context.Context, key Key, p Payload) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, prevErr := f.mem.Get(ctx, key)
	r, err := f.mem.Upsert(ctx, key, p)
	if err != nil {
		return Record{}, err
	}
	if err := f.flush(); err != nil {
		f.mem.mu.Lock()
		if prevErr == nil {
			f.mem.records[key] = prev
		} else {
			delete(f.mem.records, key)
		}
		f.mem.mu.Unlock()
		return Record{}, err
	}
	return r, nil
}

func (f *File) flush() error {
	f.mem.mu.RLock()
	doc := fileDoc{Records: make([]Record, 0, len(f.mem.records))}
	for _, r := range f.mem.records {
		doc.Records = append(doc.Records, r)
	}
	f.mem.mu.RUnlock()
	sort.Slice(doc.Records, func(i, j int) bool {
		a, b := doc.Records[i], doc.Records[j]
		if a.Shop != b.Shop {
			return a.Shop < b.Shop
		}
		return a.ModelURL < b.ModelURL
	})

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	tmp := fmt.Sprintf("%s.%d.tmp", f.path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
