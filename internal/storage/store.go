package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coffersTech/actionlog/internal/model"
)

// FileExt is the suffix of every log file.
const FileExt = ".json"

// MergeMode decides what Append does with an existing file.
type MergeMode string

const (
	// MergeOverwrite replaces the file: last write wins.
	MergeOverwrite MergeMode = "overwrite"
	// MergeAppend concatenates the new entries after the existing ones.
	MergeAppend MergeMode = "append"
	// MergeCreate writes only if the file does not exist yet (ErrExists).
	MergeCreate MergeMode = "create"
)

// ParseMergeMode maps a request value to a MergeMode. Empty means overwrite.
func ParseMergeMode(s string) (MergeMode, error) {
	switch MergeMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MergeOverwrite:
		return MergeOverwrite, nil
	case MergeAppend:
		return MergeAppend, nil
	default:
		return "", fmt.Errorf("unknown merge mode %q", s)
	}
}

// WriteResult describes a completed Append.
type WriteResult struct {
	FileName string `json:"fileName"`
	Path     string `json:"filePath"`
	Entries  int    `json:"entries"`
}

// FileInfo is a listing row for one log file.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime int64
}

// Store keeps one JSON file per log stream inside a single directory.
type Store struct {
	root string

	// mu serialises writers so append read-modify-write cycles do not interleave.
	mu sync.Mutex
}

// NewStore opens a store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute storage directory.
func (s *Store) Root() string { return s.root }

// SanitizeName turns a stream name into a filesystem-safe token: one trailing
// ".json" is dropped and every character outside [A-Za-z0-9_-] becomes '_'.
func SanitizeName(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), FileExt)
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// resolve maps a stream name to its file path. Names carrying separators or
// parent references are refused before sanitising.
func (s *Store) resolve(name string) (fileName, path string, err error) {
	raw := strings.TrimSpace(name)
	if raw == "" || strings.ContainsAny(raw, "/\\\x00") || strings.Contains(raw, "..") {
		return "", "", ErrAccessDenied
	}
	base := SanitizeName(raw)
	if base == "" {
		return "", "", ErrAccessDenied
	}
	fileName = base + FileExt
	path = filepath.Join(s.root, fileName)
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel != fileName {
		return "", "", ErrAccessDenied
	}
	return fileName, path, nil
}

// FileName returns the on-disk file name for a stream.
func (s *Store) FileName(name string) (string, error) {
	fileName, _, err := s.resolve(name)
	return fileName, err
}

// Append writes content to the named stream according to mode.
func (s *Store) Append(name string, content model.Content, mode MergeMode) (WriteResult, error) {
	fileName, path, err := s.resolve(name)
	if err != nil {
		return WriteResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch mode {
	case MergeCreate:
		if _, err := os.Stat(path); err == nil {
			return WriteResult{}, ErrExists
		} else if !errors.Is(err, fs.ErrNotExist) {
			return WriteResult{}, err
		}
	case MergeAppend:
		existing, err := s.readPath(path, fileName)
		switch {
		case err == nil:
			merged := make([]model.LogEntry, 0, existing.Len()+content.Len())
			merged = append(merged, existing.Entries...)
			merged = append(merged, content.Entries...)
			content = model.Sequence(merged)
		case errors.Is(err, ErrNotFound):
		default:
			return WriteResult{}, err
		}
	}

	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return WriteResult{}, err
	}
	if err := s.writeAtomic(path, data); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{FileName: fileName, Path: path, Entries: content.Len()}, nil
}

// writeAtomic writes to a temp file in the root and renames it into place.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// Read returns the parsed content of a stream.
func (s *Store) Read(name string) (model.Content, error) {
	fileName, path, err := s.resolve(name)
	if err != nil {
		return model.Content{}, err
	}
	return s.readPath(path, fileName)
}

func (s *Store) readPath(path, fileName string) (model.Content, error) {
	data, err := readFile(path)
	if err != nil {
		return model.Content{}, err
	}
	c, err := model.ParseContent(data)
	if err != nil {
		var pe *model.ParseError
		if errors.As(err, &pe) {
			pe.Source = fileName
		}
		return model.Content{}, err
	}
	return c, nil
}

// ReadRaw returns the file bytes without decoding them.
func (s *Store) ReadRaw(name string) ([]byte, error) {
	_, path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return readFile(path)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// List returns the names of all log files, sorted.
func (s *Store) List() ([]string, error) {
	infos, err := s.ListInfo()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names, nil
}

// ListInfo is List with size and modification time.
func (s *Store) ListInfo() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []FileInfo
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasSuffix(name, FileExt) || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		files = append(files, FileInfo{Name: name, Size: info.Size(), ModTime: info.ModTime().UnixMilli()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// DeleteIfExpired removes the named file only if, read under the write lock,
// its oldest parseable timestamp is before cutoff. When archive is non-nil it
// receives the raw bytes first and an archive error keeps the file.
// deleted is false for files that are not expired, empty, or carry no
// parseable timestamp.
func (s *Store) DeleteIfExpired(name string, cutoff time.Time, archive func(fileName string, raw []byte) error) (oldest time.Time, deleted bool, err error) {
	fileName, path, err := s.resolve(name)
	if err != nil {
		return time.Time{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := readFile(path)
	if err != nil {
		return time.Time{}, false, err
	}
	c, err := model.ParseContent(raw)
	if err != nil {
		var pe *model.ParseError
		if errors.As(err, &pe) {
			pe.Source = fileName
		}
		return time.Time{}, false, err
	}

	oldest, ok := c.Oldest()
	if !ok || !oldest.Before(cutoff) {
		return oldest, false, nil
	}

	if archive != nil {
		if err := archive(fileName, raw); err != nil {
			return oldest, false, fmt.Errorf("archive %s: %w", fileName, err)
		}
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return oldest, false, ErrNotFound
		}
		return oldest, false, err
	}
	return oldest, true, nil
}

// Delete removes the named log file.
func (s *Store) Delete(name string) error {
	_, path, err := s.resolve(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// DiskUsage sums the size of every log file.
func (s *Store) DiskUsage() int64 {
	infos, _ := s.ListInfo()
	var size int64
	for _, info := range infos {
		size += info.Size
	}
	return size
}
