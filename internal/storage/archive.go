package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// ArchiveExt is the suffix of archived log files.
const ArchiveExt = ".json.zst"

// archiveMagic prefixes every archive so stray files are rejected on read.
var archiveMagic = []byte("ACTLOG1\n")

var ErrInvalidArchive = errors.New("invalid archive header")

// Archiver keeps zstd-compressed copies of log files removed by retention.
type Archiver struct {
	dir     string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewArchiver creates an archiver writing into dir.
func NewArchiver(dir string) (*Archiver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &Archiver{dir: dir, encoder: enc, decoder: dec}, nil
}

// Dir returns the archive directory.
func (a *Archiver) Dir() string { return a.dir }

// Archive compresses raw under <name>-<unix>.json.zst and returns the path.
func (a *Archiver) Archive(fileName string, raw []byte, at time.Time) (string, error) {
	base := strings.TrimSuffix(filepath.Base(fileName), FileExt)
	path := filepath.Join(a.dir, fmt.Sprintf("%s-%d%s", base, at.Unix(), ArchiveExt))

	buf := bytes.NewBuffer(make([]byte, 0, len(raw)/2+len(archiveMagic)))
	buf.Write(archiveMagic)
	buf.Write(a.encoder.EncodeAll(raw, nil))

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return path, nil
}

// Open decompresses an archive file back to the stored JSON bytes.
func (a *Archiver) Open(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return a.decode(f)
}

func (a *Archiver) decode(r io.Reader) ([]byte, error) {
	header := make([]byte, len(archiveMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, ErrInvalidArchive
	}
	if !bytes.Equal(header, archiveMagic) {
		return nil, ErrInvalidArchive
	}
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return a.decoder.DecodeAll(compressed, nil)
}

// List returns the archive file names ordered by archive time (the unix
// suffix), oldest first. Ties and names without a parseable suffix fall back
// to lexical order, the latter sorted last.
func (a *Archiver) List() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ArchiveExt) {
			names = append(names, e.Name())
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		ti, oki := archivedAt(names[i])
		tj, okj := archivedAt(names[j])
		switch {
		case oki && okj && ti != tj:
			return ti < tj
		case oki != okj:
			return oki
		default:
			return names[i] < names[j]
		}
	})
	return names, nil
}

// archivedAt extracts the unix seconds from <name>-<unix>.json.zst.
func archivedAt(name string) (int64, bool) {
	base := strings.TrimSuffix(name, ArchiveExt)
	i := strings.LastIndexByte(base, '-')
	if i < 0 {
		return 0, false
	}
	ts, err := strconv.ParseInt(base[i+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// Close releases the zstd encoder and decoder.
func (a *Archiver) Close() error {
	a.decoder.Close()
	return a.encoder.Close()
}
