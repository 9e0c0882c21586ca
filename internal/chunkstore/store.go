package chunkstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/soltixdb/chunkfs/internal/compression"
)

// ErrChunkNotFound is returned when no blob exists for (file_id, chunk_index)
var ErrChunkNotFound = errors.New("chunk not found")

// ErrInvalidKey is returned for identifiers that cannot be used as path segments
var ErrInvalidKey = errors.New("invalid chunk key")

const chunkExt = ".chunk"

// DiskStore keeps one file per chunk under <root>/<file_id>/<chunk_index>.chunk.
// Writes go to a temp file first and are renamed into place.
type DiskStore struct {
	root       string
	compressor compression.Compressor
}

// NewDiskStore creates the root directory if needed
func NewDiskStore(root string, algo compression.Algorithm) (*DiskStore, error) {
	c, err := compression.GetCompressor(algo)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", root, err)
	}
	return &DiskStore{root: root, compressor: c}, nil
}

// Root returns the data directory
func (s *DiskStore) Root() string {
	return s.root
}

func validFileID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func (s *DiskStore) chunkPath(fileID string, chunkIndex int) (string, error) {
	if !validFileID(fileID) || chunkIndex < 1 {
		return "", fmt.Errorf("%w: %q/%d", ErrInvalidKey, fileID, chunkIndex)
	}
	return filepath.Join(s.root, fileID, strconv.Itoa(chunkIndex)+chunkExt), nil
}

// Put stores data, replacing any existing blob with the same key
func (s *DiskStore) Put(fileID string, chunkIndex int, data []byte) error {
	finalPath, err := s.chunkPath(fileID, chunkIndex)
	if err != nil {
		return err
	}
	framed, err := compression.Frame(s.compressor, data)
	if err != nil {
		return fmt.Errorf("failed to compress chunk: %w", err)
	}

	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create chunk dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp chunk: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(framed); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write chunk: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close chunk: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s to %s: %w", tmpPath, finalPath, err)
	}
	return nil
}

// Get returns the stored bytes
func (s *DiskStore) Get(fileID string, chunkIndex int) ([]byte, error) {
	p, err := s.chunkPath(fileID, chunkIndex)
	if err != nil {
		return nil, err
	}
	framed, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s/%d: %w", fileID, chunkIndex, ErrChunkNotFound)
		}
		return nil, fmt.Errorf("failed to read chunk: %w", err)
	}
	data, err := compression.Unframe(framed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode chunk %s/%d: %w", fileID, chunkIndex, err)
	}
	return data, nil
}

// DeleteAll removes every blob of a file. Deleting an unknown file is not an error.
func (s *DiskStore) DeleteAll(fileID string) (int, error) {
	if !validFileID(fileID) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidKey, fileID)
	}
	dir := filepath.Join(s.root, fileID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list chunks: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), chunkExt) {
			removed++
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return 0, fmt.Errorf("failed to delete chunks of %s: %w", fileID, err)
	}
	return removed, nil
}

// Stats reports the number of stored chunks and their on-disk size
func (s *DiskStore) Stats() (chunks int, bytes int64, err error) {
	err = filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), chunkExt) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		chunks++
		bytes += info.Size()
		return nil
	})
	return chunks, bytes, err
}
