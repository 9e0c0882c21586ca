package datanode

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// Identity is the persisted identity of a datanode. It survives restarts so the
// coordinator sees the same node id for the same data directory.
type Identity struct {
	NodeID    string    `toml:"node_id"`
	CreatedAt time.Time `toml:"created_at"`
}

// LoadOrCreateIdentity reads the identity file, creating it with a new uuid when missing.
// A non-empty override wins and is written back.
func LoadOrCreateIdentity(path, override string) (*Identity, error) {
	var id Identity
	_, err := toml.DecodeFile(path, &id)
	switch {
	case err == nil && (override == "" || override == id.NodeID) && id.NodeID != "":
		return &id, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to decode identity file %s: %w", path, err)
	}

	id.NodeID = override
	if id.NodeID == "" {
		id.NodeID = uuid.New().String()
	}
	if id.CreatedAt.IsZero() {
		id.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	if err := saveIdentity(path, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

func saveIdentity(path string, id *Identity) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create identity directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create identity file: %w", err)
	}
	defer func() { _ = f.Close() }()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(id); err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	return nil
}
