package metadata

import (
	"fmt"

	"github.com/soltixdb/chunkfs/internal/config"
)

// New creates the store selected by the metadata backend setting
func New(metaCfg config.MetadataConfig, etcdCfg config.EtcdConfig) (Store, error) {
	switch metaCfg.Backend {
	case "memory", "":
		return NewMemoryStore(), nil
	case "etcd":
		return NewEtcdStore(etcdCfg, metaCfg.CacheTTL)
	default:
		return nil, fmt.Errorf("unsupported metadata backend: %s", metaCfg.Backend)
	}
}
