package utils

import (
	"fmt"
	"strings"
	"sync"
)

// ChainInfo describes one registered chain.
type ChainInfo struct {
	ChainID int64  `json:"chain_id"`
	Name    string `json:"name"` // lowercase subject segment, e.g. "bsc"
}

// ChainRegistry maps between chain names (as they appear in NATS subjects)
// and chain ids (as stored in the database).
type ChainRegistry struct {
	mu     sync.RWMutex
	byName map[string]*ChainInfo
	byID   map[int64]*ChainInfo
}

// GlobalChainRegistry is populated from the networks config at startup.
var GlobalChainRegistry = NewChainRegistry()

// NewChainRegistry creates an empty registry.
func NewChainRegistry() *ChainRegistry {
	return &ChainRegistry{
		byName: make(map[string]*ChainInfo),
		byID:   make(map[int64]*ChainInfo),
	}
}

// Register adds or replaces a chain entry.
func (r *ChainRegistry) Register(name string, chainID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := &ChainInfo{ChainID: chainID, Name: strings.ToLower(name)}
	r.byName[info.Name] = info
	r.byID[chainID] = info
}

// ChainIDByName resolves a subject segment to a chain id.
func (r *ChainRegistry) ChainIDByName(name string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown chain name: %s", name)
	}
	return info.ChainID, nil
}

// NameByChainID resolves a chain id to its subject segment.
func (r *ChainRegistry) NameByChainID(chainID int64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.byID[chainID]
	if !ok {
		return "", fmt.Errorf("unknown chain id: %d", chainID)
	}
	return info.Name, nil
}

// ChainIDFromSubject parses the chain segment out of a launchpad subject of
// the form launchpad.<chain>.<contract>.<Event>.
func ChainIDFromSubject(subject string) (int64, error) {
	parts := strings.Split(subject, ".")
	if len(parts) < 4 {
		return 0, fmt.Errorf("malformed subject: %s", subject)
	}
	return GlobalChainRegistry.ChainIDByName(parts[1])
}
