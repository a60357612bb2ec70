package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"voting-coordinator/models"
)

// Chain is the on-disk form of a ledger chain.
type Chain struct {
	Blocks []*models.Block `json:"blocks"`
}

// JSONStore persists named chains as JSON files under basePath.
type JSONStore struct {
	basePath string
	mu       sync.RWMutex
	chains   map[string]*Chain
}

func NewJSONStore(basePath string) (*JSONStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &JSONStore{
		basePath: basePath,
		chains:   make(map[string]*Chain),
	}, nil
}

func (s *JSONStore) SaveBlock(chainName string, block *models.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain, err := s.chainLocked(chainName)
	if err != nil {
		return err
	}

	next := &Chain{Blocks: append(append(make([]*models.Block, 0, len(chain.Blocks)+1), chain.Blocks...), block)}
	if err := s.saveChainToFile(chainName, next); err != nil {
		return err
	}

	s.chains[chainName] = next
	return nil
}

// LoadChain returns a copy of the named chain, reading it from disk on first
// use. A missing file is an empty chain.
func (s *JSONStore) LoadChain(chainName string) ([]*models.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain, err := s.chainLocked(chainName)
	if err != nil {
		return nil, err
	}

	blocks := make([]*models.Block, len(chain.Blocks))
	copy(blocks, chain.Blocks)
	return blocks, nil
}

func (s *JSONStore) chainLocked(chainName string) (*Chain, error) {
	if chain, ok := s.chains[chainName]; ok {
		return chain, nil
	}

	chain, err := s.loadChainFromFile(chainName)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain %s: %w", chainName, err)
	}
	s.chains[chainName] = chain
	return chain, nil
}

func (s *JSONStore) chainPath(chainName string) string {
	return filepath.Join(s.basePath, fmt.Sprintf("%s_chain.json", chainName))
}

func (s *JSONStore) loadChainFromFile(chainName string) (*Chain, error) {
	data, err := os.ReadFile(s.chainPath(chainName))
	if err != nil {
		if os.IsNotExist(err) {
			return &Chain{Blocks: make([]*models.Block, 0)}, nil
		}
		return nil, err
	}

	var chain Chain
	if err := json.Unmarshal(data, &chain); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chain: %w", err)
	}

	return &chain, nil
}

func (s *JSONStore) saveChainToFile(chainName string, chain *Chain) error {
	path := s.chainPath(chainName)

	data, err := json.MarshalIndent(chain, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chain: %w", err)
	}

	// Write to temporary file first
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write chain file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save chain file: %w", err)
	}

	return nil
}
