package deploy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
)

// JournalPath returns the deployed addresses file for a chain.
func JournalPath(dir string, chainID int64) string {
	return filepath.Join(dir, fmt.Sprintf("chain-%d", chainID), "deployed_addresses.json")
}

// ReadAddresses loads the deployed addresses for a chain. A missing journal
// yields an empty map.
func ReadAddresses(dir string, chainID int64) (map[string]common.Address, error) {
	path := JournalPath(dir, chainID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]common.Address{}, nil
		}
		return nil, fmt.Errorf("read journal %s: %w", path, err)
	}

	addrs := map[string]common.Address{}
	if err := json.Unmarshal(data, &addrs); err != nil {
		return nil, fmt.Errorf("parse journal %s: %w", path, err)
	}
	return addrs, nil
}

// WriteAddresses replaces the journal for a chain.
func WriteAddresses(dir string, chainID int64, addrs map[string]common.Address) error {
	path := JournalPath(dir, chainID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}

	data, err := json.MarshalIndent(addrs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write journal %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace journal %s: %w", path, err)
	}
	return nil
}

// ResolveAddress looks up where a future was deployed on a chain.
func ResolveAddress(dir string, chainID int64, futureID string) (common.Address, error) {
	addrs, err := ReadAddresses(dir, chainID)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := addrs[futureID]
	if !ok {
		return common.Address{}, fmt.Errorf("%s is not deployed on chain %d (journal %s)",
			futureID, chainID, JournalPath(dir, chainID))
	}
	return addr, nil
}
