package deploy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Artifact is a compiled contract as written by Hardhat.
type Artifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// ArtifactPath returns where Hardhat writes the artifact for a contract
// declared in contracts/<name>.sol.
func ArtifactPath(dir, name string) string {
	return filepath.Join(dir, "contracts", name+".sol", name+".json")
}

// LoadArtifact reads the artifact for a contract.
func LoadArtifact(dir, name string) (*Artifact, error) {
	path := ArtifactPath(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", path, err)
	}
	if a.ContractName != "" && a.ContractName != name {
		return nil, fmt.Errorf("artifact %s holds contract %s, want %s", path, a.ContractName, name)
	}
	return &a, nil
}

// Parse returns the artifact's ABI and creation bytecode.
func (a *Artifact) Parse() (abi.ABI, []byte, error) {
	parsed, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return abi.ABI{}, nil, fmt.Errorf("parse abi of %s: %w", a.ContractName, err)
	}
	code, err := hexutil.Decode(a.Bytecode)
	if err != nil {
		return abi.ABI{}, nil, fmt.Errorf("decode bytecode of %s: %w", a.ContractName, err)
	}
	if len(code) == 0 {
		return abi.ABI{}, nil, fmt.Errorf("%s has no bytecode (abstract contract or interface?)", a.ContractName)
	}
	return parsed, code, nil
}
