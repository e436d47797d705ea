package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HardhatChainID is the chain ID of a local Hardhat node (0x7a69).
const HardhatChainID = 31337

// Config holds the guestbook client, deployer and admin configuration.
type Config struct {
	Chain        ChainConfig        `yaml:"chain"`
	Contract     ContractConfig     `yaml:"contract"`
	Wallet       WalletConfig       `yaml:"wallet"`
	Transactions TransactionsConfig `yaml:"transactions"`
	Feed         FeedConfig         `yaml:"feed"`
	Paths        PathsConfig        `yaml:"paths"`
	Deploy       DeployConfig       `yaml:"deploy"`
}

// ChainConfig holds the JSON-RPC endpoint and the network the client expects.
type ChainConfig struct {
	RPCURL  string `yaml:"rpc_url"`
	ChainID int64  `yaml:"chain_id"`
}

// ContractConfig locates the deployed Guestbook contract.
// An empty Address is resolved from the deployment journal.
type ContractConfig struct {
	Address     string `yaml:"address"`
	Deployments string `yaml:"deployments"`
}

// WalletConfig names where the signing key comes from.
type WalletConfig struct {
	KeyEnv        string `yaml:"key_env"`
	Keystore      string `yaml:"keystore"`
	PassphraseEnv string `yaml:"passphrase_env"`
}

// TransactionsConfig bounds the wait for a submitted transaction.
type TransactionsConfig struct {
	WaitTimeout time.Duration `yaml:"wait_timeout"`
}

// FeedConfig selects how streamed events and reloads are reconciled.
type FeedConfig struct {
	Dedup string `yaml:"dedup"`
}

// PathsConfig holds filesystem paths for data and scripts.
type PathsConfig struct {
	Data     string `yaml:"data"`
	Database string `yaml:"database"`
	Log      string `yaml:"log"`
	Script   string `yaml:"script"`
}

// DeployConfig holds deployment settings.
type DeployConfig struct {
	Artifacts string `yaml:"artifacts"`
	Module    string `yaml:"module"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		Chain: ChainConfig{
			RPCURL:  "ws://127.0.0.1:8545",
			ChainID: HardhatChainID,
		},
		Contract: ContractConfig{
			Deployments: "./ignition/deployments",
		},
		Wallet: WalletConfig{
			KeyEnv:        "GUESTBOOK_PRIVATE_KEY",
			PassphraseEnv: "GUESTBOOK_KEYSTORE_PASSPHRASE",
		},
		Transactions: TransactionsConfig{
			WaitTimeout: 2 * time.Minute,
		},
		Feed: FeedConfig{
			Dedup: "keyed",
		},
		Paths: PathsConfig{
			Data:     "./data",
			Database: "./data/guestbook.db",
			Log:      "./data/guestbook.log",
		},
		Deploy: DeployConfig{
			Artifacts: "./artifacts",
			Module:    "GuestbookModule",
		},
	}
}

// Load reads and parses a YAML config file.
// A missing file is not an error: the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the config to path as YAML.
func (c *Config) Save(path string) error {
	if err := c.validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Feed.Dedup)) {
	case "", "keyed", "none":
	default:
		return fmt.Errorf("feed.dedup must be \"keyed\" or \"none\", got %q", c.Feed.Dedup)
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("chain.chain_id must be positive")
	}
	if c.Transactions.WaitTimeout < 0 {
		return fmt.Errorf("transactions.wait_timeout must not be negative")
	}
	return nil
}

// ExpectedChainHex returns the configured chain ID in the hex form wallets report.
func (c *Config) ExpectedChainHex() string {
	return fmt.Sprintf("0x%x", c.Chain.ChainID)
}
