// Package wallet provides the account and signing side of the guestbook
// client: a private key or keystore account attached to a JSON-RPC node.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/notepid/guestbook/internal/config"
	"github.com/notepid/guestbook/internal/guestbook"
)

// ErrNoKey is returned by Signer when the wallet holds no key.
var ErrNoKey = errors.New("wallet has no signing key")

// ChainIDReader is the part of a node connection the wallet needs.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

var _ guestbook.Provider = (*Wallet)(nil)

// Wallet implements guestbook.Provider.
type Wallet struct {
	node ChainIDReader
	key  *ecdsa.PrivateKey // nil for a read-only wallet
}

// New creates a wallet over a node connection. key may be nil.
func New(node ChainIDReader, key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{node: node, key: key}
}

// Dial connects to the JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, errors.New("no rpc url configured")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return client, nil
}

// LoadKey reads the signing key named by the wallet config: a hex key in the
// configured environment variable, or else an encrypted keystore file.
// It returns nil, nil when neither is configured.
func LoadKey(cfg config.WalletConfig) (*ecdsa.PrivateKey, error) {
	if cfg.KeyEnv != "" {
		if hexKey := strings.TrimSpace(os.Getenv(cfg.KeyEnv)); hexKey != "" {
			key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
			if err != nil {
				return nil, fmt.Errorf("parse key from %s: %w", cfg.KeyEnv, err)
			}
			return key, nil
		}
	}

	if cfg.Keystore != "" {
		data, err := os.ReadFile(cfg.Keystore)
		if err != nil {
			return nil, fmt.Errorf("read keystore %s: %w", cfg.Keystore, err)
		}
		var passphrase string
		if cfg.PassphraseEnv != "" {
			passphrase = os.Getenv(cfg.PassphraseEnv)
		}
		k, err := keystore.DecryptKey(data, passphrase)
		if err != nil {
			return nil, fmt.Errorf("decrypt keystore %s: %w", cfg.Keystore, err)
		}
		return k.PrivateKey, nil
	}

	return nil, nil
}

// RequestAccounts returns the wallet's account, or none for a read-only wallet.
func (w *Wallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if w.key == nil {
		return nil, nil
	}
	return []common.Address{crypto.PubkeyToAddress(w.key.PublicKey)}, nil
}

// ChainID returns the node's chain ID as a 0x-prefixed hex string.
func (w *Wallet) ChainID(ctx context.Context) (string, error) {
	id, err := w.node.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("eth_chainId: %w", err)
	}
	return hexutil.EncodeBig(id), nil
}

// Signer returns transaction options that sign with the wallet key for the
// node's current chain.
func (w *Wallet) Signer(ctx context.Context) (*bind.TransactOpts, error) {
	if w.key == nil {
		return nil, ErrNoKey
	}
	id, err := w.node.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth_chainId: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, id)
	if err != nil {
		return nil, fmt.Errorf("keyed transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}
