package deploy

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/notepid/guestbook/internal/db"
)

// Backend is what the deployer needs from a node connection.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Recorder keeps a history of deployments. *db.DB satisfies it.
type Recorder interface {
	RecordDeployment(ctx context.Context, d *db.Deployment) error
}

// Deployer executes modules against a chain.
type Deployer struct {
	Backend     Backend
	Opts        *bind.TransactOpts
	Artifacts   string        // Hardhat artifacts directory
	Journal     string        // deployments directory
	Recorder    Recorder      // optional
	WaitTimeout time.Duration // per contract; zero waits for ctx
}

// Result describes what a Deploy call did.
type Result struct {
	ChainID   int64
	Addresses map[string]common.Address // every future of the module
	Deployed  []string                  // future IDs deployed by this call
	Skipped   []string                  // future IDs already in the journal
}

// Plan returns the futures of m that are not yet in the journal for the
// backend's chain.
func (d *Deployer) Plan(ctx context.Context, m *Module) (int64, []Future, error) {
	chainID, err := d.chainID(ctx)
	if err != nil {
		return 0, nil, err
	}
	addrs, err := ReadAddresses(d.Journal, chainID)
	if err != nil {
		return 0, nil, err
	}

	var pending []Future
	for _, f := range m.Futures {
		if _, ok := addrs[f.ID]; !ok {
			pending = append(pending, f)
		}
	}
	return chainID, pending, nil
}

// Deploy deploys every future of m that the journal does not already hold,
// writing the journal after each one so an interrupted run resumes.
func (d *Deployer) Deploy(ctx context.Context, m *Module) (*Result, error) {
	chainID, err := d.chainID(ctx)
	if err != nil {
		return nil, err
	}
	addrs, err := ReadAddresses(d.Journal, chainID)
	if err != nil {
		return nil, err
	}

	res := &Result{ChainID: chainID, Addresses: addrs}
	for _, f := range m.Futures {
		if addr, ok := addrs[f.ID]; ok {
			log.Printf("deploy: %s already at %s on chain %d", f.ID, addr.Hex(), chainID)
			res.Skipped = append(res.Skipped, f.ID)
			continue
		}

		addr, txHash, err := d.deployOne(ctx, f)
		if err != nil {
			return res, fmt.Errorf("deploy %s: %w", f.ID, err)
		}
		addrs[f.ID] = addr
		res.Deployed = append(res.Deployed, f.ID)

		if err := WriteAddresses(d.Journal, chainID, addrs); err != nil {
			return res, err
		}
		if d.Recorder != nil {
			rec := &db.Deployment{
				ChainID:      chainID,
				FutureID:     f.ID,
				ContractName: f.Contract,
				Address:      addr.Hex(),
				TxHash:       txHash.Hex(),
			}
			if err := d.Recorder.RecordDeployment(ctx, rec); err != nil {
				log.Printf("deploy: failed to record %s: %v", f.ID, err)
			}
		}
	}
	return res, nil
}

func (d *Deployer) deployOne(ctx context.Context, f Future) (common.Address, common.Hash, error) {
	artifact, err := LoadArtifact(d.Artifacts, f.Contract)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}
	parsed, code, err := artifact.Parse()
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}

	opts := *d.Opts
	opts.Context = ctx
	addr, tx, _, err := bind.DeployContract(&opts, parsed, code, d.Backend, f.Args...)
	if err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("send creation tx: %w", err)
	}
	log.Printf("deploy: %s creation tx %s", f.ID, tx.Hash().Hex())

	waitCtx := ctx
	if d.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d.WaitTimeout)
		defer cancel()
	}
	deployed, err := bind.WaitDeployed(waitCtx, d.Backend, tx)
	if err != nil {
		return common.Address{}, tx.Hash(), fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if deployed != addr {
		log.Printf("deploy: %s landed at %s, expected %s", f.ID, deployed.Hex(), addr.Hex())
	}
	log.Printf("deploy: %s deployed at %s", f.ID, deployed.Hex())
	return deployed, tx.Hash(), nil
}

func (d *Deployer) chainID(ctx context.Context) (int64, error) {
	id, err := d.Backend.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("eth_chainId: %w", err)
	}
	return id.Int64(), nil
}
