package db

import (
	"context"
	"fmt"
	"time"
)

// Deployment records one contract deployed by the deployer.
type Deployment struct {
	ID           int
	ChainID      int64
	FutureID     string
	ContractName string
	Address      string
	TxHash       string
	DeployedAt   time.Time
}

// RecordDeployment stores a deployment.
func (db *DB) RecordDeployment(ctx context.Context, d *Deployment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO deployments (chain_id, future_id, contract_name, address, tx_hash)
		VALUES (?, ?, ?, ?, ?)
	`, d.ChainID, d.FutureID, d.ContractName, d.Address, d.TxHash)
	if err != nil {
		return fmt.Errorf("record deployment %s: %w", d.FutureID, err)
	}
	return nil
}

// ListDeployments returns all deployments, newest first.
func (db *DB) ListDeployments() ([]*Deployment, error) {
	rows, err := db.Query(`
		SELECT id, chain_id, future_id, contract_name, address, tx_hash, deployed_at
		FROM deployments
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var out []*Deployment
	for rows.Next() {
		d := &Deployment{}
		if err := rows.Scan(&d.ID, &d.ChainID, &d.FutureID, &d.ContractName,
			&d.Address, &d.TxHash, &d.DeployedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
