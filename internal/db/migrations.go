package db

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "create messages archive",
		sql: `
			CREATE TABLE IF NOT EXISTS messages (
				contract TEXT NOT NULL,
				position INTEGER NOT NULL,
				sender TEXT NOT NULL,
				body TEXT NOT NULL,
				timestamp_ms INTEGER NOT NULL,
				content_key TEXT NOT NULL,
				block_number INTEGER NOT NULL,
				archived_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (contract, position)
			);
			CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(contract, sender);
		`,
	},
	{
		name: "create deployments table",
		sql: `
			CREATE TABLE IF NOT EXISTS deployments (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				chain_id INTEGER NOT NULL,
				future_id TEXT NOT NULL,
				contract_name TEXT NOT NULL,
				address TEXT NOT NULL,
				tx_hash TEXT NOT NULL,
				deployed_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_deployments_chain ON deployments(chain_id, future_id);
		`,
	},
}
