package sqlite

// Timestamps are stored as fixed width RFC 3339 text.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE runs (
				id TEXT PRIMARY KEY,
				execution_name TEXT NOT NULL,
				status TEXT NOT NULL CHECK (status IN ('pending', 'running', 'succeeded', 'failed', 'timed_out')),
				trigger_source TEXT NOT NULL DEFAULT '',
				input TEXT,
				output TEXT,
				error_message TEXT NOT NULL DEFAULT '',
				error_kind TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				started_at TEXT,
				finished_at TEXT
			);

			CREATE INDEX idx_runs_status ON runs(status);
			CREATE INDEX idx_runs_created_at ON runs(created_at);
		`,
		2: `
			CREATE TABLE status_reports (
				id TEXT PRIMARY KEY,
				execution_name TEXT NOT NULL,
				stage TEXT NOT NULL CHECK (stage IN ('PREPARE', 'BEGIN', 'IMPORT', 'CLEANUP')),
				entity TEXT NOT NULL DEFAULT '',
				flow_name TEXT NOT NULL DEFAULT '',
				flow_status TEXT NOT NULL DEFAULT '',
				detail TEXT,
				reported_at TEXT NOT NULL
			);

			CREATE INDEX idx_status_reports_execution ON status_reports(execution_name, reported_at);
		`,
	}
}
