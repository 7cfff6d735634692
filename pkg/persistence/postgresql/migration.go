package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create runs table
			CREATE TABLE runs (
				id VARCHAR(255) PRIMARY KEY,
				execution_name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'running', 'succeeded', 'failed', 'timed_out')),
				trigger_source VARCHAR(255) NOT NULL DEFAULT '',
				input JSONB,
				output JSONB,
				error_message TEXT NOT NULL DEFAULT '',
				error_kind VARCHAR(64) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				finished_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_runs_status ON runs(status);
			CREATE INDEX idx_runs_created_at ON runs(created_at);
		`,
		2: `
			-- Per entity progress of the import runs
			CREATE TABLE status_reports (
				id VARCHAR(255) PRIMARY KEY,
				execution_name VARCHAR(255) NOT NULL,
				stage VARCHAR(20) NOT NULL CHECK (stage IN ('PREPARE', 'BEGIN', 'IMPORT', 'CLEANUP')),
				entity VARCHAR(255) NOT NULL DEFAULT '',
				flow_name VARCHAR(255) NOT NULL DEFAULT '',
				flow_status VARCHAR(64) NOT NULL DEFAULT '',
				detail JSONB,
				reported_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_status_reports_execution ON status_reports(execution_name, reported_at);
		`,
	}
}
