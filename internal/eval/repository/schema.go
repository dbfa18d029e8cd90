package repository

import (
	"context"
	"fmt"

	"github.com/AmrMustafa282/skillify-analysis/internal/common/db"
)

// ddl holds one statement per entry because the MySQL driver rejects
// multi-statement Exec calls by default.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS assessments (
		test_id    VARCHAR(64)  NOT NULL,
		title      VARCHAR(255) NOT NULL DEFAULT '',
		payload    JSON         NOT NULL,
		created_at DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
		PRIMARY KEY (test_id)
	)`,
	`CREATE TABLE IF NOT EXISTS solutions (
		solution_id  VARCHAR(64) NOT NULL,
		test_id      VARCHAR(64) NOT NULL,
		candidate_id VARCHAR(64) NOT NULL,
		payload      JSON        NOT NULL,
		submitted_at DATETIME(3) NOT NULL,
		created_at   DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at   DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
		PRIMARY KEY (solution_id),
		KEY idx_solutions_test (test_id),
		KEY idx_solutions_candidate (candidate_id)
	)`,
	`CREATE TABLE IF NOT EXISTS analyses (
		analysis_id    VARCHAR(64) NOT NULL,
		solution_id    VARCHAR(64) NOT NULL,
		test_id        VARCHAR(64) NOT NULL,
		candidate_id   VARCHAR(64) NOT NULL,
		composite      DOUBLE      NOT NULL DEFAULT 0,
		schema_version INT         NOT NULL DEFAULT 1,
		payload        JSON        NOT NULL,
		analyzed_at    DATETIME(3) NOT NULL,
		PRIMARY KEY (analysis_id),
		UNIQUE KEY uq_analyses_solution (solution_id),
		KEY idx_analyses_test (test_id)
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		job_id      VARCHAR(64) NOT NULL,
		scope       VARCHAR(16) NOT NULL,
		target_id   VARCHAR(64) NOT NULL DEFAULT '',
		status      VARCHAR(16) NOT NULL,
		error       TEXT,
		items       JSON,
		created_at  DATETIME(3) NOT NULL,
		started_at  DATETIME(3) NULL,
		finished_at DATETIME(3) NULL,
		PRIMARY KEY (job_id),
		KEY idx_jobs_status (status)
	)`,
	`CREATE TABLE IF NOT EXISTS job_logs (
		id      BIGINT      NOT NULL AUTO_INCREMENT,
		job_id  VARCHAR(64) NOT NULL,
		seq     INT         NOT NULL,
		at      DATETIME(3) NOT NULL,
		message TEXT        NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_job_logs_seq (job_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		report_id    VARCHAR(64) NOT NULL,
		test_id      VARCHAR(64) NOT NULL,
		kind         VARCHAR(16) NOT NULL,
		subject_id   VARCHAR(64) NOT NULL DEFAULT '',
		payload      JSON        NOT NULL,
		generated_at DATETIME(3) NOT NULL,
		PRIMARY KEY (report_id),
		UNIQUE KEY uq_reports_scope (test_id, kind, subject_id)
	)`,
}

// EnsureSchema creates any missing tables. It is safe to call on every
// startup.
func EnsureSchema(ctx context.Context, provider db.Provider) error {
	database, err := db.CurrentDatabase(provider)
	if err != nil {
		return err
	}
	for _, stmt := range ddl {
		if _, err := database.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
