package repository

import (
	"context"
	"errors"

	"github.com/AmrMustafa282/skillify-analysis/internal/common/db"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
)

type SolutionRepository interface {
	Upsert(ctx context.Context, tx db.Transaction, solution *model.Solution) error
	Get(ctx context.Context, tx db.Transaction, solutionID string) (*model.Solution, error)
	ListByTest(ctx context.Context, tx db.Transaction, testID string) ([]model.Solution, error)
	ListAll(ctx context.Context, tx db.Transaction) ([]model.Solution, error)
	ListUnanalyzed(ctx context.Context, tx db.Transaction) ([]model.Solution, error)
}

type MySQLSolutionRepository struct {
	dbProvider db.Provider
}

func NewSolutionRepository(provider db.Provider) SolutionRepository {
	return &MySQLSolutionRepository{dbProvider: provider}
}

// Upsert stores a solution, replacing any earlier submission with the same
// id. Resubmissions therefore keep only the latest payload.
func (r *MySQLSolutionRepository) Upsert(ctx context.Context, tx db.Transaction, solution *model.Solution) error {
	if solution == nil {
		return errors.New("solution is nil")
	}
	if solution.SolutionID == "" {
		return errors.New("solution id is empty")
	}

	payload, err := marshalPayload(solution)
	if err != nil {
		return err
	}

	query := `INSERT INTO solutions (solution_id, test_id, candidate_id, payload, submitted_at) VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE test_id = VALUES(test_id), candidate_id = VALUES(candidate_id),
		payload = VALUES(payload), submitted_at = VALUES(submitted_at)`
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	_, err = querier.Exec(ctx, query, solution.SolutionID, solution.TestID, solution.CandidateID, payload, solution.SubmittedAt.UTC())
	return err
}

func (r *MySQLSolutionRepository) Get(ctx context.Context, tx db.Transaction, solutionID string) (*model.Solution, error) {
	query := "SELECT payload FROM solutions WHERE solution_id = ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	row := querier.QueryRow(ctx, query, solutionID)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSolutionNotFound
		}
		return nil, err
	}
	var solution model.Solution
	if err := unmarshalPayload(payload, &solution); err != nil {
		return nil, err
	}
	return &solution, nil
}

func (r *MySQLSolutionRepository) ListByTest(ctx context.Context, tx db.Transaction, testID string) ([]model.Solution, error) {
	query := "SELECT payload FROM solutions WHERE test_id = ? ORDER BY submitted_at, solution_id"
	return r.list(ctx, tx, query, testID)
}

func (r *MySQLSolutionRepository) ListAll(ctx context.Context, tx db.Transaction) ([]model.Solution, error) {
	query := "SELECT payload FROM solutions ORDER BY submitted_at, solution_id"
	return r.list(ctx, tx, query)
}

// ListUnanalyzed returns solutions that have no stored analysis yet, in
// submission order.
func (r *MySQLSolutionRepository) ListUnanalyzed(ctx context.Context, tx db.Transaction) ([]model.Solution, error) {
	query := `SELECT s.payload FROM solutions s
		LEFT JOIN analyses a ON a.solution_id = s.solution_id
		WHERE a.solution_id IS NULL
		ORDER BY s.submitted_at, s.solution_id`
	return r.list(ctx, tx, query)
}

func (r *MySQLSolutionRepository) list(ctx context.Context, tx db.Transaction, query string, args ...interface{}) ([]model.Solution, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var solutions []model.Solution
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var solution model.Solution
		if err := unmarshalPayload(payload, &solution); err != nil {
			return nil, err
		}
		solutions = append(solutions, solution)
	}
	return solutions, rows.Err()
}
