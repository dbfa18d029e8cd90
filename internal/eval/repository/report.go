package repository

import (
	"context"
	"errors"

	"github.com/AmrMustafa282/skillify-analysis/internal/common/db"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
)

type ReportRepository interface {
	Save(ctx context.Context, tx db.Transaction, report *model.Report) error
	GetComparative(ctx context.Context, tx db.Transaction, testID string) (*model.Report, error)
	GetIndividual(ctx context.Context, tx db.Transaction, testID, candidateID string) (*model.Report, error)
}

type MySQLReportRepository struct {
	dbProvider db.Provider
}

func NewReportRepository(provider db.Provider) ReportRepository {
	return &MySQLReportRepository{dbProvider: provider}
}

// Save stores a report. A test keeps one comparative report and one
// individual report per candidate; regenerating replaces the previous one.
func (r *MySQLReportRepository) Save(ctx context.Context, tx db.Transaction, report *model.Report) error {
	if report == nil {
		return errors.New("report is nil")
	}
	if report.ReportID == "" || report.TestID == "" {
		return errors.New("report is missing ids")
	}

	subjectID := ""
	if report.Kind == model.ReportKindIndividual {
		if report.Individual == nil {
			return errors.New("individual report has no body")
		}
		subjectID = report.Individual.CandidateID
	}

	payload, err := marshalPayload(report)
	if err != nil {
		return err
	}

	query := `INSERT INTO reports (report_id, test_id, kind, subject_id, payload, generated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE report_id = VALUES(report_id), payload = VALUES(payload), generated_at = VALUES(generated_at)`
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	_, err = querier.Exec(ctx, query, report.ReportID, report.TestID, report.Kind, subjectID, payload, report.GeneratedAt.UTC())
	return err
}

func (r *MySQLReportRepository) GetComparative(ctx context.Context, tx db.Transaction, testID string) (*model.Report, error) {
	return r.get(ctx, tx, testID, model.ReportKindComparative, "")
}

func (r *MySQLReportRepository) GetIndividual(ctx context.Context, tx db.Transaction, testID, candidateID string) (*model.Report, error) {
	return r.get(ctx, tx, testID, model.ReportKindIndividual, candidateID)
}

func (r *MySQLReportRepository) get(ctx context.Context, tx db.Transaction, testID, kind, subjectID string) (*model.Report, error) {
	query := "SELECT payload FROM reports WHERE test_id = ? AND kind = ? AND subject_id = ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	row := querier.QueryRow(ctx, query, testID, kind, subjectID)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	var report model.Report
	if err := unmarshalPayload(payload, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
