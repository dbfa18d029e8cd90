package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/common/cache"
	"github.com/AmrMustafa282/skillify-analysis/internal/common/db"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
)

type AnalysisRepository interface {
	Save(ctx context.Context, tx db.Transaction, record *model.AnalysisRecord) error
	GetBySolution(ctx context.Context, tx db.Transaction, solutionID string) (*model.AnalysisRecord, error)
	ListByTest(ctx context.Context, tx db.Transaction, testID string) ([]model.AnalysisRecord, error)
}

type MySQLAnalysisRepository struct {
	dbProvider db.Provider
	cache      cache.Cache
	ttl        time.Duration
	emptyTTL   time.Duration
}

func NewAnalysisRepository(provider db.Provider, cacheClient cache.Cache) AnalysisRepository {
	return NewAnalysisRepositoryWithTTL(provider, cacheClient, defaultAnalysisCacheTTL, defaultAnalysisCacheEmptyTTL)
}

func NewAnalysisRepositoryWithTTL(provider db.Provider, cacheClient cache.Cache, ttl, emptyTTL time.Duration) AnalysisRepository {
	if ttl <= 0 {
		ttl = defaultAnalysisCacheTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultAnalysisCacheEmptyTTL
	}
	return &MySQLAnalysisRepository{
		dbProvider: provider,
		cache:      cacheClient,
		ttl:        ttl,
		emptyTTL:   emptyTTL,
	}
}

// Save stores an analysis record. A solution keeps at most one record; a
// re-analysis replaces the previous one through the solution_id unique key.
func (r *MySQLAnalysisRepository) Save(ctx context.Context, tx db.Transaction, record *model.AnalysisRecord) error {
	if record == nil {
		return errors.New("analysis record is nil")
	}
	if record.AnalysisID == "" || record.SolutionID == "" {
		return errors.New("analysis record is missing ids")
	}

	payload, err := marshalPayload(record)
	if err != nil {
		return err
	}

	query := `INSERT INTO analyses (analysis_id, solution_id, test_id, candidate_id, composite, schema_version, payload, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE analysis_id = VALUES(analysis_id), test_id = VALUES(test_id),
		candidate_id = VALUES(candidate_id), composite = VALUES(composite),
		schema_version = VALUES(schema_version), payload = VALUES(payload), analyzed_at = VALUES(analyzed_at)`
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	_, err = querier.Exec(ctx, query,
		record.AnalysisID, record.SolutionID, record.TestID, record.CandidateID,
		record.Composite, record.SchemaVersion, payload, record.AnalyzedAt.UTC())
	if err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Del(ctx, analysisKey(record.SolutionID))
	}
	return nil
}

func (r *MySQLAnalysisRepository) GetBySolution(ctx context.Context, tx db.Transaction, solutionID string) (*model.AnalysisRecord, error) {
	if r.cache != nil && tx == nil {
		record, err := cache.GetWithCached[*model.AnalysisRecord](
			ctx,
			r.cache,
			analysisKey(solutionID),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(record *model.AnalysisRecord) bool { return record == nil },
			marshalAnalysis,
			unmarshalAnalysis,
			func(ctx context.Context) (*model.AnalysisRecord, error) {
				record, err := r.getBySolutionFromDB(ctx, nil, solutionID)
				if err != nil {
					if errors.Is(err, ErrAnalysisNotFound) {
						return nil, nil
					}
					return nil, err
				}
				return record, nil
			},
		)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, ErrAnalysisNotFound
		}
		return record, nil
	}
	return r.getBySolutionFromDB(ctx, tx, solutionID)
}

func (r *MySQLAnalysisRepository) ListByTest(ctx context.Context, tx db.Transaction, testID string) ([]model.AnalysisRecord, error) {
	query := "SELECT payload FROM analyses WHERE test_id = ? ORDER BY solution_id"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	rows, err := querier.Query(ctx, query, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.AnalysisRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var record model.AnalysisRecord
		if err := unmarshalPayload(payload, &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

const (
	analysisKeyPrefix = "analysis:solution:"

	defaultAnalysisCacheTTL      = 15 * time.Minute
	defaultAnalysisCacheEmptyTTL = 1 * time.Minute
)

func (r *MySQLAnalysisRepository) getBySolutionFromDB(ctx context.Context, tx db.Transaction, solutionID string) (*model.AnalysisRecord, error) {
	query := "SELECT payload FROM analyses WHERE solution_id = ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	row := querier.QueryRow(ctx, query, solutionID)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	var record model.AnalysisRecord
	if err := unmarshalPayload(payload, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func analysisKey(solutionID string) string {
	return analysisKeyPrefix + solutionID
}

func marshalAnalysis(record *model.AnalysisRecord) string {
	payload, err := json.Marshal(record)
	if err != nil {
		return ""
	}
	return string(payload)
}

func unmarshalAnalysis(data string) (*model.AnalysisRecord, error) {
	if data == "" {
		return nil, nil
	}
	var record model.AnalysisRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, err
	}
	return &record, nil
}
