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

type AssessmentRepository interface {
	Upsert(ctx context.Context, tx db.Transaction, assessment *model.Assessment) error
	Get(ctx context.Context, tx db.Transaction, testID string) (*model.Assessment, error)
	List(ctx context.Context, tx db.Transaction) ([]model.Assessment, error)
	Delete(ctx context.Context, tx db.Transaction, testID string) error
}

// MySQLAssessmentRepository caches full assessment documents because every
// solution analyzed for a test re-reads the same assessment.
type MySQLAssessmentRepository struct {
	dbProvider db.Provider
	cache      cache.Cache
	ttl        time.Duration
	emptyTTL   time.Duration
}

func NewAssessmentRepository(provider db.Provider, cacheClient cache.Cache) AssessmentRepository {
	return NewAssessmentRepositoryWithTTL(provider, cacheClient, defaultAssessmentCacheTTL, defaultAssessmentCacheEmptyTTL)
}

func NewAssessmentRepositoryWithTTL(provider db.Provider, cacheClient cache.Cache, ttl, emptyTTL time.Duration) AssessmentRepository {
	if ttl <= 0 {
		ttl = defaultAssessmentCacheTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultAssessmentCacheEmptyTTL
	}
	return &MySQLAssessmentRepository{
		dbProvider: provider,
		cache:      cacheClient,
		ttl:        ttl,
		emptyTTL:   emptyTTL,
	}
}

func (r *MySQLAssessmentRepository) Upsert(ctx context.Context, tx db.Transaction, assessment *model.Assessment) error {
	if assessment == nil {
		return errors.New("assessment is nil")
	}
	if assessment.TestID == "" {
		return errors.New("assessment test id is empty")
	}

	payload, err := marshalPayload(assessment)
	if err != nil {
		return err
	}

	query := `INSERT INTO assessments (test_id, title, payload) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE title = VALUES(title), payload = VALUES(payload)`
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	if _, err := querier.Exec(ctx, query, assessment.TestID, assessment.Title, payload); err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Del(ctx, assessmentKey(assessment.TestID))
	}
	return nil
}

func (r *MySQLAssessmentRepository) Get(ctx context.Context, tx db.Transaction, testID string) (*model.Assessment, error) {
	if r.cache != nil && tx == nil {
		assessment, err := cache.GetWithCached[*model.Assessment](
			ctx,
			r.cache,
			assessmentKey(testID),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(assessment *model.Assessment) bool { return assessment == nil },
			marshalAssessment,
			unmarshalAssessment,
			func(ctx context.Context) (*model.Assessment, error) {
				assessment, err := r.getFromDB(ctx, nil, testID)
				if err != nil {
					if errors.Is(err, ErrAssessmentNotFound) {
						return nil, nil
					}
					return nil, err
				}
				return assessment, nil
			},
		)
		if err != nil {
			return nil, err
		}
		if assessment == nil {
			return nil, ErrAssessmentNotFound
		}
		return assessment, nil
	}
	return r.getFromDB(ctx, tx, testID)
}

func (r *MySQLAssessmentRepository) List(ctx context.Context, tx db.Transaction) ([]model.Assessment, error) {
	query := "SELECT payload FROM assessments ORDER BY test_id"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	rows, err := querier.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assessments []model.Assessment
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var assessment model.Assessment
		if err := unmarshalPayload(payload, &assessment); err != nil {
			return nil, err
		}
		assessments = append(assessments, assessment)
	}
	return assessments, rows.Err()
}

func (r *MySQLAssessmentRepository) Delete(ctx context.Context, tx db.Transaction, testID string) error {
	query := "DELETE FROM assessments WHERE test_id = ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	result, err := querier.Exec(ctx, query, testID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAssessmentNotFound
	}
	if r.cache != nil {
		_ = r.cache.Del(ctx, assessmentKey(testID))
	}
	return nil
}

const (
	assessmentKeyPrefix = "assessment:info:"

	defaultAssessmentCacheTTL      = 30 * time.Minute
	defaultAssessmentCacheEmptyTTL = 5 * time.Minute
)

func (r *MySQLAssessmentRepository) getFromDB(ctx context.Context, tx db.Transaction, testID string) (*model.Assessment, error) {
	query := "SELECT payload FROM assessments WHERE test_id = ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	row := querier.QueryRow(ctx, query, testID)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, err
	}
	var assessment model.Assessment
	if err := unmarshalPayload(payload, &assessment); err != nil {
		return nil, err
	}
	return &assessment, nil
}

func assessmentKey(testID string) string {
	return assessmentKeyPrefix + testID
}

func marshalAssessment(assessment *model.Assessment) string {
	payload, err := json.Marshal(assessment)
	if err != nil {
		return ""
	}
	return string(payload)
}

func unmarshalAssessment(data string) (*model.Assessment, error) {
	if data == "" {
		return nil, nil
	}
	var assessment model.Assessment
	if err := json.Unmarshal([]byte(data), &assessment); err != nil {
		return nil, err
	}
	return &assessment, nil
}
