// Package ranking orders a test's analyzed candidates into a strict total
// order: composite score descending, ties broken by earlier submission, then
// by candidate id.
package ranking

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/common/cache"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/repository"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
)

const (
	rankingKeyPrefix = "ranking:test:"

	defaultRankingTTL      = 1 * time.Minute
	defaultRankingEmptyTTL = 15 * time.Second
)

// Engine computes and caches per-test rankings. The cached view may lag new
// analyses by up to the TTL; report generation bypasses the cache and reads
// the records directly.
type Engine struct {
	analyses  repository.AnalysisRepository
	solutions repository.SolutionRepository
	cache     cache.Cache
	ttl       time.Duration
	emptyTTL  time.Duration
}

func NewEngine(analyses repository.AnalysisRepository, solutions repository.SolutionRepository, cacheClient cache.Cache) *Engine {
	return &Engine{
		analyses:  analyses,
		solutions: solutions,
		cache:     cacheClient,
		ttl:       defaultRankingTTL,
		emptyTTL:  defaultRankingEmptyTTL,
	}
}

// Rankings returns the ranked table for a test. Tests without any analysis
// records yield a NoAnalysesForTest error.
func (e *Engine) Rankings(ctx context.Context, testID string) ([]model.RankingEntry, error) {
	if e.cache != nil {
		entries, err := cache.GetWithCached[[]model.RankingEntry](
			ctx,
			e.cache,
			rankingKey(testID),
			cache.JitterTTL(e.ttl),
			cache.JitterTTL(e.emptyTTL),
			func(entries []model.RankingEntry) bool { return len(entries) == 0 },
			marshalRankings,
			unmarshalRankings,
			func(ctx context.Context) ([]model.RankingEntry, error) {
				return e.compute(ctx, testID)
			},
		)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, appErr.Newf(appErr.NoAnalysesForTest, "no analysis records exist for test %s", testID)
		}
		return entries, nil
	}

	entries, err := e.compute(ctx, testID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, appErr.Newf(appErr.NoAnalysesForTest, "no analysis records exist for test %s", testID)
	}
	return entries, nil
}

// Invalidate drops the cached ranking for a test.
func (e *Engine) Invalidate(ctx context.Context, testID string) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Del(ctx, rankingKey(testID))
}

func (e *Engine) compute(ctx context.Context, testID string) ([]model.RankingEntry, error) {
	records, err := e.analyses.ListByTest(ctx, nil, testID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list analyses failed")
	}
	if len(records) == 0 {
		return nil, nil
	}
	solutions, err := e.solutions.ListByTest(ctx, nil, testID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list solutions failed")
	}
	return Compute(records, solutions), nil
}

// Compute builds the ranked table from the given records. The comparator is
// a strict total order: composite desc, submitted_at asc, candidate id asc,
// with solution id as the final stable fallback.
func Compute(records []model.AnalysisRecord, solutions []model.Solution) []model.RankingEntry {
	submitted := make(map[string]time.Time, len(solutions))
	for _, solution := range solutions {
		submitted[solution.SolutionID] = solution.SubmittedAt
	}

	entries := make([]model.RankingEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, model.RankingEntry{
			CandidateID: record.CandidateID,
			SolutionID:  record.SolutionID,
			AnalysisID:  record.AnalysisID,
			Composite:   record.Composite,
			Correctness: record.Correctness.Score,
			Quality:     record.Quality.Score,
			Style:       record.Style.Score,
			Performance: record.Performance.Score,
			Naming:      record.Naming.Score,
			SubmittedAt: submitted[record.SolutionID],
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		if a.CandidateID != b.CandidateID {
			return a.CandidateID < b.CandidateID
		}
		return a.SolutionID < b.SolutionID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func rankingKey(testID string) string {
	return rankingKeyPrefix + testID
}

func marshalRankings(entries []model.RankingEntry) string {
	payload, err := json.Marshal(entries)
	if err != nil {
		return ""
	}
	return string(payload)
}

func unmarshalRankings(data string) ([]model.RankingEntry, error) {
	if data == "" {
		return nil, nil
	}
	var entries []model.RankingEntry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
