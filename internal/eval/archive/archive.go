// Package archive bundles evaluation artifacts into a compressed tarball and
// ships it to object storage. Archival is best effort: the orchestrator logs
// failures and the analysis still counts as completed.
package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/AmrMustafa282/skillify-analysis/internal/common/storage"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/logger"
)

const archiveContentType = "application/zstd"

// Archiver builds evaluation bundles and uploads them under
// evaluations/<solution>/<analysis>.tar.zst. Execution workspaces are
// ephemeral, so the bundle is reconstructed from the solution document and
// the analysis record; raw per-case output travels inside the record.
type Archiver struct {
	store  storage.ObjectStorage
	bucket string
	now    func() time.Time
}

func New(store storage.ObjectStorage, bucket string) (*Archiver, error) {
	if store == nil {
		return nil, fmt.Errorf("object storage is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Archiver{store: store, bucket: bucket, now: time.Now}, nil
}

// Archive uploads the bundle for one analyzed solution.
func (a *Archiver) Archive(ctx context.Context, solution model.Solution, record model.AnalysisRecord) error {
	bundle, err := Bundle(solution, record)
	if err != nil {
		return fmt.Errorf("build evaluation bundle: %w", err)
	}

	key := ObjectKey(solution.SolutionID, record.AnalysisID)
	size, err := a.store.PutObject(ctx, a.bucket, key, bytes.NewReader(bundle), int64(len(bundle)), archiveContentType)
	if err != nil {
		return fmt.Errorf("upload evaluation bundle: %w", err)
	}

	logger.Debug(ctx, "evaluation bundle archived",
		zap.String("solution_id", solution.SolutionID),
		zap.String("object_key", key),
		zap.Int64("size_bytes", size))
	return nil
}

// ObjectKey is the storage key for one solution's archived analysis.
func ObjectKey(solutionID, analysisID string) string {
	return fmt.Sprintf("evaluations/%s/%s.tar.zst", solutionID, analysisID)
}

// Bundle builds the zstd-compressed tar: the solution document, the analysis
// record, and one source file per coding answer.
func Bundle(solution model.Solution, record model.AnalysisRecord) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	modTime := record.AnalyzedAt
	if modTime.IsZero() {
		modTime = solution.SubmittedAt
	}

	solutionDoc, err := json.MarshalIndent(solution, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal solution: %w", err)
	}
	if err := addFile(tw, "solution.json", solutionDoc, modTime); err != nil {
		return nil, err
	}

	analysisDoc, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	if err := addFile(tw, "analysis.json", analysisDoc, modTime); err != nil {
		return nil, err
	}

	for _, answer := range solution.CodingAnswers {
		name := "src/" + answer.QuestionID + sourceExtension(answer.Language)
		if err := addFile(tw, name, []byte(answer.Code), modTime); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zstd: %w", err)
	}
	return buf.Bytes(), nil
}

func addFile(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: modTime,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write tar entry %s: %w", name, err)
	}
	return nil
}

func sourceExtension(language string) string {
	lang, err := model.ParseLanguage(language)
	if err != nil {
		return ".txt"
	}
	switch lang {
	case model.LangPython:
		return ".py"
	case model.LangJavaScript:
		return ".js"
	case model.LangJava:
		return ".java"
	}
	return ".txt"
}
