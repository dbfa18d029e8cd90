package analyzer

import (
	"math"
	"regexp"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
)

var (
	pyCommentRe    = regexp.MustCompile(`(?m)^\s*#.*$`)
	slashCommentRe = regexp.MustCompile(`(?m)^\s*//.*$`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)

	pyFunctionRe   = regexp.MustCompile(`def\s+\w+\s*\(`)
	jsFunctionRe   = regexp.MustCompile(`function\s+\w+\s*\(`)
	jsArrowBodyRe  = regexp.MustCompile(`=>\s*{`)
	javaFunctionRe = regexp.MustCompile(`(?m)(public|private|protected)\s+[\w<>\[\]]+\s+\w+\s*\(`)

	pyBranchRe = regexp.MustCompile(`\b(if|elif|for|while|except|and|or)\b`)
	cBranchRe  = regexp.MustCompile(`\b(if|for|while|case|catch)\b|&&|\|\||\?`)
	tokenRe    = regexp.MustCompile(`\w+|[^\w\s]`)
)

// Quality computes structural metrics for one answer: cyclomatic complexity
// by branch counting, a maintainability index combining complexity, length
// and comment density, plus raw counts. The quality dimension score is
// MaintainabilityIndex / 100.
type Quality struct{}

// NewQuality builds the quality analyzer.
func NewQuality() *Quality { return &Quality{} }

func (q *Quality) Analyze(in Input) (model.QualityMetrics, error) {
	code := in.Code
	lines := countLines(code)
	if lines == 0 {
		return model.QualityMetrics{}, nil
	}

	var functions int
	var comments int
	var branches int
	switch in.Language {
	case model.LangJavaScript:
		functions = len(jsFunctionRe.FindAllString(code, -1)) + len(jsArrowBodyRe.FindAllString(code, -1))
		comments = len(slashCommentRe.FindAllString(code, -1)) + len(blockCommentRe.FindAllString(code, -1))
		branches = len(cBranchRe.FindAllString(code, -1))
	case model.LangJava:
		functions = len(javaFunctionRe.FindAllString(code, -1))
		comments = len(slashCommentRe.FindAllString(code, -1)) + len(blockCommentRe.FindAllString(code, -1))
		branches = len(cBranchRe.FindAllString(code, -1))
	default:
		functions = len(pyFunctionRe.FindAllString(code, -1))
		comments = len(pyCommentRe.FindAllString(code, -1))
		branches = len(pyBranchRe.FindAllString(code, -1))
	}

	commentRatio := float64(comments) / float64(lines)

	// Average complexity per function; a file with no detected functions is
	// treated as one unit.
	units := functions
	if units < 1 {
		units = 1
	}
	cc := 1.0 + float64(branches)/float64(units)

	mi := maintainabilityIndex(code, cc, lines, commentRatio)

	return model.QualityMetrics{
		CyclomaticComplexity: cc,
		MaintainabilityIndex: mi,
		CommentRatio:         commentRatio,
		FunctionCount:        functions,
		LineCount:            lines,
	}, nil
}

// Score derives the quality dimension from the metrics.
func (q *Quality) Score(m model.QualityMetrics) float64 {
	return m.MaintainabilityIndex / 100.0
}

// maintainabilityIndex is the rescaled 0..100 index with the comment bonus
// term, using a token-count approximation of Halstead volume.
func maintainabilityIndex(code string, cc float64, lines int, commentRatio float64) float64 {
	tokens := tokenRe.FindAllString(code, -1)
	distinct := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		distinct[t] = struct{}{}
	}
	volume := 1.0
	if len(tokens) > 0 && len(distinct) > 1 {
		volume = float64(len(tokens)) * math.Log2(float64(len(distinct)))
	}

	raw := 171 - 5.2*math.Log(volume) - 0.23*cc - 16.2*math.Log(float64(lines))
	raw += 50 * math.Sin(math.Sqrt(2.4*commentRatio))
	mi := raw * 100 / 171
	if mi < 0 {
		return 0
	}
	if mi > 100 {
		return 100
	}
	return mi
}
