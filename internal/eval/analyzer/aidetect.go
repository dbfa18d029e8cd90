package analyzer

import (
	"regexp"
	"strings"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
)

const (
	aiProbabilityCap  = 0.95
	aiDetectionMethod = "signature-heuristics"
)

var (
	stepCommentRe = regexp.MustCompile(`(?mi)^\s*(#|//)\s*step\s*\d+`)
	narrationRe   = regexp.MustCompile(`(?i)\b(this function|we first|we then|we now|note that|as required)\b`)
	edgeCaseRe    = regexp.MustCompile(`(?i)(edge case|corner case|handle the case)`)
	genericNameRe = regexp.MustCompile(`\b(result|temp|output|res|arr|helper)\b`)
	docstringRe   = regexp.MustCompile(`"""`)
	jsdocRe       = regexp.MustCompile(`/\*\*`)
	printRe       = regexp.MustCompile(`\bprint\s*\(|console\.log|System\.out\.print`)
)

type aiSignal struct {
	name   string
	weight float64
	match  func(in Input) bool
}

// aiSignals are the static signatures the detector looks for. Weights sum
// past 1.0 on purpose; the probability is capped.
var aiSignals = []aiSignal{
	{
		name:   "stepwise numbered comments",
		weight: 0.20,
		match:  func(in Input) bool { return stepCommentRe.MatchString(in.Code) },
	},
	{
		name:   "tutorial-style narration",
		weight: 0.15,
		match:  func(in Input) bool { return narrationRe.MatchString(in.Code) },
	},
	{
		name:   "uniform function documentation",
		weight: 0.20,
		match:  uniformDocumentation,
	},
	{
		name:   "generic placeholder identifiers",
		weight: 0.15,
		match: func(in Input) bool {
			return len(genericNameRe.FindAllString(in.Code, -1)) >= 5
		},
	},
	{
		name:   "exhaustive edge-case commentary",
		weight: 0.15,
		match: func(in Input) bool {
			return len(edgeCaseRe.FindAllString(in.Code, -1)) >= 2
		},
	},
	{
		name:   "high comment density",
		weight: 0.20,
		match: func(in Input) bool {
			lines := countLines(in.Code)
			if lines == 0 {
				return false
			}
			var comments int
			if in.Language == model.LangPython {
				comments = len(pyCommentRe.FindAllString(in.Code, -1))
			} else {
				comments = len(slashCommentRe.FindAllString(in.Code, -1)) + len(blockCommentRe.FindAllString(in.Code, -1))
			}
			return float64(comments)/float64(lines) > 0.25
		},
	},
	{
		name:   "no debugging remnants",
		weight: 0.10,
		match: func(in Input) bool {
			return countLines(in.Code) >= 30 && !printRe.MatchString(in.Code)
		},
	},
}

// AIDetection estimates how likely an answer was machine generated from
// static signatures alone. The result is informational: it is reported next
// to the dimensions but never enters the composite.
type AIDetection struct{}

// NewAIDetection builds the AI detection analyzer.
func NewAIDetection() *AIDetection { return &AIDetection{} }

func (a *AIDetection) Analyze(in Input) (model.AIDetectionResult, error) {
	if strings.TrimSpace(in.Code) == "" {
		return model.AIDetectionResult{DetectionMethod: aiDetectionMethod}, nil
	}

	var probability float64
	var flagged []string
	for _, sig := range aiSignals {
		if sig.match(in) {
			probability += sig.weight
			flagged = append(flagged, sig.name)
		}
	}
	if probability > aiProbabilityCap {
		probability = aiProbabilityCap
	}

	return model.AIDetectionResult{
		Probability:     probability,
		DetectionMethod: aiDetectionMethod,
		FlaggedPatterns: flagged,
	}, nil
}

// uniformDocumentation reports whether every detected function carries
// documentation, which hand-written exam answers rarely do.
func uniformDocumentation(in Input) bool {
	var functions, docs int
	switch in.Language {
	case model.LangJavaScript, model.LangJava:
		functions = len(jsFunctionRe.FindAllString(in.Code, -1))
		if in.Language == model.LangJava {
			functions = len(javaFunctionRe.FindAllString(in.Code, -1))
		}
		docs = len(jsdocRe.FindAllString(in.Code, -1))
	default:
		functions = len(pyFunctionRe.FindAllString(in.Code, -1))
		docs = len(docstringRe.FindAllString(in.Code, -1)) / 2
	}
	return functions >= 2 && docs >= functions
}
