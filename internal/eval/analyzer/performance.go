package analyzer

import (
	"regexp"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
)

var (
	pyTripleLoopRe = regexp.MustCompile(`for\s+\w+\s+in\s+range\(.*\):\s+for\s+\w+\s+in\s+range\(.*\):\s+for\s+\w+\s+in\s+range\(.*\):`)
	cTripleLoopRe  = regexp.MustCompile(`for\s*\(\s*\w+\s*=.*;\s*\w+\s*<.*;\s*\w+\+\+\s*\)\s*{\s*for\s*\(\s*\w+\s*=.*;\s*\w+\s*<.*;\s*\w+\+\+\s*\)\s*{\s*for\s*\(`)
	pyDoubleLoopRe = regexp.MustCompile(`for\s+\w+\s+in\s+range\(.*\):\s+for\s+\w+\s+in\s+range\(.*\):`)
	cDoubleLoopRe  = regexp.MustCompile(`for\s*\(\s*\w+\s*=.*;\s*\w+\s*<.*;\s*\w+\+\+\s*\)\s*{\s*for\s*\(`)
	whileHalveRe   = regexp.MustCompile(`while\s+\w+\s*<\s*\w+:`)
	doublingRe     = regexp.MustCompile(`\w+\s*=\s*\w+\s*\*\s*2`)
	pySingleLoopRe = regexp.MustCompile(`for\s+\w+\s+in\s+range\(.*\):`)
	cSingleLoopRe  = regexp.MustCompile(`for\s*\(\s*\w+\s*=.*;\s*\w+\s*<.*;\s*\w+\+\+\s*\)`)

	nestedCompRe  = regexp.MustCompile(`\[\s*\[\s*\w+\s*for\s+\w+\s+in\s+range\(.*\)\s*\]\s*for\s+\w+\s+in\s+range\(.*\)\s*\]`)
	matrixAllocRe = regexp.MustCompile(`new\s+\w+\[\s*\w+\s*\]\[\s*\w+\s*\]`)
	listCompRe    = regexp.MustCompile(`\[\s*\w+\s*for\s+\w+\s+in\s+range\(.*\)\s*\]`)
	arrayAllocRe  = regexp.MustCompile(`new\s+\w+\[\s*\w+\s*\]`)
	listAllocRe   = regexp.MustCompile(`new\s+ArrayList<>\(\)`)

	pyAppendLoopRe = regexp.MustCompile(`\.append\(.*\).*for\s+\w+\s+in`)
	pyListCompRe   = regexp.MustCompile(`\[\w+\s+for\s+\w+\s+in`)
	pyDoubleSortRe = regexp.MustCompile(`sorted\(.*\).*sorted\(`)
	jsPushLoopRe   = regexp.MustCompile(`\.push\(.*\).*for\s*\(`)
	jsMapRe        = regexp.MustCompile(`\.map\(`)
	jsDoubleSortRe = regexp.MustCompile(`\.sort\(.*\).*\.sort\(`)
	javaAddLoopRe  = regexp.MustCompile(`\.add\(.*\).*for\s*\(`)
	javaStreamRe   = regexp.MustCompile(`\.stream\(`)
	javaDSortRe    = regexp.MustCompile(`Collections\.sort\(.*\).*Collections\.sort\(`)
)

// complexityRank orders complexity classes for comparison. Unknown classes
// rank as linear.
var complexityRank = map[string]int{
	"O(1)":       1,
	"O(log n)":   2,
	"O(n)":       3,
	"O(n log n)": 4,
	"O(n^2)":     5,
	"O(n^3)":     6,
	"O(2^n)":     7,
	"O(n!)":      8,
}

const defaultComplexityRank = 3

// Performance estimates time and space complexity classes from loop and
// allocation patterns and scores them against the expected classes for the
// question. Estimates at or below the expectation score full marks; each
// class above it costs a quarter.
type Performance struct{}

// NewPerformance builds the performance analyzer.
func NewPerformance() *Performance { return &Performance{} }

func (p *Performance) Analyze(in Input) (model.PerformanceResult, error) {
	if countLines(in.Code) == 0 {
		return model.PerformanceResult{}, nil
	}

	expectedTime := in.Criteria.TimeComplexity
	if expectedTime == "" {
		expectedTime = "O(n)"
	}
	expectedSpace := in.Criteria.SpaceComplexity
	if expectedSpace == "" {
		expectedSpace = "O(n)"
	}

	estTime := estimateTimeComplexity(in.Code)
	estSpace := estimateSpaceComplexity(in.Code)

	timeScore := compareComplexity(estTime, expectedTime)
	spaceScore := compareComplexity(estSpace, expectedSpace)

	return model.PerformanceResult{
		TimeComplexityScore:  timeScore,
		SpaceComplexityScore: spaceScore,
		EfficiencyScore:      (timeScore + spaceScore) / 2,
		EstimatedTime:        estTime,
		EstimatedSpace:       estSpace,
		Suggestions:          suggestions(in.Language, in.Code),
	}, nil
}

func estimateTimeComplexity(code string) string {
	if pyTripleLoopRe.MatchString(code) || cTripleLoopRe.MatchString(code) {
		return "O(n^3)"
	}
	if pyDoubleLoopRe.MatchString(code) || cDoubleLoopRe.MatchString(code) {
		return "O(n^2)"
	}
	if whileHalveRe.MatchString(code) && doublingRe.MatchString(code) {
		return "O(log n)"
	}
	if pySingleLoopRe.MatchString(code) || cSingleLoopRe.MatchString(code) {
		return "O(n)"
	}
	return "O(1)"
}

func estimateSpaceComplexity(code string) string {
	if nestedCompRe.MatchString(code) || matrixAllocRe.MatchString(code) {
		return "O(n^2)"
	}
	if listCompRe.MatchString(code) || arrayAllocRe.MatchString(code) || listAllocRe.MatchString(code) {
		return "O(n)"
	}
	return "O(1)"
}

func compareComplexity(estimated, expected string) float64 {
	estRank, ok := complexityRank[estimated]
	if !ok {
		estRank = defaultComplexityRank
	}
	expRank, ok := complexityRank[expected]
	if !ok {
		expRank = defaultComplexityRank
	}
	if estRank <= expRank {
		return 1.0
	}
	score := 1.0 - float64(estRank-expRank)*0.25
	if score < 0 {
		return 0
	}
	return score
}

func suggestions(lang model.Language, code string) []string {
	var out []string
	switch lang {
	case model.LangJavaScript:
		if cDoubleLoopRe.MatchString(code) {
			out = append(out, "Consider optimizing nested loops to reduce time complexity")
		}
		if jsPushLoopRe.MatchString(code) && !jsMapRe.MatchString(code) {
			out = append(out, "Consider using map/filter/reduce instead of push in loops")
		}
		if jsDoubleSortRe.MatchString(code) {
			out = append(out, "Multiple sorting operations detected - consider combining or optimizing")
		}
	case model.LangJava:
		if cDoubleLoopRe.MatchString(code) {
			out = append(out, "Consider optimizing nested loops to reduce time complexity")
		}
		if javaAddLoopRe.MatchString(code) && !javaStreamRe.MatchString(code) {
			out = append(out, "Consider using streams instead of add in loops")
		}
		if javaDSortRe.MatchString(code) {
			out = append(out, "Multiple sorting operations detected - consider combining or optimizing")
		}
	default:
		if pyDoubleLoopRe.MatchString(code) {
			out = append(out, "Consider optimizing nested loops to reduce time complexity")
		}
		if pyAppendLoopRe.MatchString(code) && !pyListCompRe.MatchString(code) {
			out = append(out, "Consider using list comprehensions instead of append in loops")
		}
		if pyDoubleSortRe.MatchString(code) {
			out = append(out, "Multiple sorting operations detected - consider combining or optimizing")
		}
	}
	return out
}
