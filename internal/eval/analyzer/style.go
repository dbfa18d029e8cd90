package analyzer

import (
	"fmt"
	"regexp"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
)

const maxLineLength = 100

var indentRe = regexp.MustCompile(`^( +)[^ ]`)

// Style flags formatting issues: overlong lines for every language, plus
// indentation consistency for Python. The score shrinks with the issue count
// relative to the file size.
type Style struct{}

// NewStyle builds the style analyzer.
func NewStyle() *Style { return &Style{} }

func (s *Style) Analyze(in Input) (model.StyleResult, error) {
	lines := splitLines(in.Code)
	if in.Code == "" || len(lines) == 0 {
		return model.StyleResult{}, nil
	}

	var issues []string
	for i, line := range lines {
		if len(line) > maxLineLength {
			issues = append(issues, fmt.Sprintf("Line %d is too long (%d > %d characters)", i+1, len(line), maxLineLength))
		}
	}

	if in.Language == model.LangPython {
		var indents []int
		for _, line := range lines {
			if m := indentRe.FindStringSubmatch(line); m != nil {
				indents = append(indents, len(m[1]))
			}
		}
		if len(indents) > 0 {
			min, max := indents[0], indents[0]
			for _, n := range indents[1:] {
				if n < min {
					min = n
				}
				if n > max {
					max = n
				}
			}
			if min%4 != 0 || max%4 != 0 {
				issues = append(issues, "Inconsistent indentation (not using 4 spaces)")
			}
		}
	}

	return model.StyleResult{
		Score:  issueScore(len(issues), len(lines), 0.5),
		Issues: issues,
	}, nil
}

// issueScore maps an issue count to a 0..1 score. The tolerance factor sets
// how many issues per line the score absorbs before hitting zero.
func issueScore(issues, lines int, tolerance float64) float64 {
	if lines <= 0 {
		return 0
	}
	score := 1.0 - float64(issues)/(float64(lines)*tolerance)
	if score < 0 {
		return 0
	}
	return score
}
