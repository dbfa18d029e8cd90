package analyzer

import (
	"fmt"
	"regexp"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
)

var (
	pyCamelVarRe  = regexp.MustCompile(`\b[a-z]+[A-Z][a-zA-Z]*\b`)
	pyBadFuncRe   = regexp.MustCompile(`def\s+([A-Z][a-zA-Z]*|[a-z]+[A-Z][a-zA-Z]*)\s*\(`)
	pyBadClassRe  = regexp.MustCompile(`class\s+([a-z][a-zA-Z]*_|[A-Z][a-zA-Z]*_|_[a-zA-Z]+)\s*[:\(]`)
	jsSnakeVarRe  = regexp.MustCompile(`\b(let|const|var)\s+([a-z]+_[a-z_]+)\b`)
	jsBadFuncRe   = regexp.MustCompile(`function\s+([A-Z][a-zA-Z]*|[a-z]+_[a-z_]+)\s*\(`)
	badClassRe    = regexp.MustCompile(`class\s+([a-z][a-zA-Z]*|[a-zA-Z]*_[a-zA-Z_]*)\s*[{\(]`)
	javaBadVarRe  = regexp.MustCompile(`\b(int|String|boolean|double|float|long|char)\s+([A-Z][a-zA-Z]*|[a-z]+_[a-z_]+)\b`)
	javaBadFuncRe = regexp.MustCompile(`(public|private|protected)\s+[a-zA-Z<>\[\]]+\s+([A-Z][a-zA-Z]*|[a-z]+_[a-z_]+)\s*\(`)
)

// Naming checks identifiers against each language's convention: snake_case
// in Python, camelCase in JavaScript and Java, with class names in
// CapWords/PascalCase throughout.
type Naming struct{}

// NewNaming builds the naming analyzer.
func NewNaming() *Naming { return &Naming{} }

func (n *Naming) Analyze(in Input) (model.NamingResult, error) {
	lines := countLines(in.Code)
	if lines == 0 {
		return model.NamingResult{}, nil
	}

	var issues []string
	switch in.Language {
	case model.LangJavaScript:
		if found := jsSnakeVarRe.FindAllString(in.Code, -1); len(found) > 0 {
			issues = append(issues, fmt.Sprintf("Found %d snake_case variable names (use camelCase)", len(found)))
		}
		if found := jsBadFuncRe.FindAllString(in.Code, -1); len(found) > 0 {
			issues = append(issues, fmt.Sprintf("Found %d non-camelCase function names", len(found)))
		}
		if found := badClassRe.FindAllString(in.Code, -1); len(found) > 0 {
			issues = append(issues, fmt.Sprintf("Found %d non-PascalCase class names", len(found)))
		}
	case model.LangJava:
		if found := javaBadVarRe.FindAllString(in.Code, -1); len(found) > 0 {
			issues = append(issues, fmt.Sprintf("Found %d non-camelCase variable names", len(found)))
		}
		if found := javaBadFuncRe.FindAllString(in.Code, -1); len(found) > 0 {
			issues = append(issues, fmt.Sprintf("Found %d non-camelCase method names", len(found)))
		}
		if found := badClassRe.FindAllString(in.Code, -1); len(found) > 0 {
			issues = append(issues, fmt.Sprintf("Found %d non-PascalCase class names", len(found)))
		}
	default:
		if found := pyCamelVarRe.FindAllString(in.Code, -1); len(found) > 0 {
			issues = append(issues, fmt.Sprintf("Found %d camelCase variable names (use snake_case)", len(found)))
		}
		if found := pyBadFuncRe.FindAllString(in.Code, -1); len(found) > 0 {
			issues = append(issues, fmt.Sprintf("Found %d non-snake_case function names", len(found)))
		}
		if found := pyBadClassRe.FindAllString(in.Code, -1); len(found) > 0 {
			issues = append(issues, fmt.Sprintf("Found %d non-CapWords class names", len(found)))
		}
	}

	return model.NamingResult{
		Score:  issueScore(len(issues), lines, 0.2),
		Issues: issues,
	}, nil
}
