package harness

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"

	"github.com/google/shlex"
)

const (
	resultMarker = "RESULT: "
	errorMarker  = "ERROR: "
	timeMarker   = "TIME_MS: "
)

// EntryPoint describes the candidate function a test invocation will call.
type EntryPoint struct {
	Name  string
	Arity int

	// Java needs the declared signature to render typed literals.
	ParamTypes []string
	ReturnType string
	ClassName  string
	Static     bool
}

// ExecutableUnit is a fully rendered, runnable unit for one (solution, test
// case) pair. The sandbox writes Files into the workspace, runs CompileCmd if
// present, then RunCmd, and hands raw output back to ParseOutput.
type ExecutableUnit struct {
	Language   model.Language
	Image      string
	Files      map[string]string
	CompileCmd []string
	RunCmd     []string
}

// Output is the parsed runner output: the normalized result value plus the
// runner's self-reported execution time when it printed one.
type Output struct {
	Value  string
	TimeMS float64
}

// Hint narrows entry point selection. FunctionName wins when it names a
// function present in the source; QuestionText is scanned for mentions of a
// discovered function name when several candidates exist.
type Hint struct {
	FunctionName string
	QuestionText string
}

// Harness is the per-language adapter. Implementations are registered in a
// Registry; shared logic never branches on the language.
type Harness interface {
	Language() model.Language

	// Prepare locates the target function and its arity by static
	// inspection of the source.
	Prepare(source string, hint Hint) (EntryPoint, error)

	// BuildInvocation renders a runnable unit that calls the entry point
	// with the test input. Array-shaped inputs are spread across parameters
	// when the arity is greater than one and passed whole otherwise.
	BuildInvocation(entry EntryPoint, source, testInput string) (ExecutableUnit, error)

	// ParseOutput extracts and normalizes the runner's result value.
	ParseOutput(raw string) (Output, error)
}

// Spec configures one language harness: the container image and the command
// templates. Templates may use {main}, {src} and {class} placeholders.
type Spec struct {
	Image      string `yaml:"image"`
	CompileTpl string `yaml:"compileCmd"`
	RunTpl     string `yaml:"runCmd"`
}

// Registry is the closed dispatch table from language to harness.
type Registry struct {
	byLang map[model.Language]Harness
}

// NewRegistry builds a registry over the given harnesses.
func NewRegistry(harnesses ...Harness) *Registry {
	r := &Registry{byLang: make(map[model.Language]Harness, len(harnesses))}
	for _, h := range harnesses {
		r.byLang[h.Language()] = h
	}
	return r
}

// DefaultRegistry returns a registry with all supported languages using the
// given per-language specs; a missing spec falls back to defaults.
func DefaultRegistry(specs map[string]Spec) *Registry {
	return NewRegistry(
		NewPython(specFor(specs, model.LangPython, defaultPythonSpec)),
		NewJavaScript(specFor(specs, model.LangJavaScript, defaultJavaScriptSpec)),
		NewJava(specFor(specs, model.LangJava, defaultJavaSpec)),
	)
}

func specFor(specs map[string]Spec, lang model.Language, def Spec) Spec {
	s, ok := specs[string(lang)]
	if !ok {
		return def
	}
	if s.Image == "" {
		s.Image = def.Image
	}
	if s.RunTpl == "" {
		s.RunTpl = def.RunTpl
	}
	if s.CompileTpl == "" {
		s.CompileTpl = def.CompileTpl
	}
	return s
}

// Get returns the harness for the language.
func (r *Registry) Get(lang model.Language) (Harness, error) {
	h, ok := r.byLang[lang]
	if !ok {
		return nil, appErr.Newf(appErr.LanguageNotSupported, "no harness for language %q", lang)
	}
	return h, nil
}

// Languages lists the registered languages.
func (r *Registry) Languages() []model.Language {
	langs := make([]model.Language, 0, len(r.byLang))
	for l := range r.byLang {
		langs = append(langs, l)
	}
	return langs
}

// Normalize trims and canonicalizes a raw value so comparisons tolerate
// representation differences across languages: surrounding quotes are
// stripped, numbers lose redundant fraction digits, booleans lowercase, and
// list renderings drop the spacing after commas.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = stripQuotes(s)

	if f, err := strconv.ParseFloat(s, 64); err == nil && s != "" {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	switch strings.ToLower(s) {
	case "true":
		return "true"
	case "false":
		return "false"
	case "none", "null", "nil":
		return "null"
	}

	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return strings.ReplaceAll(s, ", ", ",")
	}

	return s
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// parseMarkedOutput scans runner output for marker lines. The last RESULT
// line wins so candidate prints cannot shadow the runner's own report.
func parseMarkedOutput(raw string) (Output, error) {
	var out Output
	var errMsg string
	var haveRes, haveErr bool
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, resultMarker):
			out.Value = Normalize(strings.TrimPrefix(line, resultMarker))
			haveRes = true
		case strings.HasPrefix(line, timeMarker):
			if ms, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, timeMarker)), 64); err == nil {
				out.TimeMS = ms
			}
		case strings.HasPrefix(line, errorMarker):
			errMsg = strings.TrimSpace(strings.TrimPrefix(line, errorMarker))
			haveErr = true
		}
	}
	if haveRes {
		return out, nil
	}
	if haveErr {
		return Output{}, appErr.Newf(appErr.RuntimeFailure, "%s", errMsg)
	}
	return Output{}, appErr.New(appErr.RuntimeFailure).WithMessage("runner produced no result")
}

// expandCommand renders a command template and splits it shell-style.
func expandCommand(tpl string, vars map[string]string) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command template is required")
	}
	expanded := tpl
	for k, v := range vars {
		expanded = strings.ReplaceAll(expanded, "{"+k+"}", v)
	}
	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty after expansion")
	}
	return fields, nil
}

// isArrayInput reports whether a raw test input is JSON-array shaped.
func isArrayInput(input string) bool {
	t := strings.TrimSpace(input)
	return strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]")
}

// pickCandidate selects the entry point among discovered function names:
// the hinted name when present, the only function when there is one, then a
// function mentioned in the question text, then the first declared.
func pickCandidate(names []string, hint Hint) int {
	if len(names) == 0 {
		return -1
	}
	if hint.FunctionName != "" {
		for i, n := range names {
			if n == hint.FunctionName {
				return i
			}
		}
	}
	if len(names) == 1 {
		return 0
	}
	if hint.QuestionText != "" {
		for i, n := range names {
			if containsWord(hint.QuestionText, n) {
				return i
			}
		}
	}
	return 0
}

func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for idx := 0; ; {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isWordByte(text[i-1])
		after := i+len(word) >= len(text) || !isWordByte(text[i+len(word)])
		if before && after {
			return true
		}
		idx = i + len(word)
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// splitParams splits a declared parameter list on top level commas, ignoring
// commas nested in brackets or generics.
func splitParams(list string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(list[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(list[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// quoteForScript renders s as a string literal valid in Python and
// JavaScript source. JSON escaping covers both grammars.
func quoteForScript(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
