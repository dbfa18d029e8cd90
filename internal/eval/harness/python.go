package harness

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
)

var defaultPythonSpec = Spec{
	Image:  "python:3.9-slim",
	RunTpl: "python3 {main}",
}

var pythonDefRe = regexp.MustCompile(`(?m)^[ \t]*def\s+([A-Za-z_]\w*)\s*\(([^)]*)\)`)

// Python runs candidate code with CPython. The invocation is a single script:
// the candidate source followed by a driver that decodes the test input,
// calls the entry point and prints marker lines.
type Python struct {
	spec Spec
}

// NewPython builds the Python harness from its spec.
func NewPython(spec Spec) *Python {
	return &Python{spec: spec}
}

func (p *Python) Language() model.Language { return model.LangPython }

func (p *Python) Prepare(source string, hint Hint) (EntryPoint, error) {
	matches := pythonDefRe.FindAllStringSubmatch(source, -1)
	if len(matches) == 0 {
		return EntryPoint{}, appErr.EntryPointError(string(model.LangPython), "no function definition found")
	}

	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m[1]
	}
	idx := pickCandidate(names, hint)

	params := splitParams(matches[idx][2])
	// Methods carry a receiver parameter that the driver never supplies.
	if len(params) > 0 {
		first := strings.SplitN(params[0], ":", 2)[0]
		if t := strings.TrimSpace(first); t == "self" || t == "cls" {
			params = params[1:]
		}
	}

	return EntryPoint{Name: names[idx], Arity: len(params)}, nil
}

func (p *Python) BuildInvocation(entry EntryPoint, source, testInput string) (ExecutableUnit, error) {
	if entry.Name == "" {
		return ExecutableUnit{}, appErr.New(appErr.InvocationBuildFailed).WithMessage("entry point has no name")
	}

	spread := "False"
	if entry.Arity > 1 && isArrayInput(testInput) {
		spread = "True"
	}

	driver := fmt.Sprintf(pythonDriverTpl, quoteForScript(testInput), spread, entry.Name)
	mainFile := "main.py"

	runCmd, err := expandCommand(p.spec.RunTpl, map[string]string{"main": mainFile})
	if err != nil {
		return ExecutableUnit{}, err
	}

	return ExecutableUnit{
		Language: model.LangPython,
		Image:    p.spec.Image,
		Files: map[string]string{
			mainFile: source + "\n\n" + driver,
		},
		RunCmd: runCmd,
	}, nil
}

func (p *Python) ParseOutput(raw string) (Output, error) {
	return parseMarkedOutput(raw)
}

// The driver decodes JSON input when it parses, falls back to the raw string
// otherwise, and spreads list elements across parameters only when told to.
const pythonDriverTpl = `
if __name__ == "__main__":
    import json as _json
    import time as _time
    import traceback as _traceback

    _raw = %s
    _spread = %s
    try:
        _value = _json.loads(_raw)
    except ValueError:
        _value = _raw
    if _spread and isinstance(_value, list):
        _args = _value
    else:
        _args = [_value]
    try:
        _start = _time.perf_counter()
        _result = %s(*_args)
        _elapsed = (_time.perf_counter() - _start) * 1000.0
        print("RESULT: " + str(_result))
        print("TIME_MS: " + format(_elapsed, ".3f"))
    except Exception as _exc:
        print("ERROR: " + str(_exc))
        _traceback.print_exc()
`
