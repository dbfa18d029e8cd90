package harness

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
)

var defaultJavaScriptSpec = Spec{
	Image:  "node:16-alpine",
	RunTpl: "node {main}",
}

var (
	jsFuncDeclRe = regexp.MustCompile(`(?m)^[ \t]*(?:async\s+)?function\s+([A-Za-z_$][\w$]*)\s*\(([^)]*)\)`)
	jsFuncExprRe = regexp.MustCompile(`(?m)^[ \t]*(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s*)?function\s*\(([^)]*)\)`)
	jsArrowRe    = regexp.MustCompile(`(?m)^[ \t]*(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s*)?\(([^)]*)\)\s*=>`)
	jsBareArrow  = regexp.MustCompile(`(?m)^[ \t]*(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s*)?[A-Za-z_$][\w$]*\s*=>`)
)

// JavaScript runs candidate code with Node. Declarations, function
// expressions and arrow functions all count as entry point candidates.
type JavaScript struct {
	spec Spec
}

// NewJavaScript builds the JavaScript harness from its spec.
func NewJavaScript(spec Spec) *JavaScript {
	return &JavaScript{spec: spec}
}

func (j *JavaScript) Language() model.Language { return model.LangJavaScript }

type jsCandidate struct {
	pos   int
	name  string
	arity int
}

func (j *JavaScript) Prepare(source string, hint Hint) (EntryPoint, error) {
	var cands []jsCandidate

	collect := func(re *regexp.Regexp, fixedArity int) {
		for _, m := range re.FindAllStringSubmatchIndex(source, -1) {
			name := source[m[2]:m[3]]
			arity := fixedArity
			if arity < 0 {
				arity = len(splitParams(source[m[4]:m[5]]))
			}
			cands = append(cands, jsCandidate{pos: m[0], name: name, arity: arity})
		}
	}
	collect(jsFuncDeclRe, -1)
	collect(jsFuncExprRe, -1)
	collect(jsArrowRe, -1)
	collect(jsBareArrow, 1)

	if len(cands) == 0 {
		return EntryPoint{}, appErr.EntryPointError(string(model.LangJavaScript), "no function definition found")
	}
	sort.Slice(cands, func(a, b int) bool { return cands[a].pos < cands[b].pos })

	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.name
	}
	idx := pickCandidate(names, hint)

	return EntryPoint{Name: cands[idx].name, Arity: cands[idx].arity}, nil
}

func (j *JavaScript) BuildInvocation(entry EntryPoint, source, testInput string) (ExecutableUnit, error) {
	if entry.Name == "" {
		return ExecutableUnit{}, appErr.New(appErr.InvocationBuildFailed).WithMessage("entry point has no name")
	}

	spread := "false"
	if entry.Arity > 1 && isArrayInput(testInput) {
		spread = "true"
	}

	driver := fmt.Sprintf(jsDriverTpl, quoteForScript(testInput), spread, entry.Name)
	mainFile := "main.js"

	runCmd, err := expandCommand(j.spec.RunTpl, map[string]string{"main": mainFile})
	if err != nil {
		return ExecutableUnit{}, err
	}

	return ExecutableUnit{
		Language: model.LangJavaScript,
		Image:    j.spec.Image,
		Files: map[string]string{
			mainFile: source + "\n\n" + driver,
		},
		RunCmd: runCmd,
	}, nil
}

func (j *JavaScript) ParseOutput(raw string) (Output, error) {
	return parseMarkedOutput(raw)
}

// Promise results are awaited so async entry points report through the same
// marker lines as synchronous ones.
const jsDriverTpl = `
(function () {
    var raw = %s;
    var spread = %s;
    var value;
    try {
        value = JSON.parse(raw);
    } catch (e) {
        value = raw;
    }
    var args = spread && Array.isArray(value) ? value : [value];
    var start = process.hrtime.bigint();
    function report(result) {
        var elapsed = Number(process.hrtime.bigint() - start) / 1e6;
        var text = Array.isArray(result) || (result !== null && typeof result === "object")
            ? JSON.stringify(result)
            : String(result);
        console.log("RESULT: " + text);
        console.log("TIME_MS: " + elapsed.toFixed(3));
    }
    function fail(e) {
        console.log("ERROR: " + (e && e.message ? e.message : String(e)));
    }
    try {
        var result = %s.apply(null, args);
        if (result && typeof result.then === "function") {
            result.then(report, fail);
        } else {
            report(result);
        }
    } catch (e) {
        fail(e);
    }
})();
`
