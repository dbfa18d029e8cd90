package harness

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
)

var defaultJavaSpec = Spec{
	Image:      "openjdk:11-jdk-slim",
	CompileTpl: "javac {files}",
	RunTpl:     "java {class}",
}

var (
	javaClassRe  = regexp.MustCompile(`(?m)^[ \t]*(public[ \t]+)?(?:final[ \t]+|abstract[ \t]+)*class[ \t]+([A-Za-z_$][\w$]*)`)
	javaMethodRe = regexp.MustCompile(`(?m)^[ \t]*((?:public|private|protected)[ \t]+)?((?:static|final|synchronized)[ \t]+)*([\w$]+(?:<[^>]*>)?(?:\[\])*)[ \t]+([A-Za-z_$][\w$]*)[ \t]*\(([^)]*)\)[ \t]*(?:throws[ \t][\w.,\s]+)?\{`)
)

var javaKeywords = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"switch": true, "catch": true, "try": true, "return": true, "new": true,
	"throw": true, "break": true, "continue": true, "case": true,
}

// Java compiles the candidate class alongside a generated Main class that
// renders typed argument literals from the test input. Parameter types come
// from the declared signature, so only signature-typed inputs are supported.
type Java struct {
	spec Spec
}

// NewJava builds the Java harness from its spec.
func NewJava(spec Spec) *Java {
	return &Java{spec: spec}
}

func (j *Java) Language() model.Language { return model.LangJava }

func (j *Java) Prepare(source string, hint Hint) (EntryPoint, error) {
	className := j.findClass(source)
	if className == "" {
		return EntryPoint{}, appErr.EntryPointError(string(model.LangJava), "no class declaration found")
	}

	type cand struct {
		name       string
		params     []string
		returnType string
		static     bool
	}
	var cands []cand

	for _, m := range javaMethodRe.FindAllStringSubmatch(source, -1) {
		retType, name := m[3], m[4]
		if javaKeywords[retType] || javaKeywords[name] || name == "main" {
			continue
		}
		cands = append(cands, cand{
			name:       name,
			params:     splitParams(m[5]),
			returnType: retType,
			static:     strings.Contains(m[0][:strings.Index(m[0], name)], "static"),
		})
	}
	if len(cands) == 0 {
		return EntryPoint{}, appErr.EntryPointError(string(model.LangJava), "no callable method found")
	}

	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.name
	}
	idx := pickCandidate(names, hint)
	chosen := cands[idx]

	types := make([]string, len(chosen.params))
	for i, p := range chosen.params {
		types[i] = javaParamType(p)
	}

	return EntryPoint{
		Name:       chosen.name,
		Arity:      len(chosen.params),
		ParamTypes: types,
		ReturnType: chosen.returnType,
		ClassName:  className,
		Static:     chosen.static,
	}, nil
}

// findClass prefers a public class, then the first declared.
func (j *Java) findClass(source string) string {
	matches := javaClassRe.FindAllStringSubmatch(source, -1)
	if len(matches) == 0 {
		return ""
	}
	for _, m := range matches {
		if m[1] != "" {
			return m[2]
		}
	}
	return matches[0][2]
}

func (j *Java) BuildInvocation(entry EntryPoint, source, testInput string) (ExecutableUnit, error) {
	if entry.Name == "" || entry.ClassName == "" {
		return ExecutableUnit{}, appErr.New(appErr.InvocationBuildFailed).WithMessage("entry point is incomplete")
	}

	args, err := renderJavaArgs(entry, testInput)
	if err != nil {
		return ExecutableUnit{}, err
	}

	var call string
	if entry.Static {
		call = fmt.Sprintf("%s.%s(%s)", entry.ClassName, entry.Name, args)
	} else {
		call = fmt.Sprintf("new %s().%s(%s)", entry.ClassName, entry.Name, args)
	}

	var invoke string
	if entry.ReturnType == "void" {
		invoke = fmt.Sprintf("%s;\n            Object result = null;", call)
	} else {
		invoke = fmt.Sprintf("Object result = %s;", call)
	}

	mainSrc := fmt.Sprintf(javaMainTpl, invoke)
	classFile := entry.ClassName + ".java"

	compileCmd, err := expandCommand(j.spec.CompileTpl, map[string]string{
		"files": "Main.java " + classFile,
	})
	if err != nil {
		return ExecutableUnit{}, err
	}
	runCmd, err := expandCommand(j.spec.RunTpl, map[string]string{"class": "Main"})
	if err != nil {
		return ExecutableUnit{}, err
	}

	return ExecutableUnit{
		Language: model.LangJava,
		Image:    j.spec.Image,
		Files: map[string]string{
			classFile:   source,
			"Main.java": mainSrc,
		},
		CompileCmd: compileCmd,
		RunCmd:     runCmd,
	}, nil
}

func (j *Java) ParseOutput(raw string) (Output, error) {
	return parseMarkedOutput(raw)
}

// javaParamType extracts the type from one declared parameter, normalizing
// varargs to arrays.
func javaParamType(param string) string {
	p := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(param), "final "))
	fields := strings.Fields(p)
	if len(fields) < 2 {
		return p
	}
	typ := strings.Join(fields[:len(fields)-1], " ")
	if strings.HasSuffix(typ, "...") {
		typ = strings.TrimSuffix(typ, "...") + "[]"
	}
	return typ
}

// renderJavaArgs decodes the test input and renders one literal per
// parameter. Array inputs spread across parameters when the arity is greater
// than one; otherwise the whole value binds to the single parameter.
func renderJavaArgs(entry EntryPoint, testInput string) (string, error) {
	if entry.Arity == 0 {
		return "", nil
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(testInput)), &decoded); err != nil {
		decoded = testInput
	}

	var values []interface{}
	if arr, ok := decoded.([]interface{}); ok && entry.Arity > 1 {
		values = arr
	} else {
		values = []interface{}{decoded}
	}
	if len(values) != entry.Arity {
		return "", appErr.Newf(appErr.InvocationBuildFailed,
			"input provides %d argument(s), entry point %s takes %d", len(values), entry.Name, entry.Arity)
	}

	lits := make([]string, len(values))
	for i, v := range values {
		typ := "Object"
		if i < len(entry.ParamTypes) {
			typ = entry.ParamTypes[i]
		}
		lit, err := javaLiteral(typ, v)
		if err != nil {
			return "", err
		}
		lits[i] = lit
	}
	return strings.Join(lits, ", "), nil
}

func javaLiteral(typ string, v interface{}) (string, error) {
	switch typ {
	case "int", "short", "byte", "Integer", "Short", "Byte":
		f, ok := v.(float64)
		if !ok {
			return "", badJavaArg(typ, v)
		}
		return strconv.FormatInt(int64(f), 10), nil
	case "long", "Long":
		f, ok := v.(float64)
		if !ok {
			return "", badJavaArg(typ, v)
		}
		return strconv.FormatInt(int64(f), 10) + "L", nil
	case "double", "Double":
		f, ok := v.(float64)
		if !ok {
			return "", badJavaArg(typ, v)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case "float", "Float":
		f, ok := v.(float64)
		if !ok {
			return "", badJavaArg(typ, v)
		}
		return strconv.FormatFloat(f, 'f', -1, 64) + "f", nil
	case "boolean", "Boolean":
		b, ok := v.(bool)
		if !ok {
			return "", badJavaArg(typ, v)
		}
		return strconv.FormatBool(b), nil
	case "char", "Character":
		s, ok := v.(string)
		if !ok || len([]rune(s)) != 1 {
			return "", badJavaArg(typ, v)
		}
		return "'" + javaEscape(s) + "'", nil
	case "String", "CharSequence":
		s, ok := v.(string)
		if !ok {
			s = javaStringify(v)
		}
		return `"` + javaEscape(s) + `"`, nil
	case "int[]", "long[]", "double[]", "boolean[]", "String[]":
		arr, ok := v.([]interface{})
		if !ok {
			return "", badJavaArg(typ, v)
		}
		elem := strings.TrimSuffix(typ, "[]")
		lits := make([]string, len(arr))
		for i, e := range arr {
			lit, err := javaLiteral(elem, e)
			if err != nil {
				return "", err
			}
			lits[i] = lit
		}
		return fmt.Sprintf("new %s{%s}", typ, strings.Join(lits, ", ")), nil
	default:
		if strings.HasPrefix(typ, "List<") || typ == "List" {
			arr, ok := v.([]interface{})
			if !ok {
				return "", badJavaArg(typ, v)
			}
			elem := "Object"
			if strings.HasPrefix(typ, "List<") {
				elem = strings.TrimSuffix(strings.TrimPrefix(typ, "List<"), ">")
			}
			lits := make([]string, len(arr))
			for i, e := range arr {
				lit, err := javaLiteral(elem, e)
				if err != nil {
					return "", err
				}
				lits[i] = lit
			}
			return "java.util.Arrays.asList(" + strings.Join(lits, ", ") + ")", nil
		}
		// Unknown declared type: fall back on the JSON shape.
		switch val := v.(type) {
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(val), nil
		case string:
			return `"` + javaEscape(val) + `"`, nil
		default:
			return "", badJavaArg(typ, v)
		}
	}
}

func badJavaArg(typ string, v interface{}) error {
	return appErr.Newf(appErr.InvocationBuildFailed, "cannot render %v as %s argument", v, typ)
}

func javaStringify(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// javaEscape renders s safely inside a Java string or char literal. Unicode
// escapes are avoided because javac substitutes them before lexing; control
// characters use octal escapes instead.
func javaEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				b.WriteString(fmt.Sprintf(`\%03o`, r))
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

const javaMainTpl = `public class Main {
    public static void main(String[] argv) {
        try {
            long start = System.nanoTime();
            %s
            double elapsed = (System.nanoTime() - start) / 1e6;
            System.out.println("RESULT: " + render(result));
            System.out.println("TIME_MS: " + String.format("%%.3f", elapsed));
        } catch (Throwable t) {
            System.out.println("ERROR: " + (t.getMessage() == null ? t.toString() : t.getMessage()));
            t.printStackTrace();
        }
    }

    static String render(Object v) {
        if (v == null) return "null";
        if (v instanceof int[]) return java.util.Arrays.toString((int[]) v);
        if (v instanceof long[]) return java.util.Arrays.toString((long[]) v);
        if (v instanceof double[]) return java.util.Arrays.toString((double[]) v);
        if (v instanceof boolean[]) return java.util.Arrays.toString((boolean[]) v);
        if (v instanceof char[]) return java.util.Arrays.toString((char[]) v);
        if (v instanceof Object[]) return java.util.Arrays.deepToString((Object[]) v);
        return String.valueOf(v);
    }
}
`
