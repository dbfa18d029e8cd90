package model

import (
	"fmt"
	"strings"
)

// Language identifies a supported submission language. Dispatch on languages
// happens through the harness registry keyed by this type; shared logic never
// branches on it.
type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangJava       Language = "java"
)

// ParseLanguage normalizes a raw language tag into a Language.
func ParseLanguage(raw string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "python", "python3", "py":
		return LangPython, nil
	case "javascript", "js", "node", "nodejs":
		return LangJavaScript, nil
	case "java":
		return LangJava, nil
	default:
		return "", fmt.Errorf("unsupported language %q", raw)
	}
}

func (l Language) String() string {
	return string(l)
}
