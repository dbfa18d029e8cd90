package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FieldType describes input type.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldBool
	FieldJSON
	FieldFile
)

// Field defines a CLI input field. Secret fields are prompted without echo.
type Field struct {
	Name     string
	Aliases  []string
	Prompt   string
	Type     FieldType
	Required bool
	Secret   bool
}

// Command defines a CLI command binding. Query names fields appended to the
// request URL instead of the body.
type Command struct {
	Group        string
	Action       string
	Method       string
	PathTemplate string
	Query        []string
	RequiresAuth bool
	Fields       []Field
}

// RequestSpec is the built HTTP request.
type RequestSpec struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
}

// Params holds parsed input params keyed case-insensitively.
type Params map[string]string

func (p Params) Get(key string) string {
	return p[strings.ToLower(key)]
}

func (p Params) Set(key, value string) {
	p[strings.ToLower(key)] = value
}

func (p Params) Has(key string) bool {
	_, ok := p[strings.ToLower(key)]
	return ok
}

// Canonicalize moves alias keys onto their field names, removing the alias
// entry once copied.
func (p Params) Canonicalize(fields []Field) {
	for _, field := range fields {
		name := strings.ToLower(field.Name)
		for _, alias := range field.Aliases {
			aliasKey := strings.ToLower(alias)
			value, ok := p[aliasKey]
			if !ok {
				continue
			}
			p[name] = value
			delete(p, aliasKey)
		}
	}
}

// ParseInt parses a trimmed base-10 integer.
func ParseInt(value string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(value))
}

// ParseBool accepts the strconv boolean spellings (true/false, 1/0, t/f).
func ParseBool(value string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(value))
}

// ReadFile loads path as a string.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file failed: %w", err)
	}
	return string(data), nil
}

// ParseJSON validates value and returns it compacted, so documents loaded
// from pretty-printed files go over the wire in one line.
func ParseJSON(value string) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(strings.TrimSpace(value))); err != nil {
		return nil, fmt.Errorf("invalid json content: %w", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}
