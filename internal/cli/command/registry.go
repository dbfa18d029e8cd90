package command

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Registry returns all CLI commands keyed by "group action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Group:        "auth",
			Action:       "token",
			Method:       "POST",
			PathTemplate: "/api/v1/auth/token",
			Fields: []Field{
				{Name: "username", Prompt: "username", Type: FieldString, Required: true},
				{Name: "password", Prompt: "password", Type: FieldString, Required: true, Secret: true},
			},
		},
		{
			Group:        "assessment",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/v1/assessments",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "body_json", Aliases: []string{"json"}, Prompt: "assessment json (or _file_)", Type: FieldJSON, Required: true},
				{Name: "body_file", Aliases: []string{"file"}, Prompt: "assessment json file path", Type: FieldFile},
			},
		},
		{
			Group:        "solution",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/v1/solutions",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "body_json", Aliases: []string{"json"}, Prompt: "solution json (or _file_)", Type: FieldJSON, Required: true},
				{Name: "body_file", Aliases: []string{"file"}, Prompt: "solution json file path", Type: FieldFile},
			},
		},
		{
			Group:        "job",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/v1/jobs",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "scope", Prompt: "scope (solution|test|all)", Type: FieldString, Required: true},
				{Name: "target_id", Aliases: []string{"target"}, Prompt: "target id", Type: FieldString},
			},
		},
		{
			Group:        "job",
			Action:       "status",
			Method:       "GET",
			PathTemplate: "/api/v1/jobs/:id",
			Fields: []Field{
				{Name: "id", Aliases: []string{"job_id"}, Prompt: "job id", Type: FieldString, Required: true},
			},
		},
		{
			Group:        "job",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/api/v1/jobs",
			Query:        []string{"limit"},
			Fields: []Field{
				{Name: "limit", Prompt: "limit", Type: FieldInt},
			},
		},
		{
			Group:        "job",
			Action:       "logs",
			Method:       "GET",
			PathTemplate: "/api/v1/jobs/:id/logs",
			Query:        []string{"after_seq"},
			Fields: []Field{
				{Name: "id", Aliases: []string{"job_id"}, Prompt: "job id", Type: FieldString, Required: true},
				{Name: "after_seq", Aliases: []string{"after"}, Prompt: "after seq", Type: FieldInt},
			},
		},
		{
			Group:        "analysis",
			Action:       "get",
			Method:       "GET",
			PathTemplate: "/api/v1/solutions/:id/analysis",
			Fields: []Field{
				{Name: "id", Aliases: []string{"solution_id"}, Prompt: "solution id", Type: FieldString, Required: true},
			},
		},
		{
			Group:        "report",
			Action:       "generate",
			Method:       "POST",
			PathTemplate: "/api/v1/reports/generate",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "test_id", Aliases: []string{"test"}, Prompt: "test id", Type: FieldString},
				{Name: "all", Prompt: "all tests (true|false)", Type: FieldBool},
			},
		},
		{
			Group:        "report",
			Action:       "comparative",
			Method:       "GET",
			PathTemplate: "/api/v1/tests/:id/report",
			Fields: []Field{
				{Name: "id", Aliases: []string{"test_id", "test"}, Prompt: "test id", Type: FieldString, Required: true},
			},
		},
		{
			Group:        "report",
			Action:       "individual",
			Method:       "GET",
			PathTemplate: "/api/v1/tests/:id/candidates/:candidate_id/report",
			Fields: []Field{
				{Name: "id", Aliases: []string{"test_id", "test"}, Prompt: "test id", Type: FieldString, Required: true},
				{Name: "candidate_id", Aliases: []string{"candidate"}, Prompt: "candidate id", Type: FieldString, Required: true},
			},
		},
		{
			Group:        "ranking",
			Action:       "get",
			Method:       "GET",
			PathTemplate: "/api/v1/tests/:id/rankings",
			Fields: []Field{
				{Name: "id", Aliases: []string{"test_id", "test"}, Prompt: "test id", Type: FieldString, Required: true},
			},
		},
	}

	registry := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		registry[cmd.Group+" "+cmd.Action] = cmd
	}
	return registry
}

// BuildRequest turns a command plus params into a concrete request spec.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)

	path, err := buildPath(cmd, params)
	if err != nil {
		return RequestSpec{}, err
	}

	body, err := buildBody(cmd, params)
	if err != nil {
		return RequestSpec{}, err
	}

	return RequestSpec{
		Method: cmd.Method,
		Path:   path,
		Body:   body,
	}, nil
}

func buildPath(cmd Command, params Params) (string, error) {
	path := cmd.PathTemplate
	for _, key := range []string{"id", "candidate_id"} {
		placeholder := ":" + key
		if !strings.Contains(path, placeholder) {
			continue
		}
		value := strings.TrimSpace(params.Get(key))
		if value == "" {
			return "", fmt.Errorf("missing required param: %s", key)
		}
		path = strings.ReplaceAll(path, placeholder, url.PathEscape(value))
	}

	query := url.Values{}
	for _, name := range cmd.Query {
		value := strings.TrimSpace(params.Get(name))
		if value == "" {
			continue
		}
		if fieldType(cmd, name) == FieldInt {
			if _, err := ParseInt(value); err != nil {
				return "", fmt.Errorf("invalid %s: %w", name, err)
			}
		}
		query.Set(name, value)
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return path, nil
}

func fieldType(cmd Command, name string) FieldType {
	for _, field := range cmd.Fields {
		if field.Name == name {
			return field.Type
		}
	}
	return FieldString
}

func buildBody(cmd Command, params Params) ([]byte, error) {
	payload, err := buildPayload(cmd, params)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload failed: %w", err)
	}
	return body, nil
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	switch cmd.Group {
	case "auth":
		return map[string]string{
			"username": params.Get("username"),
			"password": params.Get("password"),
		}, nil
	case "assessment", "solution":
		return parseJSONOrFile(params, "body_json", "body_file")
	case "job":
		if cmd.Action != "create" {
			return nil, nil
		}
		payload := map[string]interface{}{
			"scope": params.Get("scope"),
		}
		if target := strings.TrimSpace(params.Get("target_id")); target != "" {
			payload["target_id"] = target
		}
		return payload, nil
	case "report":
		if cmd.Action != "generate" {
			return nil, nil
		}
		if raw := strings.TrimSpace(params.Get("all")); raw != "" {
			all, err := ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid all: %w", err)
			}
			if all {
				return map[string]interface{}{"all": true}, nil
			}
		}
		testID := strings.TrimSpace(params.Get("test_id"))
		if testID == "" {
			return nil, fmt.Errorf("test_id or all=true is required")
		}
		return map[string]interface{}{"test_id": testID}, nil
	}
	return nil, nil
}

// parseJSONOrFile resolves a JSON document param. The _file_ sentinel or an
// empty json param falls back to the companion file param.
func parseJSONOrFile(params Params, jsonKey, fileKey string) (json.RawMessage, error) {
	raw := strings.TrimSpace(params.Get(jsonKey))
	if raw == "" || raw == "_file_" {
		path := strings.TrimSpace(params.Get(fileKey))
		if path == "" {
			return nil, fmt.Errorf("missing required param: %s or %s", jsonKey, fileKey)
		}
		content, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		raw = strings.TrimSpace(content)
	}
	return ParseJSON(raw)
}
