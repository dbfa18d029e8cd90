package repl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/cli/command"
	httpclient "github.com/AmrMustafa282/skillify-analysis/internal/cli/http"
	"github.com/AmrMustafa282/skillify-analysis/internal/cli/state"
	pkgerrors "github.com/AmrMustafa282/skillify-analysis/pkg/errors"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const defaultPrompt = "eval> "

// Session holds REPL state around a readline instance.
type Session struct {
	client     *httpclient.Client
	commands   map[string]command.Command
	tokenState *state.TokenState
	statePath  string
	prettyJSON bool
	rl         *readline.Instance
}

func New(client *httpclient.Client, commands map[string]command.Command, tokenState *state.TokenState, statePath, historyPath string, prettyJSON bool) (*Session, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            defaultPrompt,
		HistoryFile:       historyPath,
		AutoComplete:      buildCompleter(commands),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, fmt.Errorf("init readline failed: %w", err)
	}
	return &Session{
		client:     client,
		commands:   commands,
		tokenState: tokenState,
		statePath:  statePath,
		prettyJSON: prettyJSON,
		rl:         rl,
	}, nil
}

func (s *Session) Close() error {
	return s.rl.Close()
}

func buildCompleter(commands map[string]command.Command) *readline.PrefixCompleter {
	actions := map[string][]string{}
	for _, cmd := range commands {
		actions[cmd.Group] = append(actions[cmd.Group], cmd.Action)
	}
	groups := make([]string, 0, len(actions))
	for group := range actions {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	items := make([]readline.PrefixCompleterInterface, 0, len(groups)+4)
	for _, group := range groups {
		sort.Strings(actions[group])
		sub := make([]readline.PrefixCompleterInterface, 0, len(actions[group]))
		for _, action := range actions[group] {
			sub = append(sub, readline.PcItem(action))
		}
		items = append(items, readline.PcItem(group, sub...))
	}
	items = append(items,
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("set", readline.PcItem("base"), readline.PcItem("timeout"), readline.PcItem("token")),
		readline.PcItem("show", readline.PcItem("token"), readline.PcItem("config")),
		readline.PcItem("clear", readline.PcItem("token")),
	)
	return readline.NewPrefixCompleter(items...)
}

func (s *Session) Run(ctx context.Context) {
	for {
		line, err := s.rl.Readline()
		switch {
		case err == readline.ErrInterrupt:
			if len(line) == 0 {
				s.printLine("bye")
				return
			}
			continue
		case err == io.EOF:
			s.printLine("bye")
			return
		case err != nil:
			s.printLine("read input failed: %v", err)
			return
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case line == "exit" || line == "quit":
			s.printLine("bye")
			return
		case s.runSystemCommand(line):
		default:
			if err := s.runCommand(ctx, line); err != nil {
				s.printLine("error: %v", err)
			}
		}
	}
}

// runSystemCommand reports whether line was one of the built-in session
// commands. Unrecognized lines fall through to the API command path.
func (s *Session) runSystemCommand(line string) bool {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch verb {
	case "help":
		if rest == "" {
			s.printHelp()
			return true
		}
	case "set":
		s.runSet(rest)
		return true
	case "show":
		s.runShow(rest)
		return true
	case "clear":
		if rest == "token" {
			s.clearToken()
			return true
		}
	}
	return false
}

func (s *Session) runSet(args string) {
	name, value, _ := strings.Cut(args, " ")
	value = strings.TrimSpace(value)
	switch name {
	case "base":
		s.setBase(value)
	case "timeout":
		s.setTimeout(value)
	case "token":
		s.setToken(value)
	default:
		s.printLine("usage: set base|token|timeout")
	}
}

func (s *Session) setBase(value string) {
	if value == "" {
		s.printLine("usage: set base http://127.0.0.1:8090")
		return
	}
	s.client.SetBaseURL(value)
	s.printLine("base set to %s", value)
}

func (s *Session) setTimeout(value string) {
	if value == "" {
		s.printLine("usage: set timeout 10s")
		return
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		s.printLine("invalid duration: %v", err)
		return
	}
	s.client.SetTimeout(dur)
	s.printLine("timeout set to %s", dur)
}

func (s *Session) setToken(value string) {
	if value == "" {
		s.printLine("usage: set token <access_token>")
		return
	}
	s.tokenState.AccessToken = value
	if err := s.persistToken(); err != nil {
		s.printLine("save token failed: %v", err)
		return
	}
	s.printLine("token updated")
}

func (s *Session) runShow(args string) {
	switch args {
	case "token":
		s.showToken()
	case "config":
		s.printLine("base: %s", s.client.BaseURL())
		s.printLine("timeout: %s", s.client.Timeout())
		s.printLine("tokenStatePath: %s", s.statePath)
	default:
		s.printLine("usage: show token|config")
	}
}

func (s *Session) showToken() {
	token := s.tokenState.AccessToken
	if token == "" {
		s.printLine("token: <empty>")
		return
	}
	suffix := ""
	if s.tokenState.Expired(time.Now()) {
		suffix = " (expired)"
	}
	s.printLine("token: %s%s", maskToken(token), suffix)
}

// maskToken keeps enough of the token to recognize it without echoing the
// whole credential.
func maskToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:6] + "..." + token[len(token)-4:]
}

func (s *Session) clearToken() {
	*s.tokenState = state.TokenState{}
	if err := state.Clear(s.statePath); err != nil {
		s.printLine("clear token failed: %v", err)
		return
	}
	s.printLine("token cleared")
}

func (s *Session) runCommand(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) < 2 {
		return fmt.Errorf("invalid command, use: <group> <action> key=value ...")
	}
	cmd, ok := s.commands[tokens[0]+" "+tokens[1]]
	if !ok {
		return fmt.Errorf("unknown command: %s %s", tokens[0], tokens[1])
	}
	params, err := parseParams(tokens[2:])
	if err != nil {
		return err
	}
	params.Canonicalize(cmd.Fields)

	s.applyParamShortcuts(cmd, params)
	if err := s.promptMissing(cmd, params); err != nil {
		return err
	}
	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	if cmd.RequiresAuth && s.tokenState.Expired(time.Now()) {
		s.printLine("note: stored token is expired, run auth token first")
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Headers, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	s.updateTokenFromResponse(cmd, resp.Body)
	return nil
}

func parseParams(tokens []string) (command.Params, error) {
	params := command.Params{}
	for _, token := range tokens {
		key, value, found := strings.Cut(token, "=")
		if !found {
			return nil, fmt.Errorf("invalid param: %s", token)
		}
		params.Set(key, value)
	}
	return params, nil
}

// applyParamShortcuts lets a bare file param satisfy the json requirement
// for document-upload commands.
func (s *Session) applyParamShortcuts(cmd command.Command, params command.Params) {
	if cmd.Action != "create" {
		return
	}
	if cmd.Group == "assessment" || cmd.Group == "solution" {
		if params.Get("body_file") != "" && params.Get("body_json") == "" {
			params.Set("body_json", "_file_")
		}
	}
}

func (s *Session) promptMissing(cmd command.Command, params command.Params) error {
	for _, field := range cmd.Fields {
		if !field.Required {
			continue
		}
		if params.Get(field.Name) != "" {
			continue
		}
		value, err := s.promptValue(field)
		if err != nil {
			return err
		}
		params.Set(field.Name, value)
	}
	return nil
}

func (s *Session) promptValue(field command.Field) (string, error) {
	if field.Secret {
		data, err := s.rl.ReadPassword(field.Prompt + ": ")
		if err != nil {
			return "", fmt.Errorf("read input failed: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	s.rl.SetPrompt(field.Prompt + ": ")
	defer s.rl.SetPrompt(defaultPrompt)
	line, err := s.rl.Readline()
	if err != nil {
		return "", fmt.Errorf("read input failed: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s)", resp.StatusCode, resp.Duration)
	if len(resp.Body) == 0 {
		return
	}
	body := string(resp.Body)
	if s.prettyJSON {
		if pretty, ok := indentJSON(resp.Body); ok {
			body = pretty
		}
	}
	s.printLine("%s", body)
}

// indentJSON reports ok only for valid JSON, so non-JSON bodies print as-is.
func indentJSON(body []byte) (string, bool) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return "", false
	}
	return buf.String(), true
}

func (s *Session) updateTokenFromResponse(cmd command.Command, body []byte) {
	if cmd.Group != "auth" || cmd.Action != "token" {
		return
	}
	var resp struct {
		Code int `json:"code"`
		Data struct {
			AccessToken string    `json:"access_token"`
			ExpiresAt   time.Time `json:"expires_at"`
			Role        string    `json:"role"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return
	}
	if resp.Code != int(pkgerrors.Success) || resp.Data.AccessToken == "" {
		return
	}
	s.tokenState.AccessToken = resp.Data.AccessToken
	s.tokenState.ExpiresAt = resp.Data.ExpiresAt
	s.tokenState.Role = resp.Data.Role
	if err := s.persistToken(); err != nil {
		s.printLine("save token failed: %v", err)
	}
}

func (s *Session) persistToken() error {
	return state.Save(s.statePath, *s.tokenState)
}

func (s *Session) printHelp() {
	s.printLine("usage: <group> <action> key=value ...")
	s.printLine("system: help | exit | set base|timeout|token | show token|config | clear token")
	s.printLine("examples:")
	s.printLine("  auth token username=admin")
	s.printLine("  assessment create body_file=./assessment.json")
	s.printLine("  job create scope=solution target_id=sol-1")
	s.printLine("  job logs id=<job_id> after_seq=0")
	s.printLine("  report generate test_id=t-1")
	s.printLine("  ranking get test_id=t-1")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.rl.Stdout(), format+"\n", args...)
}
