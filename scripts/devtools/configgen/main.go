package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/service"

	"gopkg.in/yaml.v3"
)

// Profile drives config generation: each target merges a base YAML file with
// overrides, and the eval-service target additionally gets the shared auth
// block with operator passwords hashed.
type Profile struct {
	OutputDir string                   `yaml:"outputDir"`
	Auth      AuthProfile              `yaml:"auth"`
	Targets   map[string]TargetProfile `yaml:"targets"`
}

type AuthProfile struct {
	JWTSecret string            `yaml:"jwtSecret"`
	JWTIssuer string            `yaml:"jwtIssuer"`
	Operators []OperatorProfile `yaml:"operators"`
}

// OperatorProfile holds a plaintext password; it only ever lives in the dev
// profile, the generated config carries the bcrypt hash.
type OperatorProfile struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type TargetProfile struct {
	Base      string                 `yaml:"base"`
	Output    string                 `yaml:"output"`
	Overrides map[string]interface{} `yaml:"overrides"`
}

func main() {
	profilePath := flag.String("profile", "configs/dev-profile.yaml", "Path to config profile")
	outputDir := flag.String("output-dir", "", "Override output directory")
	flag.Parse()

	if err := run(*profilePath, *outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
}

func run(profilePath, outputDir string) error {
	profilePathAbs, err := filepath.Abs(profilePath)
	if err != nil {
		return fmt.Errorf("resolve profile path failed: %w", err)
	}
	profile, err := loadProfile(profilePathAbs)
	if err != nil {
		return fmt.Errorf("load profile failed: %w", err)
	}

	if outputDir != "" {
		profile.OutputDir = outputDir
	}
	if profile.OutputDir == "" {
		return errors.New("output directory is required")
	}
	profileDir := filepath.Dir(profilePathAbs)
	if !filepath.IsAbs(profile.OutputDir) {
		profile.OutputDir = filepath.Join(profileDir, profile.OutputDir)
	}
	if err := os.MkdirAll(profile.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory failed: %w", err)
	}

	// Deterministic generation order keeps reruns diffable.
	targetNames := make([]string, 0, len(profile.Targets))
	for name := range profile.Targets {
		targetNames = append(targetNames, name)
	}
	sort.Strings(targetNames)

	for _, name := range targetNames {
		if err := generateTarget(profile, profileDir, name, profile.Targets[name]); err != nil {
			return fmt.Errorf("target %q: %w", name, err)
		}
	}
	return nil
}

func generateTarget(profile *Profile, profileDir, name string, target TargetProfile) error {
	if target.Base == "" {
		return errors.New("missing base config")
	}
	if !filepath.IsAbs(target.Base) {
		target.Base = filepath.Join(profileDir, target.Base)
	}

	base, err := loadYAMLMap(target.Base)
	if err != nil {
		return err
	}
	if len(target.Overrides) > 0 {
		overrides, ok := normalize(target.Overrides).(map[string]interface{})
		if !ok {
			return errors.New("overrides are not a map")
		}
		base = mergeMaps(base, overrides)
	}
	if name == "eval-service" {
		if err := injectAuth(profile.Auth, base); err != nil {
			return err
		}
	}

	outputPath, err := resolveOutputPath(profile.OutputDir, target)
	if err != nil {
		return err
	}
	return writeYAML(outputPath, base)
}

func loadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile failed: %w", err)
	}
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile failed: %w", err)
	}
	if len(profile.Targets) == 0 {
		return nil, errors.New("profile has no targets")
	}
	return &profile, nil
}

// loadYAMLMap reads a yaml document that must be a mapping at the top level.
func loadYAMLMap(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read yaml failed: %w", err)
	}
	var value interface{}
	if err := yaml.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("parse yaml failed: %w", err)
	}
	m, ok := normalize(value).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s is not a yaml mapping", filepath.Base(path))
	}
	return m, nil
}

func writeYAML(path string, value interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir failed: %w", err)
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal yaml failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write yaml failed: %w", err)
	}
	return nil
}

func resolveOutputPath(outputDir string, target TargetProfile) (string, error) {
	output := target.Output
	if output == "" {
		output = filepath.Base(target.Base)
	}
	if output == "" {
		return "", errors.New("output path is empty")
	}
	if filepath.IsAbs(output) {
		return output, nil
	}
	return filepath.Join(outputDir, output), nil
}

// normalize rewrites yaml-decoded values so every nested map is keyed by
// string, which merging and marshaling rely on.
func normalize(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			out[k] = normalize(v)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			out[fmt.Sprintf("%v", k)] = normalize(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, item := range typed {
			out[i] = normalize(item)
		}
		return out
	default:
		return value
	}
}

// mergeMaps overlays override onto base without mutating either. Nested maps
// merge recursively; any other value type replaces the base value wholesale.
func mergeMaps(base, override map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base))
	for k, v := range base {
		merged[k] = v
	}
	for key, value := range override {
		baseChild, baseIsMap := merged[key].(map[string]interface{})
		overrideChild, overrideIsMap := value.(map[string]interface{})
		if baseIsMap && overrideIsMap {
			merged[key] = mergeMaps(baseChild, overrideChild)
			continue
		}
		merged[key] = value
	}
	return merged
}

// injectAuth writes the shared auth block into the service config, hashing
// operator passwords on the way.
func injectAuth(authProfile AuthProfile, root map[string]interface{}) error {
	if authProfile.JWTSecret == "" && authProfile.JWTIssuer == "" && len(authProfile.Operators) == 0 {
		return nil
	}
	auth, ok := root["auth"].(map[string]interface{})
	if !ok {
		auth = map[string]interface{}{}
		root["auth"] = auth
	}
	if authProfile.JWTSecret != "" {
		auth["jwtSecret"] = authProfile.JWTSecret
	}
	if authProfile.JWTIssuer != "" {
		auth["jwtIssuer"] = authProfile.JWTIssuer
	}
	if len(authProfile.Operators) == 0 {
		return nil
	}

	operators := make([]map[string]interface{}, 0, len(authProfile.Operators))
	for _, op := range authProfile.Operators {
		if op.Username == "" || op.Password == "" {
			return fmt.Errorf("operator %q needs username and password", op.Username)
		}
		hash, err := service.HashPassword(op.Password)
		if err != nil {
			return fmt.Errorf("hash password for %q failed: %w", op.Username, err)
		}
		role := op.Role
		if role == "" {
			role = "operator"
		}
		operators = append(operators, map[string]interface{}{
			"username":     op.Username,
			"passwordHash": hash,
			"role":         role,
		})
	}
	auth["operators"] = operators
	return nil
}
