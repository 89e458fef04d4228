package builder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ConfigFilename is looked up in the project directory
const ConfigFilename = "Cobble.toml"

// defaultProfiles are used when the config does not define the requested profile,
// keyed by toolchain flavor
var defaultProfiles = map[string]map[string]ProfileSection{
	"msvc": {
		"debug":   {Cflags: []string{"/MDd", "/Od", "/Zi"}},
		"release": {Cflags: []string{"/MD", "/O2"}},
	},
	"gnu": {
		"debug":   {Cflags: []string{"-O0", "-g"}},
		"release": {Cflags: []string{"-O2"}},
	},
}

type Config struct {
	Project   ProjectSection            `toml:"project"`
	Toolchain ToolchainSection          `toml:"toolchain"`
	Flags     FlagsSection              `toml:"flags"`
	Sources   SourcesSection            `toml:"sources"`
	Profile   map[string]ProfileSection `toml:"profile"`
	Fetch     map[string]string         `toml:"fetch"`
}

// Profiles lists the profiles defined in the config file, sorted
func (c Config) Profiles() []string {
	return slices.Sorted(maps.Keys(c.Profile))
}

// ProjectSection defines the [project] section
type ProjectSection struct {
	Name string `toml:"name"`
	// Prepare is an expression run before compiling; it must evaluate to true
	Prepare string `toml:"prepare"`
}

// ToolchainSection defines the [toolchain] section
type ToolchainSection struct {
	Flavor   string `toml:"flavor"`
	Compiler string `toml:"compiler"`
	Linker   string `toml:"linker"`
}

// FlagsSection defines the [flags] section
type FlagsSection struct {
	Standard []string `toml:"standard"`
	Encoding []string `toml:"encoding"`
	Include  []string `toml:"include"`
	LibDirs  []string `toml:"libdirs"`
	Libs     []string `toml:"libs"`
	Link     []string `toml:"link"`
}

// SourcesSection defines the [sources] section
type SourcesSection struct {
	Library     []string `toml:"library"`
	Application []string `toml:"application"`
}

// ProfileSection defines the [profile.*] sections
type ProfileSection struct {
	Cflags []string `toml:"cflags"`
}

// profileFlags returns the debug/optimization flags of a profile, falling
// back to the flavor's built-in profiles
func (c Config) profileFlags(profile, flavor string) ([]string, error) {
	if prof, ok := c.Profile[profile]; ok {
		return prof.Cflags, nil
	}
	if prof, ok := defaultProfiles[flavor][profile]; ok {
		return prof.Cflags, nil
	}
	known := c.Profiles()
	for name := range defaultProfiles[flavor] {
		if !slices.Contains(known, name) {
			known = append(known, name)
		}
	}
	slices.Sort(known)
	return nil, fmt.Errorf("unknown profile %q, known profiles: %s", profile, strings.Join(known, ", "))
}

// merge merges src into dst. dst must be a pointer to a struct or a map of
// the same type as src. Slices are appended, maps are merged key by key
// (struct values present on both sides field by field), booleans are or'ed
// and other non-zero values replace the destination.
func merge(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Pointer {
		return fmt.Errorf("dst must be a pointer")
	}
	dstElem := dstVal.Elem()
	srcVal := reflect.ValueOf(src)
	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}
	if dstElem.Type() != srcVal.Type() {
		return fmt.Errorf("dst and src must be of the same type")
	}

	switch srcVal.Kind() {
	case reflect.Struct:
		mergeFields(dstElem, srcVal)
	case reflect.Map:
		mergeValue(dstElem, srcVal)
	default:
		return fmt.Errorf("cannot merge values of kind %s", srcVal.Kind())
	}
	return nil
}

func mergeFields(dst, src reflect.Value) {
	for i := range src.NumField() {
		if dstField := dst.Field(i); dstField.CanSet() {
			mergeValue(dstField, src.Field(i))
		}
	}
}

func mergeValue(dst, src reflect.Value) {
	switch dst.Kind() {
	case reflect.Slice:
		if !src.IsNil() {
			dst.Set(reflect.AppendSlice(dst, src))
		}
	case reflect.Map:
		if !src.IsNil() {
			if dst.IsNil() {
				dst.Set(reflect.MakeMap(dst.Type()))
			}
			for _, key := range src.MapKeys() {
				srcItem, dstItem := src.MapIndex(key), dst.MapIndex(key)
				if !dstItem.IsValid() || srcItem.Kind() != reflect.Struct {
					dst.SetMapIndex(key, srcItem)
					continue
				}
				// map elements are not addressable, merge into a copy
				merged := reflect.New(dstItem.Type()).Elem()
				merged.Set(dstItem)
				mergeFields(merged, srcItem)
				dst.SetMapIndex(key, merged)
			}
		}
	case reflect.Bool:
		dst.SetBool(dst.Bool() || src.Bool())
	default:
		if !src.IsZero() {
			dst.Set(src)
		}
	}
}

func mustMarshal(v any) string {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// unmarshalSection is a helper to parse sections without conditional logic
func unmarshalSection(rawCfg map[string]any, name string, dst any) error {
	if data, ok := rawCfg[name]; ok {
		if err := toml.Unmarshal([]byte(mustMarshal(data)), dst); err != nil {
			return fmt.Errorf("failed to parse [%s] section: %w", name, err)
		}
	}
	return nil
}

// unmarshalConditionalSection parses a section whose sub-tables may be keyed
// by an expression; sub-tables whose expression is true are merged into the base
func unmarshalConditionalSection[T any](rawCfg map[string]any, name string, dst *T, env ConfigEnv) error {
	sectionData, ok := rawCfg[name]
	if !ok {
		return nil
	}

	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid [%s] section format: expected a table", name)
	}

	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range sectionMap {
		if subMap, ok := val.(map[string]any); ok {
			if _, err := expr.Compile(key, expr.Env(env), expr.AsBool()); err == nil {
				conditionalFields[key] = subMap
				continue
			}
		}
		baseFields[key] = val
	}

	if len(baseFields) > 0 {
		if err := toml.Unmarshal([]byte(mustMarshal(baseFields)), dst); err != nil {
			return fmt.Errorf("failed to parse base [%s] section: %w", name, err)
		}
	}

	// evaluate in a stable order so that merged slices are deterministic
	for _, expression := range slices.Sorted(maps.Keys(conditionalFields)) {
		matched, err := evalBool(expression, env)
		if err != nil {
			return fmt.Errorf("failed to evaluate [%s.%q]: %w", name, expression, err)
		}
		if !matched {
			continue
		}

		var condSection T
		if err := toml.Unmarshal([]byte(mustMarshal(conditionalFields[expression])), &condSection); err != nil {
			return fmt.Errorf("failed to parse conditional section [%s.%q]: %w", name, expression, err)
		}
		if err := merge(dst, condSection); err != nil {
			return fmt.Errorf("failed to merge conditional section [%s.%q]: %w", name, expression, err)
		}
	}

	return nil
}

func evalBool(expression string, env ConfigEnv) (bool, error) {
	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, err
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env ConfigEnv) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var sb strings.Builder
	lastIndex := 0

	for _, m := range matches {
		sb.WriteString(s[lastIndex:m[0]])

		expression := strings.TrimSpace(s[m[2]:m[3]])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}
		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		fmt.Fprintf(&sb, "%v", result)
		lastIndex = m[1]
	}

	sb.WriteString(s[lastIndex:])
	return sb.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates
// expressions in string values. The prepare script is left for RunPrepare.
func processExpressions(data any, env ConfigEnv) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			if key == "prepare" {
				continue
			}
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

func ParseConfig(rdr io.Reader, env ConfigEnv) (*Config, error) {
	var rawConfig map[string]any
	dec := toml.NewDecoder(rdr)
	if err := dec.Decode(&rawConfig); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}
	if rawConfig == nil {
		rawConfig = map[string]any{}
	}

	processedConfig, err := processExpressions(rawConfig, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in config: %w", err)
	}
	rawConfig = processedConfig.(map[string]any)

	cfg := new(Config)
	if err := unmarshalSection(rawConfig, "project", &cfg.Project); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "toolchain", &cfg.Toolchain, env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "flags", &cfg.Flags, env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "sources", &cfg.Sources, env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "profile", &cfg.Profile, env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "fetch", &cfg.Fetch, env); err != nil {
		return nil, err
	}

	if cfg.Project.Name == "" {
		return nil, errors.New("[project] name is required")
	}

	return cfg, nil
}

// ParseConfigFromFile parses a config file from a filepath
func ParseConfigFromFile(path string, env ConfigEnv) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := ParseConfig(bufio.NewReader(f), env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

//
// expr-lang helpers
//

// RunPrepare evaluates the [project] prepare expression, if any
func (c Config) RunPrepare(env ConfigEnv) error {
	if c.Project.Prepare == "" {
		return nil
	}

	ok, err := evalBool(c.Project.Prepare, env)
	if err != nil {
		return fmt.Errorf("prepare script of %q: %w", c.Project.Name, err)
	}
	if !ok {
		return fmt.Errorf("prepare script of %q returned false\n%s", c.Project.Name, c.Project.Prepare)
	}
	return nil
}

// ConfigEnv is the environment visible to expressions in the config file
type ConfigEnv struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Profile    string            `expr:"profile"`
	Environ    map[string]string `expr:"environ"`
	basedir    string
}

func NewConfigEnv(basedir, profile string) ConfigEnv {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			environ[k] = v
		}
	}

	return ConfigEnv{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Profile:    profile,
		Environ:    environ,
		basedir:    basedir,
	}
}

func (env ConfigEnv) resolve(path string) (string, error) {
	fullPath := filepath.Join(env.basedir, path)
	rel, err := filepath.Rel(env.basedir, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside of project directory %q", path, env.basedir)
	}
	return fullPath, nil
}

// Patch applies a diff-match-patch text patch to a file in the project. It
// reports whether any hunk applied; applying an already-applied patch is a no-op.
func (env ConfigEnv) Patch(path, patchText string) (bool, error) {
	fullPath, err := env.resolve(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return false, err
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		return false, err
	}
	patchedText, results := dmp.PatchApply(patches, string(data))
	if !slices.Contains(results, true) || patchedText == string(data) {
		return false, nil
	}

	if err := os.WriteFile(fullPath, []byte(patchedText), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func (env ConfigEnv) ReadFile(path string) (string, error) {
	fullPath, err := env.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
