// Package config loads the project settings from settings.yaml.
//
// The file is checked against an embedded CUE schema before it is decoded,
// so typos and out-of-range values are reported with their position.
// A missing file yields Default().
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/litstore/internal/backend"
	"github.com/roach88/litstore/internal/ids"
)

// FileName is the settings file in the project root.
const FileName = "settings.yaml"

//go:embed schema.cue
var schemaSource string

// Settings are the project settings.
type Settings struct {
	RecordsFile       string      `yaml:"records_file"`
	SearchDir         string      `yaml:"search_dir"`
	IDPattern         ids.Pattern `yaml:"id_pattern"`
	CuratedMasterdata bool        `yaml:"curated_masterdata"`

	// IndexPath is the curated index database. Empty disables the index.
	IndexPath string `yaml:"index_path"`

	Backend BackendSettings `yaml:"backend"`
}

// BackendSettings configure the versioned-blob backend.
type BackendSettings struct {
	Driver              backend.Driver `yaml:"driver"`
	LockMaxAttempts     int            `yaml:"lock_max_attempts"`
	LockInitialInterval Duration       `yaml:"lock_initial_interval"`
	CommandTimeout      Duration       `yaml:"command_timeout"`
	AuthorName          string         `yaml:"author_name"`
	AuthorEmail         string         `yaml:"author_email"`
}

// Duration is a time.Duration written as "250ms", "30s", ...
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the settings used when settings.yaml is absent.
func Default() Settings {
	return Settings{
		RecordsFile: "data/records.bib",
		SearchDir:   "data/search",
		IDPattern:   ids.FirstAuthorYear,
		Backend: BackendSettings{
			Driver:              backend.DriverGit,
			LockMaxAttempts:     30,
			LockInitialInterval: Duration(250 * time.Millisecond),
			CommandTimeout:      Duration(30 * time.Second),
		},
	}
}

// Error is a settings validation error.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load reads settings.yaml from the project root.
func Load(root string) (Settings, error) {
	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return Parse(path, data)
}

// Parse validates and decodes settings. Unset keys keep their defaults.
func Parse(filename string, data []byte) (Settings, error) {
	if err := validate(filename, data); err != nil {
		return Settings{}, err
	}
	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

func validate(filename string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile settings schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Settings"))

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return formatCUEError(err)
	}
	v := ctx.BuildFile(file)
	if err := v.Err(); err != nil {
		return formatCUEError(err)
	}
	return formatCUEError(def.Unify(v).Validate(cue.Concrete(true)))
}

// formatCUEError reduces a CUE error list to its first error with position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	var pos token.Pos
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		pos = positions[0]
	}
	return &Error{Message: first.Error(), Pos: pos}
}
