package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Load reads the config file at path, validates it against the embedded
// schema and applies defaults. A missing file yields the default config
// unless required is set.
func Load(path string, required bool, log *slog.Logger) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		log.Warn("config file not found, using defaults", "path", path)
		cfg := DefaultConfig()
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg, err := Parse(path, data)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates and decodes a YAML config document. name is only used in
// error messages. Problems inside a single channel entry do not fail the
// parse; they are kept on that channel and reported by its Validate.
func Parse(name string, data []byte) (*Config, error) {
	channelErrs, err := ValidateSchema(name, data)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	for i, err := range channelErrs {
		if i < len(cfg.Channels) {
			cfg.Channels[i].invalid = err
		}
	}

	cfg.ApplyDefaults()
	for i := range cfg.Channels {
		if cfg.Channels[i].Name == "" {
			cfg.Channels[i].Name = fmt.Sprintf("channels[%d]", i)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateSchema checks a YAML document against the #Config definition of
// the embedded CUE schema. Unknown keys and out-of-range values are rejected.
// Top-level problems are returned as err; each channel entry is checked
// against #Channel separately and its problems are returned by index.
func ValidateSchema(name string, data []byte) (channelErrs map[int]error, err error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return nil, fmt.Errorf("cannot parse YAML config: %w", err)
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("cannot build YAML config: %w", err)
	}

	final := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := final.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	channels := value.LookupPath(cue.ParsePath("channels"))
	if !channels.Exists() {
		return nil, nil
	}
	iter, err := channels.List()
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: channels: %w", err)
	}
	channelDef := schema.LookupPath(cue.ParsePath("#Channel"))
	for i := 0; iter.Next(); i++ {
		entry := channelDef.Unify(iter.Value())
		if err := entry.Validate(cue.Concrete(true)); err != nil {
			if channelErrs == nil {
				channelErrs = make(map[int]error)
			}
			channelErrs[i] = fmt.Errorf("schema validation failed: %w", err)
		}
	}
	return channelErrs, nil
}

// Credentials is the authentication material of one channel. Which fields
// are needed depends on the channel type.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
}

// LoadCredentials reads a credentials file. JSON is accepted as well since
// it is a subset of YAML.
func LoadCredentials(path string) (Credentials, error) {
	var creds Credentials

	data, err := os.ReadFile(path)
	if err != nil {
		return creds, fmt.Errorf("could not read credentials from %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&creds); err != nil {
		if errors.Is(err, io.EOF) {
			return creds, fmt.Errorf("credentials file %s is empty", path)
		}
		return creds, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	return creds, nil
}
