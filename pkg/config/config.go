package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	DefaultImage       = "homeassistant/{{ .arch }}-builder"
	DefaultArch        = "amd64"
	DefaultRepository  = "https://github.com/asadpanda/insteon-mqtt"
	DefaultBranch      = "master"
	DefaultCredentials = "~/.docker"
	DefaultSocket      = "/var/run/docker.sock"
	DefaultEngine      = EngineCLI
)

const (
	EngineCLI = "cli"
	EngineAPI = "api"
)

type Config struct {
	Image       string   `yaml:"image"`
	Arch        string   `yaml:"arch"`
	Repository  string   `yaml:"repository"`
	Branch      string   `yaml:"branch"`
	All         bool     `yaml:"all"`
	Privileged  bool     `yaml:"privileged"`
	Remove      bool     `yaml:"remove"`
	Credentials string   `yaml:"credentials"`
	Socket      string   `yaml:"socket"`
	Engine      string   `yaml:"engine"`
	Args        []string `yaml:"args"`
}

// Default reproduces the builder call this tool wraps.
func Default() *Config {
	return &Config{
		Image:       DefaultImage,
		Arch:        DefaultArch,
		Repository:  DefaultRepository,
		Branch:      DefaultBranch,
		All:         true,
		Privileged:  true,
		Remove:      true,
		Credentials: DefaultCredentials,
		Socket:      DefaultSocket,
		Engine:      DefaultEngine,
	}
}

// Load reads a YAML file on top of the defaults. Keys missing from the file keep their default.
func Load(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		log.Error().Err(err).Str("file", filename).Msg("Error loading config")
		return nil, err
	}
	defer file.Close()

	cfg, err := Decode(file)
	if err != nil {
		log.Error().Err(err).Msg("Decoding YAML " + filename + " failed! Check syntax and try again")
		return nil, err
	}
	return cfg, nil
}

func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := CheckEngine(cfg.Engine); err != nil {
		return nil, err
	}
	return cfg, nil
}

func CheckEngine(name string) error {
	if name != EngineCLI && name != EngineAPI {
		return fmt.Errorf("unknown engine %q, use %q or %q", name, EngineCLI, EngineAPI)
	}
	return nil
}
