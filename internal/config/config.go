package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Transport names accepted by --transport.
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
)

// ValidTransports lists the supported MCP transports.
var ValidTransports = []string{TransportStdio, TransportSSE, TransportStreamableHTTP}

// ValidLogLevels lists the accepted log_level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// validKinds mirrors the item kinds a classification rule may name.
var validKinds = []string{"Folder", "MultiBranchProject", "FreeStyleProject", "Job", "UnknownItem"}

// JenkinsConfig is the default Jenkins connection. Per-session x-jenkins-*
// headers override it on HTTP transports.
type JenkinsConfig struct {
	URL              string `yaml:"url"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	Timeout          int    `yaml:"timeout"`           // seconds
	VerifySSL        bool   `yaml:"verify_ssl"`        // verify TLS certificates
	SessionSingleton bool   `yaml:"session_singleton"` // reuse one client per session
}

// ServerConfig controls the MCP transport.
type ServerConfig struct {
	Transport string `yaml:"transport"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
}

// ClassificationRule maps a _class suffix to an item kind.
type ClassificationRule struct {
	Suffix string `yaml:"suffix"`
	Kind   string `yaml:"kind"`
}

// Config holds all configuration (defaults, config file, environment, flags).
type Config struct {
	Jenkins               JenkinsConfig        `yaml:"jenkins"`
	Server                ServerConfig         `yaml:"server"`
	ReadOnly              bool                 `yaml:"read_only"`
	ToolRegex             string               `yaml:"tool_regex"`
	LogLevel              string               `yaml:"log_level"`
	FolderDepthPerRequest int                  `yaml:"folder_depth_per_request"`
	Classification        []ClassificationRule `yaml:"classification"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Jenkins: JenkinsConfig{
			Timeout:          5,
			VerifySSL:        true,
			SessionSingleton: true,
		},
		Server: ServerConfig{
			Transport: TransportStdio,
			Host:      "0.0.0.0",
			Port:      9887,
		},
		LogLevel:              "info",
		FolderDepthPerRequest: 10,
	}
}

// Addr returns the host:port the HTTP transports listen on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SlogLevel converts LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	if err := c.LoadReader(f); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	return nil
}

// LoadReader overlays YAML from r onto c. Unknown keys are rejected.
func (c *Config) LoadReader(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

// Environment variables read by ApplyEnv.
const (
	EnvURL              = "jenkins_url"
	EnvUsername         = "jenkins_username"
	EnvPassword         = "jenkins_password"
	EnvTimeout          = "jenkins_timeout"
	EnvVerifySSL        = "jenkins_verify_ssl"
	EnvSessionSingleton = "jenkins_session_singleton"
)

// ApplyEnv overlays the jenkins_* environment variables read through
// lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.Jenkins.URL = v
	}
	if v, ok := lookup(EnvUsername); ok && v != "" {
		c.Jenkins.Username = v
	}
	if v, ok := lookup(EnvPassword); ok && v != "" {
		c.Jenkins.Password = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %q is not an integer", EnvTimeout, v))
		} else {
			c.Jenkins.Timeout = n
		}
	}
	for name, dst := range map[string]*bool{
		EnvVerifySSL:        &c.Jenkins.VerifySSL,
		EnvSessionSingleton: &c.Jenkins.SessionSingleton,
	} {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %q is not a boolean", name, v))
			continue
		}
		*dst = b
	}
	return errors.Join(errs...)
}

// Flags holds the raw command-line values before they are merged.
type Flags struct {
	ConfigFile string

	url, username, password string
	timeout                 int
	verifySSL, noVerifySSL  bool
	singleton, noSingleton  bool
	readOnly                bool
	toolRegex               string
	transport, host         string
	port                    int
	logLevel                string
}

// BindFlags registers every command-line flag on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	d := Default()
	f := &Flags{}
	fs.StringVar(&f.ConfigFile, "config", "", "Path to config file (YAML)")
	fs.StringVar(&f.url, "jenkins-url", "", "Jenkins URL")
	fs.StringVar(&f.username, "jenkins-username", "", "Jenkins username")
	fs.StringVar(&f.password, "jenkins-password", "", "Jenkins password or API token")
	fs.IntVar(&f.timeout, "jenkins-timeout", d.Jenkins.Timeout, "Jenkins request timeout in seconds")
	fs.BoolVar(&f.verifySSL, "jenkins-verify-ssl", d.Jenkins.VerifySSL, "Verify Jenkins TLS certificates")
	fs.BoolVar(&f.noVerifySSL, "no-jenkins-verify-ssl", false, "Skip Jenkins TLS certificate verification")
	fs.BoolVar(&f.singleton, "jenkins-session-singleton", d.Jenkins.SessionSingleton, "Reuse one Jenkins client per MCP session")
	fs.BoolVar(&f.noSingleton, "no-jenkins-session-singleton", false, "Create a Jenkins client for every tool call")
	fs.BoolVar(&f.readOnly, "read-only", false, "Only register tools that do not modify Jenkins")
	fs.StringVar(&f.toolRegex, "tool-regex", "", "Deprecated: has no effect")
	fs.StringVar(&f.transport, "transport", d.Server.Transport, "MCP transport: stdio, sse or streamable-http")
	fs.StringVar(&f.host, "host", d.Server.Host, "Listen host for HTTP transports")
	fs.IntVar(&f.port, "port", d.Server.Port, "Listen port for HTTP transports")
	fs.StringVar(&f.logLevel, "log-level", d.LogLevel, "Log level: debug, info, warn or error")
	return f
}

// ApplyFlags copies the flags the user set explicitly onto c.
func (c *Config) ApplyFlags(fs *pflag.FlagSet, f *Flags) {
	set := func(name string) bool { return fs.Changed(name) }
	if set("jenkins-url") {
		c.Jenkins.URL = f.url
	}
	if set("jenkins-username") {
		c.Jenkins.Username = f.username
	}
	if set("jenkins-password") {
		c.Jenkins.Password = f.password
	}
	if set("jenkins-timeout") {
		c.Jenkins.Timeout = f.timeout
	}
	if set("jenkins-verify-ssl") {
		c.Jenkins.VerifySSL = f.verifySSL
	}
	if set("no-jenkins-verify-ssl") && f.noVerifySSL {
		c.Jenkins.VerifySSL = false
	}
	if set("jenkins-session-singleton") {
		c.Jenkins.SessionSingleton = f.singleton
	}
	if set("no-jenkins-session-singleton") && f.noSingleton {
		c.Jenkins.SessionSingleton = false
	}
	if set("read-only") {
		c.ReadOnly = f.readOnly
	}
	if set("tool-regex") {
		c.ToolRegex = f.toolRegex
	}
	if set("transport") {
		c.Server.Transport = f.transport
	}
	if set("host") {
		c.Server.Host = f.host
	}
	if set("port") {
		c.Server.Port = f.port
	}
	if set("log-level") {
		c.LogLevel = f.logLevel
	}
}

// Validate checks that c contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(ValidTransports, c.Server.Transport) {
		errs = append(errs, fmt.Errorf("server.transport %q is invalid; valid values: %s",
			c.Server.Transport, strings.Join(ValidTransports, ", ")))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range [1, 65535]", c.Server.Port))
	}
	if c.Jenkins.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("jenkins.timeout %d must be positive", c.Jenkins.Timeout))
	}
	if c.Jenkins.URL != "" {
		u, err := url.Parse(c.Jenkins.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("jenkins.url %q must be an absolute http(s) URL", c.Jenkins.URL))
		}
	}
	if !slices.Contains(ValidLogLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: %s",
			c.LogLevel, strings.Join(ValidLogLevels, ", ")))
	}
	if c.FolderDepthPerRequest < 1 {
		errs = append(errs, fmt.Errorf("folder_depth_per_request %d must be at least 1", c.FolderDepthPerRequest))
	}
	for i, r := range c.Classification {
		prefix := fmt.Sprintf("classification[%d]", i)
		if r.Suffix == "" {
			errs = append(errs, fmt.Errorf("%s.suffix is required", prefix))
		}
		if !slices.Contains(validKinds, r.Kind) {
			errs = append(errs, fmt.Errorf("%s.kind %q is invalid; valid values: %s",
				prefix, r.Kind, strings.Join(validKinds, ", ")))
		}
	}

	if c.ToolRegex != "" {
		slog.Warn("--tool-regex is deprecated and has no effect", "value", c.ToolRegex)
	}
	return errors.Join(errs...)
}
