package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mtr002/bansu-harness/internal/endpoint"
	"github.com/mtr002/bansu-harness/internal/jobs"
)

const (
	DefaultSmiles      = "c1ccccc1"
	DefaultTimeout     = 10 * time.Minute
	DefaultHTTPTimeout = 30 * time.Second
)

// Config holds everything one harness run needs
type Config struct {
	URL             string
	Smiles          string
	MmcifPath       string
	CcdCode         string
	Args            []string
	Timeout         time.Duration
	HTTPTimeout     time.Duration
	DigestAlgorithm string
	OutputPath      string
	MetricsFile     string
	NatsURL         string
}

// envBindings maps configuration keys to the environment variables that
// set them.
var envBindings = map[string]string{
	"url":          "BANSU_URL",
	"smiles":       "BANSU_TEST_SMILES",
	"mmcif":        "BANSU_TEST_MMCIF",
	"ccd":          "BANSU_TEST_CCD",
	"acedrg_args":  "BANSU_TEST_ACEDRG_ARGS",
	"timeout":      "BANSU_TIMEOUT",
	"http_timeout": "BANSU_HTTP_TIMEOUT",
	"digest":       "BANSU_DIGEST",
	"output":       "BANSU_OUTPUT",
	"metrics_file": "BANSU_METRICS_FILE",
	"nats_url":     "NATS_URL",
}

// BindEnv registers the environment variables and defaults on v
func BindEnv(v *viper.Viper) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	v.SetDefault("url", endpoint.DefaultURL)
	v.SetDefault("timeout", DefaultTimeout.String())
	v.SetDefault("http_timeout", DefaultHTTPTimeout.String())
	v.SetDefault("digest", "sha256")
	return nil
}

// Load builds a Config from v. Flags bound to v take precedence over the
// environment, which takes precedence over a config file.
func Load(v *viper.Viper) (*Config, error) {
	args, err := ParseArgs(v.GetString("acedrg_args"))
	if err != nil {
		return nil, err
	}
	timeout, err := ParseDuration(v.GetString("timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid timeout: %w", err)
	}
	httpTimeout, err := ParseDuration(v.GetString("http_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP timeout: %w", err)
	}

	cfg := &Config{
		URL:             v.GetString("url"),
		Smiles:          v.GetString("smiles"),
		MmcifPath:       v.GetString("mmcif"),
		CcdCode:         v.GetString("ccd"),
		Args:            args,
		Timeout:         timeout,
		HTTPTimeout:     httpTimeout,
		DigestAlgorithm: v.GetString("digest"),
		OutputPath:      v.GetString("output"),
		MetricsFile:     v.GetString("metrics_file"),
		NatsURL:         v.GetString("nats_url"),
	}
	if _, err := cfg.Endpoint(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Endpoint resolves the configured target URL
func (c *Config) Endpoint() (endpoint.Endpoint, error) {
	return endpoint.Resolve(c.URL)
}

// Request builds the job request. With no structure input configured the
// request falls back to DefaultSmiles. The exactly-one-input rule is left to
// the runner.
func (c *Config) Request() (jobs.Request, error) {
	req := jobs.Request{
		Smiles:          c.Smiles,
		CcdCode:         c.CcdCode,
		CommandlineArgs: c.Args,
	}
	if c.MmcifPath != "" {
		encoded, err := EncodeDocument(c.MmcifPath)
		if err != nil {
			return jobs.Request{}, err
		}
		req.InputMmcifBase64 = encoded
	}
	if req.InputKind() == "none" {
		req.Smiles = DefaultSmiles
	}
	return req, nil
}

// EncodeDocument reads a structure document and base64-encodes it
func EncodeDocument(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read structure document: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("structure document %s is empty", path)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ParseArgs parses the tool arguments. A value starting with '[' must be a
// JSON array of strings; anything else is a comma separated list.
func ParseArgs(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, nil
	}

	if strings.HasPrefix(raw, "[") {
		var args []string
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return nil, fmt.Errorf("acedrg arguments are not a JSON array of strings: %w", err)
		}
		if args == nil {
			args = []string{}
		}
		return args, nil
	}

	parts := strings.Split(raw, ",")
	args := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			args = append(args, p)
		}
	}
	return args, nil
}

// ParseDuration accepts Go duration strings and bare integers, which are
// taken as seconds. Zero disables the limit.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %q", raw)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}
