package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// placeholderRe matches ${VAR} and ${VAR:default} inside string values.
var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\}`)

// Load reads the YAML file at path, expands ${VAR:default} placeholders
// against the process environment, decodes the result into Settings, and
// applies defaults. Placeholder expansion happens before decoding so a
// placeholder can stand in for numbers and booleans as well as strings.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	expanded := expandPlaceholders(raw, os.Getenv)

	normalised, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("re-encode expanded config: %w", err)
	}

	var settings Settings
	if err := yaml.Unmarshal(normalised, &settings); err != nil {
		return nil, fmt.Errorf("decode config file %q: %w", path, err)
	}

	settings.applyDefaults()
	return &settings, nil
}

// FromEnv builds Settings purely from environment variables. Used by the
// --env-only flag and when no config file is given. Unset variables fall
// back to the documented defaults, so construction cannot fail.
func FromEnv() *Settings {
	settings := &Settings{
		AWS: AWS{
			Profile:       os.Getenv("AWS_PROFILE"),
			Region:        os.Getenv("AWS_DEFAULT_REGION"),
			AssumeRoleARN: os.Getenv("AWS_ASSUME_ROLE_ARN"),
			ExternalID:    os.Getenv("AWS_EXTERNAL_ID"),
		},
		Kubernetes: Kubernetes{
			KubeconfigPath: os.Getenv("KUBECONFIG"),
			ContextName:    os.Getenv("KUBERNETES_CONTEXT"),
		},
		Validation: Validation{
			Timeout:            envInt("VALIDATION_TIMEOUT", 300),
			MaxParallelWorkers: envInt("MAX_PARALLEL_WORKERS", 5),
			StrictSecurityMode: envBool("STRICT_SECURITY_MODE", true),
			Debug:              envBool("DEBUG", false),
			ParallelChecks:     true,
		},
		Report: Report{
			OutputDir: envString("REPORT_DIR", "reports"),
			Format:    envString("REPORT_FORMAT", "markdown"),
		},
		Logging: Logging{
			Level: envString("LOG_LEVEL", "INFO"),
		},
	}

	settings.applyDefaults()
	return settings
}

// applyDefaults fills zero values with the documented defaults.
func (s *Settings) applyDefaults() {
	if s.AWS.SessionDuration == 0 {
		s.AWS.SessionDuration = 3600
	}
	if s.Kubernetes.Timeout == 0 {
		s.Kubernetes.Timeout = 30
	}
	if s.Validation.Timeout == 0 {
		s.Validation.Timeout = 300
	}
	if s.Validation.RetryAttempts == 0 {
		s.Validation.RetryAttempts = 3
	}
	if s.Validation.RetryDelay == 0 {
		s.Validation.RetryDelay = 5
	}
	if s.Validation.MaxParallelWorkers == 0 {
		s.Validation.MaxParallelWorkers = 5
	}
	if s.Report.OutputDir == "" {
		s.Report.OutputDir = "reports"
	}
	if s.Report.Format == "" {
		s.Report.Format = "markdown"
	}
	if s.Logging.Level == "" {
		s.Logging.Level = "INFO"
	}
}

// expandPlaceholders walks the decoded YAML value and substitutes
// ${VAR:default} placeholders in every string it finds. Maps and sequences
// are expanded recursively; other scalar types pass through unchanged.
//
// A placeholder whose variable is unset and has no default expands to the
// empty string, matching shell parameter expansion.
func expandPlaceholders(value any, getenv func(string) string) any {
	switch v := value.(type) {
	case string:
		return placeholderRe.ReplaceAllStringFunc(v, func(match string) string {
			groups := placeholderRe.FindStringSubmatch(match)
			name, fallback := groups[1], groups[2]
			if env := getenv(name); env != "" {
				return env
			}
			return fallback
		})
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			out[key] = expandPlaceholders(child, getenv)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = expandPlaceholders(child, getenv)
		}
		return out
	default:
		return value
	}
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(name string, fallback bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
