// Package config holds the validator settings model and its loaders.
//
// Settings come from a YAML file (with ${VAR:default} placeholder expansion)
// or, with --env-only, from environment variables. After loading, the
// settings are read-only: nothing in the engine or the checkers reads the
// process environment again.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AWS configures credentials and role assumption for every environment.
type AWS struct {
	// Profile is the shared-config profile used when an environment does not
	// set its own aws_profile.
	Profile string `yaml:"profile" json:"profile"`

	// Region is the fallback region when an environment omits one.
	Region string `yaml:"region" json:"region"`

	// AssumeRoleARN, when set, is assumed via STS before any API call.
	AssumeRoleARN string `yaml:"assume_role_arn" json:"assume_role_arn"`

	// ExternalID is passed to AssumeRole when the target role requires one.
	ExternalID string `yaml:"external_id" json:"external_id"`

	// SessionDuration is the assumed-role session lifetime in seconds.
	SessionDuration int `yaml:"session_duration" json:"session_duration"`
}

// Kubernetes configures cluster API access.
type Kubernetes struct {
	// KubeconfigPath overrides $KUBECONFIG / ~/.kube/config resolution.
	KubeconfigPath string `yaml:"kubeconfig_path" json:"kubeconfig_path"`

	// ContextName selects a kubeconfig context; empty uses the current one.
	ContextName string `yaml:"context_name" json:"context_name"`

	// Timeout is the Kubernetes API request timeout in seconds.
	Timeout int `yaml:"timeout" json:"timeout"`
}

// Validation tunes the orchestrator.
type Validation struct {
	// Timeout is the per-category join timeout in seconds.
	Timeout int `yaml:"timeout" json:"timeout"`

	// RetryAttempts is the AWS SDK max-attempts setting for retryable calls.
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`

	// RetryDelay is kept for config compatibility; the SDK retryer owns the
	// actual backoff schedule.
	RetryDelay int `yaml:"retry_delay" json:"retry_delay"`

	// ParallelChecks runs the six categories concurrently when true.
	ParallelChecks bool `yaml:"parallel_checks" json:"parallel_checks"`

	// MaxParallelWorkers bounds concurrent category runs.
	MaxParallelWorkers int `yaml:"max_parallel_workers" json:"max_parallel_workers"`

	// StrictSecurityMode is reserved for stricter rule thresholds.
	StrictSecurityMode bool `yaml:"strict_security_mode" json:"strict_security_mode"`

	// Debug enables debug logging.
	Debug bool `yaml:"debug" json:"debug"`
}

// Report configures report generation.
type Report struct {
	OutputDir         string `yaml:"output_dir" json:"output_dir"`
	IncludeTimestamps bool   `yaml:"include_timestamps" json:"include_timestamps"`
	IncludeMetadata   bool   `yaml:"include_metadata" json:"include_metadata"`
	Format            string `yaml:"format" json:"format" validate:"omitempty,oneof=markdown json html"`
}

// Logging configures the zerolog global level and destination.
type Logging struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// VPC is the nested network block of an environment.
type VPC struct {
	VPCID          string   `yaml:"vpc_id" json:"vpc_id"`
	SubnetIDs      []string `yaml:"subnet_ids" json:"subnet_ids"`
	SecurityGroups []string `yaml:"security_groups" json:"security_groups"`
	LoadBalancers  []string `yaml:"load_balancers" json:"load_balancers"`
}

// Environment describes one validation target (test, uat, prod, ...).
//
// The flat vpc_id / subnet_ids / security_groups / load_balancers fields are
// the legacy layout; the nested vpc block wins when both are present.
type Environment struct {
	Name        string `yaml:"name" json:"name"`
	Region      string `yaml:"region" json:"region" validate:"required,aws_region"`
	ClusterName string `yaml:"cluster_name" json:"cluster_name" validate:"required"`
	AWSProfile  string `yaml:"aws_profile" json:"aws_profile"`
	Description string `yaml:"description" json:"description"`

	VPC VPC `yaml:"vpc" json:"vpc"`

	// Legacy flat fields.
	VPCID          string   `yaml:"vpc_id" json:"vpc_id"`
	SubnetIDs      []string `yaml:"subnet_ids" json:"subnet_ids"`
	SecurityGroups []string `yaml:"security_groups" json:"security_groups"`
	LoadBalancers  []string `yaml:"load_balancers" json:"load_balancers"`

	NodeGroups          []string `yaml:"node_groups" json:"node_groups"`
	Databases           []string `yaml:"databases" json:"databases"`
	MonitoringEndpoints []string `yaml:"monitoring_endpoints" json:"monitoring_endpoints"`
}

// Network returns the effective network configuration, preferring the nested
// vpc block over the legacy flat fields.
func (e Environment) Network() VPC {
	out := e.VPC
	if out.VPCID == "" {
		out.VPCID = e.VPCID
	}
	if len(out.SubnetIDs) == 0 {
		out.SubnetIDs = e.SubnetIDs
	}
	if len(out.SecurityGroups) == 0 {
		out.SecurityGroups = e.SecurityGroups
	}
	if len(out.LoadBalancers) == 0 {
		out.LoadBalancers = e.LoadBalancers
	}
	return out
}

// Settings is the root configuration object.
type Settings struct {
	AWS          AWS                    `yaml:"aws" json:"aws"`
	Kubernetes   Kubernetes             `yaml:"kubernetes" json:"kubernetes"`
	Validation   Validation             `yaml:"validation" json:"validation"`
	Report       Report                 `yaml:"report" json:"report"`
	Logging      Logging                `yaml:"logging" json:"logging"`
	Environments map[string]Environment `yaml:"environments" json:"environments"`
}

// Environment returns the configuration for the named environment.
func (s *Settings) Environment(name string) (Environment, error) {
	env, ok := s.Environments[name]
	if !ok {
		return Environment{}, fmt.Errorf("environment %q not found in configuration", name)
	}
	if env.Name == "" {
		env.Name = name
	}
	return env, nil
}

// EnvironmentNames returns the configured environment names, sorted.
func (s *Settings) EnvironmentNames() []string {
	names := make([]string, 0, len(s.Environments))
	for name := range s.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newValidator builds the struct validator with the aws_region rule
// registered. AWS regions start with a known geography prefix.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("aws_region", func(fl validator.FieldLevel) bool {
		region := fl.Field().String()
		for _, prefix := range []string{"us-", "eu-", "ap-", "ca-", "sa-"} {
			if strings.HasPrefix(region, prefix) {
				return true
			}
		}
		return false
	})
	return v
}

// Validate checks the loaded settings and returns the list of issues found.
// An empty slice means the configuration is usable.
func (s *Settings) Validate() []string {
	var issues []string

	v := newValidator()
	for name, env := range s.Environments {
		if env.Name == "" {
			env.Name = name
		}
		if err := v.Struct(env); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					issues = append(issues, fmt.Sprintf(
						"environment %q: field %s failed %q validation", name, fe.Field(), fe.Tag()))
				}
				continue
			}
			issues = append(issues, fmt.Sprintf("environment %q: %v", name, err))
		}
	}

	if len(s.Environments) == 0 {
		issues = append(issues, "no environments configured")
	}

	if err := v.Struct(s.Report); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				issues = append(issues, fmt.Sprintf(
					"report: field %s failed %q validation", fe.Field(), fe.Tag()))
			}
		} else {
			issues = append(issues, fmt.Sprintf("report: %v", err))
		}
	}

	sort.Strings(issues)
	return issues
}
