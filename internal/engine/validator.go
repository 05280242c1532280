// Package engine orchestrates the validation categories against one
// environment: it builds the AWS and Kubernetes clients, fans the category
// checkers out (optionally in parallel), and isolates every category failure
// so a broken API surface never loses the rest of the report.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssdk "github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/rs/zerolog"
	k8sclient "k8s.io/client-go/kubernetes"

	"github.com/opsverify/eks-validator/internal/checkers"
	"github.com/opsverify/eks-validator/internal/config"
	"github.com/opsverify/eks-validator/internal/models"
	awsp "github.com/opsverify/eks-validator/internal/providers/aws"
	"github.com/opsverify/eks-validator/internal/providers/kubernetes"
)

// categoryOrder fixes the category sequence in reports regardless of
// execution order.
var categoryOrder = []string{
	"infrastructure",
	"networking",
	"storage",
	"addons",
	"monitoring",
	"applications",
}

type categoryRun struct {
	name string
	run  func(ctx context.Context) models.Node
}

// Validator runs all validation categories for one environment.
type Validator struct {
	settings *config.Settings
	env      config.Environment
	clients  *awsp.ClientSet
	kube     k8sclient.Interface
	runners  []categoryRun
}

// New builds a Validator for the named environment: it resolves the AWS
// session (per-environment profile wins over the global one), constructs the
// service clients, and attempts a Kubernetes clientset. Kubernetes failures
// are logged and tolerated; the checkers degrade per category.
func New(ctx context.Context, settings *config.Settings, envName string) (*Validator, error) {
	env, err := settings.Environment(envName)
	if err != nil {
		return nil, err
	}

	profile := env.AWSProfile
	if profile == "" {
		profile = settings.AWS.Profile
	}
	region := env.Region
	if region == "" {
		region = settings.AWS.Region
	}

	duration := time.Duration(settings.AWS.SessionDuration) * time.Second
	cfg, err := awsp.LoadConfig(ctx, awsp.SessionOptions{
		Profile:          profile,
		Region:           region,
		AssumeRoleARN:    settings.AWS.AssumeRoleARN,
		ExternalID:       settings.AWS.ExternalID,
		SessionName:      awsp.SessionName(envName, time.Now()),
		Duration:         duration,
		RetryMaxAttempts: settings.Validation.RetryAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("load aws config for environment %q: %w", envName, err)
	}

	log := zerolog.Ctx(ctx)
	clients := awsp.NewClientSet(cfg)
	if accountID, err := awsp.ResolveAccountID(ctx, clients.STS); err != nil {
		log.Warn().Err(err).Msg("could not resolve aws account identity")
	} else {
		log.Debug().Str("account", accountID).Str("region", region).Msg("aws identity resolved")
	}

	provider := kubernetes.NewDefaultKubeClientProvider(settings.Kubernetes.KubeconfigPath,
		time.Duration(settings.Kubernetes.Timeout)*time.Second)
	kube, info, err := provider.ClientsetForContext(settings.Kubernetes.ContextName)
	if err != nil {
		log.Warn().Err(err).Msg("kubernetes client unavailable, cluster-side checks will degrade")
		kube = nil
	} else {
		log.Debug().Str("context", info.ContextName).Str("server", info.Server).
			Msg("kubernetes client ready")
	}

	return NewWithClients(settings, env, clients, kube), nil
}

// NewWithClients wires a Validator from pre-built clients. Tests use this to
// inject mocks and fake clientsets.
func NewWithClients(settings *config.Settings, env config.Environment, clients *awsp.ClientSet, kube k8sclient.Interface) *Validator {
	v := &Validator{
		settings: settings,
		env:      env,
		clients:  clients,
		kube:     kube,
	}

	infra := &checkers.InfrastructureChecker{EKS: clients.EKS, EC2: clients.EC2, IAM: clients.IAM, Env: env}
	network := &checkers.NetworkingChecker{EC2: clients.EC2, ELBV2: clients.ELBV2, Env: env}
	storage := &checkers.StorageChecker{Kube: kube, Env: env}
	addons := &checkers.AddonsChecker{EKS: clients.EKS, Env: env}
	monitoring := &checkers.MonitoringChecker{
		EKS:        clients.EKS,
		CloudWatch: clients.CloudWatch,
		Logs:       clients.CloudWatchLogs,
		CloudTrail: clients.CloudTrail,
		Kube:       kube,
		Env:        env,
	}
	apps := &checkers.ApplicationsChecker{Kube: kube, RDS: clients.RDS, Env: env}

	v.runners = []categoryRun{
		{"infrastructure", infra.CheckAll},
		{"networking", network.CheckAll},
		{"storage", storage.CheckAll},
		{"addons", addons.CheckAll},
		{"monitoring", monitoring.CheckAll},
		{"applications", apps.CheckAll},
	}
	return v
}

// Environment returns the environment this validator targets.
func (v *Validator) Environment() config.Environment {
	return v.env
}

// ValidateAll runs every category and returns the full result tree keyed by
// category name. Parallel execution is bounded by MaxParallelWorkers with a
// per-category join timeout; sequential execution honors the same isolation.
func (v *Validator) ValidateAll(ctx context.Context) models.Branch {
	if v.settings.Validation.ParallelChecks {
		return v.validateParallel(ctx)
	}
	return v.validateSequential(ctx)
}

func (v *Validator) validateSequential(ctx context.Context) models.Branch {
	results := models.Branch{}
	for _, runner := range v.runners {
		results[runner.name] = v.safeRun(ctx, runner)
	}
	return results
}

func (v *Validator) validateParallel(ctx context.Context) models.Branch {
	maxWorkers := v.settings.Validation.MaxParallelWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	timeout := time.Duration(v.settings.Validation.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	sem := make(chan struct{}, maxWorkers)
	type slot struct {
		name string
		ch   chan models.Node
	}
	slots := make([]slot, 0, len(v.runners))
	for _, runner := range v.runners {
		ch := make(chan models.Node, 1)
		slots = append(slots, slot{runner.name, ch})
		go func(r categoryRun, ch chan models.Node) {
			sem <- struct{}{}
			defer func() { <-sem }()
			ch <- v.safeRun(ctx, r)
		}(runner, ch)
	}

	results := models.Branch{}
	for _, s := range slots {
		select {
		case node := <-s.ch:
			results[s.name] = node
		case <-time.After(timeout):
			zerolog.Ctx(ctx).Error().Str("category", s.name).Dur("timeout", timeout).
				Msg("category check timed out")
			results[s.name] = models.Branch{
				"error": models.NewLeaf(models.StatusFail,
					fmt.Sprintf("%s check timed out after %s", s.name, timeout)),
			}
		}
	}
	return results
}

// safeRun executes one category, converting panics into an error branch so a
// single checker bug cannot abort the run.
func (v *Validator) safeRun(ctx context.Context, runner categoryRun) (node models.Node) {
	defer func() {
		if rec := recover(); rec != nil {
			zerolog.Ctx(ctx).Error().Str("category", runner.name).
				Interface("panic", rec).Msg("category check panicked")
			node = models.Branch{
				"error": models.NewLeaf(models.StatusFail,
					fmt.Sprintf("%s check failed: %v", runner.name, rec)),
			}
		}
	}()
	return runner.run(ctx)
}

// ValidateCategory runs a single named category.
func (v *Validator) ValidateCategory(ctx context.Context, name string) (models.Node, error) {
	for _, runner := range v.runners {
		if runner.name == name {
			return v.safeRun(ctx, runner), nil
		}
	}
	return nil, fmt.Errorf("unknown validation category %q", name)
}

// CategoryNames returns the category names in report order.
func CategoryNames() []string {
	names := make([]string, len(categoryOrder))
	copy(names, categoryOrder)
	return names
}

// QuickClusterCheck returns a one-line cluster status summary.
func (v *Validator) QuickClusterCheck(ctx context.Context) string {
	out, err := v.clients.EKS.DescribeCluster(ctx, &awssdk.DescribeClusterInput{
		Name: aws.String(v.env.ClusterName),
	})
	if err != nil {
		return fmt.Sprintf("Failed to check cluster: %v", err)
	}
	return fmt.Sprintf("Cluster is %s", out.Cluster.Status)
}

// QuickNodeCheck returns a one-line node readiness summary.
func (v *Validator) QuickNodeCheck(ctx context.Context) string {
	if v.kube == nil {
		return "Kubernetes client not available"
	}
	readiness, err := kubernetes.CountReadyNodes(ctx, v.kube)
	if err != nil {
		return fmt.Sprintf("Failed to check nodes: %v", err)
	}
	return fmt.Sprintf("%d/%d nodes ready", readiness.Ready, readiness.Total)
}
