package checkers

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sclient "k8s.io/client-go/kubernetes"

	"github.com/opsverify/eks-validator/internal/config"
	"github.com/opsverify/eks-validator/internal/models"
	awsp "github.com/opsverify/eks-validator/internal/providers/aws"
)

// clusterMetrics are the CloudWatch metrics expected under AWS/EKS.
var clusterMetrics = []string{
	"node_cpu_utilization",
	"node_memory_utilization",
	"pod_cpu_utilization",
	"pod_memory_utilization",
}

// prometheusComponents are the deployments that make up a standard
// kube-prometheus installation.
var prometheusComponents = []string{
	"prometheus-server",
	"prometheus-kube-state-metrics",
	"prometheus-node-exporter",
}

// fluentBitNamespaces are probed in order for the fluent-bit daemonset.
var fluentBitNamespaces = []string{"amazon-cloudwatch", "kube-system", "logging", "monitoring"}

// lokiCoreComponents identify a Loki simple-scalable installation in the
// logging namespace.
var lokiCoreComponents = []string{"loki-backend", "loki-gateway", "loki-read", "loki-write"}

// MonitoringChecker validates logging and metrics coverage: CloudWatch,
// CloudTrail, Container Insights, plus in-cluster Prometheus, Fluent Bit,
// and Loki stacks.
type MonitoringChecker struct {
	EKS        awsp.EKSClient
	CloudWatch awsp.CloudWatchClient
	Logs       awsp.CloudWatchLogsClient
	CloudTrail awsp.CloudTrailClient
	Kube       k8sclient.Interface
	Env        config.Environment
}

// CheckAll runs every monitoring check and appends an overall verdict. The
// cluster is considered to have valid logging when either CloudWatch control
// plane logging or a Loki stack passes.
func (c *MonitoringChecker) CheckAll(ctx context.Context) models.Node {
	cloudwatchLogs := c.checkCloudWatchLogs(ctx)
	loki := c.checkLokiStack(ctx)

	others := map[string]models.Node{
		"cloudwatch_metrics": c.checkCloudWatchMetrics(ctx),
		"cloudtrail":         c.checkCloudTrail(ctx),
		"prometheus":         c.checkPrometheus(ctx),
		"fluent_bit":         c.checkFluentBit(ctx),
		"container_insights": c.checkContainerInsights(ctx),
	}

	results := models.Branch{
		"cloudwatch_logs": cloudwatchLogs,
		"loki":            loki,
	}
	for key, node := range others {
		results[key] = node
	}
	results["overall"] = c.overallVerdict(cloudwatchLogs, loki, others)
	return results
}

// overallVerdict applies the logging-solution rule first, then critical
// failures, then warnings.
func (c *MonitoringChecker) overallVerdict(cloudwatchLogs, loki models.Node, others map[string]models.Node) models.Node {
	loggingOK := leafStatus(cloudwatchLogs) == models.StatusPass ||
		leafStatus(loki) == models.StatusPass

	failures := 0
	warnings := 0
	for _, node := range others {
		switch leafStatus(node) {
		case models.StatusFail:
			failures++
		case models.StatusWarn:
			warnings++
		}
	}
	for _, node := range []models.Node{cloudwatchLogs, loki} {
		if leafStatus(node) == models.StatusWarn {
			warnings++
		}
	}

	switch {
	case !loggingOK:
		return models.NewLeaf(models.StatusFail,
			"No valid logging solution found (neither CloudWatch nor Loki is properly configured)")
	case failures > 0:
		return models.NewLeaf(models.StatusFail,
			fmt.Sprintf("Critical monitoring components failed (%d failures)", failures))
	case warnings > 0:
		return models.NewLeaf(models.StatusWarn,
			fmt.Sprintf("Monitoring operational but with warnings (%d issues)", warnings))
	default:
		return models.NewLeaf(models.StatusPass, "All monitoring components are properly configured")
	}
}

func leafStatus(node models.Node) models.Status {
	if leaf, ok := node.(models.Leaf); ok {
		return leaf.Check.Status
	}
	return models.Aggregate(node)
}

func (c *MonitoringChecker) checkCloudWatchLogs(ctx context.Context) models.Node {
	out, err := c.EKS.DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: aws.String(c.Env.ClusterName),
	})
	if err != nil {
		return models.FailLeaf("Failed to check CloudWatch logs", err)
	}

	rec := models.Recommendation{
		Type:     "cloudwatch_logging",
		Message:  "Enable CloudWatch logging for the EKS cluster",
		Severity: models.SeverityHigh,
	}

	logging := out.Cluster.Logging
	if logging == nil || len(logging.ClusterLogging) == 0 {
		return models.NewLeaf(models.StatusFail, "CloudWatch logging not configured for cluster").
			WithRecommendations(rec)
	}

	var enabled, disabled []string
	for _, setup := range logging.ClusterLogging {
		for _, logType := range setup.Types {
			if aws.ToBool(setup.Enabled) {
				enabled = append(enabled, string(logType))
			} else {
				disabled = append(disabled, string(logType))
			}
		}
	}

	details := map[string]any{
		"enabled_types":    enabled,
		"disabled_types":   disabled,
		"log_group_prefix": fmt.Sprintf("/aws/eks/%s/cluster", c.Env.ClusterName),
	}

	if len(enabled) > 0 {
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("CloudWatch logging enabled for: %v", enabled)).WithDetails(details)
	}
	return models.NewLeaf(models.StatusFail, "No CloudWatch logging types enabled").
		WithDetails(details).WithRecommendations(rec)
}

func (c *MonitoringChecker) checkCloudWatchMetrics(ctx context.Context) models.Node {
	var found, missing []string
	for _, metricName := range clusterMetrics {
		out, err := c.CloudWatch.ListMetrics(ctx, &cloudwatch.ListMetricsInput{
			Namespace:  aws.String("AWS/EKS"),
			MetricName: aws.String(metricName),
			Dimensions: []cwtypes.DimensionFilter{{
				Name:  aws.String("ClusterName"),
				Value: aws.String(c.Env.ClusterName),
			}},
		})
		if err != nil || len(out.Metrics) == 0 {
			missing = append(missing, metricName)
			continue
		}
		found = append(found, metricName)
	}

	details := map[string]any{
		"found_metrics":   found,
		"missing_metrics": missing,
	}

	if len(found) > 0 {
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("Found %d/%d CloudWatch metrics", len(found), len(clusterMetrics))).
			WithDetails(details)
	}
	return models.NewLeaf(models.StatusWarn, "No CloudWatch metrics found for cluster").
		WithDetails(details)
}

func (c *MonitoringChecker) checkCloudTrail(ctx context.Context) models.Node {
	rec := models.Recommendation{
		Type:     "cloudtrail",
		Message:  "Enable CloudTrail for audit logging",
		Severity: models.SeverityHigh,
	}

	out, err := c.CloudTrail.ListTrails(ctx, &cloudtrail.ListTrailsInput{})
	if err != nil {
		return models.FailLeaf("Failed to check CloudTrail", err)
	}
	if len(out.Trails) == 0 {
		return models.NewLeaf(models.StatusFail, "No CloudTrail trails found").
			WithRecommendations(rec)
	}

	var activeTrails []string
	for _, trail := range out.Trails {
		name := aws.ToString(trail.Name)
		if name == "" {
			arn := aws.ToString(trail.TrailARN)
			parts := strings.Split(arn, "/")
			name = parts[len(parts)-1]
		}

		statusOut, err := c.CloudTrail.GetTrailStatus(ctx, &cloudtrail.GetTrailStatusInput{
			Name: aws.String(name),
		})
		if err != nil {
			continue
		}
		if aws.ToBool(statusOut.IsLogging) {
			activeTrails = append(activeTrails, name)
		}
	}

	details := map[string]any{
		"total_trails":  len(out.Trails),
		"active_trails": activeTrails,
	}

	if len(activeTrails) > 0 {
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("Found %d active CloudTrail trails", len(activeTrails))).
			WithDetails(details)
	}
	return models.NewLeaf(models.StatusFail, "No active CloudTrail trails found").
		WithDetails(details).WithRecommendations(rec)
}

func (c *MonitoringChecker) checkPrometheus(ctx context.Context) models.Node {
	if c.Kube == nil {
		return models.NewLeaf(models.StatusSkip, "Kubernetes client not available")
	}

	var found []string
	for _, component := range prometheusComponents {
		for _, namespace := range []string{"monitoring", "default"} {
			_, err := c.Kube.AppsV1().Deployments(namespace).Get(ctx, component, metav1.GetOptions{})
			if err == nil {
				found = append(found, component)
				break
			}
			if !apierrors.IsNotFound(err) {
				break
			}
		}
	}

	details := map[string]any{"found_components": found}

	if len(found) > 0 {
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("Found %d/%d Prometheus components", len(found), len(prometheusComponents))).
			WithDetails(details)
	}
	return models.NewLeaf(models.StatusInfo,
		"Prometheus stack not detected (may be using CloudWatch Container Insights)").
		WithDetails(details).
		WithRecommendations(models.Recommendation{
			Type:     "prometheus",
			Message:  "Consider deploying Prometheus stack for detailed metrics collection",
			Severity: models.SeverityMedium,
		})
}

func (c *MonitoringChecker) checkFluentBit(ctx context.Context) models.Node {
	if c.Kube == nil {
		return models.NewLeaf(models.StatusSkip, "Kubernetes client not available")
	}

	for _, namespace := range fluentBitNamespaces {
		ds, err := c.Kube.AppsV1().DaemonSets(namespace).Get(ctx, "fluent-bit", metav1.GetOptions{})
		if err != nil {
			continue
		}
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("Fluent Bit daemonset found in %s namespace", namespace)).
			WithDetails(map[string]any{
				"namespace":    namespace,
				"desired_pods": ds.Status.DesiredNumberScheduled,
				"ready_pods":   ds.Status.NumberReady,
			})
	}
	return models.NewLeaf(models.StatusInfo,
		"Fluent Bit not found (may be using different log shipping solution)")
}

func (c *MonitoringChecker) checkContainerInsights(ctx context.Context) models.Node {
	suffixes := []string{"application", "dataplane", "host", "performance"}

	var found, missing []string
	for _, suffix := range suffixes {
		logGroup := fmt.Sprintf("/aws/containerinsights/%s/%s", c.Env.ClusterName, suffix)
		out, err := c.Logs.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
			LogGroupNamePrefix: aws.String(logGroup),
		})
		if err != nil || len(out.LogGroups) == 0 {
			missing = append(missing, logGroup)
			continue
		}
		found = append(found, logGroup)
	}

	details := map[string]any{
		"found_log_groups":   found,
		"missing_log_groups": missing,
	}

	if len(found) > 0 {
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("Container Insights enabled (%d/%d log groups found)", len(found), len(suffixes))).
			WithDetails(details)
	}
	return models.NewLeaf(models.StatusInfo, "Container Insights not enabled").
		WithDetails(details).
		WithRecommendations(models.Recommendation{
			Type:     "container_insights",
			Message:  "Enable Container Insights for detailed container metrics",
			Severity: models.SeverityMedium,
		})
}

func (c *MonitoringChecker) checkLokiStack(ctx context.Context) models.Node {
	if c.Kube == nil {
		return models.NewLeaf(models.StatusWarn,
			"Cannot verify Loki logging due to SSL/Kubernetes client issues. Manual verification recommended.")
	}

	const namespace = "logging"

	deployments, deployErr := c.Kube.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	services, svcErr := c.Kube.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
	if deployErr != nil && svcErr != nil {
		return models.NewLeaf(models.StatusWarn,
			"Cannot verify Loki logging due to SSL/Kubernetes client issues. Manual verification recommended.")
	}

	coreSeen := map[string]bool{}
	promtailFound := false
	if deployErr == nil {
		for _, deploy := range deployments.Items {
			for _, component := range lokiCoreComponents {
				if strings.Contains(deploy.Name, component) {
					coreSeen[component] = true
				}
			}
			if strings.Contains(deploy.Name, "promtail") {
				promtailFound = true
			}
		}
	}
	var foundCore []string
	for _, component := range lokiCoreComponents {
		if coreSeen[component] {
			foundCore = append(foundCore, component)
		}
	}
	// Promtail usually ships as a daemonset.
	if !promtailFound {
		daemonsets, err := c.Kube.AppsV1().DaemonSets(namespace).List(ctx, metav1.ListOptions{})
		if err == nil {
			for _, ds := range daemonsets.Items {
				if strings.Contains(ds.Name, "promtail") {
					promtailFound = true
				}
			}
		}
	}

	var lokiServices []string
	if svcErr == nil {
		for _, svc := range services.Items {
			if strings.Contains(svc.Name, "loki") || strings.Contains(svc.Name, "promtail") {
				lokiServices = append(lokiServices, svc.Name)
			}
		}
	}

	coreOK := len(foundCore) >= len(lokiCoreComponents)
	servicesOK := len(lokiServices) > 0

	details := map[string]any{
		"namespace":       namespace,
		"core_components": foundCore,
		"promtail_found":  promtailFound,
		"services":        lokiServices,
	}

	switch {
	case coreOK && promtailFound && servicesOK:
		return models.NewLeaf(models.StatusPass,
			"Loki logging stack is properly deployed and running").WithDetails(details)
	case coreOK && servicesOK:
		return models.NewLeaf(models.StatusWarn,
			"Loki core components found but Promtail collectors missing").WithDetails(details)
	case coreOK:
		return models.NewLeaf(models.StatusWarn,
			"Loki core components found but services may be missing").WithDetails(details)
	default:
		return models.NewLeaf(models.StatusFail,
			"Loki logging stack not found or incomplete").
			WithDetails(details).
			WithRecommendations(models.Recommendation{
				Type:     "loki_logging",
				Message:  "Deploy Loki logging stack for log aggregation and monitoring",
				Severity: models.SeverityHigh,
			})
	}
}
