package checkers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sclient "k8s.io/client-go/kubernetes"

	"github.com/opsverify/eks-validator/internal/config"
	"github.com/opsverify/eks-validator/internal/models"
	awsp "github.com/opsverify/eks-validator/internal/providers/aws"
)

// ApplicationsChecker validates workload health, service exposure, ingress
// TLS coverage, and backing database availability.
type ApplicationsChecker struct {
	Kube k8sclient.Interface
	RDS  awsp.RDSClient
	Env  config.Environment
}

// CheckAll runs every application check and returns the category tree.
func (c *ApplicationsChecker) CheckAll(ctx context.Context) models.Node {
	return models.Branch{
		"deployments":           c.checkDeployments(ctx),
		"services":              c.checkServices(ctx),
		"ingresses":             c.checkIngresses(ctx),
		"database_connectivity": c.checkDatabaseConnectivity(ctx),
		"application_health":    c.checkApplicationHealth(ctx),
	}
}

func (c *ApplicationsChecker) checkDeployments(ctx context.Context) models.Node {
	if c.Kube == nil {
		return models.NewLeaf(models.StatusSkip, "Kubernetes client not available")
	}

	deployments, err := c.Kube.AppsV1().Deployments(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return models.FailLeaf("Failed to check deployments", err)
	}

	total := len(deployments.Items)
	unhealthy := 0
	var inventory []map[string]any
	for _, deploy := range deployments.Items {
		replicas := int32(0)
		if deploy.Spec.Replicas != nil {
			replicas = *deploy.Spec.Replicas
		}
		ready := deploy.Status.ReadyReplicas
		available := deploy.Status.AvailableReplicas

		health := "HEALTHY"
		switch {
		case replicas == 0 || ready < replicas || available < replicas:
			health = "DEGRADED"
			unhealthy++
		}

		inventory = append(inventory, map[string]any{
			"name":      deploy.Name,
			"namespace": deploy.Namespace,
			"replicas":  replicas,
			"ready":     ready,
			"available": available,
			"health":    health,
		})
	}

	details := map[string]any{
		"total_deployments": total,
		"unhealthy_count":   unhealthy,
		"deployments":       inventory,
	}

	rec := models.Recommendation{
		Type:     "deployment_health",
		Message:  fmt.Sprintf("Fix %d unhealthy deployments", unhealthy),
		Severity: models.SeverityHigh,
	}

	switch {
	case total == 0:
		return models.NewLeaf(models.StatusInfo, "No deployments found in cluster")
	case unhealthy == 0:
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("All %d deployments are healthy", total)).WithDetails(details)
	case unhealthy*2 < total:
		return models.NewLeaf(models.StatusWarn,
			fmt.Sprintf("%d/%d deployments are unhealthy", unhealthy, total)).
			WithDetails(details).WithRecommendations(rec)
	default:
		return models.NewLeaf(models.StatusFail,
			fmt.Sprintf("Majority of deployments unhealthy: %d/%d", unhealthy, total)).
			WithDetails(details).WithRecommendations(rec)
	}
}

func (c *ApplicationsChecker) checkServices(ctx context.Context) models.Node {
	if c.Kube == nil {
		return models.NewLeaf(models.StatusSkip, "Kubernetes client not available")
	}

	services, err := c.Kube.CoreV1().Services(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return models.FailLeaf("Failed to check services", err)
	}
	if len(services.Items) == 0 {
		return models.NewLeaf(models.StatusInfo, "No services found in cluster")
	}

	counts := map[corev1.ServiceType]int{}
	for _, svc := range services.Items {
		counts[svc.Spec.Type]++
	}

	details := map[string]any{
		"total_services": len(services.Items),
		"load_balancer":  counts[corev1.ServiceTypeLoadBalancer],
		"cluster_ip":     counts[corev1.ServiceTypeClusterIP],
		"node_port":      counts[corev1.ServiceTypeNodePort],
	}

	return models.NewLeaf(models.StatusPass,
		fmt.Sprintf("Found %d services (%d LoadBalancer, %d ClusterIP, %d NodePort)",
			len(services.Items),
			counts[corev1.ServiceTypeLoadBalancer],
			counts[corev1.ServiceTypeClusterIP],
			counts[corev1.ServiceTypeNodePort])).
		WithDetails(details)
}

func (c *ApplicationsChecker) checkIngresses(ctx context.Context) models.Node {
	if c.Kube == nil {
		return models.NewLeaf(models.StatusSkip, "Kubernetes client not available")
	}

	ingresses, err := c.Kube.NetworkingV1().Ingresses(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return models.FailLeaf("Failed to check ingresses", err)
	}

	total := len(ingresses.Items)
	if total == 0 {
		return models.NewLeaf(models.StatusInfo, "No ingresses found in cluster")
	}

	withTLS := 0
	var inventory []map[string]any
	for _, ing := range ingresses.Items {
		hasTLS := len(ing.Spec.TLS) > 0
		if hasTLS {
			withTLS++
		}
		var hosts []string
		for _, rule := range ing.Spec.Rules {
			if rule.Host != "" {
				hosts = append(hosts, rule.Host)
			}
		}
		inventory = append(inventory, map[string]any{
			"name":      ing.Name,
			"namespace": ing.Namespace,
			"tls":       hasTLS,
			"hosts":     hosts,
		})
	}

	details := map[string]any{
		"total_ingresses": total,
		"with_tls":        withTLS,
		"ingresses":       inventory,
	}

	rec := models.Recommendation{
		Type:     "ingress_tls",
		Message:  "Enable TLS for all ingresses",
		Severity: models.SeverityHigh,
	}

	switch {
	case withTLS == total:
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("All %d ingresses have TLS enabled", total)).WithDetails(details)
	case withTLS > 0:
		return models.NewLeaf(models.StatusWarn,
			fmt.Sprintf("%d/%d ingresses have TLS enabled", withTLS, total)).
			WithDetails(details).WithRecommendations(rec)
	default:
		return models.NewLeaf(models.StatusFail, "No ingresses have TLS enabled").
			WithDetails(details).WithRecommendations(rec)
	}
}

func (c *ApplicationsChecker) checkDatabaseConnectivity(ctx context.Context) models.Node {
	out, err := c.RDS.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{})
	if err != nil {
		return models.FailLeaf("Failed to check database connectivity", err)
	}

	total := len(out.DBInstances)
	if total == 0 {
		return models.NewLeaf(models.StatusInfo, "No RDS instances found in region")
	}

	available := 0
	var inventory []map[string]any
	for _, db := range out.DBInstances {
		status := aws.ToString(db.DBInstanceStatus)
		if status == "available" {
			available++
		}
		var securityGroups []string
		for _, sg := range db.VpcSecurityGroups {
			securityGroups = append(securityGroups, aws.ToString(sg.VpcSecurityGroupId))
		}
		entry := map[string]any{
			"identifier":      aws.ToString(db.DBInstanceIdentifier),
			"engine":          aws.ToString(db.Engine),
			"status":          status,
			"security_groups": securityGroups,
		}
		if db.Endpoint != nil {
			entry["endpoint"] = aws.ToString(db.Endpoint.Address)
			entry["port"] = aws.ToInt32(db.Endpoint.Port)
		}
		inventory = append(inventory, entry)
	}

	details := map[string]any{
		"total_instances":     total,
		"available_instances": available,
		"instances":           inventory,
	}

	if available == total {
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("All %d database instances are available", total)).WithDetails(details)
	}
	return models.NewLeaf(models.StatusWarn,
		fmt.Sprintf("%d/%d database instances are available", available, total)).
		WithDetails(details).
		WithRecommendations(models.Recommendation{
			Type:     "database_availability",
			Message:  "Investigate unavailable database instances",
			Severity: models.SeverityHigh,
		})
}

func (c *ApplicationsChecker) checkApplicationHealth(ctx context.Context) models.Node {
	if c.Kube == nil {
		return models.NewLeaf(models.StatusSkip, "Kubernetes client not available")
	}

	services, err := c.Kube.CoreV1().Services(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return models.FailLeaf("Failed to check application health", err)
	}
	if len(services.Items) == 0 {
		return models.NewLeaf(models.StatusInfo, "No services found in cluster")
	}

	configured := 0
	var inventory []map[string]any
	for _, svc := range services.Items {
		path := svc.Annotations["health-check-path"]
		port := svc.Annotations["health-check-port"]
		hasHealthCheck := path != "" && port != ""
		if hasHealthCheck {
			configured++
		}
		inventory = append(inventory, map[string]any{
			"name":              svc.Name,
			"namespace":         svc.Namespace,
			"has_health_check":  hasHealthCheck,
			"health_check_path": path,
			"health_check_port": port,
		})
	}

	total := len(services.Items)
	coverage := float64(configured) / float64(total) * 100

	details := map[string]any{
		"total_services":      total,
		"configured_services": configured,
		"coverage_percent":    coverage,
		"services":            inventory,
	}

	rec := models.Recommendation{
		Type:     "health_checks",
		Message:  "Configure health checks for all services",
		Severity: models.SeverityMedium,
	}

	switch {
	case configured == 0:
		return models.NewLeaf(models.StatusFail, "No services have health checks configured").
			WithDetails(details).WithRecommendations(rec)
	case coverage >= 80:
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("Good health check coverage: %.1f%% of services", coverage)).
			WithDetails(details)
	case coverage >= 50:
		return models.NewLeaf(models.StatusWarn,
			fmt.Sprintf("Moderate health check coverage: %.1f%% of services", coverage)).
			WithDetails(details).WithRecommendations(rec)
	default:
		return models.NewLeaf(models.StatusFail,
			fmt.Sprintf("Poor health check coverage: %.1f%% of services", coverage)).
			WithDetails(details).WithRecommendations(rec)
	}
}
