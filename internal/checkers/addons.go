package checkers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"

	"github.com/opsverify/eks-validator/internal/config"
	"github.com/opsverify/eks-validator/internal/models"
	awsp "github.com/opsverify/eks-validator/internal/providers/aws"
)

// essentialAddons must be present on every cluster we validate.
var essentialAddons = []string{"coredns", "kube-proxy", "vpc-cni"}

// AddonsChecker validates EKS managed addons and their versions.
type AddonsChecker struct {
	EKS awsp.EKSClient
	Env config.Environment
}

// CheckAll runs every addon check and returns the category tree.
func (c *AddonsChecker) CheckAll(ctx context.Context) models.Node {
	return models.Branch{
		"eks_addons": c.checkEKSAddons(ctx),
		"coredns":    c.checkNamedAddon(ctx, "coredns", "CoreDNS not installed as EKS addon, checking deployment..."),
		"kube_proxy": c.checkNamedAddon(ctx, "kube-proxy", "kube-proxy not installed as EKS addon"),
		"vpc_cni":    c.checkNamedAddon(ctx, "vpc-cni", "vpc-cni not installed as EKS addon"),
		"versions":   c.checkAddonVersions(ctx),
	}
}

func (c *AddonsChecker) checkEKSAddons(ctx context.Context) models.Node {
	listOut, err := c.EKS.ListAddons(ctx, &eks.ListAddonsInput{
		ClusterName: aws.String(c.Env.ClusterName),
	})
	if err != nil {
		return models.FailLeaf("Failed to check EKS addons", err)
	}

	results := models.Branch{}
	for _, addonName := range listOut.Addons {
		out, err := c.EKS.DescribeAddon(ctx, &eks.DescribeAddonInput{
			ClusterName: aws.String(c.Env.ClusterName),
			AddonName:   aws.String(addonName),
		})
		if err != nil {
			results[addonName] = models.FailLeaf(
				fmt.Sprintf("Failed to check addon %s", addonName), err)
			continue
		}

		addon := out.Addon
		var healthIssues []string
		if addon.Health != nil {
			for _, issue := range addon.Health.Issues {
				healthIssues = append(healthIssues,
					fmt.Sprintf("%s: %s", issue.Code, aws.ToString(issue.Message)))
			}
		}

		details := map[string]any{
			"status":                   string(addon.Status),
			"version":                  aws.ToString(addon.AddonVersion),
			"health_issues":            healthIssues,
			"service_account_role_arn": aws.ToString(addon.ServiceAccountRoleArn),
			"configuration_values":     aws.ToString(addon.ConfigurationValues),
		}

		var leaf models.Leaf
		switch {
		case addon.Status == ekstypes.AddonStatusActive && len(healthIssues) > 0:
			leaf = models.NewLeaf(models.StatusWarn,
				fmt.Sprintf("Addon %s is active but has %d health issues", addonName, len(healthIssues)))
		case addon.Status == ekstypes.AddonStatusActive:
			leaf = models.NewLeaf(models.StatusPass,
				fmt.Sprintf("Addon %s is active and healthy", addonName))
		case addon.Status == ekstypes.AddonStatusCreating || addon.Status == ekstypes.AddonStatusUpdating:
			leaf = models.NewLeaf(models.StatusWarn,
				fmt.Sprintf("Addon %s is %s", addonName, strings.ToLower(string(addon.Status))))
		case addon.Status == ekstypes.AddonStatusDegraded:
			leaf = models.NewLeaf(models.StatusFail,
				fmt.Sprintf("Addon %s is degraded", addonName))
		default:
			leaf = models.NewLeaf(models.StatusFail,
				fmt.Sprintf("Addon %s status: %s", addonName, addon.Status))
		}
		results[addonName] = leaf.WithDetails(details)
	}

	if missing := missingNames(essentialAddons, listOut.Addons); len(missing) > 0 {
		results["missing_essential_addons"] = models.NewLeaf(models.StatusFail,
			fmt.Sprintf("Missing essential addons: %v", missing)).
			WithDetails(map[string]any{"missing": missing}).
			WithRecommendations(models.Recommendation{
				Type:     "missing_essential",
				Message:  fmt.Sprintf("Install missing essential addons: %s", strings.Join(missing, ", ")),
				Severity: models.SeverityHigh,
			})
	}

	return results
}

// checkNamedAddon reports on a single managed addon, with an informational
// result when the addon is self-managed rather than EKS-managed.
func (c *AddonsChecker) checkNamedAddon(ctx context.Context, addonName, notInstalledMsg string) models.Node {
	out, err := c.EKS.DescribeAddon(ctx, &eks.DescribeAddonInput{
		ClusterName: aws.String(c.Env.ClusterName),
		AddonName:   aws.String(addonName),
	})
	if awsp.IsNotFound(err) {
		return models.NewLeaf(models.StatusInfo, notInstalledMsg)
	}
	if err != nil {
		return models.FailLeaf(fmt.Sprintf("Failed to check %s addon", addonName), err)
	}

	addon := out.Addon
	version := aws.ToString(addon.AddonVersion)
	details := map[string]any{
		"status":  string(addon.Status),
		"version": version,
	}

	title := addonDisplayName(addonName)
	if addon.Status == ekstypes.AddonStatusActive {
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("%s addon is active (version %s)", title, version)).WithDetails(details)
	}
	return models.NewLeaf(models.StatusFail,
		fmt.Sprintf("%s addon status: %s", title, addon.Status)).WithDetails(details)
}

func (c *AddonsChecker) checkAddonVersions(ctx context.Context) models.Node {
	listOut, err := c.EKS.ListAddons(ctx, &eks.ListAddonsInput{
		ClusterName: aws.String(c.Env.ClusterName),
	})
	if err != nil {
		return models.FailLeaf("Failed to check addon versions", err)
	}

	// The addon version catalog is keyed by Kubernetes version, not cluster
	// name, so resolve the cluster's version first.
	clusterOut, err := c.EKS.DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: aws.String(c.Env.ClusterName),
	})
	if err != nil {
		return models.FailLeaf("Failed to resolve cluster version", err)
	}
	kubernetesVersion := aws.ToString(clusterOut.Cluster.Version)

	results := models.Branch{}
	for _, addonName := range listOut.Addons {
		results[addonName] = c.checkAddonVersion(ctx, addonName, kubernetesVersion)
	}
	return results
}

func (c *AddonsChecker) checkAddonVersion(ctx context.Context, addonName, kubernetesVersion string) models.Node {
	describeOut, err := c.EKS.DescribeAddon(ctx, &eks.DescribeAddonInput{
		ClusterName: aws.String(c.Env.ClusterName),
		AddonName:   aws.String(addonName),
	})
	if err != nil {
		return models.FailLeaf(fmt.Sprintf("Failed to check addon %s version", addonName), err)
	}
	current := aws.ToString(describeOut.Addon.AddonVersion)

	versionsOut, err := c.EKS.DescribeAddonVersions(ctx, &eks.DescribeAddonVersionsInput{
		AddonName:         aws.String(addonName),
		KubernetesVersion: aws.String(kubernetesVersion),
	})
	if err != nil {
		return models.FailLeaf(fmt.Sprintf("Failed to list addon %s versions", addonName), err)
	}

	var available []string
	for _, info := range versionsOut.Addons {
		for _, v := range info.AddonVersions {
			available = append(available, aws.ToString(v.AddonVersion))
		}
	}
	if len(available) == 0 {
		return models.NewLeaf(models.StatusInfo,
			fmt.Sprintf("Unable to determine latest version for %s", addonName)).
			WithDetails(map[string]any{"current_version": current})
	}

	sort.Strings(available)
	latest := available[len(available)-1]

	details := map[string]any{
		"current_version": current,
		"latest_version":  latest,
		"is_latest":       current == latest,
	}

	if current == latest {
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("Version %s is current", current)).WithDetails(details)
	}
	return models.NewLeaf(models.StatusWarn,
		fmt.Sprintf("Version %s is outdated (latest: %s)", current, latest)).
		WithDetails(details).
		WithRecommendations(models.Recommendation{
			Type:     "outdated_versions",
			Message:  fmt.Sprintf("Update addon %s from %s to %s", addonName, current, latest),
			Severity: models.SeverityMedium,
		})
}

// addonDisplayName maps addon identifiers to the names used in messages.
func addonDisplayName(addonName string) string {
	switch addonName {
	case "coredns":
		return "CoreDNS"
	case "kube-proxy":
		return "kube-proxy"
	case "vpc-cni":
		return "VPC CNI"
	default:
		return addonName
	}
}
