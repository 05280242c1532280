// Package checkers implements the six validation categories. Every checker
// holds narrow AWS client interfaces (and a Kubernetes clientset where
// needed) plus the target environment, and returns a models.Node tree.
//
// API errors never escape a sub-check: they are converted to FAIL leaves
// carrying the error text, so one broken call cannot take down a category.
package checkers

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/opsverify/eks-validator/internal/config"
	"github.com/opsverify/eks-validator/internal/models"
	awsp "github.com/opsverify/eks-validator/internal/providers/aws"
)

// InfrastructureChecker validates the cluster control plane, node groups,
// VPC wiring, and the IAM roles behind them.
type InfrastructureChecker struct {
	EKS awsp.EKSClient
	EC2 awsp.EC2Client
	IAM awsp.IAMClient
	Env config.Environment
}

// CheckAll runs every infrastructure check and returns the category tree.
func (c *InfrastructureChecker) CheckAll(ctx context.Context) models.Node {
	return models.Branch{
		"cluster":         c.checkClusterStatus(ctx),
		"node_groups":     c.checkNodeGroups(ctx),
		"vpc":             c.checkVPCConfiguration(ctx),
		"subnets":         c.checkSubnets(ctx),
		"security_groups": c.checkSecurityGroups(ctx),
		"iam":             c.checkIAMRoles(ctx),
	}
}

func (c *InfrastructureChecker) checkClusterStatus(ctx context.Context) models.Node {
	out, err := c.EKS.DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: aws.String(c.Env.ClusterName),
	})
	if err != nil {
		return models.FailLeaf("Failed to check cluster status", err)
	}

	cluster := out.Cluster
	details := map[string]any{
		"name":             aws.ToString(cluster.Name),
		"status":           string(cluster.Status),
		"version":          aws.ToString(cluster.Version),
		"platform_version": aws.ToString(cluster.PlatformVersion),
		"endpoint":         aws.ToString(cluster.Endpoint),
		"role_arn":         aws.ToString(cluster.RoleArn),
	}
	if vpc := cluster.ResourcesVpcConfig; vpc != nil {
		details["vpc_id"] = aws.ToString(vpc.VpcId)
		details["subnet_ids"] = vpc.SubnetIds
		details["security_group_ids"] = vpc.SecurityGroupIds
	}

	var leaf models.Leaf
	switch cluster.Status {
	case ekstypes.ClusterStatusActive:
		leaf = models.NewLeaf(models.StatusPass,
			fmt.Sprintf("Cluster %s is healthy and active", c.Env.ClusterName))
	case ekstypes.ClusterStatusCreating:
		leaf = models.NewLeaf(models.StatusWarn,
			fmt.Sprintf("Cluster %s is still creating", c.Env.ClusterName))
	case ekstypes.ClusterStatusFailed:
		leaf = models.NewLeaf(models.StatusFail,
			fmt.Sprintf("Cluster %s has failed", c.Env.ClusterName))
	default:
		leaf = models.NewLeaf(models.StatusWarn,
			fmt.Sprintf("Cluster %s status: %s", c.Env.ClusterName, cluster.Status))
	}
	return leaf.WithDetails(details)
}

func (c *InfrastructureChecker) checkNodeGroups(ctx context.Context) models.Node {
	listOut, err := c.EKS.ListNodegroups(ctx, &eks.ListNodegroupsInput{
		ClusterName: aws.String(c.Env.ClusterName),
	})
	if err != nil {
		return models.FailLeaf("Failed to check node groups", err)
	}

	results := models.Branch{}
	for _, ngName := range listOut.Nodegroups {
		ngOut, err := c.EKS.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
			ClusterName:   aws.String(c.Env.ClusterName),
			NodegroupName: aws.String(ngName),
		})
		if err != nil {
			results[ngName] = models.FailLeaf(
				fmt.Sprintf("Failed to check node group %s", ngName), err)
			continue
		}

		ng := ngOut.Nodegroup
		details := map[string]any{
			"status":        string(ng.Status),
			"instance_type": ng.InstanceTypes,
			"ami_type":      string(ng.AmiType),
			"version":       aws.ToString(ng.Version),
		}
		if sc := ng.ScalingConfig; sc != nil {
			details["desired_capacity"] = aws.ToInt32(sc.DesiredSize)
			details["min_size"] = aws.ToInt32(sc.MinSize)
			details["max_size"] = aws.ToInt32(sc.MaxSize)
		}

		var leaf models.Leaf
		switch ng.Status {
		case ekstypes.NodegroupStatusActive:
			leaf = models.NewLeaf(models.StatusPass,
				fmt.Sprintf("Node group %s is healthy", ngName))
		case ekstypes.NodegroupStatusCreating, ekstypes.NodegroupStatusUpdating:
			leaf = models.NewLeaf(models.StatusWarn,
				fmt.Sprintf("Node group %s is %s", ngName, strings.ToLower(string(ng.Status))))
		default:
			leaf = models.NewLeaf(models.StatusFail,
				fmt.Sprintf("Node group %s status: %s", ngName, ng.Status))
		}
		results[ngName] = leaf.WithDetails(details)
	}

	if missing := missingNames(c.Env.NodeGroups, listOut.Nodegroups); len(missing) > 0 {
		results["missing_nodegroups"] = models.NewLeaf(models.StatusFail,
			fmt.Sprintf("Missing expected node groups: %v", missing)).
			WithDetails(map[string]any{"missing": missing})
	}

	return results
}

func (c *InfrastructureChecker) checkVPCConfiguration(ctx context.Context) models.Node {
	vpcID := c.Env.Network().VPCID
	if vpcID == "" {
		return models.NewLeaf(models.StatusWarn, "VPC ID not configured in environment settings")
	}

	out, err := c.EC2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{vpcID}})
	if err != nil {
		return models.FailLeaf("Failed to check VPC configuration", err)
	}
	if len(out.Vpcs) == 0 {
		return models.NewLeaf(models.StatusFail, fmt.Sprintf("VPC %s not found", vpcID))
	}

	vpc := out.Vpcs[0]
	details := map[string]any{
		"vpc_id":     aws.ToString(vpc.VpcId),
		"state":      string(vpc.State),
		"cidr_block": aws.ToString(vpc.CidrBlock),
		"is_default": aws.ToBool(vpc.IsDefault),
	}

	if vpc.State == "available" {
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("VPC %s is available", vpcID)).WithDetails(details)
	}
	return models.NewLeaf(models.StatusFail,
		fmt.Sprintf("VPC %s state: %s", vpcID, vpc.State)).WithDetails(details)
}

func (c *InfrastructureChecker) checkSubnets(ctx context.Context) models.Node {
	subnetIDs := c.Env.Network().SubnetIDs
	if len(subnetIDs) == 0 {
		return models.NewLeaf(models.StatusWarn, "No subnet IDs configured in environment settings")
	}

	out, err := c.EC2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{SubnetIds: subnetIDs})
	if err != nil {
		return models.FailLeaf("Failed to check subnets", err)
	}

	results := models.Branch{}
	for _, subnet := range out.Subnets {
		subnetID := aws.ToString(subnet.SubnetId)
		details := map[string]any{
			"state":                      string(subnet.State),
			"availability_zone":          aws.ToString(subnet.AvailabilityZone),
			"cidr_block":                 aws.ToString(subnet.CidrBlock),
			"available_ip_address_count": aws.ToInt32(subnet.AvailableIpAddressCount),
			"vpc_id":                     aws.ToString(subnet.VpcId),
		}

		if subnet.State == "available" {
			results[subnetID] = models.NewLeaf(models.StatusPass,
				fmt.Sprintf("Subnet %s is available", subnetID)).WithDetails(details)
		} else {
			results[subnetID] = models.NewLeaf(models.StatusFail,
				fmt.Sprintf("Subnet %s state: %s", subnetID, subnet.State)).WithDetails(details)
		}
	}
	return results
}

func (c *InfrastructureChecker) checkSecurityGroups(ctx context.Context) models.Node {
	groupIDs := c.Env.Network().SecurityGroups
	if len(groupIDs) == 0 {
		return models.NewLeaf(models.StatusWarn, "No security groups configured in environment settings")
	}

	out, err := c.EC2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: groupIDs,
	})
	if err != nil {
		return models.FailLeaf("Failed to check security groups", err)
	}

	results := models.Branch{}
	for _, sg := range out.SecurityGroups {
		sgID := aws.ToString(sg.GroupId)
		sgName := aws.ToString(sg.GroupName)
		if sgName == "" {
			sgName = "N/A"
		}

		results[sgID] = models.NewLeaf(models.StatusPass,
			fmt.Sprintf("Security group %s (%s) exists", sgName, sgID)).
			WithDetails(map[string]any{
				"name":           sgName,
				"description":    aws.ToString(sg.Description),
				"vpc_id":         aws.ToString(sg.VpcId),
				"inbound_rules":  len(sg.IpPermissions),
				"outbound_rules": len(sg.IpPermissionsEgress),
			})
	}
	return results
}

func (c *InfrastructureChecker) checkIAMRoles(ctx context.Context) models.Node {
	clusterOut, err := c.EKS.DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: aws.String(c.Env.ClusterName),
	})
	if err != nil {
		return models.FailLeaf("Failed to check IAM roles", err)
	}

	results := models.Branch{}

	if roleARN := aws.ToString(clusterOut.Cluster.RoleArn); roleARN != "" {
		results["cluster_role"] = c.checkClusterRole(ctx, roleARN)
	}

	nodeRoles := models.Branch{}
	listOut, err := c.EKS.ListNodegroups(ctx, &eks.ListNodegroupsInput{
		ClusterName: aws.String(c.Env.ClusterName),
	})
	if err != nil {
		results["node_group_roles"] = models.FailLeaf("Failed to check node group roles", err)
		return results
	}
	for _, ngName := range listOut.Nodegroups {
		ngOut, err := c.EKS.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
			ClusterName:   aws.String(c.Env.ClusterName),
			NodegroupName: aws.String(ngName),
		})
		if err != nil {
			nodeRoles[ngName] = models.FailLeaf(
				fmt.Sprintf("Failed to check node group %s", ngName), err)
			continue
		}
		if roleARN := aws.ToString(ngOut.Nodegroup.NodeRole); roleARN != "" {
			nodeRoles[ngName] = models.NewLeaf(models.StatusPass,
				fmt.Sprintf("Node group %s has IAM role configured", ngName)).
				WithDetails(map[string]any{
					"role_arn":  roleARN,
					"role_name": roleNameFromARN(roleARN),
				})
		}
	}
	results["node_group_roles"] = nodeRoles

	return results
}

func (c *InfrastructureChecker) checkClusterRole(ctx context.Context, roleARN string) models.Node {
	roleName := roleNameFromARN(roleARN)
	details := map[string]any{"role_arn": roleARN, "role_name": roleName}

	_, err := c.IAM.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
	switch {
	case err == nil:
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("Cluster IAM role %s exists", roleName)).WithDetails(details)
	case awsp.IsNotFound(err):
		return models.NewLeaf(models.StatusFail,
			fmt.Sprintf("Cluster IAM role %s does not exist", roleName)).WithDetails(details)
	default:
		return models.NewLeaf(models.StatusWarn,
			fmt.Sprintf("Could not verify cluster IAM role: %v", err)).WithDetails(details)
	}
}

// roleNameFromARN returns the final path segment of an IAM role ARN.
func roleNameFromARN(arn string) string {
	parts := strings.Split(arn, "/")
	return parts[len(parts)-1]
}

// missingNames returns the expected entries absent from actual, preserving
// the order of expected.
func missingNames(expected, actual []string) []string {
	present := make(map[string]bool, len(actual))
	for _, name := range actual {
		present[name] = true
	}
	var missing []string
	for _, name := range expected {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
