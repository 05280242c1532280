package checkers

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/opsverify/eks-validator/internal/config"
	"github.com/opsverify/eks-validator/internal/models"
	awsp "github.com/opsverify/eks-validator/internal/providers/aws"
)

// NetworkingChecker validates load balancers, security group rules, and the
// VPC routing surface (NACLs, route tables, gateways).
type NetworkingChecker struct {
	EC2   awsp.EC2Client
	ELBV2 awsp.ELBV2Client
	Env   config.Environment
}

// CheckAll runs every networking check and returns the category tree.
func (c *NetworkingChecker) CheckAll(ctx context.Context) models.Node {
	return models.Branch{
		"load_balancers":   c.checkLoadBalancers(ctx),
		"security_groups":  c.checkSecurityGroupRules(ctx),
		"network_acls":     c.checkNetworkACLs(ctx),
		"route_tables":     c.checkRouteTables(ctx),
		"internet_gateway": c.checkInternetGateway(ctx),
		"nat_gateways":     c.checkNATGateways(ctx),
	}
}

func (c *NetworkingChecker) checkLoadBalancers(ctx context.Context) models.Node {
	names := c.Env.Network().LoadBalancers
	if len(names) == 0 {
		return models.Branch{
			"no_load_balancers": models.NewLeaf(models.StatusInfo,
				"No load balancers configured for validation"),
		}
	}

	results := models.Branch{}
	for _, name := range names {
		results[name] = c.checkLoadBalancer(ctx, name)
	}
	return results
}

func (c *NetworkingChecker) checkLoadBalancer(ctx context.Context, name string) models.Node {
	out, err := c.ELBV2.DescribeLoadBalancers(ctx, &elasticloadbalancingv2.DescribeLoadBalancersInput{
		Names: []string{name},
	})
	if awsp.IsNotFound(err) || (err == nil && len(out.LoadBalancers) == 0) {
		return models.NewLeaf(models.StatusFail, fmt.Sprintf("Load balancer %s not found", name))
	}
	if err != nil {
		return models.FailLeaf(fmt.Sprintf("Failed to check load balancer %s", name), err)
	}

	lb := out.LoadBalancers[0]
	lbARN := aws.ToString(lb.LoadBalancerArn)
	state := string(lb.State.Code)

	targetGroups, healthy, total := c.describeTargetGroups(ctx, lbARN)
	details := map[string]any{
		"type":          string(lb.Type),
		"scheme":        string(lb.Scheme),
		"state":         state,
		"dns_name":      aws.ToString(lb.DNSName),
		"target_groups": targetGroups,
	}

	switch {
	case state == "active" && total > 0 && healthy == total:
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("Load balancer %s is active with all targets healthy", name)).
			WithDetails(details)
	case state == "active":
		return models.NewLeaf(models.StatusWarn,
			fmt.Sprintf("Load balancer %s is active but some targets unhealthy", name)).
			WithDetails(details)
	default:
		return models.NewLeaf(models.StatusFail,
			fmt.Sprintf("Load balancer %s state: %s", name, state)).WithDetails(details)
	}
}

// describeTargetGroups returns per-target-group detail maps plus the overall
// healthy/total target counts across all groups of the load balancer.
func (c *NetworkingChecker) describeTargetGroups(ctx context.Context, lbARN string) ([]map[string]any, int, int) {
	out, err := c.ELBV2.DescribeTargetGroups(ctx, &elasticloadbalancingv2.DescribeTargetGroupsInput{
		LoadBalancerArn: aws.String(lbARN),
	})
	if err != nil {
		return nil, 0, 0
	}

	var groups []map[string]any
	var healthyTotal, total int
	for _, tg := range out.TargetGroups {
		healthOut, err := c.ELBV2.DescribeTargetHealth(ctx, &elasticloadbalancingv2.DescribeTargetHealthInput{
			TargetGroupArn: tg.TargetGroupArn,
		})
		var healthy, targets int
		if err == nil {
			targets = len(healthOut.TargetHealthDescriptions)
			for _, desc := range healthOut.TargetHealthDescriptions {
				if desc.TargetHealth != nil && desc.TargetHealth.State == elbv2types.TargetHealthStateEnumHealthy {
					healthy++
				}
			}
		}
		healthyTotal += healthy
		total += targets

		groups = append(groups, map[string]any{
			"name":            aws.ToString(tg.TargetGroupName),
			"protocol":        string(tg.Protocol),
			"port":            aws.ToInt32(tg.Port),
			"healthy_targets": healthy,
			"total_targets":   targets,
			"health_status":   fmt.Sprintf("%d/%d healthy", healthy, targets),
		})
	}
	return groups, healthyTotal, total
}

func (c *NetworkingChecker) checkSecurityGroupRules(ctx context.Context) models.Node {
	groupIDs := c.Env.Network().SecurityGroups
	if len(groupIDs) == 0 {
		return models.NewLeaf(models.StatusWarn, "No security groups configured for validation")
	}

	results := models.Branch{}
	for _, sgID := range groupIDs {
		out, err := c.EC2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
			GroupIds: []string{sgID},
		})
		if err != nil {
			results[sgID] = models.FailLeaf(
				fmt.Sprintf("Failed to check security group %s", sgID), err)
			continue
		}
		if len(out.SecurityGroups) == 0 {
			results[sgID] = models.NewLeaf(models.StatusFail,
				fmt.Sprintf("Security group %s not found", sgID))
			continue
		}

		sg := out.SecurityGroups[0]
		sgName := aws.ToString(sg.GroupName)
		hasSSH := hasPortRule(sg.IpPermissions, 22)
		hasHTTPS := hasPortRule(sg.IpPermissions, 443)

		details := map[string]any{
			"name":     sgName,
			"inbound":  analyzeRules(sg.IpPermissions),
			"outbound": analyzeRules(sg.IpPermissionsEgress),
		}

		var leaf models.Leaf
		switch {
		case hasSSH && hasHTTPS:
			leaf = models.NewLeaf(models.StatusPass,
				fmt.Sprintf("Security group %s has appropriate access rules", sgName))
		case hasSSH || hasHTTPS:
			leaf = models.NewLeaf(models.StatusWarn,
				fmt.Sprintf("Security group %s has limited access rules", sgName))
		default:
			leaf = models.NewLeaf(models.StatusWarn,
				fmt.Sprintf("Security group %s may have restricted access", sgName))
		}
		results[sgID] = leaf.WithDetails(details)
	}
	return results
}

// hasPortRule reports whether any permission covers the given port.
func hasPortRule(perms []ec2types.IpPermission, port int32) bool {
	for _, perm := range perms {
		from := aws.ToInt32(perm.FromPort)
		to := aws.ToInt32(perm.ToPort)
		if perm.FromPort != nil && perm.ToPort != nil && from <= port && port <= to {
			return true
		}
	}
	return false
}

// analyzeRules summarises a rule set without dumping every CIDR.
func analyzeRules(perms []ec2types.IpPermission) map[string]any {
	openToWorld := 0
	hasSpecificIPs := false
	hasSGRefs := false
	var commonPorts []string

	for _, perm := range perms {
		for _, ipRange := range perm.IpRanges {
			if aws.ToString(ipRange.CidrIp) == "0.0.0.0/0" {
				openToWorld++
			} else {
				hasSpecificIPs = true
			}
		}
		if len(perm.UserIdGroupPairs) > 0 {
			hasSGRefs = true
		}
		if perm.FromPort != nil {
			switch aws.ToInt32(perm.FromPort) {
			case 22:
				commonPorts = append(commonPorts, "SSH")
			case 80:
				commonPorts = append(commonPorts, "HTTP")
			case 443:
				commonPorts = append(commonPorts, "HTTPS")
			}
		}
	}

	return map[string]any{
		"total_rules":             len(perms),
		"open_to_world":           openToWorld,
		"has_specific_ips":        hasSpecificIPs,
		"has_security_group_refs": hasSGRefs,
		"common_ports":            commonPorts,
	}
}

func (c *NetworkingChecker) checkNetworkACLs(ctx context.Context) models.Node {
	vpcID := c.Env.Network().VPCID
	if vpcID == "" {
		return models.NewLeaf(models.StatusWarn, "VPC ID not configured, cannot check Network ACLs")
	}

	out, err := c.EC2.DescribeNetworkAcls(ctx, &ec2.DescribeNetworkAclsInput{
		Filters: []ec2types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}},
	})
	if err != nil {
		return models.FailLeaf("Failed to check Network ACLs", err)
	}
	if len(out.NetworkAcls) == 0 {
		return models.NewLeaf(models.StatusWarn, "No Network ACLs found for VPC subnets")
	}

	results := models.Branch{}
	for _, nacl := range out.NetworkAcls {
		naclID := aws.ToString(nacl.NetworkAclId)
		name := tagValue(nacl.Tags, "Name")
		display := name
		if display == "" {
			display = naclID
		}

		results[naclID] = models.NewLeaf(models.StatusPass,
			fmt.Sprintf("Network ACL %s is configured", display)).
			WithDetails(map[string]any{
				"name":               name,
				"is_default":         aws.ToBool(nacl.IsDefault),
				"entries_count":      len(nacl.Entries),
				"associated_subnets": len(nacl.Associations),
			})
	}
	return results
}

func (c *NetworkingChecker) checkRouteTables(ctx context.Context) models.Node {
	vpcID := c.Env.Network().VPCID
	if vpcID == "" {
		return models.NewLeaf(models.StatusWarn, "VPC ID not configured, cannot check route tables")
	}

	out, err := c.EC2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}},
	})
	if err != nil {
		return models.FailLeaf("Failed to check route tables", err)
	}

	results := models.Branch{}
	for _, rt := range out.RouteTables {
		rtID := aws.ToString(rt.RouteTableId)
		name := tagValue(rt.Tags, "Name")
		display := name
		if display == "" {
			display = rtID
		}

		hasIGW := false
		hasNAT := false
		for _, route := range rt.Routes {
			if strings.HasPrefix(aws.ToString(route.GatewayId), "igw-") {
				hasIGW = true
			}
			if strings.HasPrefix(aws.ToString(route.NatGatewayId), "nat-") {
				hasNAT = true
			}
		}

		results[rtID] = models.NewLeaf(models.StatusPass,
			fmt.Sprintf("Route table %s is configured", display)).
			WithDetails(map[string]any{
				"name":                 name,
				"routes_count":         len(rt.Routes),
				"has_internet_gateway": hasIGW,
				"has_nat_gateway":      hasNAT,
				"associated_subnets":   len(rt.Associations),
			})
	}
	return results
}

func (c *NetworkingChecker) checkInternetGateway(ctx context.Context) models.Node {
	vpcID := c.Env.Network().VPCID
	if vpcID == "" {
		return models.NewLeaf(models.StatusWarn, "VPC ID not configured, cannot check Internet Gateway")
	}

	out, err := c.EC2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		Filters: []ec2types.Filter{{Name: aws.String("attachment.vpc-id"), Values: []string{vpcID}}},
	})
	if err != nil {
		return models.FailLeaf("Failed to check Internet Gateway", err)
	}
	if len(out.InternetGateways) == 0 {
		return models.NewLeaf(models.StatusWarn, "No Internet Gateway attached to VPC")
	}

	igw := out.InternetGateways[0]
	igwID := aws.ToString(igw.InternetGatewayId)
	name := tagValue(igw.Tags, "Name")
	display := name
	if display == "" {
		display = igwID
	}

	details := map[string]any{"name": name, "internet_gateway_id": igwID}
	if len(igw.Attachments) > 0 {
		details["state"] = string(igw.Attachments[0].State)
	}

	return models.NewLeaf(models.StatusPass,
		fmt.Sprintf("Internet Gateway %s is attached to VPC", display)).WithDetails(details)
}

func (c *NetworkingChecker) checkNATGateways(ctx context.Context) models.Node {
	vpcID := c.Env.Network().VPCID
	if vpcID == "" {
		return models.NewLeaf(models.StatusWarn, "VPC ID not configured, cannot check NAT Gateways")
	}

	out, err := c.EC2.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{
		Filter: []ec2types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}},
	})
	if err != nil {
		return models.FailLeaf("Failed to check NAT Gateways", err)
	}
	if len(out.NatGateways) == 0 {
		return models.NewLeaf(models.StatusInfo, "No NAT Gateways found in VPC")
	}

	results := models.Branch{}
	for _, nat := range out.NatGateways {
		natID := aws.ToString(nat.NatGatewayId)
		state := string(nat.State)
		details := map[string]any{
			"state":     state,
			"subnet_id": aws.ToString(nat.SubnetId),
		}
		if name := tagValue(nat.Tags, "Name"); name != "" {
			details["name"] = name
		}

		var leaf models.Leaf
		switch nat.State {
		case ec2types.NatGatewayStateAvailable:
			leaf = models.NewLeaf(models.StatusPass,
				fmt.Sprintf("NAT Gateway %s is available", natID))
		case ec2types.NatGatewayStatePending:
			leaf = models.NewLeaf(models.StatusWarn,
				fmt.Sprintf("NAT Gateway %s is still creating", natID))
		default:
			leaf = models.NewLeaf(models.StatusFail,
				fmt.Sprintf("NAT Gateway %s state: %s", natID, state))
		}
		results[natID] = leaf.WithDetails(details)
	}
	return results
}

// tagValue returns the value of the named EC2 tag, or "" when absent.
func tagValue(tags []ec2types.Tag, key string) string {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == key {
			return aws.ToString(tag.Value)
		}
	}
	return ""
}
