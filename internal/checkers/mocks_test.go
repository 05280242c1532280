package checkers

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/smithy-go"

	"github.com/opsverify/eks-validator/internal/models"
)

// Function-backed mocks for the narrow AWS client interfaces. Unset
// functions return a generic error so tests fail loudly on unexpected calls.

var errUnexpectedCall = errors.New("unexpected API call")

func notFoundErr(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: "not found"}
}

type mockEKS struct {
	describeCluster       func(ctx context.Context, params *eks.DescribeClusterInput, optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
	listNodegroups        func(ctx context.Context, params *eks.ListNodegroupsInput, optFns ...func(*eks.Options)) (*eks.ListNodegroupsOutput, error)
	describeNodegroup     func(ctx context.Context, params *eks.DescribeNodegroupInput, optFns ...func(*eks.Options)) (*eks.DescribeNodegroupOutput, error)
	listAddons            func(ctx context.Context, params *eks.ListAddonsInput, optFns ...func(*eks.Options)) (*eks.ListAddonsOutput, error)
	describeAddon         func(ctx context.Context, params *eks.DescribeAddonInput, optFns ...func(*eks.Options)) (*eks.DescribeAddonOutput, error)
	describeAddonVersions func(ctx context.Context, params *eks.DescribeAddonVersionsInput, optFns ...func(*eks.Options)) (*eks.DescribeAddonVersionsOutput, error)
}

func (m *mockEKS) DescribeCluster(ctx context.Context, params *eks.DescribeClusterInput, optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error) {
	if m.describeCluster == nil {
		return nil, errUnexpectedCall
	}
	return m.describeCluster(ctx, params, optFns...)
}

func (m *mockEKS) ListNodegroups(ctx context.Context, params *eks.ListNodegroupsInput, optFns ...func(*eks.Options)) (*eks.ListNodegroupsOutput, error) {
	if m.listNodegroups == nil {
		return nil, errUnexpectedCall
	}
	return m.listNodegroups(ctx, params, optFns...)
}

func (m *mockEKS) DescribeNodegroup(ctx context.Context, params *eks.DescribeNodegroupInput, optFns ...func(*eks.Options)) (*eks.DescribeNodegroupOutput, error) {
	if m.describeNodegroup == nil {
		return nil, errUnexpectedCall
	}
	return m.describeNodegroup(ctx, params, optFns...)
}

func (m *mockEKS) ListAddons(ctx context.Context, params *eks.ListAddonsInput, optFns ...func(*eks.Options)) (*eks.ListAddonsOutput, error) {
	if m.listAddons == nil {
		return nil, errUnexpectedCall
	}
	return m.listAddons(ctx, params, optFns...)
}

func (m *mockEKS) DescribeAddon(ctx context.Context, params *eks.DescribeAddonInput, optFns ...func(*eks.Options)) (*eks.DescribeAddonOutput, error) {
	if m.describeAddon == nil {
		return nil, errUnexpectedCall
	}
	return m.describeAddon(ctx, params, optFns...)
}

func (m *mockEKS) DescribeAddonVersions(ctx context.Context, params *eks.DescribeAddonVersionsInput, optFns ...func(*eks.Options)) (*eks.DescribeAddonVersionsOutput, error) {
	if m.describeAddonVersions == nil {
		return nil, errUnexpectedCall
	}
	return m.describeAddonVersions(ctx, params, optFns...)
}

type mockEC2 struct {
	describeVpcs             func(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	describeSubnets          func(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	describeSecurityGroups   func(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	describeNetworkAcls      func(ctx context.Context, params *ec2.DescribeNetworkAclsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNetworkAclsOutput, error)
	describeRouteTables      func(ctx context.Context, params *ec2.DescribeRouteTablesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error)
	describeInternetGateways func(ctx context.Context, params *ec2.DescribeInternetGatewaysInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error)
	describeNatGateways      func(ctx context.Context, params *ec2.DescribeNatGatewaysInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error)
}

func (m *mockEC2) DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	if m.describeVpcs == nil {
		return nil, errUnexpectedCall
	}
	return m.describeVpcs(ctx, params, optFns...)
}

func (m *mockEC2) DescribeSubnets(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	if m.describeSubnets == nil {
		return nil, errUnexpectedCall
	}
	return m.describeSubnets(ctx, params, optFns...)
}

func (m *mockEC2) DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	if m.describeSecurityGroups == nil {
		return nil, errUnexpectedCall
	}
	return m.describeSecurityGroups(ctx, params, optFns...)
}

func (m *mockEC2) DescribeNetworkAcls(ctx context.Context, params *ec2.DescribeNetworkAclsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNetworkAclsOutput, error) {
	if m.describeNetworkAcls == nil {
		return nil, errUnexpectedCall
	}
	return m.describeNetworkAcls(ctx, params, optFns...)
}

func (m *mockEC2) DescribeRouteTables(ctx context.Context, params *ec2.DescribeRouteTablesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	if m.describeRouteTables == nil {
		return nil, errUnexpectedCall
	}
	return m.describeRouteTables(ctx, params, optFns...)
}

func (m *mockEC2) DescribeInternetGateways(ctx context.Context, params *ec2.DescribeInternetGatewaysInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error) {
	if m.describeInternetGateways == nil {
		return nil, errUnexpectedCall
	}
	return m.describeInternetGateways(ctx, params, optFns...)
}

func (m *mockEC2) DescribeNatGateways(ctx context.Context, params *ec2.DescribeNatGatewaysInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error) {
	if m.describeNatGateways == nil {
		return nil, errUnexpectedCall
	}
	return m.describeNatGateways(ctx, params, optFns...)
}

type mockELBV2 struct {
	describeLoadBalancers func(ctx context.Context, params *elasticloadbalancingv2.DescribeLoadBalancersInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeLoadBalancersOutput, error)
	describeTargetGroups  func(ctx context.Context, params *elasticloadbalancingv2.DescribeTargetGroupsInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetGroupsOutput, error)
	describeTargetHealth  func(ctx context.Context, params *elasticloadbalancingv2.DescribeTargetHealthInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetHealthOutput, error)
}

func (m *mockELBV2) DescribeLoadBalancers(ctx context.Context, params *elasticloadbalancingv2.DescribeLoadBalancersInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeLoadBalancersOutput, error) {
	if m.describeLoadBalancers == nil {
		return nil, errUnexpectedCall
	}
	return m.describeLoadBalancers(ctx, params, optFns...)
}

func (m *mockELBV2) DescribeTargetGroups(ctx context.Context, params *elasticloadbalancingv2.DescribeTargetGroupsInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetGroupsOutput, error) {
	if m.describeTargetGroups == nil {
		return nil, errUnexpectedCall
	}
	return m.describeTargetGroups(ctx, params, optFns...)
}

func (m *mockELBV2) DescribeTargetHealth(ctx context.Context, params *elasticloadbalancingv2.DescribeTargetHealthInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetHealthOutput, error) {
	if m.describeTargetHealth == nil {
		return nil, errUnexpectedCall
	}
	return m.describeTargetHealth(ctx, params, optFns...)
}

type mockIAM struct {
	getRole func(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
}

func (m *mockIAM) GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	if m.getRole == nil {
		return nil, errUnexpectedCall
	}
	return m.getRole(ctx, params, optFns...)
}

type mockRDS struct {
	describeDBInstances func(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

func (m *mockRDS) DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	if m.describeDBInstances == nil {
		return nil, errUnexpectedCall
	}
	return m.describeDBInstances(ctx, params, optFns...)
}

type mockCloudWatch struct {
	listMetrics func(ctx context.Context, params *cloudwatch.ListMetricsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.ListMetricsOutput, error)
}

func (m *mockCloudWatch) ListMetrics(ctx context.Context, params *cloudwatch.ListMetricsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.ListMetricsOutput, error) {
	if m.listMetrics == nil {
		return nil, errUnexpectedCall
	}
	return m.listMetrics(ctx, params, optFns...)
}

type mockCloudWatchLogs struct {
	describeLogGroups func(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
}

func (m *mockCloudWatchLogs) DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
	if m.describeLogGroups == nil {
		return nil, errUnexpectedCall
	}
	return m.describeLogGroups(ctx, params, optFns...)
}

type mockCloudTrail struct {
	listTrails     func(ctx context.Context, params *cloudtrail.ListTrailsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.ListTrailsOutput, error)
	getTrailStatus func(ctx context.Context, params *cloudtrail.GetTrailStatusInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.GetTrailStatusOutput, error)
}

func (m *mockCloudTrail) ListTrails(ctx context.Context, params *cloudtrail.ListTrailsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.ListTrailsOutput, error) {
	if m.listTrails == nil {
		return nil, errUnexpectedCall
	}
	return m.listTrails(ctx, params, optFns...)
}

func (m *mockCloudTrail) GetTrailStatus(ctx context.Context, params *cloudtrail.GetTrailStatusInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.GetTrailStatusOutput, error) {
	if m.getTrailStatus == nil {
		return nil, errUnexpectedCall
	}
	return m.getTrailStatus(ctx, params, optFns...)
}

// branchLeaf extracts the leaf at a branch key, failing the calling test's
// assertion chain with ok=false when the shape does not match.
func branchLeaf(node models.Node, key string) (models.Leaf, bool) {
	branch, ok := node.(models.Branch)
	if !ok {
		return models.Leaf{}, false
	}
	leaf, ok := branch[key].(models.Leaf)
	return leaf, ok
}
