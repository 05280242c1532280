// Package aws provides the AWS side of the validator: narrow per-service
// client interfaces, a ClientSet bundling them, and the session loader that
// handles profiles, role assumption, and retry configuration.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// ---------------------------------------------------------------------------
// Per-service client interfaces
//
// Each interface covers only the operations used by this project. Using
// narrow interfaces instead of the full SDK clients makes mocking in unit
// tests trivial: create a struct that satisfies the interface and return
// canned data.
// ---------------------------------------------------------------------------

// EKSClient is the subset of EKS operations used by the checkers.
type EKSClient interface {
	DescribeCluster(
		ctx context.Context,
		params *eks.DescribeClusterInput,
		optFns ...func(*eks.Options),
	) (*eks.DescribeClusterOutput, error)

	ListNodegroups(
		ctx context.Context,
		params *eks.ListNodegroupsInput,
		optFns ...func(*eks.Options),
	) (*eks.ListNodegroupsOutput, error)

	DescribeNodegroup(
		ctx context.Context,
		params *eks.DescribeNodegroupInput,
		optFns ...func(*eks.Options),
	) (*eks.DescribeNodegroupOutput, error)

	ListAddons(
		ctx context.Context,
		params *eks.ListAddonsInput,
		optFns ...func(*eks.Options),
	) (*eks.ListAddonsOutput, error)

	DescribeAddon(
		ctx context.Context,
		params *eks.DescribeAddonInput,
		optFns ...func(*eks.Options),
	) (*eks.DescribeAddonOutput, error)

	DescribeAddonVersions(
		ctx context.Context,
		params *eks.DescribeAddonVersionsInput,
		optFns ...func(*eks.Options),
	) (*eks.DescribeAddonVersionsOutput, error)
}

// EC2Client covers the VPC-level describe operations used by the
// infrastructure and networking checkers.
type EC2Client interface {
	DescribeVpcs(
		ctx context.Context,
		params *ec2.DescribeVpcsInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeVpcsOutput, error)

	DescribeSubnets(
		ctx context.Context,
		params *ec2.DescribeSubnetsInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeSubnetsOutput, error)

	DescribeSecurityGroups(
		ctx context.Context,
		params *ec2.DescribeSecurityGroupsInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeSecurityGroupsOutput, error)

	DescribeNetworkAcls(
		ctx context.Context,
		params *ec2.DescribeNetworkAclsInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeNetworkAclsOutput, error)

	DescribeRouteTables(
		ctx context.Context,
		params *ec2.DescribeRouteTablesInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeRouteTablesOutput, error)

	DescribeInternetGateways(
		ctx context.Context,
		params *ec2.DescribeInternetGatewaysInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeInternetGatewaysOutput, error)

	DescribeNatGateways(
		ctx context.Context,
		params *ec2.DescribeNatGatewaysInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeNatGatewaysOutput, error)
}

// ELBV2Client covers the load balancer and target health operations.
type ELBV2Client interface {
	DescribeLoadBalancers(
		ctx context.Context,
		params *elbv2.DescribeLoadBalancersInput,
		optFns ...func(*elbv2.Options),
	) (*elbv2.DescribeLoadBalancersOutput, error)

	DescribeTargetGroups(
		ctx context.Context,
		params *elbv2.DescribeTargetGroupsInput,
		optFns ...func(*elbv2.Options),
	) (*elbv2.DescribeTargetGroupsOutput, error)

	DescribeTargetHealth(
		ctx context.Context,
		params *elbv2.DescribeTargetHealthInput,
		optFns ...func(*elbv2.Options),
	) (*elbv2.DescribeTargetHealthOutput, error)
}

// RDSClient covers the database inventory operation.
type RDSClient interface {
	DescribeDBInstances(
		ctx context.Context,
		params *rds.DescribeDBInstancesInput,
		optFns ...func(*rds.Options),
	) (*rds.DescribeDBInstancesOutput, error)
}

// CloudWatchClient covers the metric presence check.
type CloudWatchClient interface {
	ListMetrics(
		ctx context.Context,
		params *cloudwatch.ListMetricsInput,
		optFns ...func(*cloudwatch.Options),
	) (*cloudwatch.ListMetricsOutput, error)
}

// CloudWatchLogsClient covers the Container Insights log group check.
type CloudWatchLogsClient interface {
	DescribeLogGroups(
		ctx context.Context,
		params *cloudwatchlogs.DescribeLogGroupsInput,
		optFns ...func(*cloudwatchlogs.Options),
	) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
}

// CloudTrailClient covers the audit trail checks.
type CloudTrailClient interface {
	ListTrails(
		ctx context.Context,
		params *cloudtrail.ListTrailsInput,
		optFns ...func(*cloudtrail.Options),
	) (*cloudtrail.ListTrailsOutput, error)

	GetTrailStatus(
		ctx context.Context,
		params *cloudtrail.GetTrailStatusInput,
		optFns ...func(*cloudtrail.Options),
	) (*cloudtrail.GetTrailStatusOutput, error)
}

// IAMClient covers the role existence check.
type IAMClient interface {
	GetRole(
		ctx context.Context,
		params *iam.GetRoleInput,
		optFns ...func(*iam.Options),
	) (*iam.GetRoleOutput, error)
}

// STSClient is the subset of STS operations used by the session loader.
type STSClient interface {
	GetCallerIdentity(
		ctx context.Context,
		params *sts.GetCallerIdentityInput,
		optFns ...func(*sts.Options),
	) (*sts.GetCallerIdentityOutput, error)
}

// ---------------------------------------------------------------------------
// ClientSet and ClientFactory
// ---------------------------------------------------------------------------

// ClientSet holds fully initialised AWS service clients for one environment's
// region and credentials. All fields are interfaces so they can be replaced
// with mocks in tests without importing the AWS SDK in test files.
type ClientSet struct {
	EKS            EKSClient
	EC2            EC2Client
	ELBV2          ELBV2Client
	RDS            RDSClient
	CloudWatch     CloudWatchClient
	CloudWatchLogs CloudWatchLogsClient
	CloudTrail     CloudTrailClient
	IAM            IAMClient
	STS            STSClient
}

// ClientFactory creates a ClientSet from an aws.Config.
// Swap this in tests to inject mock clients.
type ClientFactory func(cfg aws.Config) *ClientSet

// NewClientSet is the production ClientFactory. It constructs real AWS SDK
// clients from cfg. IAM is a global service, but the SDK routes it correctly
// from any regional config, so no region override is needed.
func NewClientSet(cfg aws.Config) *ClientSet {
	return &ClientSet{
		EKS:            eks.NewFromConfig(cfg),
		EC2:            ec2.NewFromConfig(cfg),
		ELBV2:          elbv2.NewFromConfig(cfg),
		RDS:            rds.NewFromConfig(cfg),
		CloudWatch:     cloudwatch.NewFromConfig(cfg),
		CloudWatchLogs: cloudwatchlogs.NewFromConfig(cfg),
		CloudTrail:     cloudtrail.NewFromConfig(cfg),
		IAM:            iam.NewFromConfig(cfg),
		STS:            sts.NewFromConfig(cfg),
	}
}
