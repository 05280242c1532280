package checkers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/opsverify/eks-validator/internal/config"
	"github.com/opsverify/eks-validator/internal/models"
)

func testEnv() config.Environment {
	return config.Environment{
		Name:        "prod",
		Region:      "us-east-1",
		ClusterName: "prod-cluster",
		VPC: config.VPC{
			VPCID:          "vpc-0abc",
			SubnetIDs:      []string{"subnet-1", "subnet-2"},
			SecurityGroups: []string{"sg-1"},
		},
	}
}

func describeClusterOutput(status ekstypes.ClusterStatus) *eks.DescribeClusterOutput {
	return &eks.DescribeClusterOutput{
		Cluster: &ekstypes.Cluster{
			Name:            aws.String("prod-cluster"),
			Status:          status,
			Version:         aws.String("1.29"),
			PlatformVersion: aws.String("eks.5"),
			Endpoint:        aws.String("https://example.eks.amazonaws.com"),
			RoleArn:         aws.String("arn:aws:iam::123456789012:role/eks-cluster-role"),
			ResourcesVpcConfig: &ekstypes.VpcConfigResponse{
				VpcId:     aws.String("vpc-0abc"),
				SubnetIds: []string{"subnet-1", "subnet-2"},
			},
		},
	}
}

func TestCheckClusterStatus(t *testing.T) {
	tests := []struct {
		name        string
		status      ekstypes.ClusterStatus
		wantStatus  models.Status
		wantMessage string
	}{
		{"active", ekstypes.ClusterStatusActive, models.StatusPass, "Cluster prod-cluster is healthy and active"},
		{"creating", ekstypes.ClusterStatusCreating, models.StatusWarn, "Cluster prod-cluster is still creating"},
		{"failed", ekstypes.ClusterStatusFailed, models.StatusFail, "Cluster prod-cluster has failed"},
		{"other", ekstypes.ClusterStatusUpdating, models.StatusWarn, "Cluster prod-cluster status: UPDATING"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &InfrastructureChecker{
				EKS: &mockEKS{
					describeCluster: func(_ context.Context, _ *eks.DescribeClusterInput, _ ...func(*eks.Options)) (*eks.DescribeClusterOutput, error) {
						return describeClusterOutput(tt.status), nil
					},
				},
				Env: testEnv(),
			}

			leaf, ok := checker.checkClusterStatus(context.Background()).(models.Leaf)
			if !ok {
				t.Fatal("expected a leaf result")
			}
			if leaf.Check.Status != tt.wantStatus {
				t.Errorf("status = %s; want %s", leaf.Check.Status, tt.wantStatus)
			}
			if leaf.Check.Message != tt.wantMessage {
				t.Errorf("message = %q; want %q", leaf.Check.Message, tt.wantMessage)
			}
			if leaf.Check.Details["vpc_id"] != "vpc-0abc" {
				t.Errorf("vpc_id detail = %v; want vpc-0abc", leaf.Check.Details["vpc_id"])
			}
		})
	}
}

func TestCheckClusterStatus_APIError(t *testing.T) {
	checker := &InfrastructureChecker{
		EKS: &mockEKS{
			describeCluster: func(_ context.Context, _ *eks.DescribeClusterInput, _ ...func(*eks.Options)) (*eks.DescribeClusterOutput, error) {
				return nil, errors.New("access denied")
			},
		},
		Env: testEnv(),
	}

	leaf := checker.checkClusterStatus(context.Background()).(models.Leaf)
	if leaf.Check.Status != models.StatusFail {
		t.Errorf("status = %s; want FAIL", leaf.Check.Status)
	}
	if !strings.Contains(leaf.Check.Message, "Failed to check cluster status") {
		t.Errorf("message = %q; want failure prefix", leaf.Check.Message)
	}
}

func TestCheckNodeGroups_MissingExpected(t *testing.T) {
	env := testEnv()
	env.NodeGroups = []string{"workers", "spot-workers"}

	checker := &InfrastructureChecker{
		EKS: &mockEKS{
			listNodegroups: func(_ context.Context, _ *eks.ListNodegroupsInput, _ ...func(*eks.Options)) (*eks.ListNodegroupsOutput, error) {
				return &eks.ListNodegroupsOutput{Nodegroups: []string{"workers"}}, nil
			},
			describeNodegroup: func(_ context.Context, params *eks.DescribeNodegroupInput, _ ...func(*eks.Options)) (*eks.DescribeNodegroupOutput, error) {
				return &eks.DescribeNodegroupOutput{
					Nodegroup: &ekstypes.Nodegroup{
						NodegroupName: params.NodegroupName,
						Status:        ekstypes.NodegroupStatusActive,
						ScalingConfig: &ekstypes.NodegroupScalingConfig{
							DesiredSize: aws.Int32(3),
							MinSize:     aws.Int32(1),
							MaxSize:     aws.Int32(5),
						},
					},
				}, nil
			},
		},
		Env: env,
	}

	node := checker.checkNodeGroups(context.Background())

	workers, ok := branchLeaf(node, "workers")
	if !ok {
		t.Fatal("expected workers leaf")
	}
	if workers.Check.Status != models.StatusPass {
		t.Errorf("workers status = %s; want PASS", workers.Check.Status)
	}
	if workers.Check.Message != "Node group workers is healthy" {
		t.Errorf("workers message = %q", workers.Check.Message)
	}

	missing, ok := branchLeaf(node, "missing_nodegroups")
	if !ok {
		t.Fatal("expected missing_nodegroups leaf")
	}
	if missing.Check.Status != models.StatusFail {
		t.Errorf("missing status = %s; want FAIL", missing.Check.Status)
	}
	if !strings.Contains(missing.Check.Message, "spot-workers") {
		t.Errorf("missing message = %q; want spot-workers named", missing.Check.Message)
	}
}

func TestCheckNodeGroups_StatusMapping(t *testing.T) {
	tests := []struct {
		status     ekstypes.NodegroupStatus
		wantStatus models.Status
		wantSubstr string
	}{
		{ekstypes.NodegroupStatusActive, models.StatusPass, "is healthy"},
		{ekstypes.NodegroupStatusCreating, models.StatusWarn, "is creating"},
		{ekstypes.NodegroupStatusUpdating, models.StatusWarn, "is updating"},
		{ekstypes.NodegroupStatusDegraded, models.StatusFail, "status: DEGRADED"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			checker := &InfrastructureChecker{
				EKS: &mockEKS{
					listNodegroups: func(_ context.Context, _ *eks.ListNodegroupsInput, _ ...func(*eks.Options)) (*eks.ListNodegroupsOutput, error) {
						return &eks.ListNodegroupsOutput{Nodegroups: []string{"workers"}}, nil
					},
					describeNodegroup: func(_ context.Context, _ *eks.DescribeNodegroupInput, _ ...func(*eks.Options)) (*eks.DescribeNodegroupOutput, error) {
						return &eks.DescribeNodegroupOutput{
							Nodegroup: &ekstypes.Nodegroup{Status: tt.status},
						}, nil
					},
				},
				Env: testEnv(),
			}

			leaf, ok := branchLeaf(checker.checkNodeGroups(context.Background()), "workers")
			if !ok {
				t.Fatal("expected workers leaf")
			}
			if leaf.Check.Status != tt.wantStatus {
				t.Errorf("status = %s; want %s", leaf.Check.Status, tt.wantStatus)
			}
			if !strings.Contains(leaf.Check.Message, tt.wantSubstr) {
				t.Errorf("message = %q; want substring %q", leaf.Check.Message, tt.wantSubstr)
			}
		})
	}
}

func TestCheckVPCConfiguration(t *testing.T) {
	t.Run("unconfigured", func(t *testing.T) {
		env := testEnv()
		env.VPC = config.VPC{}
		checker := &InfrastructureChecker{EC2: &mockEC2{}, Env: env}

		leaf := checker.checkVPCConfiguration(context.Background()).(models.Leaf)
		if leaf.Check.Status != models.StatusWarn {
			t.Errorf("status = %s; want WARN", leaf.Check.Status)
		}
		if leaf.Check.Message != "VPC ID not configured in environment settings" {
			t.Errorf("message = %q", leaf.Check.Message)
		}
	})

	t.Run("available", func(t *testing.T) {
		checker := &InfrastructureChecker{
			EC2: &mockEC2{
				describeVpcs: func(_ context.Context, _ *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
					return &ec2.DescribeVpcsOutput{Vpcs: []ec2types.Vpc{{
						VpcId:     aws.String("vpc-0abc"),
						State:     ec2types.VpcStateAvailable,
						CidrBlock: aws.String("10.0.0.0/16"),
						IsDefault: aws.Bool(false),
					}}}, nil
				},
			},
			Env: testEnv(),
		}

		leaf := checker.checkVPCConfiguration(context.Background()).(models.Leaf)
		if leaf.Check.Status != models.StatusPass {
			t.Errorf("status = %s; want PASS", leaf.Check.Status)
		}
		if leaf.Check.Message != "VPC vpc-0abc is available" {
			t.Errorf("message = %q", leaf.Check.Message)
		}
	})

	t.Run("not found", func(t *testing.T) {
		checker := &InfrastructureChecker{
			EC2: &mockEC2{
				describeVpcs: func(_ context.Context, _ *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
					return &ec2.DescribeVpcsOutput{}, nil
				},
			},
			Env: testEnv(),
		}

		leaf := checker.checkVPCConfiguration(context.Background()).(models.Leaf)
		if leaf.Check.Status != models.StatusFail {
			t.Errorf("status = %s; want FAIL", leaf.Check.Status)
		}
	})
}

func TestCheckSubnets(t *testing.T) {
	checker := &InfrastructureChecker{
		EC2: &mockEC2{
			describeSubnets: func(_ context.Context, params *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
				return &ec2.DescribeSubnetsOutput{Subnets: []ec2types.Subnet{
					{
						SubnetId:                aws.String("subnet-1"),
						State:                   ec2types.SubnetStateAvailable,
						AvailabilityZone:        aws.String("us-east-1a"),
						CidrBlock:               aws.String("10.0.1.0/24"),
						AvailableIpAddressCount: aws.Int32(200),
						VpcId:                   aws.String("vpc-0abc"),
					},
					{
						SubnetId: aws.String("subnet-2"),
						State:    ec2types.SubnetStatePending,
					},
				}}, nil
			},
		},
		Env: testEnv(),
	}

	node := checker.checkSubnets(context.Background())

	first, ok := branchLeaf(node, "subnet-1")
	if !ok {
		t.Fatal("expected subnet-1 leaf")
	}
	if first.Check.Status != models.StatusPass {
		t.Errorf("subnet-1 status = %s; want PASS", first.Check.Status)
	}

	second, ok := branchLeaf(node, "subnet-2")
	if !ok {
		t.Fatal("expected subnet-2 leaf")
	}
	if second.Check.Status != models.StatusFail {
		t.Errorf("subnet-2 status = %s; want FAIL", second.Check.Status)
	}
	if second.Check.Message != "Subnet subnet-2 state: pending" {
		t.Errorf("subnet-2 message = %q", second.Check.Message)
	}
}

func TestCheckIAMRoles(t *testing.T) {
	eksMock := &mockEKS{
		describeCluster: func(_ context.Context, _ *eks.DescribeClusterInput, _ ...func(*eks.Options)) (*eks.DescribeClusterOutput, error) {
			return describeClusterOutput(ekstypes.ClusterStatusActive), nil
		},
		listNodegroups: func(_ context.Context, _ *eks.ListNodegroupsInput, _ ...func(*eks.Options)) (*eks.ListNodegroupsOutput, error) {
			return &eks.ListNodegroupsOutput{Nodegroups: []string{"workers"}}, nil
		},
		describeNodegroup: func(_ context.Context, _ *eks.DescribeNodegroupInput, _ ...func(*eks.Options)) (*eks.DescribeNodegroupOutput, error) {
			return &eks.DescribeNodegroupOutput{
				Nodegroup: &ekstypes.Nodegroup{
					NodeRole: aws.String("arn:aws:iam::123456789012:role/eks-node-role"),
				},
			}, nil
		},
	}

	t.Run("role exists", func(t *testing.T) {
		checker := &InfrastructureChecker{
			EKS: eksMock,
			IAM: &mockIAM{
				getRole: func(_ context.Context, params *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
					return &iam.GetRoleOutput{Role: &iamtypes.Role{RoleName: params.RoleName}}, nil
				},
			},
			Env: testEnv(),
		}

		node := checker.checkIAMRoles(context.Background())
		clusterRole, ok := branchLeaf(node, "cluster_role")
		if !ok {
			t.Fatal("expected cluster_role leaf")
		}
		if clusterRole.Check.Status != models.StatusPass {
			t.Errorf("cluster_role status = %s; want PASS", clusterRole.Check.Status)
		}
		if clusterRole.Check.Message != "Cluster IAM role eks-cluster-role exists" {
			t.Errorf("cluster_role message = %q", clusterRole.Check.Message)
		}

		nodeRoles, ok := node.(models.Branch)["node_group_roles"].(models.Branch)
		if !ok {
			t.Fatal("expected node_group_roles branch")
		}
		workers := nodeRoles["workers"].(models.Leaf)
		if workers.Check.Message != "Node group workers has IAM role configured" {
			t.Errorf("workers message = %q", workers.Check.Message)
		}
	})

	t.Run("role missing", func(t *testing.T) {
		checker := &InfrastructureChecker{
			EKS: eksMock,
			IAM: &mockIAM{
				getRole: func(_ context.Context, _ *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
					return nil, notFoundErr("NoSuchEntity")
				},
			},
			Env: testEnv(),
		}

		clusterRole, ok := branchLeaf(checker.checkIAMRoles(context.Background()), "cluster_role")
		if !ok {
			t.Fatal("expected cluster_role leaf")
		}
		if clusterRole.Check.Status != models.StatusFail {
			t.Errorf("status = %s; want FAIL", clusterRole.Check.Status)
		}
		if clusterRole.Check.Message != "Cluster IAM role eks-cluster-role does not exist" {
			t.Errorf("message = %q", clusterRole.Check.Message)
		}
	})

	t.Run("verification error", func(t *testing.T) {
		checker := &InfrastructureChecker{
			EKS: eksMock,
			IAM: &mockIAM{
				getRole: func(_ context.Context, _ *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
					return nil, errors.New("throttled")
				},
			},
			Env: testEnv(),
		}

		clusterRole, ok := branchLeaf(checker.checkIAMRoles(context.Background()), "cluster_role")
		if !ok {
			t.Fatal("expected cluster_role leaf")
		}
		if clusterRole.Check.Status != models.StatusWarn {
			t.Errorf("status = %s; want WARN", clusterRole.Check.Status)
		}
		if !strings.Contains(clusterRole.Check.Message, "Could not verify cluster IAM role") {
			t.Errorf("message = %q", clusterRole.Check.Message)
		}
	})
}

func TestRoleNameFromARN(t *testing.T) {
	if got := roleNameFromARN("arn:aws:iam::123456789012:role/path/my-role"); got != "my-role" {
		t.Errorf("roleNameFromARN = %q; want my-role", got)
	}
}
