package checkers

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/opsverify/eks-validator/internal/models"
)

func makeService(name, namespace string, svcType corev1.ServiceType, annotations map[string]string) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Annotations: annotations},
		Spec:       corev1.ServiceSpec{Type: svcType},
	}
}

func makeIngress(name, namespace string, tls bool) *networkingv1.Ingress {
	ing := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec: networkingv1.IngressSpec{
			Rules: []networkingv1.IngressRule{{Host: name + ".example.com"}},
		},
	}
	if tls {
		ing.Spec.TLS = []networkingv1.IngressTLS{{Hosts: []string{name + ".example.com"}}}
	}
	return ing
}

func TestCheckApplicationDeployments(t *testing.T) {
	t.Run("no kube client", func(t *testing.T) {
		checker := &ApplicationsChecker{Env: testEnv()}

		leaf := checker.checkDeployments(context.Background()).(models.Leaf)
		if leaf.Check.Status != models.StatusSkip {
			t.Errorf("status = %s; want SKIP", leaf.Check.Status)
		}
	})

	t.Run("all healthy", func(t *testing.T) {
		clientset := fake.NewSimpleClientset(
			makeDeployment("api", "apps", 3, 3),
			makeDeployment("worker", "apps", 2, 2),
		)
		checker := &ApplicationsChecker{Kube: clientset, Env: testEnv()}

		leaf := checker.checkDeployments(context.Background()).(models.Leaf)
		if leaf.Check.Status != models.StatusPass {
			t.Errorf("status = %s; want PASS", leaf.Check.Status)
		}
		if leaf.Check.Message != "All 2 deployments are healthy" {
			t.Errorf("message = %q", leaf.Check.Message)
		}
	})

	t.Run("minority unhealthy", func(t *testing.T) {
		clientset := fake.NewSimpleClientset(
			makeDeployment("api", "apps", 3, 3),
			makeDeployment("worker", "apps", 2, 2),
			makeDeployment("broken", "apps", 2, 0),
		)
		checker := &ApplicationsChecker{Kube: clientset, Env: testEnv()}

		leaf := checker.checkDeployments(context.Background()).(models.Leaf)
		if leaf.Check.Status != models.StatusWarn {
			t.Errorf("status = %s; want WARN", leaf.Check.Status)
		}
		if leaf.Check.Message != "1/3 deployments are unhealthy" {
			t.Errorf("message = %q", leaf.Check.Message)
		}
		if len(leaf.Check.Recommendations) != 1 {
			t.Errorf("recommendations = %d; want 1", len(leaf.Check.Recommendations))
		}
	})

	t.Run("majority unhealthy", func(t *testing.T) {
		clientset := fake.NewSimpleClientset(
			makeDeployment("api", "apps", 3, 0),
			makeDeployment("worker", "apps", 2, 1),
		)
		checker := &ApplicationsChecker{Kube: clientset, Env: testEnv()}

		leaf := checker.checkDeployments(context.Background()).(models.Leaf)
		if leaf.Check.Status != models.StatusFail {
			t.Errorf("status = %s; want FAIL", leaf.Check.Status)
		}
		if leaf.Check.Message != "Majority of deployments unhealthy: 2/2" {
			t.Errorf("message = %q", leaf.Check.Message)
		}
	})
}

func TestCheckApplicationServices(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		makeService("api", "apps", corev1.ServiceTypeLoadBalancer, nil),
		makeService("internal", "apps", corev1.ServiceTypeClusterIP, nil),
		makeService("debug", "apps", corev1.ServiceTypeNodePort, nil),
	)
	checker := &ApplicationsChecker{Kube: clientset, Env: testEnv()}

	leaf := checker.checkServices(context.Background()).(models.Leaf)
	if leaf.Check.Status != models.StatusPass {
		t.Errorf("status = %s; want PASS", leaf.Check.Status)
	}
	if leaf.Check.Message != "Found 3 services (1 LoadBalancer, 1 ClusterIP, 1 NodePort)" {
		t.Errorf("message = %q", leaf.Check.Message)
	}
}

func TestCheckIngresses(t *testing.T) {
	tests := []struct {
		name        string
		ingresses   []*networkingv1.Ingress
		wantStatus  models.Status
		wantMessage string
	}{
		{
			name:        "all tls",
			ingresses:   []*networkingv1.Ingress{makeIngress("web", "apps", true)},
			wantStatus:  models.StatusPass,
			wantMessage: "All 1 ingresses have TLS enabled",
		},
		{
			name:        "partial tls",
			ingresses:   []*networkingv1.Ingress{makeIngress("web", "apps", true), makeIngress("admin", "apps", false)},
			wantStatus:  models.StatusWarn,
			wantMessage: "1/2 ingresses have TLS enabled",
		},
		{
			name:        "no tls",
			ingresses:   []*networkingv1.Ingress{makeIngress("web", "apps", false)},
			wantStatus:  models.StatusFail,
			wantMessage: "No ingresses have TLS enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clientset := fake.NewSimpleClientset()
			for _, ing := range tt.ingresses {
				if _, err := clientset.NetworkingV1().Ingresses(ing.Namespace).Create(
					context.Background(), ing, metav1.CreateOptions{}); err != nil {
					t.Fatalf("create ingress: %v", err)
				}
			}
			checker := &ApplicationsChecker{Kube: clientset, Env: testEnv()}

			leaf := checker.checkIngresses(context.Background()).(models.Leaf)
			if leaf.Check.Status != tt.wantStatus {
				t.Errorf("status = %s; want %s", leaf.Check.Status, tt.wantStatus)
			}
			if leaf.Check.Message != tt.wantMessage {
				t.Errorf("message = %q; want %q", leaf.Check.Message, tt.wantMessage)
			}
		})
	}

	t.Run("none", func(t *testing.T) {
		checker := &ApplicationsChecker{Kube: fake.NewSimpleClientset(), Env: testEnv()}

		leaf := checker.checkIngresses(context.Background()).(models.Leaf)
		if leaf.Check.Status != models.StatusInfo {
			t.Errorf("status = %s; want INFO", leaf.Check.Status)
		}
		if leaf.Check.Message != "No ingresses found in cluster" {
			t.Errorf("message = %q", leaf.Check.Message)
		}
	})
}

func dbInstance(id, status string) rdstypes.DBInstance {
	return rdstypes.DBInstance{
		DBInstanceIdentifier: aws.String(id),
		DBInstanceStatus:     aws.String(status),
		Engine:               aws.String("postgres"),
		Endpoint: &rdstypes.Endpoint{
			Address: aws.String(id + ".abc.us-east-1.rds.amazonaws.com"),
			Port:    aws.Int32(5432),
		},
	}
}

func TestCheckDatabaseConnectivity(t *testing.T) {
	t.Run("all available", func(t *testing.T) {
		checker := &ApplicationsChecker{
			RDS: &mockRDS{
				describeDBInstances: func(_ context.Context, _ *rds.DescribeDBInstancesInput, _ ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
					return &rds.DescribeDBInstancesOutput{
						DBInstances: []rdstypes.DBInstance{dbInstance("app-db", "available")},
					}, nil
				},
			},
			Env: testEnv(),
		}

		leaf := checker.checkDatabaseConnectivity(context.Background()).(models.Leaf)
		if leaf.Check.Status != models.StatusPass {
			t.Errorf("status = %s; want PASS", leaf.Check.Status)
		}
		if leaf.Check.Message != "All 1 database instances are available" {
			t.Errorf("message = %q", leaf.Check.Message)
		}
	})

	t.Run("partially available", func(t *testing.T) {
		checker := &ApplicationsChecker{
			RDS: &mockRDS{
				describeDBInstances: func(_ context.Context, _ *rds.DescribeDBInstancesInput, _ ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
					return &rds.DescribeDBInstancesOutput{
						DBInstances: []rdstypes.DBInstance{
							dbInstance("app-db", "available"),
							dbInstance("reporting-db", "stopped"),
						},
					}, nil
				},
			},
			Env: testEnv(),
		}

		leaf := checker.checkDatabaseConnectivity(context.Background()).(models.Leaf)
		if leaf.Check.Status != models.StatusWarn {
			t.Errorf("status = %s; want WARN", leaf.Check.Status)
		}
		if leaf.Check.Message != "1/2 database instances are available" {
			t.Errorf("message = %q", leaf.Check.Message)
		}
	})

	t.Run("none", func(t *testing.T) {
		checker := &ApplicationsChecker{
			RDS: &mockRDS{
				describeDBInstances: func(_ context.Context, _ *rds.DescribeDBInstancesInput, _ ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
					return &rds.DescribeDBInstancesOutput{}, nil
				},
			},
			Env: testEnv(),
		}

		leaf := checker.checkDatabaseConnectivity(context.Background()).(models.Leaf)
		if leaf.Check.Status != models.StatusInfo {
			t.Errorf("status = %s; want INFO", leaf.Check.Status)
		}
		if leaf.Check.Message != "No RDS instances found in region" {
			t.Errorf("message = %q", leaf.Check.Message)
		}
	})
}

func TestCheckApplicationHealth(t *testing.T) {
	healthAnnotations := map[string]string{
		"health-check-path": "/healthz",
		"health-check-port": "8080",
	}

	tests := []struct {
		name       string
		services   []*corev1.Service
		wantStatus models.Status
		wantSubstr string
	}{
		{
			name: "good coverage",
			services: []*corev1.Service{
				makeService("a", "apps", corev1.ServiceTypeClusterIP, healthAnnotations),
				makeService("b", "apps", corev1.ServiceTypeClusterIP, healthAnnotations),
				makeService("c", "apps", corev1.ServiceTypeClusterIP, healthAnnotations),
				makeService("d", "apps", corev1.ServiceTypeClusterIP, healthAnnotations),
				makeService("e", "apps", corev1.ServiceTypeClusterIP, nil),
			},
			wantStatus: models.StatusPass,
			wantSubstr: "Good health check coverage: 80.0% of services",
		},
		{
			name: "moderate coverage",
			services: []*corev1.Service{
				makeService("a", "apps", corev1.ServiceTypeClusterIP, healthAnnotations),
				makeService("b", "apps", corev1.ServiceTypeClusterIP, nil),
			},
			wantStatus: models.StatusWarn,
			wantSubstr: "Moderate health check coverage: 50.0% of services",
		},
		{
			name: "poor coverage",
			services: []*corev1.Service{
				makeService("a", "apps", corev1.ServiceTypeClusterIP, healthAnnotations),
				makeService("b", "apps", corev1.ServiceTypeClusterIP, nil),
				makeService("c", "apps", corev1.ServiceTypeClusterIP, nil),
			},
			wantStatus: models.StatusFail,
			wantSubstr: "Poor health check coverage: 33.3% of services",
		},
		{
			name: "none configured",
			services: []*corev1.Service{
				makeService("a", "apps", corev1.ServiceTypeClusterIP, nil),
			},
			wantStatus: models.StatusFail,
			wantSubstr: "No services have health checks configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clientset := fake.NewSimpleClientset()
			for _, svc := range tt.services {
				if _, err := clientset.CoreV1().Services(svc.Namespace).Create(
					context.Background(), svc, metav1.CreateOptions{}); err != nil {
					t.Fatalf("create service: %v", err)
				}
			}
			checker := &ApplicationsChecker{Kube: clientset, Env: testEnv()}

			leaf := checker.checkApplicationHealth(context.Background()).(models.Leaf)
			if leaf.Check.Status != tt.wantStatus {
				t.Errorf("status = %s; want %s", leaf.Check.Status, tt.wantStatus)
			}
			if !strings.Contains(leaf.Check.Message, tt.wantSubstr) {
				t.Errorf("message = %q; want substring %q", leaf.Check.Message, tt.wantSubstr)
			}
		})
	}
}
