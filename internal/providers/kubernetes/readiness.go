package kubernetes

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sclient "k8s.io/client-go/kubernetes"
)

// CountReadyNodes lists all cluster nodes and reports how many have a Ready
// condition with status True. Used by the quick node check.
func CountReadyNodes(ctx context.Context, clientset k8sclient.Interface) (NodeReadiness, error) {
	nodes, err := clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return NodeReadiness{}, fmt.Errorf("list nodes: %w", err)
	}

	readiness := NodeReadiness{Total: len(nodes.Items)}
	for _, node := range nodes.Items {
		if nodeIsReady(node) {
			readiness.Ready++
		}
	}
	return readiness, nil
}

func nodeIsReady(node corev1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}
