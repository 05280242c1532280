// Package kubernetes loads cluster clientsets from kubeconfig and provides
// small helpers shared by the checkers and the quick checks.
package kubernetes

import (
	"time"

	k8sclient "k8s.io/client-go/kubernetes"
)

// KubeClientProvider creates kubernetes clientsets for named kubeconfig contexts.
// It abstracts kubeconfig loading so callers and tests can inject any clientset
// without touching the filesystem.
type KubeClientProvider interface {
	// ClientsetForContext returns a clientset and the resolved ClusterInfo for
	// the given kubeconfig context. Pass an empty string to use the current
	// context from the loaded kubeconfig.
	ClientsetForContext(contextName string) (k8sclient.Interface, ClusterInfo, error)
}

// DefaultKubeClientProvider loads kubeconfig from an explicit path, from
// $KUBECONFIG, or from ~/.kube/config, and builds a real clientset.
type DefaultKubeClientProvider struct {
	// KubeconfigPath overrides the environment-based resolution when set.
	KubeconfigPath string
	// RequestTimeout bounds every API call made through the clientset.
	RequestTimeout time.Duration
}

// NewDefaultKubeClientProvider returns a provider backed by the system
// kubeconfig. An empty path keeps $KUBECONFIG / ~/.kube/config resolution.
func NewDefaultKubeClientProvider(kubeconfigPath string, requestTimeout time.Duration) *DefaultKubeClientProvider {
	return &DefaultKubeClientProvider{KubeconfigPath: kubeconfigPath, RequestTimeout: requestTimeout}
}

// ClientsetForContext implements KubeClientProvider.
func (p *DefaultKubeClientProvider) ClientsetForContext(contextName string) (k8sclient.Interface, ClusterInfo, error) {
	path := p.KubeconfigPath
	if path == "" {
		path = resolveKubeconfigPath()
	}
	return LoadClientset(path, contextName, p.RequestTimeout)
}
