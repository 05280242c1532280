package kubernetes

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	k8sclient "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// resolveKubeconfigPath returns the effective kubeconfig file path.
// Prefers $KUBECONFIG if set; falls back to ~/.kube/config.
func resolveKubeconfigPath() string {
	if path := os.Getenv("KUBECONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kube", "config")
}

// LoadClientset builds a kubernetes clientset from the kubeconfig file at
// path, targeting the given context (empty = current context). The timeout
// applies to every API request the clientset makes; zero keeps the
// client-go default of no timeout.
func LoadClientset(kubeconfigPath, contextName string, timeout time.Duration) (k8sclient.Interface, ClusterInfo, error) {
	overrides := &clientcmd.ConfigOverrides{CurrentContext: contextName}
	cfg := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath},
		overrides,
	)

	info, err := resolveClusterInfo(cfg, contextName)
	if err != nil {
		return nil, ClusterInfo{}, fmt.Errorf("load kubeconfig %q: %w", kubeconfigPath, err)
	}

	restCfg, err := cfg.ClientConfig()
	if err != nil {
		return nil, ClusterInfo{}, fmt.Errorf("build REST config for context %q: %w", info.ContextName, err)
	}
	restCfg.Timeout = timeout

	clientset, err := k8sclient.NewForConfig(restCfg)
	if err != nil {
		return nil, ClusterInfo{}, fmt.Errorf("build clientset for context %q: %w", info.ContextName, err)
	}

	return clientset, info, nil
}

// resolveClusterInfo reads the raw kubeconfig to report which context and
// server the clientset will talk to.
func resolveClusterInfo(cfg clientcmd.ClientConfig, contextName string) (ClusterInfo, error) {
	rawCfg, err := cfg.RawConfig()
	if err != nil {
		return ClusterInfo{}, err
	}

	effective := contextName
	if effective == "" {
		effective = rawCfg.CurrentContext
	}

	info := ClusterInfo{ContextName: effective}
	if ctx, ok := rawCfg.Contexts[effective]; ok {
		if cluster, ok := rawCfg.Clusters[ctx.Cluster]; ok {
			info.Server = cluster.Server
		}
	}
	return info, nil
}
