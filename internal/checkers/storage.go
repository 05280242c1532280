package checkers

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sclient "k8s.io/client-go/kubernetes"

	"github.com/opsverify/eks-validator/internal/config"
	"github.com/opsverify/eks-validator/internal/models"
)

// csiDriver names the cluster workloads and provisioner prefix that identify
// one CSI driver installation. EKS managed addons and self-managed Helm
// charts use different workload names, so each driver lists both.
type csiDriver struct {
	name        string
	deployments []string
	daemonsets  []string
	prefix      string
}

var csiDrivers = []csiDriver{
	{
		name:        "ebs.csi.aws.com",
		deployments: []string{"ebs-csi-controller", "csi-ebs-controller"},
		daemonsets:  []string{"ebs-csi-node", "csi-ebs-node"},
		prefix:      "ebs",
	},
	{
		name:        "efs.csi.aws.com",
		deployments: []string{"efs-csi-controller", "csi-efs-controller"},
		daemonsets:  []string{"efs-csi-node", "csi-efs-node"},
		prefix:      "efs",
	},
}

// StorageChecker validates CSI drivers, storage classes, and volume state.
// Unlike the other Kubernetes-backed checkers it hard-fails without a
// clientset: storage validation is meaningless AWS-side only.
type StorageChecker struct {
	Kube k8sclient.Interface
	Env  config.Environment
}

// CheckAll runs every storage check and returns the category tree.
func (c *StorageChecker) CheckAll(ctx context.Context) models.Node {
	if c.Kube == nil {
		return models.NewLeaf(models.StatusFail, "Kubernetes client not available for storage checks")
	}
	return models.Branch{
		"csi_drivers":              c.checkCSIDrivers(ctx),
		"storage_classes":          c.checkStorageClasses(ctx),
		"persistent_volumes":       c.checkPersistentVolumes(ctx),
		"persistent_volume_claims": c.checkPersistentVolumeClaims(ctx),
	}
}

func (c *StorageChecker) checkCSIDrivers(ctx context.Context) models.Node {
	results := models.Branch{}
	driverStatus := map[string]models.Status{}

	for _, driver := range csiDrivers {
		key := strings.ReplaceAll(strings.TrimSuffix(driver.name, ".csi.aws.com"), ".", "_") + "_csi_driver"
		node, status := c.checkCSIDriver(ctx, driver)
		results[key] = node
		driverStatus[driver.prefix] = status
	}

	switch {
	case driverStatus["ebs"] == models.StatusPass:
		results["overall"] = models.NewLeaf(models.StatusPass, "EBS CSI driver is properly installed")
	case driverStatus["efs"] == models.StatusPass:
		results["overall"] = models.NewLeaf(models.StatusWarn,
			"Only EFS CSI driver found, EBS CSI driver missing")
	default:
		results["overall"] = models.NewLeaf(models.StatusFail, "No CSI drivers found")
	}
	return results
}

func (c *StorageChecker) checkCSIDriver(ctx context.Context, driver csiDriver) (models.Node, models.Status) {
	const namespace = "kube-system"

	deployNode, deployFound := c.findWorkload(ctx, driver.deployments, func(name string) models.Node {
		return c.checkDeploymentHealth(ctx, name, namespace)
	})
	dsNode, dsFound := c.findWorkload(ctx, driver.daemonsets, func(name string) models.Node {
		return c.checkDaemonSetHealth(ctx, name, namespace)
	})

	scNode, scFound := c.checkStorageClassForDriver(ctx, driver)

	result := models.Branch{
		"deployment":    deployNode,
		"daemonset":     dsNode,
		"storage_class": scNode,
	}

	var status models.Status
	switch {
	case (deployFound || dsFound) && scFound:
		status = models.StatusPass
		result["overall"] = models.NewLeaf(status,
			fmt.Sprintf("CSI driver %s is fully operational", driver.name))
	case deployFound || dsFound:
		status = models.StatusWarn
		result["overall"] = models.NewLeaf(status,
			fmt.Sprintf("CSI driver %s is partially installed (missing storage class)", driver.name))
	default:
		status = models.StatusFail
		result["overall"] = models.NewLeaf(status,
			fmt.Sprintf("CSI driver %s is not installed", driver.name))
	}
	return result, status
}

// findWorkload probes candidate workload names and returns the first healthy
// result, or the last probe when none passed.
func (c *StorageChecker) findWorkload(ctx context.Context, candidates []string, check func(name string) models.Node) (models.Node, bool) {
	var last models.Node
	for _, name := range candidates {
		node := check(name)
		last = node
		if leaf, ok := node.(models.Leaf); ok && leaf.Check.Status == models.StatusPass {
			return node, true
		}
	}
	return last, false
}

func (c *StorageChecker) checkDeploymentHealth(ctx context.Context, name, namespace string) models.Node {
	deploy, err := c.Kube.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return models.NewLeaf(models.StatusFail,
			fmt.Sprintf("Deployment %s not found in namespace %s", name, namespace))
	}
	if err != nil {
		return models.FailLeaf(fmt.Sprintf("Failed to check deployment %s", name), err)
	}

	desired := int32(1)
	if deploy.Spec.Replicas != nil {
		desired = *deploy.Spec.Replicas
	}
	ready := deploy.Status.ReadyReplicas

	details := map[string]any{
		"namespace":        namespace,
		"desired_replicas": desired,
		"ready_replicas":   ready,
	}

	switch {
	case desired > 0 && ready == desired:
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("Deployment %s is healthy (%d/%d ready)", name, ready, desired)).
			WithDetails(details)
	case ready > 0:
		return models.NewLeaf(models.StatusWarn,
			fmt.Sprintf("Deployment %s is partially ready (%d/%d ready)", name, ready, desired)).
			WithDetails(details)
	default:
		return models.NewLeaf(models.StatusFail,
			fmt.Sprintf("Deployment %s has no ready replicas", name)).WithDetails(details)
	}
}

func (c *StorageChecker) checkDaemonSetHealth(ctx context.Context, name, namespace string) models.Node {
	ds, err := c.Kube.AppsV1().DaemonSets(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return models.NewLeaf(models.StatusFail,
			fmt.Sprintf("DaemonSet %s not found in namespace %s", name, namespace))
	}
	if err != nil {
		return models.FailLeaf(fmt.Sprintf("Failed to check daemonset %s", name), err)
	}

	desired := ds.Status.DesiredNumberScheduled
	ready := ds.Status.NumberReady

	details := map[string]any{
		"namespace":      namespace,
		"desired_pods":   desired,
		"ready_pods":     ready,
		"available_pods": ds.Status.NumberAvailable,
		"unavailable":    ds.Status.NumberUnavailable,
	}

	switch {
	case desired > 0 && ready == desired:
		return models.NewLeaf(models.StatusPass,
			fmt.Sprintf("DaemonSet %s is healthy (%d/%d ready)", name, ready, desired)).
			WithDetails(details)
	case ready > 0:
		return models.NewLeaf(models.StatusWarn,
			fmt.Sprintf("DaemonSet %s is partially ready (%d/%d ready)", name, ready, desired)).
			WithDetails(details)
	default:
		return models.NewLeaf(models.StatusFail,
			fmt.Sprintf("DaemonSet %s has no ready pods", name)).WithDetails(details)
	}
}

func (c *StorageChecker) checkStorageClassForDriver(ctx context.Context, driver csiDriver) (models.Node, bool) {
	classes, err := c.Kube.StorageV1().StorageClasses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return models.FailLeaf("Failed to check storage classes", err), false
	}

	for _, sc := range classes.Items {
		provisioner := sc.Provisioner
		if strings.Contains(provisioner, driver.name) || strings.Contains(provisioner, driver.prefix) {
			return models.NewLeaf(models.StatusPass,
				fmt.Sprintf("StorageClass %s found for %s", sc.Name, driver.name)).
				WithDetails(map[string]any{
					"storage_class": sc.Name,
					"provisioner":   provisioner,
				}), true
		}
	}
	return models.NewLeaf(models.StatusWarn,
		fmt.Sprintf("No StorageClass found for %s", driver.name)), false
}

func (c *StorageChecker) checkStorageClasses(ctx context.Context) models.Node {
	classes, err := c.Kube.StorageV1().StorageClasses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return models.FailLeaf("Failed to check storage classes", err)
	}
	if len(classes.Items) == 0 {
		return models.NewLeaf(models.StatusWarn, "No storage classes found in cluster")
	}

	results := models.Branch{}
	for _, sc := range classes.Items {
		reclaim := ""
		if sc.ReclaimPolicy != nil {
			reclaim = string(*sc.ReclaimPolicy)
		}
		isDefault := sc.Annotations["storageclass.kubernetes.io/is-default-class"] == "true"

		details := map[string]any{
			"provisioner":    sc.Provisioner,
			"reclaim_policy": reclaim,
			"is_default":     isDefault,
		}

		if sc.Provisioner != "" && reclaim != "" {
			results[sc.Name] = models.NewLeaf(models.StatusPass,
				fmt.Sprintf("StorageClass %s is properly configured", sc.Name)).WithDetails(details)
		} else {
			results[sc.Name] = models.NewLeaf(models.StatusWarn,
				fmt.Sprintf("StorageClass %s has incomplete configuration", sc.Name)).WithDetails(details)
		}
	}
	return results
}

func (c *StorageChecker) checkPersistentVolumes(ctx context.Context) models.Node {
	volumes, err := c.Kube.CoreV1().PersistentVolumes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return models.FailLeaf("Failed to check persistent volumes", err)
	}
	if len(volumes.Items) == 0 {
		return models.NewLeaf(models.StatusInfo, "No persistent volumes found in cluster")
	}

	results := models.Branch{}
	for _, pv := range volumes.Items {
		capacity := ""
		if qty, ok := pv.Spec.Capacity[corev1.ResourceStorage]; ok {
			capacity = qty.String()
		}
		details := map[string]any{
			"phase":         string(pv.Status.Phase),
			"capacity":      capacity,
			"storage_class": pv.Spec.StorageClassName,
		}

		var leaf models.Leaf
		switch pv.Status.Phase {
		case corev1.VolumeBound:
			leaf = models.NewLeaf(models.StatusPass,
				fmt.Sprintf("PersistentVolume %s is bound and available", pv.Name))
		case corev1.VolumeAvailable:
			leaf = models.NewLeaf(models.StatusPass,
				fmt.Sprintf("PersistentVolume %s is available", pv.Name))
		case corev1.VolumePending:
			leaf = models.NewLeaf(models.StatusWarn,
				fmt.Sprintf("PersistentVolume %s is pending", pv.Name))
		default:
			leaf = models.NewLeaf(models.StatusFail,
				fmt.Sprintf("PersistentVolume %s phase: %s", pv.Name, pv.Status.Phase))
		}
		results[pv.Name] = leaf.WithDetails(details)
	}
	return results
}

func (c *StorageChecker) checkPersistentVolumeClaims(ctx context.Context) models.Node {
	claims, err := c.Kube.CoreV1().PersistentVolumeClaims(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return models.FailLeaf("Failed to check persistent volume claims", err)
	}
	if len(claims.Items) == 0 {
		return models.NewLeaf(models.StatusInfo, "No persistent volume claims found in cluster")
	}

	results := models.Branch{}
	for _, pvc := range claims.Items {
		key := fmt.Sprintf("%s/%s", pvc.Namespace, pvc.Name)
		storageClass := ""
		if pvc.Spec.StorageClassName != nil {
			storageClass = *pvc.Spec.StorageClassName
		}
		details := map[string]any{
			"phase":         string(pvc.Status.Phase),
			"volume_name":   pvc.Spec.VolumeName,
			"storage_class": storageClass,
		}

		var leaf models.Leaf
		switch pvc.Status.Phase {
		case corev1.ClaimBound:
			leaf = models.NewLeaf(models.StatusPass,
				fmt.Sprintf("PersistentVolumeClaim %s is bound", key))
		case corev1.ClaimPending:
			leaf = models.NewLeaf(models.StatusWarn,
				fmt.Sprintf("PersistentVolumeClaim %s is pending", key))
		default:
			leaf = models.NewLeaf(models.StatusFail,
				fmt.Sprintf("PersistentVolumeClaim %s phase: %s", key, pvc.Status.Phase))
		}
		results[key] = leaf.WithDetails(details)
	}
	return results
}
