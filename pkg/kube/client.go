// Package kube is the cluster collaborator: workload discovery, configured
// allocations, live pod health and usage sampling. All API calls flow
// through a rate limiter and pod listings are cached briefly so one run does
// not hammer the API server.
package kube

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

const (
	defaultRateLimit = rate.Limit(10)
	defaultBurst     = 20
	defaultListTTL   = 30 * time.Second
)

// Client wraps the clientsets used against one cluster.
type Client struct {
	clientset kubernetes.Interface
	metrics   metricsv.Interface
	limiter   *rate.Limiter

	mu        sync.Mutex
	podLists  map[string]podListEntry
	templates map[string]templateEntry
	ttl       time.Duration
	now       func() time.Time
}

type podListEntry struct {
	pods    []corev1.Pod
	fetched time.Time
}

type templateEntry struct {
	spec    *corev1.PodSpec
	fetched time.Time
}

// ResolveKubeconfig picks the kubeconfig path: the explicit flag, then
// $KUBECONFIG, then ~/.kube/config when it exists. Empty means in-cluster.
func ResolveKubeconfig(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("KUBECONFIG"); env != "" {
		return env
	}
	if home := homedir.HomeDir(); home != "" {
		path := filepath.Join(home, ".kube", "config")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// New connects using the resolved kubeconfig; an empty resolved path falls
// back to the in-cluster service account.
func New(kubeconfigPath string) (*Client, error) {
	config, err := clientcmd.BuildConfigFromFlags("", ResolveKubeconfig(kubeconfigPath))
	if err != nil {
		return nil, fmt.Errorf("build cluster config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}
	metricsClient, err := metricsv.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("create metrics client: %w", err)
	}
	return newClient(clientset, metricsClient), nil
}

func newClient(clientset kubernetes.Interface, metrics metricsv.Interface) *Client {
	return &Client{
		clientset: clientset,
		metrics:   metrics,
		limiter:   rate.NewLimiter(defaultRateLimit, defaultBurst),
		podLists:  make(map[string]podListEntry),
		templates: make(map[string]templateEntry),
		ttl:       defaultListTTL,
		now:       time.Now,
	}
}

// Clientset exposes the underlying API client for collaborators that need
// raw access, such as cost provider detection.
func (c *Client) Clientset() kubernetes.Interface {
	return c.clientset
}

// Ping verifies connectivity and returns the server version.
func (c *Client) Ping(ctx context.Context) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	version, err := c.clientset.Discovery().ServerVersion()
	if err != nil {
		return "", fmt.Errorf("connect to cluster: %w", err)
	}
	return version.GitVersion, nil
}

// ListWorkloads returns the Deployments, StatefulSets and DaemonSets in the
// namespace, plus standalone pods that have no managing workload. Sorted by
// name.
func (c *Client) ListWorkloads(ctx context.Context, namespace string) ([]models.Workload, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var workloads []models.Workload
	seen := make(map[string]bool)
	add := func(name, kind string) {
		if seen[name] {
			return
		}
		seen[name] = true
		workloads = append(workloads, models.Workload{Namespace: namespace, Name: name, Kind: kind})
	}

	deployments, err := c.clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	for _, d := range deployments.Items {
		add(d.Name, "Deployment")
	}

	statefulSets, err := c.clientset.AppsV1().StatefulSets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list statefulsets: %w", err)
	}
	for _, s := range statefulSets.Items {
		add(s.Name, "StatefulSet")
	}

	daemonSets, err := c.clientset.AppsV1().DaemonSets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list daemonsets: %w", err)
	}
	for _, d := range daemonSets.Items {
		add(d.Name, "DaemonSet")
	}

	pods, err := c.listPods(ctx, namespace)
	if err != nil {
		return nil, err
	}
	for i := range pods {
		if name, kind := ownerWorkload(&pods[i]); kind == "Pod" {
			add(name, "Pod")
		}
	}

	sort.Slice(workloads, func(i, j int) bool { return workloads[i].Name < workloads[j].Name })
	return workloads, nil
}

// AllocationFor sums the configured request and limit across the workload's
// containers. A zero field means no container sets the value.
func (c *Client) AllocationFor(ctx context.Context, w models.Workload, dim models.ResourceDimension) (models.AllocationContext, error) {
	spec, err := c.podTemplate(ctx, w)
	if err != nil {
		return models.AllocationContext{}, err
	}
	return allocationFromPodSpec(spec, dim), nil
}

// HealthEventsFor reads restart and OOM history from container statuses of
// the workload's pods. The API keeps only the most recent termination per
// container, so this understates busy crash history; the Prometheus source
// carries the full record.
func (c *Client) HealthEventsFor(ctx context.Context, w models.Workload, window time.Duration) (models.HealthEvents, error) {
	pods, err := c.listPods(ctx, w.Namespace)
	if err != nil {
		return models.HealthEvents{}, err
	}

	var events models.HealthEvents
	cutoff := c.now().UTC().Add(-window)
	for i := range pods {
		pod := &pods[i]
		if name, _ := ownerWorkload(pod); name != w.Name {
			continue
		}
		for _, status := range pod.Status.ContainerStatuses {
			if term := status.LastTerminationState.Terminated; term != nil {
				at := term.FinishedAt.Time.UTC()
				if !at.Before(cutoff) {
					if status.RestartCount > 0 {
						events.Restarts = append(events.Restarts, models.RestartEvent{Timestamp: at, Pod: pod.Name})
					}
					if term.Reason == "OOMKilled" {
						events.OOMs = append(events.OOMs, models.OOMEvent{Timestamp: at, Pod: pod.Name})
					}
				}
			}
			if waiting := status.State.Waiting; waiting != nil && waiting.Reason == "CrashLoopBackOff" {
				events.CrashLoops = append(events.CrashLoops, models.CrashLoopEvent{Timestamp: c.now().UTC(), Pod: pod.Name})
			}
		}
	}
	return events, nil
}

// PodSample is one observation of a running pod: usage from metrics.k8s.io
// joined with the pod's status.
type PodSample struct {
	Pod           string
	Workload      string
	Kind          string
	Status        string
	Restarts      int
	CPUMillicores int64
	MemoryBytes   int64
	Timestamp     time.Time
}

// SamplePods takes one usage+status snapshot of every pod in the namespace.
// Samples are sorted by pod name.
func (c *Client) SamplePods(ctx context.Context, namespace string) ([]PodSample, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	podMetrics, err := c.metrics.MetricsV1beta1().PodMetricses(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list pod metrics: %w", err)
	}
	pods, err := c.listPods(ctx, namespace)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*corev1.Pod, len(pods))
	for i := range pods {
		byName[pods[i].Name] = &pods[i]
	}

	now := c.now().UTC()
	samples := make([]PodSample, 0, len(podMetrics.Items))
	for _, pm := range podMetrics.Items {
		sample := PodSample{Pod: pm.Name, Workload: pm.Name, Timestamp: now}
		for _, container := range pm.Containers {
			cpu := container.Usage[corev1.ResourceCPU]
			mem := container.Usage[corev1.ResourceMemory]
			sample.CPUMillicores += cpu.MilliValue()
			sample.MemoryBytes += mem.Value()
		}
		if pod, ok := byName[pm.Name]; ok {
			sample.Workload, sample.Kind = ownerWorkload(pod)
			sample.Status = displayStatus(pod)
			for _, status := range pod.Status.ContainerStatuses {
				sample.Restarts += int(status.RestartCount)
			}
		}
		samples = append(samples, sample)
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Pod < samples[j].Pod })
	return samples, nil
}

func (c *Client) listPods(ctx context.Context, namespace string) ([]corev1.Pod, error) {
	c.mu.Lock()
	if entry, ok := c.podLists[namespace]; ok && c.now().Sub(entry.fetched) < c.ttl {
		c.mu.Unlock()
		return entry.pods, nil
	}
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	list, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}

	c.mu.Lock()
	c.podLists[namespace] = podListEntry{pods: list.Items, fetched: c.now()}
	c.mu.Unlock()
	return list.Items, nil
}

func (c *Client) podTemplate(ctx context.Context, w models.Workload) (*corev1.PodSpec, error) {
	c.mu.Lock()
	if entry, ok := c.templates[w.ID()]; ok && c.now().Sub(entry.fetched) < c.ttl {
		c.mu.Unlock()
		return entry.spec, nil
	}
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	kinds := []string{w.Kind}
	if w.Kind == "" {
		kinds = []string{"Deployment", "StatefulSet", "DaemonSet"}
	}
	var spec *corev1.PodSpec
	for _, kind := range kinds {
		var err error
		switch kind {
		case "Deployment":
			deployment, getErr := c.clientset.AppsV1().Deployments(w.Namespace).Get(ctx, w.Name, metav1.GetOptions{})
			if getErr == nil {
				spec = &deployment.Spec.Template.Spec
			}
			err = getErr
		case "StatefulSet":
			statefulSet, getErr := c.clientset.AppsV1().StatefulSets(w.Namespace).Get(ctx, w.Name, metav1.GetOptions{})
			if getErr == nil {
				spec = &statefulSet.Spec.Template.Spec
			}
			err = getErr
		case "DaemonSet":
			daemonSet, getErr := c.clientset.AppsV1().DaemonSets(w.Namespace).Get(ctx, w.Name, metav1.GetOptions{})
			if getErr == nil {
				spec = &daemonSet.Spec.Template.Spec
			}
			err = getErr
		case "Pod":
			pod, getErr := c.clientset.CoreV1().Pods(w.Namespace).Get(ctx, w.Name, metav1.GetOptions{})
			if getErr == nil {
				spec = &pod.Spec
			}
			err = getErr
		default:
			continue
		}
		if spec != nil {
			break
		}
		if err != nil && !apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("get %s %s: %w", strings.ToLower(kind), w.ID(), err)
		}
	}
	if spec == nil {
		return nil, fmt.Errorf("workload %s not found", w.ID())
	}

	c.mu.Lock()
	c.templates[w.ID()] = templateEntry{spec: spec, fetched: c.now()}
	c.mu.Unlock()
	return spec, nil
}

// ownerWorkload names the workload managing a pod. ReplicaSet owners are
// collapsed to their Deployment; bare pods map to themselves with kind "Pod".
func ownerWorkload(pod *corev1.Pod) (name, kind string) {
	if len(pod.OwnerReferences) == 0 {
		return pod.Name, "Pod"
	}
	owner := pod.OwnerReferences[0]
	if owner.Kind == "ReplicaSet" {
		if i := strings.LastIndex(owner.Name, "-"); i > 0 {
			return owner.Name[:i], "Deployment"
		}
	}
	return owner.Name, owner.Kind
}

// displayStatus mirrors the STATUS column of kubectl get pods: a terminated
// or waiting reason when one is set, otherwise the phase.
func displayStatus(pod *corev1.Pod) string {
	for _, status := range pod.Status.ContainerStatuses {
		if term := status.State.Terminated; term != nil && term.Reason != "" {
			return term.Reason
		}
		if waiting := status.State.Waiting; waiting != nil && waiting.Reason != "" {
			return waiting.Reason
		}
	}
	return string(pod.Status.Phase)
}

func allocationFromPodSpec(spec *corev1.PodSpec, dim models.ResourceDimension) models.AllocationContext {
	name := corev1.ResourceMemory
	if dim == models.DimensionCPU {
		name = corev1.ResourceCPU
	}

	var alloc models.AllocationContext
	for _, container := range spec.Containers {
		if q, ok := container.Resources.Requests[name]; ok {
			alloc.Request += resourceValue(q, dim)
		}
		if q, ok := container.Resources.Limits[name]; ok {
			alloc.Limit += resourceValue(q, dim)
		}
	}
	return alloc
}

func resourceValue(q resource.Quantity, dim models.ResourceDimension) float64 {
	if dim == models.DimensionCPU {
		return float64(q.MilliValue())
	}
	return float64(q.Value())
}
