package costing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Node labels and providerID prefixes that identify the managed offerings.
const (
	regionLabel       = "topology.kubernetes.io/region"
	legacyRegionLabel = "failure-domain.beta.kubernetes.io/region"

	eksNodegroupLabel = "eks.amazonaws.com/nodegroup"
	aksClusterLabel   = "kubernetes.azure.com/cluster"
	gkeNodepoolLabel  = "cloud.google.com/gke-nodepool"
)

const defaultDetectTTL = time.Hour

// Detector identifies the cloud running the cluster from node metadata.
// Detection results are cached; provider labels do not change mid-run.
type Detector struct {
	client kubernetes.Interface
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	cloud     string
	region    string
	expiresAt time.Time
}

func NewDetector(client kubernetes.Interface) *Detector {
	return &Detector{
		client: client,
		ttl:    defaultDetectTTL,
		now:    time.Now,
	}
}

// Detect returns the cloud name and region of the first node. Listing
// failures report the generic cloud alongside the error so callers can keep
// going with conservative rates.
func (d *Detector) Detect(ctx context.Context) (cloud, region string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cloud != "" && d.now().Before(d.expiresAt) {
		return d.cloud, d.region, nil
	}

	nodes, err := d.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{Limit: 1})
	if err != nil {
		return CloudGeneric, "", fmt.Errorf("list nodes: %w", err)
	}

	cloud, region = CloudGeneric, ""
	if len(nodes.Items) > 0 {
		node := nodes.Items[0]
		cloud = cloudFromNode(node.Spec.ProviderID, node.Labels)
		region = regionFromLabels(cloud, node.Labels)
	}

	d.cloud, d.region = cloud, region
	d.expiresAt = d.now().Add(d.ttl)
	return cloud, region, nil
}

func cloudFromNode(providerID string, labels map[string]string) string {
	switch {
	case strings.HasPrefix(providerID, "aws://"):
		return CloudAWS
	case strings.HasPrefix(providerID, "gce://"):
		return CloudGCP
	case strings.HasPrefix(providerID, "azure://"):
		return CloudAzure
	}
	// Self-managed clusters often lack a providerID but keep the
	// distribution's node labels.
	switch {
	case labels[eksNodegroupLabel] != "":
		return CloudAWS
	case labels[gkeNodepoolLabel] != "":
		return CloudGCP
	case labels[aksClusterLabel] != "":
		return CloudAzure
	}
	return CloudGeneric
}

func regionFromLabels(cloud string, labels map[string]string) string {
	if region := labels[regionLabel]; region != "" {
		return region
	}
	if region := labels[legacyRegionLabel]; region != "" {
		return region
	}
	// Home regions keep the base rate rows when topology labels are absent.
	switch cloud {
	case CloudAWS:
		return "us-east-1"
	case CloudGCP:
		return "us-central1"
	case CloudAzure:
		return "eastus"
	}
	return ""
}
