package kube

import (
	"context"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubesage/k8s-resource-advisor/pkg/policy"
)

// Environment classifies a namespace by deployment stage.
type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentStaging     Environment = "staging"
	EnvironmentDevelopment Environment = "development"
	EnvironmentUnknown     Environment = "unknown"
)

// ClassifyNamespace determines the environment of a namespace from its
// labels, falling back to name patterns when labels say nothing.
func (c *Client) ClassifyNamespace(ctx context.Context, namespace string) Environment {
	if err := c.limiter.Wait(ctx); err != nil {
		return detectEnvironmentFromName(namespace)
	}
	ns, err := c.clientset.CoreV1().Namespaces().Get(ctx, namespace, metav1.GetOptions{})
	if err == nil && ns.Labels != nil {
		if env, ok := ns.Labels["environment"]; ok {
			return normalizeEnvironment(env)
		}
		if tier, ok := ns.Labels["tier"]; ok {
			if env := normalizeEnvironment(tier); env != EnvironmentUnknown {
				return env
			}
		}
	}
	return detectEnvironmentFromName(namespace)
}

func normalizeEnvironment(label string) Environment {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "production", "prod", "prd":
		return EnvironmentProduction
	case "staging", "stage", "stg":
		return EnvironmentStaging
	case "development", "dev", "test", "testing":
		return EnvironmentDevelopment
	default:
		return EnvironmentUnknown
	}
}

func detectEnvironmentFromName(namespace string) Environment {
	name := strings.ToLower(namespace)

	for _, pattern := range []string{"prod", "prd"} {
		if strings.Contains(name, pattern) {
			return EnvironmentProduction
		}
	}
	for _, pattern := range []string{"staging", "stage", "stg", "uat"} {
		if strings.Contains(name, pattern) {
			return EnvironmentStaging
		}
	}
	for _, pattern := range []string{"dev", "test", "sandbox", "demo"} {
		if strings.Contains(name, pattern) {
			return EnvironmentDevelopment
		}
	}
	return EnvironmentUnknown
}

// PresetForEnvironment maps an environment to the tuning preset applied when
// the user does not pick one explicitly.
func PresetForEnvironment(env Environment) string {
	switch env {
	case EnvironmentProduction:
		return "conservative"
	case EnvironmentDevelopment:
		return "aggressive"
	default:
		return "balanced"
	}
}

// Kind headroom scaling. Node agents and stateful workloads restart badly,
// so their sizing keeps extra slack.
var kindHeadroom = map[string]float64{
	"StatefulSet": 1.15,
	"DaemonSet":   1.25,
}

// AdjustPolicyForKind scales the headroom multipliers for workload kinds
// that warrant extra caution. Other kinds pass through unchanged.
func AdjustPolicyForKind(cfg policy.Config, kind string) policy.Config {
	factor, ok := kindHeadroom[kind]
	if !ok {
		return cfg
	}
	base := policy.DefaultConfig()
	if cfg.HeadroomRequestMultiplier <= 0 {
		cfg.HeadroomRequestMultiplier = base.HeadroomRequestMultiplier
	}
	if cfg.HeadroomLimitMultiplier <= 0 {
		cfg.HeadroomLimitMultiplier = base.HeadroomLimitMultiplier
	}
	cfg.HeadroomRequestMultiplier *= factor
	cfg.HeadroomLimitMultiplier *= factor
	return cfg
}
