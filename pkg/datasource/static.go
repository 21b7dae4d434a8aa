package datasource

import (
	"context"

	"github.com/kubesage/k8s-resource-advisor/pkg/models"
)

// StaticAllocations resolves allocation contexts from a fixed table, used
// when replaying recorded logs that carry no resource configuration. Lookup
// order is the full workload ID, then the bare name, then "default". A miss
// returns a zero context so saturation analysis can refuse cleanly.
type StaticAllocations struct {
	table map[string]map[models.ResourceDimension]models.AllocationContext
}

func NewStaticAllocations(table map[string]map[models.ResourceDimension]models.AllocationContext) *StaticAllocations {
	if table == nil {
		table = make(map[string]map[models.ResourceDimension]models.AllocationContext)
	}
	return &StaticAllocations{table: table}
}

func (s *StaticAllocations) AllocationFor(_ context.Context, w models.Workload, dim models.ResourceDimension) (models.AllocationContext, error) {
	for _, key := range []string{w.ID(), w.Name, "default"} {
		if dims, ok := s.table[key]; ok {
			if alloc, ok := dims[dim]; ok {
				return alloc, nil
			}
		}
	}
	return models.AllocationContext{}, nil
}
