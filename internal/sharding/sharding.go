// Package sharding implements C8: deterministic round-robin assignment
// of exchanges across a fixed number of tracker instances.
package sharding

import (
	"fmt"
	"sort"
)

// AssignedSections returns the subset of `all` (sorted, then taken
// round-robin starting at instanceID) that this instance is responsible
// for.
func AssignedSections(all []string, instanceID, totalInstances int) ([]string, error) {
	if totalInstances <= 0 {
		return nil, fmt.Errorf("sharding: total_instances must be positive, got %d", totalInstances)
	}
	if instanceID < 0 || instanceID >= totalInstances {
		return nil, fmt.Errorf("sharding: instance_id %d out of range [0,%d)", instanceID, totalInstances)
	}

	sorted := append([]string(nil), all...)
	sort.Strings(sorted)

	var assigned []string
	for i, section := range sorted {
		if i%totalInstances == instanceID {
			assigned = append(assigned, section)
		}
	}
	return assigned, nil
}
