// Package buildplanner implements the pluggable commodity producer
// selection interface an Institution uses to choose which registered
// prototype should be deployed to satisfy demand for a commodity,
// grounded on original_source/src/Core/Utility/CommodityProducer.cpp and
// src/builder.h/builder.cc (the Builder mixin's producer registry) and
// src/building_manager.cc (the solver-driven build-order selection that
// reads it). The original couples producer bookkeeping to a linear/cbc
// optimization solver (Cyclopts); this package keeps the same
// capacity/cost bookkeeping contract but leaves the selection policy
// itself pluggable (Planner), since spec.md treats build planning as an
// interface boundary rather than a concrete algorithm to replicate.
package buildplanner

import "github.com/cyclus-sim/cyclus/internal/cerr"

// Producer is a candidate deployable prototype, tagged with the capacity
// and per-unit cost it would offer for a commodity, mirroring
// CommodityInformation's (capacity, cost) pair.
type Producer struct {
	// ProtoName is the prototype registered in cyclusctx.Context this
	// producer would be created from if selected.
	ProtoName string
	Capacity  float64
	Cost      float64
}

// Registry tracks every known Producer for each commodity it can supply,
// mirroring Builder's RegisterProducer/UnRegisterProducer plus
// CommodityProducer's per-commodity (capacity, cost) map.
type Registry struct {
	byCommodity map[string][]Producer
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byCommodity: make(map[string][]Producer)}
}

// Register adds producer as a candidate for commodity, mirroring
// Builder::RegisterProducer plus CommodityProducer::AddCommodityWithInformation.
func (r *Registry) Register(commodity string, producer Producer) {
	r.byCommodity[commodity] = append(r.byCommodity[commodity], producer)
}

// Unregister removes every Producer with the given ProtoName from
// commodity's candidate list, mirroring Builder::UnRegisterProducer.
func (r *Registry) Unregister(commodity, protoName string) {
	list := r.byCommodity[commodity]
	out := list[:0]
	for _, p := range list {
		if p.ProtoName != protoName {
			out = append(out, p)
		}
	}
	r.byCommodity[commodity] = out
}

// Producers returns every registered candidate for commodity.
func (r *Registry) Producers(commodity string) []Producer {
	return r.byCommodity[commodity]
}

// Planner selects which registered Producer should be deployed to satisfy
// unmet demand for a commodity, mirroring the original's BuildingManager
// reading a Builder's producer set and invoking an optimization solver; a
// Planner implementation decides the selection policy (cheapest, highest
// capacity, round robin, solver-backed) and is supplied by the caller
// rather than fixed by this package.
type Planner interface {
	// Select picks one Producer from candidates to satisfy demand units
	// of a commodity. The planners in this package return an error when
	// candidates is empty.
	Select(commodity string, demand float64, candidates []Producer) (Producer, error)
}

// CheapestPlanner selects the lowest-cost candidate, ties broken by
// registration order, mirroring CommodityProducer::ProductionCost being the
// quantity BuildingManager's solver minimizes.
type CheapestPlanner struct{}

// Select implements Planner.
func (CheapestPlanner) Select(commodity string, demand float64, candidates []Producer) (Producer, error) {
	if len(candidates) == 0 {
		return Producer{}, cerr.Value("buildplanner: no registered producer for commodity %q", commodity)
	}
	best := candidates[0]
	for _, p := range candidates[1:] {
		if p.Cost < best.Cost {
			best = p
		}
	}
	return best, nil
}

// HighestCapacityPlanner selects the candidate with the most capacity,
// ties broken by registration order, useful when demand is large relative
// to any single producer's typical capacity and minimizing deployment
// count matters more than minimizing per-unit cost.
type HighestCapacityPlanner struct{}

// Select implements Planner.
func (HighestCapacityPlanner) Select(commodity string, demand float64, candidates []Producer) (Producer, error) {
	if len(candidates) == 0 {
		return Producer{}, cerr.Value("buildplanner: no registered producer for commodity %q", commodity)
	}
	best := candidates[0]
	for _, p := range candidates[1:] {
		if p.Capacity > best.Capacity {
			best = p
		}
	}
	return best, nil
}
