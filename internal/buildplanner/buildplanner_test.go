package buildplanner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register("enriched-uranium", Producer{ProtoName: "source-a", Capacity: 5, Cost: 10})
	r.Register("enriched-uranium", Producer{ProtoName: "source-b", Capacity: 8, Cost: 7})
	require.Len(t, r.Producers("enriched-uranium"), 2)

	r.Unregister("enriched-uranium", "source-a")
	got := r.Producers("enriched-uranium")
	require.Len(t, got, 1)
	require.Equal(t, "source-b", got[0].ProtoName)
}

func TestCheapestPlannerPicksLowestCost(t *testing.T) {
	candidates := []Producer{
		{ProtoName: "a", Capacity: 5, Cost: 10},
		{ProtoName: "b", Capacity: 8, Cost: 7},
		{ProtoName: "c", Capacity: 3, Cost: 7},
	}
	p, err := CheapestPlanner{}.Select("enriched-uranium", 4, candidates)
	require.NoError(t, err)
	require.Equal(t, "b", p.ProtoName, "first candidate at the minimum cost wins ties")
}

func TestHighestCapacityPlannerPicksLargest(t *testing.T) {
	candidates := []Producer{
		{ProtoName: "a", Capacity: 5, Cost: 10},
		{ProtoName: "b", Capacity: 8, Cost: 7},
	}
	p, err := HighestCapacityPlanner{}.Select("enriched-uranium", 4, candidates)
	require.NoError(t, err)
	require.Equal(t, "b", p.ProtoName)
}

func TestSelectFailsWithNoCandidates(t *testing.T) {
	_, err := CheapestPlanner{}.Select("unobtainium", 1, nil)
	require.Error(t, err)
}
