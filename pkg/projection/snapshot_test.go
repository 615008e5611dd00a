package projection

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaenen/graphstore/pkg/graph"
)

// longGenericStream builds a 1000-event stream: nodes then a chain of edges.
func longGenericStream(t *testing.T) []*graph.Envelope {
	t.Helper()
	payloads := []graph.Payload{&graph.GraphInitialized{Variant: graph.VariantGeneric}}
	for i := 0; i < 500; i++ {
		payloads = append(payloads, &graph.NodeAdded{ID: fmt.Sprintf("n%03d", i)})
	}
	for i := 0; i < 499; i++ {
		payloads = append(payloads, &graph.EdgeAdded{
			From: fmt.Sprintf("n%03d", i), To: fmt.Sprintf("n%03d", i+1),
		})
	}
	envs := envelopes(t, "big-1", graph.VariantGeneric, payloads...)
	require.Len(t, envs, 1000)
	return envs
}

func TestSnapshotRestore_EquivalentToFullReplay(t *testing.T) {
	envs := longGenericStream(t)

	full, err := Replay("big-1", envs)
	require.NoError(t, err)

	half, err := Replay("big-1", envs[:500])
	require.NoError(t, err)

	snap, err := half.Snapshot()
	require.NoError(t, err)

	// Snapshots survive serialization.
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded SnapshotData
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored, err := FromSnapshot(&decoded)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), restored.Version())

	for _, env := range envs[500:] {
		restored, err = restored.Apply(env)
		require.NoError(t, err)
	}

	fullSnap, err := full.Snapshot()
	require.NoError(t, err)
	restoredSnap, err := restored.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, fullSnap, restoredSnap,
		"restore at 500 plus the tail must equal a full replay")
}

func TestSnapshot_AllVariantsRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		aid      string
		variant  graph.Variant
		payloads []graph.Payload
	}{
		{
			name: "ipld", aid: "s-ipld", variant: graph.VariantIpld,
			payloads: []graph.Payload{
				&graph.GraphInitialized{Variant: graph.VariantIpld},
				&graph.CidAdded{Cid: "Qm1"},
				&graph.CidAdded{Cid: "Qm2"},
				&graph.CidsLinked{From: "Qm1", Name: "child", To: "Qm2"},
				&graph.CidPinned{Cid: "Qm1"},
			},
		},
		{
			name: "context", aid: "s-ctx", variant: graph.VariantContext,
			payloads: []graph.Payload{
				&graph.GraphInitialized{Variant: graph.VariantContext},
				&graph.ContextDefined{Name: "sales"},
				&graph.AggregateAdded{Context: "sales", ID: "order-1"},
				&graph.EntityAdded{ID: "line-1", Aggregate: "order-1"},
				&graph.RelationshipAdded{From: "order-1", To: "line-1", Kind: graph.RelationComposition, Cardinality: graph.CardinalityOneToMany},
			},
		},
		{
			name: "workflow", aid: "s-wf", variant: graph.VariantWorkflow,
			payloads: []graph.Payload{
				&graph.GraphInitialized{Variant: graph.VariantWorkflow},
				&graph.WorkflowDefined{Name: "w"},
				&graph.StateAdded{Name: "draft", Kind: graph.StateInitial},
				&graph.StateAdded{Name: "done", Kind: graph.StateFinal},
				&graph.TransitionAdded{From: "draft", To: "done", Event: "finish"},
				&graph.WorkflowPublished{},
				&graph.InstanceStarted{Instance: "i-1", State: "draft"},
			},
		},
		{
			name: "concept", aid: "s-con", variant: graph.VariantConcept,
			payloads: []graph.Payload{
				&graph.GraphInitialized{Variant: graph.VariantConcept},
				&graph.SpaceDefined{Dimensions: []graph.QualityDimension{{Name: "hue", Min: 0, Max: 1}}},
				&graph.ConceptAdded{ID: "red", Coordinates: []float64{0.1}},
				&graph.ConceptAdded{ID: "pink", Coordinates: []float64{0.2}},
				&graph.RelationAdded{From: "red", To: "pink", Kind: "similar", Strength: 0.9},
				&graph.RegionDefined{Name: "warm", Members: []string{"red", "pink"}},
			},
		},
		{
			name: "composed", aid: "s-com", variant: graph.VariantComposed,
			payloads: []graph.Payload{
				&graph.GraphInitialized{Variant: graph.VariantComposed},
				&graph.SubgraphAdded{Label: "colors", Aggregate: "s-con", Variant: graph.VariantConcept},
				&graph.SubgraphAdded{Label: "blocks", Aggregate: "s-ipld", Variant: graph.VariantIpld},
				&graph.MappingCreated{FromSubgraph: "colors", FromEntity: "red", ToSubgraph: "blocks", ToEntity: "Qm1"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Replay(tt.aid, envelopes(t, tt.aid, tt.variant, tt.payloads...))
			require.NoError(t, err)

			snap, err := p.Snapshot()
			require.NoError(t, err)

			data, err := json.Marshal(snap)
			require.NoError(t, err)
			var decoded SnapshotData
			require.NoError(t, json.Unmarshal(data, &decoded))

			restored, err := FromSnapshot(&decoded)
			require.NoError(t, err)

			again, err := restored.Snapshot()
			require.NoError(t, err)
			assert.Equal(t, snap, again)
		})
	}
}
