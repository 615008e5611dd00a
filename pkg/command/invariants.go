package command

import (
	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/projection"
)

// checkInvariants runs the variant's structural checks against the
// simulated post state.
func checkInvariants(p *projection.Projection) error {
	switch p.Variant() {
	case graph.VariantIpld:
		return checkIpldInvariants(p)
	case graph.VariantContext:
		return checkContextInvariants(p)
	case graph.VariantWorkflow:
		return checkWorkflowInvariants(p)
	case graph.VariantConcept:
		return checkConceptInvariants(p)
	case graph.VariantGeneric:
		return checkGenericInvariants(p)
	default:
		// Composed invariants hold inside each subgraph's own fold;
		// cross-graph mappings were checked at decision time.
		return nil
	}
}
