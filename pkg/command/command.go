// Package command validates commands against projections and emits events.
// A command is an intention; only the state machine turns it into facts,
// and a rejected command leaves every projection untouched.
package command

import (
	"github.com/plaenen/graphstore/pkg/graph"
)

// Command is an intention to change one aggregate.
type Command interface {
	// AggregateID returns the target aggregate.
	AggregateID() string

	// CommandType returns the fully qualified command name.
	CommandType() string
}

// Metadata carries the identifiers threaded from the caller through the
// handler into every emitted event.
type Metadata struct {
	// CommandID identifies this command for idempotency. Deterministic
	// event IDs are derived from it.
	CommandID string

	// CorrelationID groups every event of one business transaction.
	// Minted by the engine when empty.
	CorrelationID string

	// CausationID is inherited by the first emitted event.
	CausationID string

	// PrincipalID identifies who issued the command.
	PrincipalID string

	// Custom allows application-specific metadata.
	Custom map[string]string
}

// Envelope wraps a command with its metadata.
type Envelope struct {
	Command  Command
	Metadata Metadata
}

// Common commands.

type InitializeGraph struct {
	Aggregate   string
	Variant     graph.Variant
	Constraints graph.Constraints
}

func (c InitializeGraph) AggregateID() string { return c.Aggregate }
func (c InitializeGraph) CommandType() string { return "graph.InitializeGraph" }

type ArchiveGraph struct {
	Aggregate string
	Reason    string
}

func (c ArchiveGraph) AggregateID() string { return c.Aggregate }
func (c ArchiveGraph) CommandType() string { return "graph.ArchiveGraph" }

// IPLD commands.

type AddCid struct {
	Aggregate string
	Cid       string
	Codec     string
	Size      uint64
}

func (c AddCid) AggregateID() string { return c.Aggregate }
func (c AddCid) CommandType() string { return "ipld.AddCid" }

type LinkCids struct {
	Aggregate string
	From      string
	Name      string
	To        string
}

func (c LinkCids) AggregateID() string { return c.Aggregate }
func (c LinkCids) CommandType() string { return "ipld.LinkCids" }

type PinCid struct {
	Aggregate string
	Cid       string
}

func (c PinCid) AggregateID() string { return c.Aggregate }
func (c PinCid) CommandType() string { return "ipld.PinCid" }

type UnpinCid struct {
	Aggregate string
	Cid       string
}

func (c UnpinCid) AggregateID() string { return c.Aggregate }
func (c UnpinCid) CommandType() string { return "ipld.UnpinCid" }

// Context commands.

type DefineContext struct {
	Aggregate string
	Name      string
}

func (c DefineContext) AggregateID() string { return c.Aggregate }
func (c DefineContext) CommandType() string { return "context.DefineContext" }

type AddAggregate struct {
	Aggregate string
	Context   string
	ID        string
	Name      string
}

func (c AddAggregate) AggregateID() string { return c.Aggregate }
func (c AddAggregate) CommandType() string { return "context.AddAggregate" }

type AddEntity struct {
	Aggregate string
	ID        string
	Owner     string
}

func (c AddEntity) AggregateID() string { return c.Aggregate }
func (c AddEntity) CommandType() string { return "context.AddEntity" }

type AttachValueObject struct {
	Aggregate string
	Entity    string
	Name      string
	Value     string
}

func (c AttachValueObject) AggregateID() string { return c.Aggregate }
func (c AttachValueObject) CommandType() string { return "context.AttachValueObject" }

type AddRelationship struct {
	Aggregate   string
	From        string
	To          string
	Kind        graph.RelationKind
	Cardinality graph.Cardinality
}

func (c AddRelationship) AggregateID() string { return c.Aggregate }
func (c AddRelationship) CommandType() string { return "context.AddRelationship" }

// Workflow commands.

type DefineWorkflow struct {
	Aggregate string
	Name      string
}

func (c DefineWorkflow) AggregateID() string { return c.Aggregate }
func (c DefineWorkflow) CommandType() string { return "workflow.DefineWorkflow" }

type PublishWorkflow struct {
	Aggregate string
}

func (c PublishWorkflow) AggregateID() string { return c.Aggregate }
func (c PublishWorkflow) CommandType() string { return "workflow.PublishWorkflow" }

type AddState struct {
	Aggregate string
	Name      string
	Kind      graph.StateKind
}

func (c AddState) AggregateID() string { return c.Aggregate }
func (c AddState) CommandType() string { return "workflow.AddState" }

type AddTransition struct {
	Aggregate string
	From      string
	To        string
	Event     string
	Guard     string
}

func (c AddTransition) AggregateID() string { return c.Aggregate }
func (c AddTransition) CommandType() string { return "workflow.AddTransition" }

type StartInstance struct {
	Aggregate string
	Instance  string
}

func (c StartInstance) AggregateID() string { return c.Aggregate }
func (c StartInstance) CommandType() string { return "workflow.StartInstance" }

type TriggerEvent struct {
	Aggregate string
	Instance  string
	Event     string
	Context   map[string]string
}

func (c TriggerEvent) AggregateID() string { return c.Aggregate }
func (c TriggerEvent) CommandType() string { return "workflow.TriggerEvent" }

type FailInstance struct {
	Aggregate string
	Instance  string
	Reason    string
}

func (c FailInstance) AggregateID() string { return c.Aggregate }
func (c FailInstance) CommandType() string { return "workflow.FailInstance" }

type RetryInstance struct {
	Aggregate string
	Instance  string
}

func (c RetryInstance) AggregateID() string { return c.Aggregate }
func (c RetryInstance) CommandType() string { return "workflow.RetryInstance" }

// Concept commands.

type DefineConcept struct {
	Aggregate  string
	Dimensions []graph.QualityDimension
}

func (c DefineConcept) AggregateID() string { return c.Aggregate }
func (c DefineConcept) CommandType() string { return "concept.DefineConcept" }

type AddConcept struct {
	Aggregate   string
	ID          string
	Coordinates []float64
}

func (c AddConcept) AggregateID() string { return c.Aggregate }
func (c AddConcept) CommandType() string { return "concept.AddConcept" }

type AttachProperties struct {
	Aggregate  string
	Concept    string
	Properties map[string]string
}

func (c AttachProperties) AggregateID() string { return c.Aggregate }
func (c AttachProperties) CommandType() string { return "concept.AttachProperties" }

type AddRelation struct {
	Aggregate string
	From      string
	To        string
	Kind      string
	Strength  float64
}

func (c AddRelation) AggregateID() string { return c.Aggregate }
func (c AddRelation) CommandType() string { return "concept.AddRelation" }

type DefineRegion struct {
	Aggregate string
	Name      string
	Members   []string
}

func (c DefineRegion) AggregateID() string { return c.Aggregate }
func (c DefineRegion) CommandType() string { return "concept.DefineRegion" }

type AddToRegion struct {
	Aggregate string
	Region    string
	Concept   string
}

func (c AddToRegion) AggregateID() string { return c.Aggregate }
func (c AddToRegion) CommandType() string { return "concept.AddToRegion" }

type RunInference struct {
	Aggregate string
}

func (c RunInference) AggregateID() string { return c.Aggregate }
func (c RunInference) CommandType() string { return "concept.RunInference" }

// Composed commands.

type AddSubgraph struct {
	Aggregate string
	Label     string
	Subgraph  string
	Variant   graph.Variant
}

func (c AddSubgraph) AggregateID() string { return c.Aggregate }
func (c AddSubgraph) CommandType() string { return "composed.AddSubgraph" }

type CreateMapping struct {
	Aggregate    string
	FromSubgraph string
	FromEntity   string
	ToSubgraph   string
	ToEntity     string
	Kind         string
}

func (c CreateMapping) AggregateID() string { return c.Aggregate }
func (c CreateMapping) CommandType() string { return "composed.CreateMapping" }

// Generic commands.

type AddNode struct {
	Aggregate  string
	ID         string
	Labels     []string
	Properties map[string]string
}

func (c AddNode) AggregateID() string { return c.Aggregate }
func (c AddNode) CommandType() string { return "generic.AddNode" }

type RemoveNode struct {
	Aggregate string
	ID        string
}

func (c RemoveNode) AggregateID() string { return c.Aggregate }
func (c RemoveNode) CommandType() string { return "generic.RemoveNode" }

type AddEdge struct {
	Aggregate string
	From      string
	To        string
	Label     string
	Weight    float64
}

func (c AddEdge) AggregateID() string { return c.Aggregate }
func (c AddEdge) CommandType() string { return "generic.AddEdge" }

type RemoveEdge struct {
	Aggregate string
	From      string
	To        string
}

func (c RemoveEdge) AggregateID() string { return c.Aggregate }
func (c RemoveEdge) CommandType() string { return "generic.RemoveEdge" }

// SetNodeProperty is the update form: it emits a correlated
// removal-then-addition pair, never an in-place update.
type SetNodeProperty struct {
	Aggregate string
	Node      string
	Name      string
	Value     string
}

func (c SetNodeProperty) AggregateID() string { return c.Aggregate }
func (c SetNodeProperty) CommandType() string { return "generic.SetNodeProperty" }
