package bus

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_plan/internal/pkg/opt"
)

// Kind tags the node variants.
type Kind int

const (
	SourceKind Kind = iota
	SinkKind
	ConverterKind
	StorageKind
)

func (k Kind) String() string {
	switch k {
	case SourceKind:
		return "source"
	case SinkKind:
		return "sink"
	case ConverterKind:
		return "converter"
	case StorageKind:
		return "storage"
	default:
		return "unknown"
	}
}

// Variables resolves decision variables while a node contributes constraints.
type Variables interface {
	Steps() int
	Flow(f *Flow, t int) opt.Var
	Level(node string, t int) opt.Var
}

// Node is a component attached to one or more buses.
type Node interface {
	Label() string
	Kind() Kind
	// Flows declares the node's edges.
	Flows() []*Flow
	// Constraints returns the node's rows for timestep t.
	Constraints(v Variables, t int) []opt.Constraint
}

// Stateful nodes carry a level variable per timestep, bounded by Capacity.
type Stateful interface {
	Node
	Capacity() float64
}

// Graph holds the buses and nodes of one energy system over a fixed number
// of timesteps.
type Graph struct {
	pid           uuid.UUID
	steps         int
	buses         map[string]*Bus
	nodes         map[string]Node
	busOrder      []string
	nodeOrder     []string
	adjacencyList map[string][]string
}

// NewGraph returns an empty graph over a time index of the given length.
func NewGraph(steps int) (*Graph, error) {
	if steps < 1 {
		return nil, fmt.Errorf("%w: time index needs at least one step, got %d", ErrShapeMismatch, steps)
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Graph{
		pid:           pid,
		steps:         steps,
		buses:         make(map[string]*Bus),
		nodes:         make(map[string]Node),
		adjacencyList: make(map[string][]string),
	}, nil
}

// PID is the graph identifier.
func (g *Graph) PID() uuid.UUID {
	return g.pid
}

// Steps is the length of the time index.
func (g *Graph) Steps() int {
	return g.steps
}

// AddBus creates and registers a bus.
func (g *Graph) AddBus(label string, carrier Carrier) (*Bus, error) {
	if g.exists(label) {
		return nil, fmt.Errorf("%w: bus %s already exists in graph", ErrDuplicateIdentifier, label)
	}
	b, err := New(label, carrier)
	if err != nil {
		return nil, err
	}
	g.buses[label] = b
	g.busOrder = append(g.busOrder, label)
	g.adjacencyList[label] = make([]string, 0)
	return b, nil
}

// AddNode validates a node against the graph and registers it.
func (g *Graph) AddNode(n Node) error {
	label := n.Label()
	if g.exists(label) {
		return fmt.Errorf("%w: node %s already exists in graph", ErrDuplicateIdentifier, label)
	}
	if err := ValidateLabel(label); err != nil {
		return err
	}

	flows := n.Flows()
	edges := make(map[string]bool, len(flows))
	for _, f := range flows {
		if edges[f.String()] {
			return fmt.Errorf("%w: node %s declares flow %s twice", ErrDuplicateIdentifier, label, f)
		}
		edges[f.String()] = true
		if f.Node() != label {
			return fmt.Errorf("%w: flow %s is not attached to node %s", ErrInvalidTopology, f, label)
		}
		b, ok := g.buses[f.Bus().Label()]
		if !ok || b != f.Bus() {
			return fmt.Errorf("%w: node %s references bus %s which does not exist in graph", ErrInvalidTopology, label, f.Bus().Label())
		}
		if err := f.Validate(g.steps); err != nil {
			return err
		}
	}

	g.nodes[label] = n
	g.nodeOrder = append(g.nodeOrder, label)
	g.adjacencyList[label] = make([]string, 0)
	for _, f := range flows {
		g.addDirectedEdge(f.Source(), f.Target())
	}
	return nil
}

func (g *Graph) exists(label string) bool {
	_, isBus := g.buses[label]
	_, isNode := g.nodes[label]
	return isBus || isNode
}

func (g *Graph) addDirectedEdge(from, to string) {
	for _, existing := range g.adjacencyList[from] {
		if existing == to {
			return
		}
	}
	g.adjacencyList[from] = append(g.adjacencyList[from], to)
}

// Edges lists the labels reachable from label by one flow.
func (g *Graph) Edges(label string) []string {
	if edges, exists := g.adjacencyList[label]; exists {
		return edges
	}
	return make([]string, 0)
}

// Bus looks up a bus by label.
func (g *Graph) Bus(label string) (*Bus, bool) {
	b, ok := g.buses[label]
	return b, ok
}

// Node looks up a node by label.
func (g *Graph) Node(label string) (Node, bool) {
	n, ok := g.nodes[label]
	return n, ok
}

// Buses returns the buses in insertion order.
func (g *Graph) Buses() []*Bus {
	buses := make([]*Bus, 0, len(g.busOrder))
	for _, label := range g.busOrder {
		buses = append(buses, g.buses[label])
	}
	return buses
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, 0, len(g.nodeOrder))
	for _, label := range g.nodeOrder {
		nodes = append(nodes, g.nodes[label])
	}
	return nodes
}

// Flows returns every flow, ordered by node insertion then declaration.
func (g *Graph) Flows() []*Flow {
	flows := make([]*Flow, 0)
	for _, n := range g.Nodes() {
		flows = append(flows, n.Flows()...)
	}
	return flows
}

// BusFlows splits the flows on a bus into those entering and those leaving it.
func (g *Graph) BusFlows(label string) (in []*Flow, out []*Flow) {
	for _, f := range g.Flows() {
		if f.Bus().Label() != label {
			continue
		}
		if f.Direction() == Output {
			in = append(in, f)
		} else {
			out = append(out, f)
		}
	}
	return in, out
}
