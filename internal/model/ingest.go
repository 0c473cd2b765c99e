package model

// Node is a single node mutation accumulated by a DesiredIngest: an
// identity plus the properties to upsert on it.
type Node struct {
	Identity   NodeIdentity
	Properties map[string]any
}

// Relationship carries the identities of both endpoints, per the data
// model's invariant that a relationship references two node identities.
type Relationship struct {
	Type       string
	From       NodeIdentity
	To         NodeIdentity
	Properties map[string]any
}

func (r *Relationship) key() string {
	return r.Type + "|" + r.From.Key() + "|" + r.To.Key()
}

// DesiredIngest is the graph intent accumulated for one record: an ordered
// set of nodes, an ordered set of relationships, and their property
// updates. Two ingests for the same identity merge property maps; later
// writes win on conflicting scalar keys.
type DesiredIngest struct {
	Nodes         []*Node
	Relationships []*Relationship
	Hooks         []IngestionHook

	nodeByKey map[string]*Node
	relByKey  map[string]*Relationship
}

// NewDesiredIngest returns an empty, ready-to-use DesiredIngest.
func NewDesiredIngest() *DesiredIngest {
	return &DesiredIngest{
		nodeByKey: make(map[string]*Node),
		relByKey:  make(map[string]*Relationship),
	}
}

// AddNode records a node upsert. If a node with the same identity was
// already added to this ingest, the property maps are merged in place
// (later writes win on conflicting scalar keys) and the original ordering
// position is preserved; otherwise a new entry is appended.
func (d *DesiredIngest) AddNode(identity NodeIdentity, properties map[string]any) *Node {
	key := identity.Key()
	if existing, ok := d.nodeByKey[key]; ok {
		mergeProperties(existing.Properties, properties)
		return existing
	}

	n := &Node{Identity: identity, Properties: cloneProperties(properties)}
	d.Nodes = append(d.Nodes, n)
	d.nodeByKey[key] = n
	return n
}

// AddRelationship records a relationship upsert between two node
// identities, merging properties the same way AddNode does when the same
// (type, from, to) triple recurs.
func (d *DesiredIngest) AddRelationship(relType string, from, to NodeIdentity, properties map[string]any) *Relationship {
	r := &Relationship{Type: relType, From: from, To: to}
	key := r.key()
	if existing, ok := d.relByKey[key]; ok {
		mergeProperties(existing.Properties, properties)
		return existing
	}

	r.Properties = cloneProperties(properties)
	d.Relationships = append(d.Relationships, r)
	d.relByKey[key] = r
	return r
}

// AddHook registers a side-effecting IngestionHook to run alongside this
// ingest's node/relationship writes (see model.IngestionHook).
func (d *DesiredIngest) AddHook(hook IngestionHook) {
	d.Hooks = append(d.Hooks, hook)
}

// NodeOperations groups this ingest's nodes by OperationOnNodeIdentity, in
// first-seen order, for writers that batch by shape before executing.
func (d *DesiredIngest) NodeOperations() []OperationOnNodeIdentity {
	seen := make(map[string]bool)
	var ops []OperationOnNodeIdentity
	for _, n := range d.Nodes {
		op := operationForNode(n.Identity)
		k := op.NodeType + "#" + joinFields(op.KeyFields)
		if seen[k] {
			continue
		}
		seen[k] = true
		ops = append(ops, op)
	}
	return ops
}

// RelationshipOperations is the relationship analogue of NodeOperations.
func (d *DesiredIngest) RelationshipOperations() []OperationOnRelationshipIdentity {
	seen := make(map[string]bool)
	var ops []OperationOnRelationshipIdentity
	for _, r := range d.Relationships {
		op := operationForRelationship(r.Type, r.From, r.To)
		k := op.RelationshipType + "#" + op.FromType + "#" + joinFields(op.FromKeyFields) +
			"#" + op.ToType + "#" + joinFields(op.ToKeyFields)
		if seen[k] {
			continue
		}
		seen[k] = true
		ops = append(ops, op)
	}
	return ops
}

// DeepCopy duplicates all accumulated state so that independent
// interpretation passes (MultiSequence branches, decomposed sub-contexts)
// cannot observe each other's mutations.
func (d *DesiredIngest) DeepCopy() *DesiredIngest {
	out := NewDesiredIngest()
	for _, n := range d.Nodes {
		out.AddNode(n.Identity, n.Properties)
	}
	for _, r := range d.Relationships {
		out.AddRelationship(r.Type, r.From, r.To, r.Properties)
	}
	out.Hooks = append(out.Hooks, d.Hooks...)
	return out
}

func mergeProperties(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

func cloneProperties(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	mergeProperties(out, src)
	return out
}

func joinFields(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += ","
		}
		out += f
	}
	return out
}
