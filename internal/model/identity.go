package model

import (
	"fmt"
	"sort"
	"strings"
)

// NodeIdentity is the (type, key-fields) pair that uniquely names a node
// across the whole ingestion run, per the Invariants in the data model:
// node identity is (type, key-fields).
type NodeIdentity struct {
	Type string
	Keys map[string]any
}

// Key renders a stable, order-independent string for use as a map key so
// that two NodeIdentity values describing the same node collide on lookup
// regardless of the order their key fields were supplied in.
func (n NodeIdentity) Key() string {
	names := make([]string, 0, len(n.Keys))
	for k := range n.Keys {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(n.Type)
	for _, k := range names {
		fmt.Fprintf(&b, "|%s=%v", k, n.Keys[k])
	}
	return b.String()
}

// KeyFieldNames returns the sorted key field names, the shape an
// OperationOnNodeIdentity groups nodes by.
func (n NodeIdentity) KeyFieldNames() []string {
	names := make([]string, 0, len(n.Keys))
	for k := range n.Keys {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// OperationOnNodeIdentity is the shape descriptor the writer side groups
// like node operations by for batch execution: all nodes of one type
// keyed by the same set of fields can be upserted with one parameterized
// statement.
type OperationOnNodeIdentity struct {
	NodeType  string
	KeyFields []string
}

// OperationOnRelationshipIdentity is the analogous shape descriptor for
// relationships: one relationship type between two node types, keyed by
// each endpoint's key fields.
type OperationOnRelationshipIdentity struct {
	RelationshipType  string
	FromType          string
	FromKeyFields     []string
	ToType            string
	ToKeyFields       []string
}

func operationForNode(identity NodeIdentity) OperationOnNodeIdentity {
	return OperationOnNodeIdentity{
		NodeType:  identity.Type,
		KeyFields: identity.KeyFieldNames(),
	}
}

func operationForRelationship(relType string, from, to NodeIdentity) OperationOnRelationshipIdentity {
	return OperationOnRelationshipIdentity{
		RelationshipType: relType,
		FromType:         from.Type,
		FromKeyFields:    from.KeyFieldNames(),
		ToType:           to.Type,
		ToKeyFields:      to.KeyFieldNames(),
	}
}
