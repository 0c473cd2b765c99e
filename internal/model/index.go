package model

// IndexDescriptor is the common type for the index descriptors the
// Interpreter emits before any record-derived output. The writer side
// type-switches on the concrete variant to issue the matching
// single-statement index creation.
type IndexDescriptor interface {
	indexDescriptor()
}

// KeyIndex declares a uniqueness constraint on a node type's identity
// fields.
type KeyIndex struct {
	NodeType string
	Fields   []string
}

func (KeyIndex) indexDescriptor() {}

// FieldIndex declares a secondary (non-unique) index on a single field of
// a node type.
type FieldIndex struct {
	NodeType string
	Field    string
}

func (FieldIndex) indexDescriptor() {}

// TimeToLiveConfiguration describes a scheduled expiry sweep for a node
// type: nodes whose ExpiryField has passed are removed. TTL operations use
// a separate single-statement path from batched ingest, per the
// writer/store interface.
type TimeToLiveConfiguration struct {
	NodeType       string
	ExpiryField    string
	EnabledOverall bool
}

// IngestionHook is an optional side-effecting operation an Interpretation
// may attach to a DesiredIngest (e.g. marking an external dedupe cache).
// Writers that support hooks execute them alongside the ingest's
// node/relationship writes; a writer that does not support hooks may
// ignore them.
type IngestionHook interface {
	Name() string
}
