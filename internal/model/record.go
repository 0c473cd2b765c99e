// Package model holds the data shapes that flow through and are produced
// by the pipeline: records, the Flush control token, per-record
// interpreter state, and the graph-ingestion intent that the Interpreter
// accumulates for a record.
package model

// Record is the opaque value flowing through stage-to-stage outboxes.
// The runtime never inspects it except to recognize Flush.
type Record = any

type flushToken struct{}

// Flush is the unique, process-wide control token. It is a pointer to an
// unexported type so that no ordinary record value (map, struct, string,
// whatever an extractor produces) can ever compare equal to it by
// accident; identity, not structural equality, is what marks a Flush.
var Flush Record = &flushToken{}

// IsFlush reports whether rec is the Flush sentinel.
func IsFlush(rec Record) bool {
	return rec == Flush
}
