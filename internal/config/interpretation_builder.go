package config

import (
	"fmt"

	"github.com/conduix/nodestream/internal/interpreting"
)

// InterpretationFromArguments builds a single interpreting.Interpretation
// from a parsed YAML mapping, dispatching on its "type" key. This is the
// declarative leaf-construction counterpart to PassFromArguments, built
// for the handful of Interpretation kinds this module ships: variable
// assignment, node/relationship upserts, and a bare field index.
func InterpretationFromArguments(spec map[string]any) (interpreting.Interpretation, error) {
	kind, _ := spec["type"].(string)
	switch kind {
	case "set_variable":
		name, _ := spec["name"].(string)
		src, err := valueSourceFromArguments(spec["value"])
		if err != nil {
			return nil, err
		}
		return interpreting.SetVariableInterpretation{Name: name, Source: src}, nil

	case "add_node":
		identity, err := nodeIdentitySpecFromArguments(spec["node_type"], spec["keys"])
		if err != nil {
			return nil, err
		}
		props, err := propertySourcesFromArguments(spec["properties"])
		if err != nil {
			return nil, err
		}
		keyIndex, _ := spec["key_index"].(bool)
		return interpreting.AddNodeInterpretation{Identity: identity, Properties: props, KeyIndex: keyIndex}, nil

	case "add_relationship":
		relType, _ := spec["relationship_type"].(string)
		from, err := nodeIdentitySpecFromArguments(spec["from_type"], spec["from_keys"])
		if err != nil {
			return nil, err
		}
		to, err := nodeIdentitySpecFromArguments(spec["to_type"], spec["to_keys"])
		if err != nil {
			return nil, err
		}
		props, err := propertySourcesFromArguments(spec["properties"])
		if err != nil {
			return nil, err
		}
		return interpreting.AddRelationshipInterpretation{Type: relType, From: from, To: to, Properties: props}, nil

	case "field_index":
		nodeType, _ := spec["node_type"].(string)
		field, _ := spec["field"].(string)
		return interpreting.FieldIndexInterpretation{NodeType: nodeType, Field: field}, nil

	default:
		return nil, fmt.Errorf("unknown interpretation type: %q", kind)
	}
}

func nodeIdentitySpecFromArguments(nodeType any, keys any) (interpreting.NodeIdentitySpec, error) {
	typeName, _ := nodeType.(string)
	if typeName == "" {
		return interpreting.NodeIdentitySpec{}, fmt.Errorf("node identity requires a node_type")
	}

	keyMap, _ := keys.(map[string]any)
	sources := make(map[string]interpreting.ValueSource, len(keyMap))
	for name, raw := range keyMap {
		src, err := valueSourceFromArguments(raw)
		if err != nil {
			return interpreting.NodeIdentitySpec{}, err
		}
		sources[name] = src
	}
	return interpreting.NodeIdentitySpec{Type: typeName, Keys: sources}, nil
}

func propertySourcesFromArguments(properties any) (map[string]interpreting.ValueSource, error) {
	propMap, _ := properties.(map[string]any)
	out := make(map[string]interpreting.ValueSource, len(propMap))
	for name, raw := range propMap {
		src, err := valueSourceFromArguments(raw)
		if err != nil {
			return nil, err
		}
		out[name] = src
	}
	return out, nil
}

// valueSourceFromArguments parses a value descriptor: a mapping with a
// single key of "field", "variable", or "value" selects FieldRef,
// VariableRef, or Literal respectively; a non-mapping value is treated as
// a Literal, and a mapping with none of those keys is an error.
func valueSourceFromArguments(raw any) (interpreting.ValueSource, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return interpreting.Literal{Value: raw}, nil
	}

	if field, ok := m["field"].(string); ok {
		return interpreting.FieldRef{Field: field}, nil
	}
	if name, ok := m["variable"].(string); ok {
		return interpreting.VariableRef{Name: name}, nil
	}
	if value, ok := m["value"]; ok {
		return interpreting.Literal{Value: value}, nil
	}
	return nil, fmt.Errorf("unrecognized value source: %v", raw)
}
