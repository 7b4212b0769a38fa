package planner

import "fmt"

// AliasType classifies what kind of value a query alias is bound to. Join
// compatibility is decided by comparing these: shared aliases must carry the
// same type on both sides, and EdgeList aliases can never serve as join
// keys.
type AliasType uint8

const (
	// AliasDefault covers plain values: projections, unwound elements,
	// parameters.
	AliasDefault AliasType = iota
	// AliasNode is a vertex binding from a node pattern.
	AliasNode
	// AliasEdge is a single-relationship binding.
	AliasEdge
	// AliasEdgeList is a variable-length relationship binding.
	AliasEdgeList
	// AliasPath is a named path binding.
	AliasPath
)

var aliasTypeNames = map[AliasType]string{
	AliasDefault:  "Default",
	AliasNode:     "Node",
	AliasEdge:     "Edge",
	AliasEdgeList: "EdgeList",
	AliasPath:     "Path",
}

func (t AliasType) String() string {
	if name, ok := aliasTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("AliasType(%d)", uint8(t))
}
