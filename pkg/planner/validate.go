package planner

import "fmt"

// joinKeys intersects the aliases a clause generates with those already
// available and validates that joining on them is legal: a shared name must
// carry the same alias type on both sides, and a variable-length
// relationship alias can never be a join key. Keys are returned in
// generated-set order so plan shapes are deterministic.
func joinKeys(generated, available *Bindings) ([]string, error) {
	var keys []string
	for _, name := range generated.Names() {
		availType, ok := available.Get(name)
		if !ok {
			continue
		}
		genType, _ := generated.Get(name)
		if genType != availType {
			return nil, fmt.Errorf("%w: %s: %s vs %s", ErrAliasTypeConflict, name, genType, availType)
		}
		if genType == AliasEdgeList {
			return nil, fmt.Errorf("%w: %s", ErrEdgeListJoin, name)
		}
		keys = append(keys, name)
	}
	return keys, nil
}
