package plan

import (
	"fmt"
	"strings"
)

// Explain renders a segment as an indented operator tree, one node per line,
// dependencies beneath their parent (left dependency first). The rendering
// is deterministic for a given query: variable names are omitted because
// they come from a counter shared with unrelated allocations.
func Explain(a *Arena, seg Segment) string {
	if seg.Empty() {
		return "<empty>\n"
	}
	var b strings.Builder
	explainNode(&b, a, seg.Root, 0)
	return b.String()
}

func explainNode(b *strings.Builder, a *Arena, id ID, depth int) {
	n := a.Node(id)
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.Kind().String())
	if detail := nodeDetail(n); detail != "" {
		b.WriteByte(' ')
		b.WriteString(detail)
	}
	if len(n.ColNames()) > 0 {
		fmt.Fprintf(b, " cols=[%s]", strings.Join(n.ColNames(), ", "))
	}
	b.WriteByte('\n')
	for _, dep := range n.Deps() {
		if dep == None {
			continue
		}
		explainNode(b, a, dep, depth+1)
	}
}

func nodeDetail(n *Node) string {
	switch n.Kind() {
	case KindScanNodes:
		if len(n.Scan.Labels) == 0 {
			return ""
		}
		return fmt.Sprintf("labels=[%s]", strings.Join(n.Scan.Labels, ", "))
	case KindExpand:
		return expandDetail(n.Expand)
	case KindPathBuild:
		return fmt.Sprintf("path=%s nodes=[%s] edges=[%s]",
			n.Path.Col, strings.Join(n.Path.Nodes, ", "), strings.Join(n.Path.Edges, ", "))
	case KindFilter:
		return "cond=" + n.Filter.Condition.String()
	case KindProject:
		return fmt.Sprintf("items=[%s]", columnList(n.Project.Columns))
	case KindAggregate:
		return fmt.Sprintf("items=[%s]", columnList(n.Agg.Columns))
	case KindUnwind:
		return fmt.Sprintf("expr=%s as=%s", n.Unwind.Expr.String(), n.Unwind.Alias)
	case KindSort:
		keys := make([]string, len(n.Sort.Keys))
		for i, k := range n.Sort.Keys {
			keys[i] = k.Expr.String()
			if k.Desc {
				keys[i] += " DESC"
			}
		}
		return fmt.Sprintf("keys=[%s]", strings.Join(keys, ", "))
	case KindLimit:
		var parts []string
		if n.Limit.Skip != nil {
			parts = append(parts, "skip="+n.Limit.Skip.String())
		}
		if n.Limit.Count != nil {
			parts = append(parts, "count="+n.Limit.Count.String())
		}
		return strings.Join(parts, " ")
	case KindHashInnerJoin, KindHashLeftJoin:
		return fmt.Sprintf("keys=[%s]", strings.Join(n.Join.Keys, ", "))
	}
	return ""
}

func expandDetail(spec *ExpandSpec) string {
	parts := []string{
		"src=" + spec.SrcCol,
		"edge=" + spec.EdgeCol,
		"dst=" + spec.DstCol,
		"dir=" + spec.Dir.String(),
	}
	if len(spec.Types) > 0 {
		parts = append(parts, fmt.Sprintf("types=[%s]", strings.Join(spec.Types, ", ")))
	}
	if spec.VarLength {
		max := "*"
		if spec.MaxHops >= 0 {
			max = fmt.Sprintf("%d", spec.MaxHops)
		}
		parts = append(parts, fmt.Sprintf("hops=%d..%s", spec.MinHops, max))
	}
	if len(spec.DstLabels) > 0 {
		parts = append(parts, fmt.Sprintf("dstLabels=[%s]", strings.Join(spec.DstLabels, ", ")))
	}
	if spec.BoundDst {
		parts = append(parts, "dst-bound")
	}
	return strings.Join(parts, " ")
}

func columnList(columns []Column) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		if s := c.Expr.String(); s != c.Name {
			parts[i] = s + " AS " + c.Name
		} else {
			parts[i] = c.Name
		}
	}
	return strings.Join(parts, ", ")
}
