package bundle

import (
	"fmt"
	"strings"

	"github.com/bundlebase/bundlebase/internal/planner"
)

// Explain renders b's current logical plan as the indented, human-readable
// text spec.md's §4.4/§6 call PlanText. An empty plan (nothing attached
// yet) renders as a single line naming the empty root.
func (b *Bundle) Explain() string {
	var sb strings.Builder
	if b.plan == nil || b.plan.Root == nil {
		sb.WriteString("(empty)\n")
		return sb.String()
	}
	explainNode(&sb, b.plan.Root, 0)
	return sb.String()
}

func explainNode(sb *strings.Builder, n planner.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch node := n.(type) {
	case *planner.ScanNode:
		source := "?"
		if node.Block != nil {
			source = node.Block.SourceURL
		}
		if node.RowIDs != nil {
			fmt.Fprintf(sb, "%sScan %s (%d row ids", indent, source, len(node.RowIDs))
			if node.Residual != "" {
				fmt.Fprintf(sb, ", residual: %s", node.Residual)
			}
			sb.WriteString(")\n")
			return
		}
		fmt.Fprintf(sb, "%sScan %s (full)\n", indent, source)

	case *planner.UnionNode:
		fmt.Fprintf(sb, "%sUnion (%d columns)\n", indent, node.Schema.Len())
		for _, in := range node.Inputs {
			explainNode(sb, in, depth+1)
		}

	case *planner.FilterNode:
		fmt.Fprintf(sb, "%sFilter %s\n", indent, node.Expr)
		explainNode(sb, node.Input, depth+1)

	case *planner.ProjectNode:
		fmt.Fprintf(sb, "%sProject %s\n", indent, node.SQLOrCols)
		explainNode(sb, node.Input, depth+1)

	case *planner.RenameNode:
		fmt.Fprintf(sb, "%sRename %s -> %s\n", indent, node.From, node.To)
		explainNode(sb, node.Input, depth+1)

	case *planner.DropColumnsNode:
		fmt.Fprintf(sb, "%sDrop %s\n", indent, strings.Join(node.Names, ", "))
		explainNode(sb, node.Input, depth+1)

	case *planner.JoinNode:
		fmt.Fprintf(sb, "%sJoin %s %s ON %s\n", indent, node.How, node.RightAlias, node.Predicate)
		explainNode(sb, node.Left, depth+1)
		explainNode(sb, node.Right, depth+1)

	default:
		fmt.Fprintf(sb, "%s%T\n", indent, n)
	}
}
