package charts

import (
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"sales-explorer/internal/models"
)

// Treemap lays the hierarchy out as nested flex boxes whose share of their
// parent follows their value. Nodes with a non-positive value are not drawn.
func (r *Renderer) Treemap(title string, nodes []models.TreeNode) template.HTML {
	total := positiveTotal(nodes)
	if total.IsZero() {
		return r.Placeholder()
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<div class="treemap" style="height:%dpx" aria-label="%s">`, r.height, html.EscapeString(title))
	writeNodes(&b, nodes, total, 0, "row")
	b.WriteString(`</div>`)
	return template.HTML(b.String())
}

func positiveTotal(nodes []models.TreeNode) decimal.Decimal {
	total := decimal.Zero
	for _, n := range nodes {
		if n.Value.IsPositive() {
			total = total.Add(n.Value)
		}
	}
	return total
}

func writeNodes(b *strings.Builder, nodes []models.TreeNode, total decimal.Decimal, depth int, direction string) {
	fmt.Fprintf(b, `<div class="treemap-level" style="display:flex;flex-direction:%s;width:100%%;height:100%%">`, direction)
	next := "column"
	if direction == "column" {
		next = "row"
	}

	drawn := 0
	for _, n := range nodes {
		if !n.Value.IsPositive() {
			continue
		}
		share := n.Value.Div(total).Mul(decimal.NewFromInt(100)).Round(3)
		label := html.EscapeString(n.Label)
		fmt.Fprintf(b,
			`<div class="treemap-node depth-%d" style="flex:0 0 %s%%;background:%s" title="%s: %s">`,
			depth, share.String(), colorAt(drawn+depth*3).WithAlpha(uint8(max(95, 255-depth*60))).String(),
			label, n.Value.StringFixed(2))
		fmt.Fprintf(b, `<span class="treemap-label">%s</span>`, label)
		if childTotal := positiveTotal(n.Children); !childTotal.IsZero() {
			writeNodes(b, n.Children, childTotal, depth+1, next)
		}
		b.WriteString(`</div>`)
		drawn++
	}
	b.WriteString(`</div>`)
}
