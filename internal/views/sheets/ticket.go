package sheets

import (
	"fmt"
	"time"

	"github.com/a-h/templ"

	"formulary/internal/production"
)

// ProductionTicket renders the pick list of a committed production run.
func ProductionTicket(r *production.Result, runDate time.Time) templ.Component {
	return component(func(p *page) {
		title := fmt.Sprintf("%s x %d", r.RecipeName, r.Units)
		p.open(title)
		p.raw("<h1>")
		p.text(title)
		p.raw("</h1><p>Run ")
		p.text(r.RunID)
		p.raw(" on ")
		p.text(Date(runDate))
		p.raw("</p>")

		p.raw("<table><thead>")
		p.row("th", "Ingredient", "Per unit", "Deducted", "Stock before", "Stock after")
		p.raw("</thead><tbody>")
		for _, d := range r.Deducted {
			p.row("td", d.Name, Grams(d.PerUnit), Grams(d.Required), Grams(d.Available), Grams(d.Available-d.Required))
		}
		p.raw("</tbody></table>")
		p.close()
	})
}
