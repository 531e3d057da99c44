package sheets

import (
	"github.com/a-h/templ"

	"formulary/internal/recipes"
)

// RecipeSheet renders a recipe with its composition, extras and costing.
func RecipeSheet(d *recipes.Detail) templ.Component {
	return component(func(p *page) {
		p.open(d.Name)
		p.raw("<h1>")
		p.text(d.Name)
		p.raw("</h1>")
		p.raw("<p>Batch weight: ")
		p.text(Grams(d.BatchWeight))
		p.raw("</p>")

		p.raw(`<table class="lines"><thead>`)
		p.row("th", "#", "Ingredient", "Percentage", "Grams", "Cost")
		p.raw("</thead><tbody>")
		for i, line := range d.Lines {
			p.rawf("<tr><td>%d</td>", i+1)
			p.cell("td", line.Name)
			p.cell("td", Percent(line.Percentage))
			p.cell("td", Grams(line.Grams))
			p.cell("td", Money(line.Cost))
			p.raw("</tr>")
		}
		p.raw("</tbody></table>")

		if len(d.Extras) > 0 {
			p.raw(`<table class="extras"><thead>`)
			p.row("th", "Extra", "Cost")
			p.raw("</thead><tbody>")
			for _, extra := range d.Extras {
				p.row("td", extra.Name, Money(extra.Cost))
			}
			p.raw("</tbody></table>")
		}

		p.raw(`<table class="totals"><tbody>`)
		p.row("td", "Materials", Money(d.MaterialCost))
		p.row("td", "Extras", Money(d.ExtraCost))
		p.row("td", "Total cost", Money(d.TotalCost))
		p.row("td", "Margin", Percent(d.Margin))
		p.row("td", "Sale price", Money(d.SalePrice))
		p.row("td", "Cost per gram", UnitPrice(d.CostPerGram))
		p.row("td", "Price per gram", UnitPrice(d.SalePricePerGram))
		p.raw("</tbody></table>")

		if d.Notes != "" {
			p.raw(`<section class="notes"><h2>Notes</h2><p>`)
			p.text(d.Notes)
			p.raw("</p></section>")
		}
		p.close()
	})
}
