package sheets

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// page accumulates escaped HTML and writes it in one call.
type page struct {
	b strings.Builder
}

func (p *page) raw(s string) { p.b.WriteString(s) }

func (p *page) text(s string) { p.b.WriteString(templ.EscapeString(s)) }

func (p *page) rawf(format string, args ...any) { fmt.Fprintf(&p.b, format, args...) }

func (p *page) cell(tag, value string) {
	p.raw("<" + tag + ">")
	p.text(value)
	p.raw("</" + tag + ">")
}

func (p *page) row(tag string, values ...string) {
	p.raw("<tr>")
	for _, v := range values {
		p.cell(tag, v)
	}
	p.raw("</tr>")
}

func (p *page) open(title string) {
	p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
	p.text(title)
	p.raw(`</title><style>body{font-family:sans-serif;margin:2rem}table{border-collapse:collapse;width:100%}th,td{border:1px solid #ccc;padding:.3rem .5rem;text-align:left}td.num{text-align:right}</style></head><body>`)
}

func (p *page) close() { p.raw("</body></html>") }

func component(build func(p *page)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var p page
		build(&p)
		_, err := io.WriteString(w, p.b.String())
		return err
	})
}
