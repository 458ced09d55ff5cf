package report

import (
	"encoding/json"
	"io"

	"github.com/the-lean-crate/miner/pkg/model"
)

// Renderer turns a merged Report into a rendered artifact, e.g. an HTML
// index page. The aggregator invokes it after each package report is
// updated and again after the collection report is updated.
type Renderer interface {
	Render(r model.Report, w io.Writer) error
}

// JSONRenderer is the default Renderer: it writes the report back out as
// indented JSON, letting the aggregator run standalone without a real
// HTML templating collaborator wired in.
type JSONRenderer struct{}

func (JSONRenderer) Render(r model.Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
