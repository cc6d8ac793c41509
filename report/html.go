package report

import (
	"embed"
	"html/template"
	"io"

	"github.com/cadrimil/engine/diaria"
)

//go:embed templates/mission.html
var templatesFS embed.FS

var missionTmpl = template.Must(template.ParseFS(templatesFS, "templates/mission.html"))

// HTML renders a printable page.
type HTML struct{}

func (HTML) ContentType() string { return "text/html; charset=utf-8" }
func (HTML) Extension() string   { return "html" }

func (HTML) Render(w io.Writer, m diaria.Mission, t diaria.RateTable) error {
	return missionTmpl.Execute(w, NewModel(m, t))
}
