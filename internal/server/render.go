package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/charmbracelet/log"
)

//go:embed templates/*.html
var templateFiles embed.FS

var pages = map[string]*template.Template{
	"callback": parsePage("callback.html"),
	"index":    parsePage("index.html"),
	"app":      parsePage("app.html"),
}

func parsePage(name string) *template.Template {
	return template.Must(template.ParseFS(templateFiles, "templates/layout.html", "templates/"+name))
}

// render executes the named page into a buffer before writing any of the response.
func render(w http.ResponseWriter, logger *log.Logger, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages[name].ExecuteTemplate(&buf, name+".html", data); err != nil {
		logger.Error("failed to render page", "page", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
