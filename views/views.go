// Package views holds the HTML templates of the application. Templates are
// embedded in the binary, a directory on disk can replace them while
// working on the markup.
package views

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-expense-tracker/auth"
)

//go:embed templates
var templatesFS embed.FS

const (
	// Extension of every template file
	Extension = ".html"
	// Layout wraps every rendered page, the page body is exposed as embed
	Layout = "layouts/main"
)

// FS returns the embedded templates rooted at the template directory
func FS() fs.FS {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// NewEngine returns the django engine. An empty dir serves the embedded
// templates, otherwise templates are read from dir and reloaded on each
// render.
func NewEngine(dir string) *django.Engine {
	var engine *django.Engine
	if dir == "" {
		engine = django.NewFileSystem(http.FS(FS()), Extension)
	} else {
		engine = django.New(dir, Extension)
		engine.Reload(true)
	}

	engine.AddFuncMap(auth.TemplateHelpers())

	return engine
}
