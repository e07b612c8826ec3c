// Package web holds the server-rendered pages of the back office.
package web

import (
	"embed"
	"fmt"
	"html/template"

	"github.com/gin-gonic/gin/render"

	"github.com/yoshi-pos/pos-web/internal/domain/entity"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Page names.
const (
	PageSignin        = "signin"
	PageVerifyRequest = "verify_request"
	PageDashboard     = "dashboard"
	PageOnboarding    = "onboarding"
	PageError         = "error"
)

var pages = []string{PageSignin, PageVerifyRequest, PageDashboard, PageOnboarding, PageError}

// PageData is passed to every page; Content is page specific.
type PageData struct {
	Title   string
	Toast   string
	Session *entity.Session
	Content interface{}
}

// Renderer renders each page inside the shared layout. It implements gin's HTMLRender.
type Renderer struct {
	templates map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.New(name).ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// Instance implements render.HTMLRender.
func (r *Renderer) Instance(name string, data any) render.Render {
	t, ok := r.templates[name]
	if !ok {
		t = r.templates[PageError]
		data = PageData{Title: "Error", Content: "Page not found."}
	}
	return render.HTML{Template: t, Name: "layout", Data: data}
}
