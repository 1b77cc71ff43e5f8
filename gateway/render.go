package main

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nordbooking/nordbooking/shared/models"
	"github.com/nordbooking/nordbooking/shared/routing"
)

const templateError = "error.html"

//go:embed templates/*.html
var templateFS embed.FS

// PageView is everything a template may read. It is built per request from the dispatch
// decision; templates never look anything up themselves.
type PageView struct {
	TenantID      uint
	Mode          string
	Embed         bool
	Page          string
	Action        string
	RequestedPage string
	Path          string
	APIBase       string
	ShowCanonical bool
	UserEmail     string
	Role          models.UserRole
	Status        int
	Message       string
}

// Renderer owns the embedded page templates. They are installed on the router with
// SetHTMLTemplate and written through c.HTML.
type Renderer struct {
	templates *template.Template
	apiBase   string
}

func NewRenderer(apiBase string) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{templates: tmpl, apiBase: apiBase}, nil
}

// View builds the template context for a render decision
func (r *Renderer) View(d routing.Decision, path string, principal *models.Principal) PageView {
	view := PageView{
		TenantID:      d.TenantID,
		Mode:          d.Mode,
		Embed:         d.Mode == routing.ModeEmbed,
		Page:          d.Page,
		Action:        d.Action,
		RequestedPage: d.RequestedPage,
		Path:          path,
		APIBase:       r.apiBase,
		ShowCanonical: !d.SuppressCanonical,
		Status:        d.Status,
	}
	if principal != nil {
		view.UserEmail = principal.Email
		view.Role = principal.Role
	}
	return view
}

// Templates returns the parsed page set for router.SetHTMLTemplate
func (r *Renderer) Templates() *template.Template {
	return r.templates
}

// Render writes the named template with the given status
func (r *Renderer) Render(c *gin.Context, status int, name string, view PageView) {
	c.HTML(status, name, view)
}

// RenderError writes the error page
func (r *Renderer) RenderError(c *gin.Context, status int) {
	r.Render(c, status, templateError, PageView{Status: status, Message: http.StatusText(status)})
}
