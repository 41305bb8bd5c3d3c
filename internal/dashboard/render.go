package dashboard

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/spacesedan/bluesense/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

//go:embed help/*.md
var helpFS embed.FS

var md = goldmark.New()

const (
	PAGE_INDEX     = "index.html"
	PAGE_DASHBOARD = "dashboard.html"
	PAGE_ERROR     = "error.html"
)

// Help holds the rendered help sections shown under every page.
type Help struct {
	ScoreMagnitude template.HTML
	Setup          template.HTML
}

// ErrorPage is shown when a query could not be answered.
type ErrorPage struct {
	Title   string
	Message string
	Hint    string
}

// PageData is the root object handed to every page template.
type PageData struct {
	Topic       string
	View        *View
	Error       *ErrorPage
	Help        Help
	ScorerState string
}

type Renderer struct {
	pages map[string]*template.Template
	help  Help
}

func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"markdown":    renderMarkdown,
		"labelTitle":  func(l models.Label) string { return labelTitles[l] },
		"noticeClass": noticeClass,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	pageNames := []string{PAGE_INDEX, PAGE_DASHBOARD, PAGE_ERROR}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	help, err := loadHelp()
	if err != nil {
		return nil, err
	}

	return &Renderer{pages: pages, help: help}, nil
}

func loadHelp() (Help, error) {
	read := func(name string) (template.HTML, error) {
		data, err := helpFS.ReadFile("help/" + name)
		if err != nil {
			return "", fmt.Errorf("reading help %s: %w", name, err)
		}
		return renderMarkdown(string(data)), nil
	}

	var help Help
	var err error
	if help.ScoreMagnitude, err = read("score_magnitude.md"); err != nil {
		return Help{}, err
	}
	if help.Setup, err = read("setup.md"); err != nil {
		return Help{}, err
	}
	return help, nil
}

// Render executes page into w. The PageData.Help field is filled in.
func (r *Renderer) Render(w io.Writer, page string, data PageData) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("template %s not found", page)
	}
	data.Help = r.help

	// Render to a buffer first so a failing template never leaves a half
	// written page behind.
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		slog.Error("[Dashboard] Error rendering template",
			slog.String("page", page),
			slog.String("error", err.Error()))
		return fmt.Errorf("rendering %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// StaticFS serves the stylesheet and chart bootstrap script.
func StaticFS() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func noticeClass(level models.NoticeLevel) string {
	if level == models.NoticeWarning {
		return "notice notice-warning"
	}
	return "notice notice-info"
}
