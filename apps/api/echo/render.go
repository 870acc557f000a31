package echoapi

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/assignment"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
)

//go:embed all:templates
var templateFS embed.FS

const layoutFile = "templates/_layout.gohtml"

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
	"letterLabel": func(l grade.Letter) string { return l.Label() },
	"numeric":     grade.Numeric,
	"overdue":     func(a assignment.Assignment, now time.Time) bool { return a.IsOverdue(now) },
	"entryName":   func(studentID string) string { return "entries[" + studentID + "]" },
}

type (
	templateRenderer struct {
		templates map[string]*template.Template
	}

	// pageData is what every page template receives.
	pageData struct {
		User *user.User
		Data interface{}
	}
)

var _ echo.Renderer = (*templateRenderer)(nil)

func newTemplateRenderer() *templateRenderer {
	r, err := parseTemplates(templateFS)
	if err != nil {
		panic(err)
	}
	return r
}

func parseTemplates(fsys fs.FS) (*templateRenderer, error) {
	fps, err := fs.Glob(fsys, "templates/*.gohtml")
	if err != nil {
		return nil, errors.Wrap(err, "listing page templates")
	}
	r := &templateRenderer{templates: make(map[string]*template.Template, len(fps))}
	for _, fp := range fps {
		fname := path.Base(fp)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		tmpl, err := template.New(fname).Funcs(templateFuncs).ParseFS(fsys, layoutFile, fp)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", fname)
		}
		r.templates[strings.TrimSuffix(fname, ".gohtml")] = tmpl
	}
	return r, nil
}

func (r *templateRenderer) Render(w io.Writer, name string, data interface{}, ctx echo.Context) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return errors.Errorf("unknown page template %q", name)
	}
	pd := pageData{Data: data}
	if usr, err := contextUser(ctx); err == nil {
		pd.User = &usr
	}
	return tmpl.ExecuteTemplate(w, "layout", pd)
}
