package http

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/0xcro3dile/policyqa-go/internal/domain/entities"
	"github.com/0xcro3dile/policyqa-go/internal/domain/usecases"
)

const defaultTitle = "Personnel Policies and Procedures"

type subentryLine struct {
	LeadIn string
	Rest   string
	Split  bool
}

var templateFuncs = template.FuncMap{
	"subentry": func(text string) subentryLine {
		lead, rest, ok := usecases.SplitSubentry(text)
		return subentryLine{LeadIn: lead, Rest: rest, Split: ok}
	},
	"level": func(level int) int {
		if level <= 0 {
			return 1
		}
		return level
	},
	"bullet": func(label string) string {
		if label == "" {
			return "•"
		}
		return label
	},
	"isTarget": func(view *usecases.SectionView, id string) bool {
		return view != nil && view.Target != nil && id != "" && view.Target.ID == id
	},
	"sectionURL": func(sectionID, targetID string) string {
		u := "/sections/" + url.PathEscape(sectionID)
		if targetID != "" {
			u += "?target=" + url.QueryEscape(targetID) + "#" + url.PathEscape(targetID)
		}
		return u
	},
}

// viewerPage is the data behind templates/viewer.html. A nil Current
// renders the cover page.
type viewerPage struct {
	Title          string
	Subtitle       string
	Sections       []entities.Section
	Current        *usecases.SectionView
	Version        string
	BotKeyRequired bool
	SiteLocked     bool
}

// handleIndex renders the cover page and table of contents.
func (s *Server) handleIndex(c *gin.Context) {
	s.renderViewer(c, "", "")
}

// handleSection renders one section, optionally highlighting ?target=.
func (s *Server) handleSection(c *gin.Context) {
	s.renderViewer(c, c.Param("id"), c.Query("target"))
}

func (s *Server) renderViewer(c *gin.Context, sectionID, targetID string) {
	if s.docSrc == nil {
		c.String(http.StatusServiceUnavailable, "Policy document is not configured.")
		return
	}

	ctx := c.Request.Context()
	outline, err := s.docs.Outline(ctx)
	if err != nil {
		_ = c.Error(err)
		c.String(http.StatusServiceUnavailable, "Policy document unavailable.")
		return
	}

	status := s.ask.Status()
	page := viewerPage{
		Title:          outline.Meta.Title,
		Subtitle:       outline.Meta.Subtitle,
		Sections:       outline.Sections,
		Version:        status.Version,
		BotKeyRequired: status.BotKeyRequired,
		SiteLocked:     s.site.Enabled(),
	}
	if page.Title == "" {
		page.Title = defaultTitle
	}

	if sectionID != "" {
		view, err := s.docs.Section(ctx, sectionID, targetID)
		if err != nil {
			if errors.Is(err, usecases.ErrSectionNotFound) {
				c.String(statusFor(err), "Section not found.")
				return
			}
			_ = c.Error(err)
			c.String(http.StatusServiceUnavailable, "Policy document unavailable.")
			return
		}
		page.Current = view
	}

	c.HTML(http.StatusOK, "viewer.html", page)
}
