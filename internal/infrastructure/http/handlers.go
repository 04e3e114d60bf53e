package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/0xcro3dile/policyqa-go/internal/domain/entities"
	"github.com/0xcro3dile/policyqa-go/internal/domain/usecases"
)

const (
	generatorDetail = "Set llm.provider (ollama or openai) in the config or POLICYQA_LLM_PROVIDER, then restart."
	generatorHint   = "Tip: open /api/ask in your browser. It should show hasAI:true."
	generationHint  = "If hasAI:true at /api/ask, check the server logs for the exact error and confirm the model endpoint is reachable."
)

// statusFor maps use case errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, usecases.ErrMissingQuestion):
		return http.StatusBadRequest
	case errors.Is(err, usecases.ErrAccessKeyRequired):
		return http.StatusUnauthorized
	case errors.Is(err, usecases.ErrDailyLimitReached):
		return http.StatusTooManyRequests
	case errors.Is(err, usecases.ErrSectionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// askErrorBody renders the JSON error payload the chat box displays.
func (s *Server) askErrorBody(err error) gin.H {
	switch {
	case errors.Is(err, usecases.ErrMissingQuestion):
		return gin.H{"error": "Missing question."}
	case errors.Is(err, usecases.ErrAccessKeyRequired):
		return gin.H{"error": "Assistant access key required (or incorrect). Enter the assistant access key and try again."}
	case errors.Is(err, usecases.ErrDailyLimitReached):
		limit := s.ask.Limit()
		return gin.H{
			"error":     fmt.Sprintf("Daily limit reached (%d questions/day).", limit),
			"limit":     limit,
			"remaining": 0,
		}
	case errors.Is(err, usecases.ErrGeneratorUnavailable):
		return gin.H{
			"error":  "Language model is not configured.",
			"detail": generatorDetail,
			"hint":   generatorHint,
			"status": s.ask.Status(),
		}
	case errors.Is(err, usecases.ErrGenerationFailed):
		return gin.H{
			"error":  "AI request failed.",
			"detail": strings.TrimPrefix(err.Error(), usecases.ErrGenerationFailed.Error()+": "),
			"hint":   generationHint,
			"status": s.ask.Status(),
		}
	default:
		return gin.H{"error": "Request failed.", "detail": err.Error()}
	}
}

// handleAskStatus reports which collaborators are configured.
func (s *Server) handleAskStatus(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, s.ask.Status())
}

// handleAsk answers one question.
func (s *Server) handleAsk(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	var body askBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body."})
		return
	}

	resp, err := s.ask.Ask(c.Request.Context(), body.request())
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		c.JSON(status, s.askErrorBody(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUnlockHint(c *gin.Context) {
	c.String(http.StatusOK, "Use the access key form on the main page to unlock.")
}

// handleUnlock checks the submitted site key and grants the access cookie.
func (s *Server) handleUnlock(c *gin.Context) {
	if !s.site.Enabled() {
		c.String(http.StatusInternalServerError, "Site key is not configured.")
		return
	}

	returnPath := c.DefaultPostForm("r", "/")
	if !s.site.CheckKey(c.PostForm("key")) {
		s.logger.Warn("site unlock rejected", zap.String("client_ip", c.ClientIP()))
		s.renderUnlock(c, http.StatusUnauthorized, "Incorrect access key.", returnPath)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(usecases.SiteCookieName, s.site.Token(), usecases.SiteCookieMaxAge, "/", "", true, true)
	c.Redirect(http.StatusFound, usecases.SafeRedirect(returnPath))
}

// handleLogout clears the access cookie.
func (s *Server) handleLogout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(usecases.SiteCookieName, "", -1, "/", "", true, true)
	c.Redirect(http.StatusFound, usecases.SafeRedirect(c.DefaultQuery("r", "/")))
}

func (s *Server) renderUnlock(c *gin.Context, status int, message, returnPath string) {
	c.Header("Cache-Control", "no-store")
	c.HTML(status, "unlock.html", gin.H{
		"Error":  message,
		"Return": returnPath,
	})
}

func (s *Server) handlePolicyAsset(c *gin.Context) {
	if s.docSrc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Policy document is not configured."})
		return
	}
	doc, err := s.docSrc.LoadDocument(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Policy document unavailable.", "detail": err.Error()})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleChunksAsset(c *gin.Context) {
	if s.chunks == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Chunk index is not configured."})
		return
	}
	chunks, err := s.chunks.LoadChunks(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Chunk index unavailable.", "detail": err.Error()})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, entities.ChunkSet{Chunks: chunks})
}
