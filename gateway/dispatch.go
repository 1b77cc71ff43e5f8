package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/middleware"
	"github.com/nordbooking/nordbooking/shared/models"
	"github.com/nordbooking/nordbooking/shared/routing"
)

// RouteDispatcher decides how a page path is answered
type RouteDispatcher interface {
	Dispatch(ctx context.Context, path string, principal *models.Principal) (routing.Decision, error)
}

// handleDispatch serves every path no other route claimed
func handleDispatch(dispatcher RouteDispatcher, am *middleware.AuthMiddleware, renderer *Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			renderer.RenderError(c, http.StatusNotFound)
			return
		}

		principal, err := am.Resolve(c)
		if err != nil {
			logrus.WithError(err).Error("Failed to resolve principal")
			renderer.RenderError(c, http.StatusServiceUnavailable)
			return
		}

		path := c.Request.URL.Path
		decision, err := dispatcher.Dispatch(c.Request.Context(), path, principal)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"path":  path,
				"error": err,
			}).Error("Failed to dispatch request")
			renderer.RenderError(c, http.StatusServiceUnavailable)
			return
		}

		switch decision.Outcome {
		case routing.OutcomeRender:
			renderer.Render(c, decision.Status, decision.Template, renderer.View(decision, path, principal))
		case routing.OutcomeRedirect:
			c.Redirect(http.StatusFound, decision.RedirectURL)
		case routing.OutcomeForbidden:
			renderer.RenderError(c, http.StatusForbidden)
		default:
			renderer.RenderError(c, http.StatusNotFound)
		}
	}
}
