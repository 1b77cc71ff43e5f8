package routing

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/authz"
	"github.com/nordbooking/nordbooking/shared/config"
	"github.com/nordbooking/nordbooking/shared/models"
	"github.com/nordbooking/nordbooking/shared/tenancy"
)

// Outcome tells the caller what to do with the request
type Outcome int

const (
	// OutcomeUnhandled leaves the request to the caller's default, normally a 404
	OutcomeUnhandled Outcome = iota
	OutcomeRender
	OutcomeRedirect
	OutcomeForbidden
	OutcomeNotFound
)

// Rendering modes and templates
const (
	ModePublic = "public"
	ModeEmbed  = "embed"

	TemplateBookingForm = "booking_form.html"
	TemplateDashboard   = "dashboard.html"
)

// Decision is the request-scoped result of Dispatch, handed to the renderer as is
type Decision struct {
	Kind              Kind
	Outcome           Outcome
	Status            int
	TenantID          uint
	Mode              string
	Page              string
	Action            string
	RequestedPage     string
	RedirectURL       string
	SuppressCanonical bool
	Template          string
}

// Handled reports whether the dispatcher produced a response for the request
func (d Decision) Handled() bool {
	return d.Outcome != OutcomeUnhandled
}

// TenantResolver resolves booking slugs
type TenantResolver interface {
	Resolve(ctx context.Context, slug string) (uint, error)
}

// Authorizer decides dashboard access
type Authorizer interface {
	Authorize(ctx context.Context, principal *models.Principal, page, action, requestedPath string) (authz.Decision, error)
}

// Dispatcher routes booking and dashboard paths
type Dispatcher struct {
	resolver    TenantResolver
	authorizer  Authorizer
	unknownPage string
}

// NewDispatcher creates a dispatcher. unknownPage is config.UnknownPageNotFound or
// config.UnknownPageFallback.
func NewDispatcher(resolver TenantResolver, authorizer Authorizer, unknownPage string) *Dispatcher {
	if unknownPage != config.UnknownPageFallback {
		unknownPage = config.UnknownPageNotFound
	}
	return &Dispatcher{
		resolver:    resolver,
		authorizer:  authorizer,
		unknownPage: unknownPage,
	}
}

// Dispatch turns a request path into a decision. Only store failures are returned as errors;
// unknown tenants, malformed slugs and denied access are all decisions.
func (d *Dispatcher) Dispatch(ctx context.Context, path string, principal *models.Principal) (Decision, error) {
	route := ParseRoute(path)

	switch route.Kind {
	case PublicBooking:
		return d.dispatchBooking(ctx, route, ModePublic)
	case EmbedBooking:
		return d.dispatchBooking(ctx, route, ModeEmbed)
	case Dashboard:
		return d.dispatchDashboard(ctx, route, requestedPath(path), principal)
	}
	return Decision{Kind: Unhandled, Outcome: OutcomeUnhandled}, nil
}

func (d *Dispatcher) dispatchBooking(ctx context.Context, route Route, mode string) (Decision, error) {
	tenantID, err := d.resolver.Resolve(ctx, route.Slug)
	if err != nil {
		if errors.Is(err, tenancy.ErrNotFound) || errors.Is(err, tenancy.ErrInvalidSlug) {
			return Decision{Kind: route.Kind, Outcome: OutcomeUnhandled}, nil
		}
		return Decision{}, err
	}

	return Decision{
		Kind:              route.Kind,
		Outcome:           OutcomeRender,
		Status:            http.StatusOK,
		TenantID:          tenantID,
		Mode:              mode,
		SuppressCanonical: true,
		Template:          TemplateBookingForm,
	}, nil
}

func (d *Dispatcher) dispatchDashboard(ctx context.Context, route Route, path string, principal *models.Principal) (Decision, error) {
	page, action := route.Page, route.Action
	known := authz.IsKnownPage(page)
	if !known {
		// unknown pages are checked like the overview so anonymous callers still get the login redirect
		page, action = DefaultPage, ""
	}

	verdict, err := d.authorizer.Authorize(ctx, principal, page, action, path)
	if err != nil {
		return Decision{}, err
	}

	switch verdict.Outcome {
	case authz.RedirectLogin:
		return Decision{
			Kind:        Dashboard,
			Outcome:     OutcomeRedirect,
			Status:      http.StatusFound,
			RedirectURL: verdict.RedirectURL,
		}, nil

	case authz.Forbidden:
		logrus.WithFields(logrus.Fields{
			"page":   route.Page,
			"reason": verdict.Reason,
		}).Debug("Dashboard access denied")
		return Decision{Kind: Dashboard, Outcome: OutcomeForbidden, Status: http.StatusForbidden}, nil
	}

	if !known && d.unknownPage == config.UnknownPageNotFound {
		return Decision{Kind: Dashboard, Outcome: OutcomeNotFound, Status: http.StatusNotFound}, nil
	}

	return Decision{
		Kind:              Dashboard,
		Outcome:           OutcomeRender,
		Status:            http.StatusOK,
		TenantID:          verdict.TenantID,
		Page:              page,
		Action:            action,
		RequestedPage:     route.Page,
		SuppressCanonical: true,
		Template:          TemplateDashboard,
	}, nil
}

func requestedPath(path string) string {
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}
