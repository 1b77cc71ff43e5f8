package authz

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/nordbooking/nordbooking/shared/models"
)

// Capability is a coarse permission held through a role
type Capability string

const (
	CapRead            Capability = "read"
	CapManageBookings  Capability = "manage_bookings"
	CapManageCatalog   Capability = "manage_catalog"
	CapManageStaff     Capability = "manage_staff"
	CapManageSettings  Capability = "manage_settings"
	CapViewCustomers   Capability = "view_customers"
	CapViewOwnBookings Capability = "view_own_bookings"
)

// Relationship is the tie the principal must have with the tenant
type Relationship string

const (
	RelMember Relationship = "member" // owner or worker of the tenant
	RelOwner  Relationship = "owner"
	RelWorker Relationship = "worker"
)

// PageRule is the requirement to open a dashboard page
type PageRule struct {
	Capability   Capability
	Relationship Relationship
}

// Dashboard pages
const (
	PageOverview           = "overview"
	PageBookings           = "bookings"
	PageCalendar           = "calendar"
	PageServices           = "services"
	PageServiceEdit        = "service-edit"
	PageDiscounts          = "discounts"
	PageAreas              = "areas"
	PageWorkers            = "workers"
	PageBookingForm        = "booking-form"
	PageSettings           = "settings"
	PageAvailability       = "availability"
	PageCustomers          = "customers"
	PageCustomerDetails    = "customer-details"
	PageMyAssignedBookings = "my-assigned-bookings"
)

// PageRules is the capability table for every known dashboard page
var PageRules = map[string]PageRule{
	PageOverview:           {CapRead, RelMember},
	PageBookings:           {CapManageBookings, RelOwner},
	PageCalendar:           {CapManageBookings, RelOwner},
	PageServices:           {CapManageCatalog, RelOwner},
	PageServiceEdit:        {CapManageCatalog, RelOwner},
	PageDiscounts:          {CapManageCatalog, RelOwner},
	PageAreas:              {CapManageCatalog, RelOwner},
	PageWorkers:            {CapManageStaff, RelOwner},
	PageBookingForm:        {CapManageSettings, RelOwner},
	PageSettings:           {CapManageSettings, RelOwner},
	PageAvailability:       {CapManageSettings, RelOwner},
	PageCustomers:          {CapViewCustomers, RelOwner},
	PageCustomerDetails:    {CapViewCustomers, RelOwner},
	PageMyAssignedBookings: {CapViewOwnBookings, RelWorker},
}

// RoleCapabilities lists what each role grants
var RoleCapabilities = map[models.UserRole][]Capability{
	models.RoleBusinessOwner: {
		CapRead, CapManageBookings, CapManageCatalog, CapManageStaff,
		CapManageSettings, CapViewCustomers, CapViewOwnBookings,
	},
	models.RoleWorker: {CapRead, CapViewOwnBookings},
}

// HasCapability reports whether the role grants c
func HasCapability(role models.UserRole, c Capability) bool {
	for _, granted := range RoleCapabilities[role] {
		if granted == c {
			return true
		}
	}
	return false
}

// IsKnownPage reports whether page has a rule
func IsKnownPage(page string) bool {
	_, ok := PageRules[page]
	return ok
}

// RelationshipChecker re-reads account state from storage
type RelationshipChecker interface {
	// LoadUser returns the account or nil when it no longer exists
	LoadUser(ctx context.Context, userID uint) (*models.User, error)
}

// Outcome of an authorization check
type Outcome int

const (
	Allow Outcome = iota
	RedirectLogin
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// Decision is the result of Authorize
type Decision struct {
	Outcome     Outcome
	TenantID    uint
	RedirectURL string
	Reason      string
}

// Policy decides dashboard access from the capability table and fresh account state
type Policy struct {
	checker  RelationshipChecker
	loginURL string
}

func NewPolicy(checker RelationshipChecker, loginURL string) *Policy {
	return &Policy{checker: checker, loginURL: loginURL}
}

// LoginRedirect builds the login URL carrying the requested path as redirect_to
func (p *Policy) LoginRedirect(requestedPath string) string {
	u, err := url.Parse(p.loginURL)
	if err != nil {
		return p.loginURL + "?redirect_to=" + url.QueryEscape(requestedPath)
	}
	q := u.Query()
	q.Set("redirect_to", requestedPath)
	u.RawQuery = q.Encode()
	return u.String()
}

func (p *Policy) redirect(requestedPath, reason string) Decision {
	return Decision{Outcome: RedirectLogin, RedirectURL: p.LoginRedirect(requestedPath), Reason: reason}
}

// Authorize decides whether principal may open page. A missing principal or one without the
// read capability is sent to login; an authenticated principal lacking the page's capability or
// relationship is Forbidden. Unknown pages are Forbidden; callers map them first.
func (p *Policy) Authorize(ctx context.Context, principal *models.Principal, page, action, requestedPath string) (Decision, error) {
	if principal == nil {
		return p.redirect(requestedPath, "unauthenticated"), nil
	}

	user, err := p.checker.LoadUser(ctx, principal.UserID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to verify principal: %w", err)
	}
	if user == nil || !user.IsActive() {
		return p.redirect(requestedPath, "account unavailable"), nil
	}
	if !HasCapability(user.Role, CapRead) {
		return p.redirect(requestedPath, "no read capability"), nil
	}

	rule, ok := PageRules[page]
	if !ok {
		return Decision{Outcome: Forbidden, Reason: "unknown page"}, nil
	}
	if !HasCapability(user.Role, rule.Capability) {
		return Decision{Outcome: Forbidden, Reason: fmt.Sprintf("missing capability %s", rule.Capability)}, nil
	}

	tenantID, err := p.verifyRelationship(ctx, user, rule.Relationship)
	if err != nil {
		if errors.Is(err, errNoRelationship) {
			return Decision{Outcome: Forbidden, Reason: err.Error()}, nil
		}
		return Decision{}, err
	}

	return Decision{Outcome: Allow, TenantID: tenantID}, nil
}

var errNoRelationship = errors.New("relationship with tenant not held")

// verifyRelationship returns the tenant the user acts for under rel. A worker's employer must
// still be an active business owner.
func (p *Policy) verifyRelationship(ctx context.Context, user *models.User, rel Relationship) (uint, error) {
	switch user.Role {
	case models.RoleBusinessOwner:
		if rel == RelWorker {
			return 0, errNoRelationship
		}
		return user.ID, nil

	case models.RoleWorker:
		if rel == RelOwner || user.EmployerID == nil {
			return 0, errNoRelationship
		}
		employer, err := p.checker.LoadUser(ctx, *user.EmployerID)
		if err != nil {
			return 0, fmt.Errorf("failed to verify employer: %w", err)
		}
		if employer == nil || !employer.IsActiveOwner() {
			return 0, errNoRelationship
		}
		return employer.ID, nil
	}
	return 0, errNoRelationship
}
