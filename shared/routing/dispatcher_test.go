package routing

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordbooking/nordbooking/shared/authz"
	"github.com/nordbooking/nordbooking/shared/config"
	"github.com/nordbooking/nordbooking/shared/models"
	"github.com/nordbooking/nordbooking/shared/tenancy"
)

type tenantTable struct {
	slugs  map[string]uint
	owners map[uint]bool
	err    error
}

func (t *tenantTable) TenantsBySetting(_ context.Context, _, value string) ([]uint, error) {
	if t.err != nil {
		return nil, t.err
	}
	if id, ok := t.slugs[value]; ok {
		return []uint{id}, nil
	}
	return nil, nil
}

func (t *tenantTable) IsActiveOwner(_ context.Context, id uint) (bool, error) {
	return t.owners[id], nil
}

type userTable map[uint]*models.User

func (u userTable) LoadUser(_ context.Context, id uint) (*models.User, error) {
	if user, ok := u[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, nil
}

type fixture struct {
	tenants *tenantTable
	users   userTable
}

func newFixture() *fixture {
	employer := uint(42)
	return &fixture{
		tenants: &tenantTable{
			slugs:  map[string]uint{"acme-cleaning": 42, "former-spa": 43},
			owners: map[uint]bool{42: true},
		},
		users: userTable{
			42: {ID: 42, Role: models.RoleBusinessOwner, Status: models.AccountActive},
			43: {ID: 43, Role: models.RoleCustomer, Status: models.AccountActive},
			50: {ID: 50, Role: models.RoleWorker, Status: models.AccountActive, EmployerID: &employer},
		},
	}
}

func (f *fixture) dispatcher(unknownPage string) *Dispatcher {
	resolver := tenancy.NewResolver(f.tenants, f.tenants, nil, time.Minute)
	return NewDispatcher(resolver, authz.NewPolicy(f.users, "/login/"), unknownPage)
}

var owner = &models.Principal{UserID: 42, Role: models.RoleBusinessOwner}
var worker = &models.Principal{UserID: 50, Role: models.RoleWorker}

func TestPublicBookingResolvesTenant(t *testing.T) {
	d := newFixture().dispatcher(config.UnknownPageNotFound)

	for _, path := range []string{"/booking/acme-cleaning/", "/booking/ACME-CLEANING/", "booking/acme-cleaning", "/booking/acme-cleaning/?ref=ad"} {
		decision, err := d.Dispatch(context.Background(), path, nil)
		require.NoError(t, err, path)
		assert.Equal(t, PublicBooking, decision.Kind, path)
		assert.Equal(t, OutcomeRender, decision.Outcome, path)
		assert.Equal(t, http.StatusOK, decision.Status)
		assert.Equal(t, uint(42), decision.TenantID)
		assert.Equal(t, ModePublic, decision.Mode)
		assert.True(t, decision.SuppressCanonical)
		assert.Equal(t, TemplateBookingForm, decision.Template)
	}
}

func TestEmbedBookingIsNeverPublic(t *testing.T) {
	d := newFixture().dispatcher(config.UnknownPageNotFound)

	decision, err := d.Dispatch(context.Background(), "/embed-booking/acme-cleaning/", nil)
	require.NoError(t, err)
	assert.Equal(t, EmbedBooking, decision.Kind)
	assert.Equal(t, ModeEmbed, decision.Mode)
	assert.Equal(t, uint(42), decision.TenantID)
}

func TestUnresolvedBookingIsUnhandled(t *testing.T) {
	d := newFixture().dispatcher(config.UnknownPageNotFound)

	for _, path := range []string{
		"/booking/unknown/",
		"/booking/former-spa/", // slug still stored, owner role gone
		"/booking/!!!/",
		"/booking/",
		"/booking/acme-cleaning/extra/",
		"/booking/acme-cleaning/embed-booking/acme-cleaning/",
		"/bookings/acme-cleaning/",
		"/embed-booking/",
	} {
		decision, err := d.Dispatch(context.Background(), path, nil)
		require.NoError(t, err, path)
		assert.False(t, decision.Handled(), path)
	}
}

func TestBookingStoreFailureIsAnError(t *testing.T) {
	f := newFixture()
	f.tenants.err = errors.New("db down")

	_, err := f.dispatcher(config.UnknownPageNotFound).Dispatch(context.Background(), "/booking/acme-cleaning/", nil)
	assert.ErrorIs(t, err, tenancy.ErrStoreUnavailable)
}

func TestDashboardDefaults(t *testing.T) {
	d := newFixture().dispatcher(config.UnknownPageNotFound)

	for _, path := range []string{"/dashboard/", "/dashboard", "dashboard"} {
		decision, err := d.Dispatch(context.Background(), path, owner)
		require.NoError(t, err, path)
		assert.Equal(t, OutcomeRender, decision.Outcome, path)
		assert.Equal(t, "overview", decision.Page)
		assert.Equal(t, "", decision.Action)
		assert.Equal(t, uint(42), decision.TenantID)
		assert.True(t, decision.SuppressCanonical)
	}

	decision, err := d.Dispatch(context.Background(), "/dashboard/services/42", owner)
	require.NoError(t, err)
	assert.Equal(t, "services", decision.Page)
	assert.Equal(t, "42", decision.Action)

	decision, err = d.Dispatch(context.Background(), "/dashboard/Services/Edit%20Me", owner)
	require.NoError(t, err)
	assert.Equal(t, "services", decision.Page)
	assert.Equal(t, "edit20me", decision.Action)
}

func TestDashboardRedirectsAnonymous(t *testing.T) {
	d := newFixture().dispatcher(config.UnknownPageNotFound)

	for _, path := range []string{"/dashboard/", "/dashboard/bookings/", "/dashboard/services/42/", "/dashboard/no-such-page/"} {
		decision, err := d.Dispatch(context.Background(), path, nil)
		require.NoError(t, err)
		require.Equal(t, OutcomeRedirect, decision.Outcome, path)
		assert.Equal(t, http.StatusFound, decision.Status)

		u, err := url.Parse(decision.RedirectURL)
		require.NoError(t, err)
		assert.Equal(t, path, u.Query().Get("redirect_to"))
	}
}

func TestDashboardForbiddenIsDistinct(t *testing.T) {
	d := newFixture().dispatcher(config.UnknownPageNotFound)

	decision, err := d.Dispatch(context.Background(), "/dashboard/workers/", worker)
	require.NoError(t, err)
	assert.Equal(t, OutcomeForbidden, decision.Outcome)
	assert.Equal(t, http.StatusForbidden, decision.Status)

	decision, err = d.Dispatch(context.Background(), "/dashboard/my-assigned-bookings/", worker)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRender, decision.Outcome)
	assert.Equal(t, uint(42), decision.TenantID)
}

func TestUnknownPageNotFoundPolicy(t *testing.T) {
	d := newFixture().dispatcher(config.UnknownPageNotFound)

	decision, err := d.Dispatch(context.Background(), "/dashboard/reports/", owner)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, decision.Outcome)
	assert.Equal(t, http.StatusNotFound, decision.Status)
}

func TestUnknownPageFallbackPolicy(t *testing.T) {
	d := newFixture().dispatcher(config.UnknownPageFallback)

	decision, err := d.Dispatch(context.Background(), "/dashboard/reports/weekly/", owner)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRender, decision.Outcome)
	assert.Equal(t, "overview", decision.Page)
	assert.Equal(t, "", decision.Action)
	assert.Equal(t, "reports", decision.RequestedPage)
}

func TestOtherPathsUnhandled(t *testing.T) {
	d := newFixture().dispatcher(config.UnknownPageNotFound)

	for _, path := range []string{"/", "", "/about/", "/dashboards/", "/dashboard/a/b/c/", "/embed-booking-x/acme/"} {
		decision, err := d.Dispatch(context.Background(), path, owner)
		require.NoError(t, err)
		assert.Equal(t, Unhandled, decision.Kind, path)
		assert.False(t, decision.Handled(), path)
	}
}
