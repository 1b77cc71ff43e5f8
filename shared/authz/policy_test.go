package authz

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordbooking/nordbooking/shared/models"
)

type userMap map[uint]*models.User

func (m userMap) LoadUser(_ context.Context, id uint) (*models.User, error) {
	if u, ok := m[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

type failingChecker struct{}

func (failingChecker) LoadUser(context.Context, uint) (*models.User, error) {
	return nil, errors.New("db down")
}

func fixtures() userMap {
	employer := uint(1)
	formerEmployer := uint(3)
	return userMap{
		1: {ID: 1, Role: models.RoleBusinessOwner, Status: models.AccountActive},
		2: {ID: 2, Role: models.RoleWorker, Status: models.AccountActive, EmployerID: &employer},
		3: {ID: 3, Role: models.RoleBusinessOwner, Status: models.AccountSuspended},
		4: {ID: 4, Role: models.RoleWorker, Status: models.AccountActive, EmployerID: &formerEmployer},
		5: {ID: 5, Role: models.RoleCustomer, Status: models.AccountActive},
	}
}

func principal(id uint, role models.UserRole) *models.Principal {
	return &models.Principal{UserID: id, Role: role}
}

func TestAnonymousIsRedirectedWithReturnPath(t *testing.T) {
	p := NewPolicy(fixtures(), "/login/")
	d, err := p.Authorize(context.Background(), nil, PageBookings, "", "/dashboard/bookings/")
	require.NoError(t, err)
	assert.Equal(t, RedirectLogin, d.Outcome)

	u, err := url.Parse(d.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "/login/", u.Path)
	assert.Equal(t, "/dashboard/bookings/", u.Query().Get("redirect_to"))
}

func TestLoginRedirectKeepsExistingQuery(t *testing.T) {
	p := NewPolicy(fixtures(), "https://app.nordbooking.test/login/?lang=nb")
	u, err := url.Parse(p.LoginRedirect("/dashboard/?tab=week"))
	require.NoError(t, err)
	assert.Equal(t, "nb", u.Query().Get("lang"))
	assert.Equal(t, "/dashboard/?tab=week", u.Query().Get("redirect_to"))
}

func TestOwnerReachesOwnerPages(t *testing.T) {
	p := NewPolicy(fixtures(), "/login/")
	for page := range PageRules {
		d, err := p.Authorize(context.Background(), principal(1, models.RoleBusinessOwner), page, "", "/dashboard/"+page+"/")
		require.NoError(t, err)
		if page == PageMyAssignedBookings {
			assert.Equal(t, Forbidden, d.Outcome, page)
			continue
		}
		assert.Equal(t, Allow, d.Outcome, page)
		assert.Equal(t, uint(1), d.TenantID)
	}
}

func TestWorkerIsLimited(t *testing.T) {
	p := NewPolicy(fixtures(), "/login/")
	ctx := context.Background()

	d, err := p.Authorize(ctx, principal(2, models.RoleWorker), PageMyAssignedBookings, "", "/dashboard/my-assigned-bookings/")
	require.NoError(t, err)
	assert.Equal(t, Allow, d.Outcome)
	assert.Equal(t, uint(1), d.TenantID)

	d, err = p.Authorize(ctx, principal(2, models.RoleWorker), PageOverview, "", "/dashboard/")
	require.NoError(t, err)
	assert.Equal(t, Allow, d.Outcome)

	for _, page := range []string{PageWorkers, PageSettings, PageBookings, PageCustomers} {
		d, err := p.Authorize(ctx, principal(2, models.RoleWorker), page, "", "/dashboard/"+page+"/")
		require.NoError(t, err)
		assert.Equal(t, Forbidden, d.Outcome, page)
	}
}

func TestRelationshipsAreReverified(t *testing.T) {
	users := fixtures()
	p := NewPolicy(users, "/login/")
	ctx := context.Background()

	// employer suspended: the worker no longer belongs to a live tenant
	d, err := p.Authorize(ctx, principal(4, models.RoleWorker), PageMyAssignedBookings, "", "/dashboard/my-assigned-bookings/")
	require.NoError(t, err)
	assert.Equal(t, Forbidden, d.Outcome)

	// stale principal claims owner, storage says suspended
	d, err = p.Authorize(ctx, principal(3, models.RoleBusinessOwner), PageOverview, "", "/dashboard/")
	require.NoError(t, err)
	assert.Equal(t, RedirectLogin, d.Outcome)

	// demoted after login
	users[1].Role = models.RoleCustomer
	d, err = p.Authorize(ctx, principal(1, models.RoleBusinessOwner), PageSettings, "", "/dashboard/settings/")
	require.NoError(t, err)
	assert.Equal(t, RedirectLogin, d.Outcome)
}

func TestCustomerHasNoDashboard(t *testing.T) {
	p := NewPolicy(fixtures(), "/login/")
	d, err := p.Authorize(context.Background(), principal(5, models.RoleCustomer), PageOverview, "", "/dashboard/")
	require.NoError(t, err)
	assert.Equal(t, RedirectLogin, d.Outcome)
}

func TestUnknownPageIsForbidden(t *testing.T) {
	p := NewPolicy(fixtures(), "/login/")
	d, err := p.Authorize(context.Background(), principal(1, models.RoleBusinessOwner), "reports", "", "/dashboard/reports/")
	require.NoError(t, err)
	assert.Equal(t, Forbidden, d.Outcome)
}

func TestStoreFailureIsAnError(t *testing.T) {
	p := NewPolicy(failingChecker{}, "/login/")
	_, err := p.Authorize(context.Background(), principal(1, models.RoleBusinessOwner), PageOverview, "", "/dashboard/")
	assert.Error(t, err)
}
