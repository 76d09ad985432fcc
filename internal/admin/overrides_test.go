package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akademos/akademos/internal/gate"
	"github.com/akademos/akademos/internal/overrides"
	"github.com/akademos/akademos/internal/resolve"
)

func TestGetOverridesEmpty(t *testing.T) {
	f := newAdminFixture(t)

	res := f.do(http.MethodGet, "/users/5/overrides", "", "admin-staff")
	require.Equal(t, http.StatusOK, res.Code)

	var body overridesResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.EqualValues(t, 5, body.UserID)
	assert.NotNil(t, body.Custom)
	assert.NotNil(t, body.Denied)
	assert.Empty(t, body.Custom)
	assert.Empty(t, body.Denied)
}

func TestPutOverrideGrantThenDeny(t *testing.T) {
	f := newAdminFixture(t)

	res := f.do(http.MethodPut, "/users/5/overrides/reports.export", `{"op":"grant"}`, "admin-staff")
	require.Equal(t, http.StatusOK, res.Code)

	var body overridesResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, []string{"reports.export"}, body.Custom)
	assert.Empty(t, body.Denied)
	assert.False(t, body.SyncPending)

	res = f.do(http.MethodPut, "/users/5/overrides/reports.export", `{"op":"deny"}`, "admin-staff")
	require.Equal(t, http.StatusOK, res.Code)
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Empty(t, body.Custom)
	assert.Equal(t, []string{"reports.export"}, body.Denied)
}

func TestPutOverrideValidatesOp(t *testing.T) {
	f := newAdminFixture(t)

	res := f.do(http.MethodPut, "/users/5/overrides/reports.export", `{"op":"revoke"}`, "admin-staff")
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(http.MethodPut, "/users/5/overrides/reports.export", "{not json", "admin-staff")
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestClearOverride(t *testing.T) {
	f := newAdminFixture(t)

	res := f.do(http.MethodPut, "/users/5/overrides/reports.export", `{"op":"deny"}`, "admin-staff")
	require.Equal(t, http.StatusOK, res.Code)

	res = f.do(http.MethodDelete, "/users/5/overrides/reports.export", "", "admin-staff")
	require.Equal(t, http.StatusOK, res.Code)

	var body overridesResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Empty(t, body.Custom)
	assert.Empty(t, body.Denied)
}

func TestOverridesRequirePermission(t *testing.T) {
	f := newAdminFixture(t)

	res := f.do(http.MethodGet, "/users/5/overrides", "", "teacher")
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = f.do(http.MethodPut, "/users/5/overrides/reports.export", `{"op":"grant"}`, "teacher")
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestOverrideInvalidUserID(t *testing.T) {
	f := newAdminFixture(t)

	res := f.do(http.MethodGet, "/users/abc/overrides", "", "admin-staff")
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

type failingRepo struct{}

func (failingRepo) Load(ctx context.Context, userID int64) ([]string, []string, error) {
	return nil, nil, nil
}
func (failingRepo) Grant(ctx context.Context, userID int64, permission string) error {
	return errors.New("insert failed")
}
func (failingRepo) Deny(ctx context.Context, userID int64, permission string) error {
	return errors.New("insert failed")
}
func (failingRepo) Clear(ctx context.Context, userID int64, permission string) error {
	return nil
}

func TestOverrideMutationReportsSyncPending(t *testing.T) {
	f := newAdminFixture(t)

	// Swap in a store whose persistence always fails.
	store := overrides.NewStore(failingRepo{}, nil, testLogger())
	engine := resolve.NewEngine(&fixedCatalog{snap: adminSnapshot()}, noOverrides{})
	guard := gate.Middleware{Gate: gate.New(engine, nil)}

	router := chi.NewRouter()
	NewOverridesHandler(testLogger(), store, guard).MountRoutes(router)
	f.router = router

	res := f.do(http.MethodPut, "/users/5/overrides/reports.export", `{"op":"grant"}`, "admin-staff")
	require.Equal(t, http.StatusOK, res.Code)

	var body overridesResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, []string{"reports.export"}, body.Custom, "mutation stays applied locally")
	assert.True(t, body.SyncPending)
	assert.NotEmpty(t, body.SyncDetail)
}
