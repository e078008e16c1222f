package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/folio-sites/folio-domains/pkg/db"
	"github.com/folio-sites/folio-domains/pkg/lifecycle"
	"github.com/folio-sites/folio-domains/pkg/model"
	"github.com/folio-sites/folio-domains/pkg/verifier"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver answers TXT proofs from a map and fails hard for hostnames in
// broken, to exercise per-domain isolation.
type fakeResolver struct {
	txt    map[string][]string
	broken map[string]bool
}

func (f *fakeResolver) LookupTXT(_ context.Context, hostname string) ([]string, error) {
	if f.broken[hostname] {
		return nil, errors.New("SERVFAIL")
	}
	return f.txt[hostname], nil
}

func (f *fakeResolver) LookupCNAME(_ context.Context, hostname string) ([]string, error) {
	return nil, nil
}

func (f *fakeResolver) LookupA(_ context.Context, hostname string) ([]string, error) {
	return nil, nil
}

func (f *fakeResolver) HTTPCheck(_ context.Context, _ string) bool {
	return false
}

func newTestScheduler(t *testing.T, recheckInterval time.Duration) (*Scheduler, db.Database, *fakeResolver, db.Tenant) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.sqlite")
	database, err := db.New(context.Background(), "sqlite", dsn, nil)
	require.NoError(t, err)

	tenant, err := database.CreateTenant("acme", "hash")
	require.NoError(t, err)

	res := &fakeResolver{
		txt:    map[string][]string{},
		broken: map[string]bool{},
	}

	controller := lifecycle.New(database, verifier.New(res, nil), nil, lifecycle.Options{},
		logrus.WithField("test", t.Name()))

	s := New(database, controller, time.Minute, recheckInterval, 4,
		logrus.WithField("test", t.Name()))

	return s, database, res, tenant
}

func TestSweepDrivesPendingDomains(t *testing.T) {
	s, database, res, tenant := newTestScheduler(t, 0)

	a, err := database.CreateDomain(tenant.ID, "a.example.com", model.VerificationTypeTxt, "folio-verify=a")
	require.NoError(t, err)
	b, err := database.CreateDomain(tenant.ID, "b.example.com", model.VerificationTypeTxt, "folio-verify=b")
	require.NoError(t, err)

	res.txt["_verify.a.example.com"] = []string{"folio-verify=a"}

	s.Sweep()

	got, err := database.GetDomain(tenant.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, got.Status)

	got, err = database.GetDomain(tenant.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNeedsDNS, got.Status)
	assert.NotEmpty(t, got.LastError)
}

func TestSweepIsolatesFailures(t *testing.T) {
	s, database, res, tenant := newTestScheduler(t, 0)

	broken, err := database.CreateDomain(tenant.ID, "broken.example.com", model.VerificationTypeTxt, "folio-verify=x")
	require.NoError(t, err)
	healthy, err := database.CreateDomain(tenant.ID, "healthy.example.com", model.VerificationTypeTxt, "folio-verify=y")
	require.NoError(t, err)

	res.broken["_verify.broken.example.com"] = true
	res.txt["_verify.healthy.example.com"] = []string{"folio-verify=y"}

	s.Sweep()

	// The failing domain keeps its status; the healthy one still progressed.
	got, err := database.GetDomain(tenant.ID, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNeedsDNS, got.Status)

	got, err = database.GetDomain(tenant.ID, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, got.Status)
}

func TestSweepSkipsVerifiedWithoutRecheck(t *testing.T) {
	s, database, _, tenant := newTestScheduler(t, 0)

	d, err := database.CreateDomain(tenant.ID, "done.example.com", model.VerificationTypeTxt, "folio-verify=d")
	require.NoError(t, err)
	_, _, ok, err := database.CommitCheck(d.ID, model.StatusVerified, "", 0)
	require.NoError(t, err)
	require.True(t, ok)

	s.Sweep()

	// Drift re-checks are disabled; the resolver has no record for it, so any
	// probe would have demoted it.
	got, err := database.GetDomain(tenant.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, got.Status)
}

func TestSweepRechecksStaleVerifiedForDrift(t *testing.T) {
	s, database, _, tenant := newTestScheduler(t, time.Nanosecond)

	d, err := database.CreateDomain(tenant.ID, "drifted.example.com", model.VerificationTypeTxt, "folio-verify=d")
	require.NoError(t, err)
	_, _, ok, err := database.CommitCheck(d.ID, model.StatusVerified, "", 0)
	require.NoError(t, err)
	require.True(t, ok)

	// Let the row age past the (tiny) re-check interval.
	time.Sleep(5 * time.Millisecond)

	s.Sweep()

	// The TXT record is gone, so drift knocks the domain back to NEEDS_DNS.
	got, err := database.GetDomain(tenant.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNeedsDNS, got.Status)
	assert.NotEmpty(t, got.LastError)
}

func TestSweepToleratesDeletedDomains(t *testing.T) {
	s, database, _, tenant := newTestScheduler(t, 0)

	d, err := database.CreateDomain(tenant.ID, "gone.example.com", model.VerificationTypeTxt, "folio-verify=g")
	require.NoError(t, err)
	require.NoError(t, database.DeleteDomain(tenant.ID, d.ID))

	// Simulate the listing/check race by checking a domain that is already
	// gone; the sweep must not error or panic.
	assert.NotPanics(t, s.Sweep)
}
