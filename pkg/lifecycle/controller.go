package lifecycle

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/folio-sites/folio-domains/pkg/db"
	"github.com/folio-sites/folio-domains/pkg/model"
	"github.com/folio-sites/folio-domains/pkg/rand"
	"github.com/folio-sites/folio-domains/pkg/verifier"
	"github.com/sirupsen/logrus"
)

const (
	tokenLength = 32
	tokenPrefix = "folio-verify="

	// DefaultCNAMETarget is the platform hostname tenant CNAME records point
	// at unless overridden.
	DefaultCNAMETarget = "sites.folio.app"

	// DefaultMismatchThreshold is the number of consecutive conclusive
	// mismatches tolerated before a domain is parked in ERROR. At the 15m
	// sweep cadence this is roughly five hours of definitely-wrong DNS.
	DefaultMismatchThreshold = 20
)

var (
	// ErrInvalidHostname rejects hostnames that could never verify.
	ErrInvalidHostname = errors.New("invalid hostname")

	ErrInvalidVerificationType = errors.New("invalid verification type")
)

// AssignedNotifier is told when a domain reaches ASSIGNED for the first
// time, so the certificate pipeline can pick it up.
type AssignedNotifier interface {
	DomainAssigned(ctx context.Context, d db.Domain)
}

// LogNotifier is the default AssignedNotifier; it only logs.
type LogNotifier struct{}

func (LogNotifier) DomainAssigned(_ context.Context, d db.Domain) {
	logrus.WithFields(logrus.Fields{
		"domain": d.Hostname,
		"tenant": d.TenantID,
	}).Info("domain assigned, ready for certificate issuance")
}

type Options struct {
	CNAMETarget       string
	MismatchThreshold int
}

// Controller owns the domain state machine. All tenant actions and all
// scheduled probes go through it.
type Controller struct {
	db       db.Database
	verifier *verifier.Verifier
	notifier AssignedNotifier
	opts     Options
	log      *logrus.Entry
}

func New(database db.Database, v *verifier.Verifier, notifier AssignedNotifier, opts Options, log *logrus.Entry) *Controller {
	if opts.CNAMETarget == "" {
		opts.CNAMETarget = DefaultCNAMETarget
	}
	if opts.MismatchThreshold == 0 {
		opts.MismatchThreshold = DefaultMismatchThreshold
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}

	return &Controller{
		db:       database,
		verifier: v,
		notifier: notifier,
		opts:     opts,
		log:      log,
	}
}

// Create registers a hostname for the tenant and mints its verification
// value. The value never changes afterwards; tenants publish it to DNS and a
// rotation would silently invalidate records they already created.
func (c *Controller) Create(ctx context.Context, tenantID uint, hostname string, vt model.VerificationType) (db.Domain, error) {
	hostname = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(hostname), "."))
	if err := validateHostname(hostname); err != nil {
		return db.Domain{}, err
	}

	if vt == "" {
		vt = model.VerificationTypeTxt
	}
	if err := vt.IsValid(); err != nil {
		return db.Domain{}, ErrInvalidVerificationType
	}

	return c.db.CreateDomain(tenantID, hostname, vt, c.mintValue(vt))
}

// Check probes the domain and commits the resulting transition. It is
// idempotent and safe to call concurrently with the scheduler; the commit is
// a single row update, so the last probe wins.
func (c *Controller) Check(ctx context.Context, tenantID, domainID uint) (db.Domain, error) {
	d, err := c.db.GetDomain(tenantID, domainID)
	if err != nil {
		return db.Domain{}, err
	}

	// Rows imported from before values were minted at creation sit in
	// PENDING; minting the value is the first transition, no probe yet.
	if d.Status == model.StatusPending && d.VerificationValue == "" {
		c.log.WithField("domain", d.Hostname).Info("minting verification value for imported domain")
		return c.db.BackfillVerification(d.ID, c.mintValue(d.VerificationType))
	}

	outcome := c.verifier.Verify(ctx, d)

	status := outcome.Status
	message := outcome.Message
	mismatches := d.MismatchCount

	switch {
	case !outcome.Conclusive:
		// Infra failure: keep the old diagnostic unless the probe produced a
		// more current one. Never count it against the domain.
		if message == "" {
			message = d.LastError
		}
	case outcome.Status.OwnershipProven():
		mismatches = 0
		message = ""
	case outcome.Status == model.StatusNeedsDNS:
		mismatches++
		if c.opts.MismatchThreshold > 0 && mismatches >= c.opts.MismatchThreshold {
			status = model.StatusError
		}
	}

	updated, transitioned, ok, err := c.db.CommitCheck(d.ID, status, message, mismatches)
	if err != nil {
		return db.Domain{}, err
	}
	if !ok {
		// Removed while the probe ran; the result is meaningless.
		return db.Domain{}, db.ErrNotFound
	}

	// The commit decides who crossed into ASSIGNED, so a manual check racing
	// a sweep notifies exactly once.
	if updated.Status == model.StatusAssigned && transitioned {
		c.notifier.DomainAssigned(ctx, updated)
	}

	return updated, nil
}

// SetPrimary promotes the domain to the tenant's canonical hostname. The
// previous primary is demoted in the same transaction.
func (c *Controller) SetPrimary(ctx context.Context, tenantID, domainID uint) (db.Domain, error) {
	return c.db.SetPrimary(tenantID, domainID)
}

// Remove hard-deletes the domain. If it was primary the tenant is left with
// none; promoting a replacement is deliberately an explicit decision.
func (c *Controller) Remove(ctx context.Context, tenantID, domainID uint) error {
	return c.db.DeleteDomain(tenantID, domainID)
}

func (c *Controller) Get(ctx context.Context, tenantID, domainID uint) (db.Domain, error) {
	return c.db.GetDomain(tenantID, domainID)
}

func (c *Controller) List(ctx context.Context, tenantID uint) ([]db.Domain, error) {
	return c.db.ListDomains(tenantID)
}

func (c *Controller) mintValue(vt model.VerificationType) string {
	if vt == model.VerificationTypeCname {
		return c.opts.CNAMETarget
	}
	return tokenPrefix + rand.Token(tokenLength)
}

func validateHostname(hostname string) error {
	if len(hostname) < 3 || len(hostname) > 253 {
		return ErrInvalidHostname
	}
	if net.ParseIP(hostname) != nil {
		return ErrInvalidHostname
	}
	if !strings.Contains(hostname, ".") {
		return ErrInvalidHostname
	}

	for _, label := range strings.Split(hostname, ".") {
		if len(label) == 0 || len(label) > 63 {
			return ErrInvalidHostname
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return ErrInvalidHostname
		}
		for _, r := range label {
			if r != '-' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
				return ErrInvalidHostname
			}
		}
	}

	return nil
}
