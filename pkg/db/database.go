package db

import (
	"time"

	"github.com/folio-sites/folio-domains/pkg/model"
)

type Database interface {
	CreateTenant(name, tokenHash string) (Tenant, error)
	GetTenant(id uint) (Tenant, error)

	CreateDomain(tenantID uint, hostname string, vt model.VerificationType, value string) (Domain, error)
	GetDomain(tenantID, domainID uint) (Domain, error)
	ListDomains(tenantID uint) ([]Domain, error)
	DeleteDomain(tenantID, domainID uint) error

	// ListActiveDomains returns domains still being driven toward
	// verification, across all tenants.
	ListActiveDomains() ([]Domain, error)
	// ListStaleVerifiedDomains returns verified/assigned domains whose last
	// check is older than the cutoff, for drift re-checks.
	ListStaleVerifiedDomains(olderThan time.Time) ([]Domain, error)

	// CommitCheck writes a probe result. transitioned reports whether this
	// write changed the status, decided at commit time so concurrent probes
	// cannot both claim the same transition; ok is false when the domain was
	// removed while the probe ran.
	CommitCheck(domainID uint, status model.Status, lastError string, mismatches int) (d Domain, transitioned bool, ok bool, err error)
	// BackfillVerification mints the verification value for a legacy PENDING
	// row. It refuses to overwrite an existing value.
	BackfillVerification(domainID uint, value string) (Domain, error)
	// SetPrimary atomically demotes any current primary of the tenant and
	// promotes the target. ErrInvalidState unless ownership is proven.
	SetPrimary(tenantID, domainID uint) (Domain, error)
}
