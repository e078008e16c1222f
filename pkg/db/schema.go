package db

import (
	"time"

	"github.com/folio-sites/folio-domains/pkg/model"
)

type Tenant struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"uniqueIndex"`
	TokenHash string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Domain rows are hard-deleted on removal so DNS-facing secrets do not
// linger in the table.
type Domain struct {
	ID                uint   `gorm:"primarykey"`
	TenantID          uint   `gorm:"index"`
	Tenant            Tenant `gorm:"constraint:OnDelete:CASCADE;"`
	Hostname          string `gorm:"uniqueIndex"` // global, not per-tenant
	Status            model.Status
	VerificationType  model.VerificationType
	VerificationValue string
	IsPrimary         bool
	LastError         string `gorm:"type:text"`
	MismatchCount     int    // consecutive conclusive mismatches, reset on success
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Response converts the row into its API shape, including the DNS record the
// tenant has to publish.
func (d Domain) Response() model.DomainResponse {
	instruction := model.DNSInstruction{
		Type:  string(d.VerificationType),
		Name:  d.Hostname,
		Value: d.VerificationValue,
	}
	if d.VerificationType == model.VerificationTypeTxt {
		instruction.Name = model.TXTRecordName(d.Hostname)
	}

	return model.DomainResponse{
		ID:                d.ID,
		Hostname:          d.Hostname,
		Status:            d.Status,
		VerificationType:  d.VerificationType,
		VerificationValue: d.VerificationValue,
		Primary:           d.IsPrimary,
		Error:             d.LastError,
		DNSRecord:         instruction,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}
