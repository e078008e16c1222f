package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/folio-sites/folio-domains/pkg/model"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type database struct {
	db *gorm.DB
}

// New creates a new database connection
func New(ctx context.Context, dialect string, dsn string, config *gorm.Config) (Database, error) {
	if config == nil {
		config = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	}

	var db *gorm.DB
	var err error

	if dialect == "sqlite" {
		db, err = gorm.Open(sqlite.Open(dsn), config)
	} else if dialect == "mysql" {
		db, err = gorm.Open(mysql.Open(dsn), config)
	} else {
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}

	if err != nil {
		return nil, err
	}

	if dialect == "sqlite" {
		db.Exec("PRAGMA foreign_keys = ON")

		// sqlite allows a single writer; one pooled connection keeps
		// concurrent row updates from surfacing SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	db = db.WithContext(ctx)

	if err := db.AutoMigrate(
		&Tenant{},
		&Domain{},
	); err != nil {
		return nil, err
	}

	d := &database{
		db: db,
	}
	return d, nil
}

func (d *database) CreateTenant(name, tokenHash string) (Tenant, error) {
	tenant := Tenant{
		Name:      name,
		TokenHash: tokenHash,
	}
	sql := d.db.Create(&tenant)
	return tenant, sql.Error
}

func (d *database) GetTenant(id uint) (Tenant, error) {
	var tenant Tenant
	sql := d.db.Where("id = ?", id).Take(&tenant)
	if sql.Error == gorm.ErrRecordNotFound {
		return tenant, ErrNotFound
	}
	return tenant, sql.Error
}

func (d *database) CreateDomain(tenantID uint, hostname string, vt model.VerificationType, value string) (Domain, error) {
	var domain Domain
	err := d.db.Transaction(func(tx *gorm.DB) error {
		// The unique index is the real guard; this lookup only exists to
		// produce a clean error without relying on dialect error text.
		sql := tx.Where("hostname = ?", hostname).Take(&Domain{})
		if sql.Error == nil {
			return ErrDuplicateHostname
		}
		if sql.Error != gorm.ErrRecordNotFound {
			return sql.Error
		}

		domain = Domain{
			TenantID:          tenantID,
			Hostname:          hostname,
			Status:            model.StatusNeedsDNS,
			VerificationType:  vt,
			VerificationValue: value,
		}

		sql = tx.Create(&domain)
		if sql.Error != nil {
			if isUniqueViolation(sql.Error) {
				return ErrDuplicateHostname
			}
			return sql.Error
		}

		return nil
	})

	return domain, err
}

func (d *database) GetDomain(tenantID, domainID uint) (Domain, error) {
	var domain Domain
	sql := d.db.Where("id = ? AND tenant_id = ?", domainID, tenantID).Take(&domain)
	if sql.Error == gorm.ErrRecordNotFound {
		return domain, ErrNotFound
	}
	return domain, sql.Error
}

func (d *database) ListDomains(tenantID uint) ([]Domain, error) {
	var domains []Domain
	sql := d.db.Where("tenant_id = ?", tenantID).Order("created_at").Find(&domains)
	return domains, sql.Error
}

func (d *database) DeleteDomain(tenantID, domainID uint) error {
	sql := d.db.Where("id = ? AND tenant_id = ?", domainID, tenantID).Delete(&Domain{})
	if sql.Error != nil {
		return sql.Error
	}
	if sql.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *database) ListActiveDomains() ([]Domain, error) {
	var domains []Domain
	statuses := []model.Status{model.StatusPending, model.StatusNeedsDNS, model.StatusVerifying}
	sql := d.db.Where("status IN ?", statuses).Find(&domains)
	return domains, sql.Error
}

func (d *database) ListStaleVerifiedDomains(olderThan time.Time) ([]Domain, error) {
	var domains []Domain
	statuses := []model.Status{model.StatusVerified, model.StatusAssigned}
	sql := d.db.Where("status IN ? AND updated_at < ?", statuses, olderThan).Find(&domains)
	return domains, sql.Error
}

func (d *database) CommitCheck(domainID uint, status model.Status, lastError string, mismatches int) (Domain, bool, bool, error) {
	var domain Domain
	var transitioned, ok bool
	err := d.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":         status,
			"last_error":     lastError,
			"mismatch_count": mismatches,
			"updated_at":     time.Now(),
		}

		// The status guard detects the transition at commit time, so two
		// probes racing to the same status cannot both claim it.
		sql := tx.Model(&Domain{}).Where("id = ? AND status <> ?", domainID, status).Updates(updates)
		if sql.Error != nil {
			return sql.Error
		}
		if sql.RowsAffected == 1 {
			transitioned = true
		} else {
			sql = tx.Model(&Domain{}).Where("id = ?", domainID).Updates(updates)
			if sql.Error != nil {
				return sql.Error
			}
			if sql.RowsAffected == 0 {
				// Deleted while the probe was in flight. Drop the result.
				return nil
			}
		}

		ok = true
		return tx.Where("id = ?", domainID).Take(&domain).Error
	})

	return domain, transitioned, ok, err
}

func (d *database) BackfillVerification(domainID uint, value string) (Domain, error) {
	var domain Domain
	err := d.db.Transaction(func(tx *gorm.DB) error {
		sql := tx.Model(&Domain{}).
			Where("id = ? AND verification_value = ?", domainID, "").
			Updates(map[string]interface{}{
				"verification_value": value,
				"status":             model.StatusNeedsDNS,
			})
		if sql.Error != nil {
			return sql.Error
		}
		if sql.RowsAffected == 0 {
			// Value already minted, or the domain is gone.
			sql = tx.Where("id = ?", domainID).Take(&domain)
			if sql.Error == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return sql.Error
		}

		return tx.Where("id = ?", domainID).Take(&domain).Error
	})

	return domain, err
}

func (d *database) SetPrimary(tenantID, domainID uint) (Domain, error) {
	var domain Domain
	err := d.db.Transaction(func(tx *gorm.DB) error {
		sql := tx.Where("id = ? AND tenant_id = ?", domainID, tenantID).Take(&domain)
		if sql.Error == gorm.ErrRecordNotFound {
			return ErrNotFound
		}
		if sql.Error != nil {
			return sql.Error
		}

		if !domain.Status.OwnershipProven() {
			return ErrInvalidState
		}

		sql = tx.Model(&Domain{}).
			Where("tenant_id = ? AND is_primary = ? AND id <> ?", tenantID, true, domainID).
			Update("is_primary", false)
		if sql.Error != nil {
			return sql.Error
		}

		sql = tx.Model(&Domain{}).Where("id = ?", domainID).Update("is_primary", true)
		if sql.Error != nil {
			return sql.Error
		}

		return tx.Where("id = ?", domainID).Take(&domain).Error
	})

	return domain, err
}

// isUniqueViolation covers both supported dialects: sqlite reports "UNIQUE
// constraint failed", mysql error 1062 says "Duplicate entry".
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}
