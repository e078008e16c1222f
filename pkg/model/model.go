package model

import (
	"fmt"
)

const (
	StatusPending   Status = "PENDING"
	StatusNeedsDNS  Status = "NEEDS_DNS"
	StatusVerifying Status = "VERIFYING"
	StatusVerified  Status = "VERIFIED"
	StatusAssigned  Status = "ASSIGNED"
	StatusError     Status = "ERROR"
)

// Status is a domain's position in the verification lifecycle.
type Status string

func (s Status) IsValid() error {
	switch s {
	case StatusPending, StatusNeedsDNS, StatusVerifying, StatusVerified, StatusAssigned, StatusError:
		return nil
	}

	return fmt.Errorf("invalid status")
}

// Active reports whether the scheduler should keep probing the domain on
// every sweep. Verified and assigned domains are only re-checked for drift.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusNeedsDNS, StatusVerifying:
		return true
	}

	return false
}

// OwnershipProven reports whether the domain may be promoted to primary.
func (s Status) OwnershipProven() bool {
	return s == StatusVerified || s == StatusAssigned
}

const (
	VerificationTypeTxt   VerificationType = "TXT"
	VerificationTypeCname VerificationType = "CNAME"
)

// VerificationType selects which DNS proof mechanism the tenant publishes.
type VerificationType string

func (vt VerificationType) IsValid() error {
	switch vt {
	case VerificationTypeTxt, VerificationTypeCname:
		return nil
	}

	return fmt.Errorf("invalid verification type")
}

// VerifyPrefix is the subdomain label TXT proofs are published under, e.g.
// _verify.example.com.
const VerifyPrefix = "_verify"

// TXTRecordName returns the fully qualified name the tenant must publish a
// TXT record at to prove ownership of hostname.
func TXTRecordName(hostname string) string {
	return fmt.Sprintf("%s.%s", VerifyPrefix, hostname)
}
