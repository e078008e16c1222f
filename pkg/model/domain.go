package model

import (
	"time"
)

// DomainResponse is the API representation of a domain. It carries enough
// for the dashboard to render DNS instructions without re-deriving them.
type DomainResponse struct {
	ID                uint             `json:"id"`
	Hostname          string           `json:"hostname"`
	Status            Status           `json:"status"`
	VerificationType  VerificationType `json:"verificationType"`
	VerificationValue string           `json:"verificationValue"`
	Primary           bool             `json:"primary"`
	Error             string           `json:"error,omitempty"`
	DNSRecord         DNSInstruction   `json:"dnsRecord"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// DNSInstruction is the record the tenant must publish, ready for display.
type DNSInstruction struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type CreateDomainRequest struct {
	Hostname         string           `json:"hostname"`
	VerificationType VerificationType `json:"verificationType,omitempty"`
}

type TenantResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name,omitempty"`
	Token string `json:"token,omitempty"`
}

type ErrorResponse struct {
	Status  int         `json:"status,omitempty"`
	Message string      `json:"msg,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
