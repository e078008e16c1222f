package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/folio-sites/folio-domains/pkg/db"
	"github.com/folio-sites/folio-domains/pkg/model"
	"github.com/folio-sites/folio-domains/pkg/resolver"
	"golang.org/x/exp/slices"
)

// Outcome is the result of probing a single domain. Conclusive is false when
// an infrastructure failure prevented a definitive answer; such outcomes
// must never be counted as verification failures.
type Outcome struct {
	Status     model.Status
	Message    string
	Conclusive bool
}

type Verifier struct {
	resolver   resolver.Resolver
	ingressIPs []string
}

// New creates a verifier. ingressIPs are the platform edge addresses a
// routing A record is expected to point at; when empty, the HTTP probe alone
// decides whether traffic routes.
func New(res resolver.Resolver, ingressIPs []string) *Verifier {
	return &Verifier{
		resolver:   res,
		ingressIPs: ingressIPs,
	}
}

// Verify decides the domain's next status from its DNS configuration.
func (v *Verifier) Verify(ctx context.Context, d db.Domain) Outcome {
	var proven bool
	var out Outcome

	switch d.VerificationType {
	case model.VerificationTypeCname:
		proven, out = v.verifyCNAME(ctx, d)
	default:
		proven, out = v.verifyTXT(ctx, d)
	}

	if !proven {
		return out
	}

	return v.probeRouting(ctx, d)
}

func (v *Verifier) verifyTXT(ctx context.Context, d db.Domain) (bool, Outcome) {
	name := model.TXTRecordName(d.Hostname)
	records, err := v.resolver.LookupTXT(ctx, name)
	if err != nil {
		return false, inconclusive(d, "TXT", name, err)
	}

	for _, record := range records {
		if record == d.VerificationValue {
			return true, Outcome{}
		}
	}

	msg := fmt.Sprintf("expected TXT record %q at %s, found none", d.VerificationValue, name)
	if len(records) > 0 {
		msg = fmt.Sprintf("expected TXT record %q at %s, found %q", d.VerificationValue, name, strings.Join(records, ", "))
	}

	return false, Outcome{
		Status:     model.StatusNeedsDNS,
		Message:    msg,
		Conclusive: true,
	}
}

func (v *Verifier) verifyCNAME(ctx context.Context, d db.Domain) (bool, Outcome) {
	targets, err := v.resolver.LookupCNAME(ctx, d.Hostname)
	if err != nil {
		return false, inconclusive(d, "CNAME", d.Hostname, err)
	}

	want := normalizeHost(d.VerificationValue)
	for _, target := range targets {
		if normalizeHost(target) == want {
			return true, Outcome{}
		}
	}

	msg := fmt.Sprintf("expected CNAME record %s -> %s, found none", d.Hostname, d.VerificationValue)
	if len(targets) > 0 {
		msg = fmt.Sprintf("expected CNAME record %s -> %s, found %q", d.Hostname, d.VerificationValue, strings.Join(targets, ", "))
	}

	return false, Outcome{
		Status:     model.StatusNeedsDNS,
		Message:    msg,
		Conclusive: true,
	}
}

// probeRouting runs after ownership is proven. Both the A record and the
// HTTP probe have to pass for the domain to be considered serving.
func (v *Verifier) probeRouting(ctx context.Context, d db.Domain) Outcome {
	ips, err := v.resolver.LookupA(ctx, d.Hostname)
	if err != nil {
		// Ownership is proven but the routing answer is unknown until the
		// next probe. A domain that already made it past VERIFIED keeps its
		// status rather than being demoted by an infra failure.
		status := model.StatusVerifying
		if d.Status.OwnershipProven() {
			status = d.Status
		}
		return Outcome{
			Status:     status,
			Message:    fmt.Sprintf("ownership verified; A lookup for %s failed: %v", d.Hostname, err),
			Conclusive: false,
		}
	}

	if routes(ips, v.ingressIPs) && v.resolver.HTTPCheck(ctx, d.Hostname) {
		return Outcome{
			Status:     model.StatusAssigned,
			Conclusive: true,
		}
	}

	return Outcome{
		Status:     model.StatusVerified,
		Conclusive: true,
	}
}

func routes(ips, ingress []string) bool {
	if len(ips) == 0 {
		return false
	}
	if len(ingress) == 0 {
		return true
	}

	for _, ip := range ips {
		if slices.Contains(ingress, ip) {
			return true
		}
	}

	return false
}

// inconclusive keeps the current status and reports why the probe could not
// decide. Timeouts get their own wording so the UI can surface them.
func inconclusive(d db.Domain, recordType, name string, err error) Outcome {
	msg := fmt.Sprintf("%s lookup for %s failed: %v", recordType, name, err)
	if errors.Is(err, resolver.ErrTimeout) {
		msg = fmt.Sprintf("%s lookup for %s timed out", recordType, name)
	}

	return Outcome{
		Status:     d.Status,
		Message:    msg,
		Conclusive: false,
	}
}

func normalizeHost(s string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s), "."))
}
