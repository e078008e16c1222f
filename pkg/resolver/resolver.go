package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds every single lookup or HTTP probe.
	DefaultTimeout = 5 * time.Second

	// WellKnownPath is probed over HTTPS to confirm the hostname actually
	// routes to the platform edge.
	WellKnownPath = "/.well-known/folio-check"
)

// ErrTimeout marks a lookup that could not complete in time. Callers use it
// to tell "not configured yet" apart from "infrastructure problem".
var ErrTimeout = errors.New("lookup timed out")

// Resolver performs single DNS or HTTP checks. Absent records are an empty
// successful result, never an error; errors mean the check itself failed.
type Resolver interface {
	LookupCNAME(ctx context.Context, hostname string) ([]string, error)
	LookupTXT(ctx context.Context, hostname string) ([]string, error)
	LookupA(ctx context.Context, hostname string) ([]string, error)
	HTTPCheck(ctx context.Context, hostname string) bool
}

type netResolver struct {
	resolver *net.Resolver
	client   *http.Client
	timeout  time.Duration
}

// New returns a Resolver backed by the system DNS client. A non-positive
// timeout falls back to DefaultTimeout.
func New(timeout time.Duration) Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &netResolver{
		resolver: net.DefaultResolver,
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

func (r *netResolver) LookupCNAME(ctx context.Context, hostname string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cname, err := r.resolver.LookupCNAME(ctx, hostname)
	if err != nil {
		return classifyLookupErr(err)
	}

	// The net package reports the canonical name; a host without a CNAME
	// resolves to itself.
	target := strings.TrimSuffix(cname, ".")
	if target == "" || strings.EqualFold(target, strings.TrimSuffix(hostname, ".")) {
		return []string{}, nil
	}

	return []string{target}, nil
}

func (r *netResolver) LookupTXT(ctx context.Context, hostname string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// LookupTXT already joins the segments of a multi-string record.
	records, err := r.resolver.LookupTXT(ctx, hostname)
	if err != nil {
		return classifyLookupErr(err)
	}

	return records, nil
}

func (r *netResolver) LookupA(ctx context.Context, hostname string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ips, err := r.resolver.LookupIP(ctx, "ip4", hostname)
	if err != nil {
		return classifyLookupErr(err)
	}

	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.String())
	}

	return addrs, nil
}

// HTTPCheck issues a GET to https://{hostname}/.well-known/folio-check and
// reports whether it answered 2xx. Redirects are followed; any network error,
// timeout or non-2xx is simply false.
func (r *netResolver) HTTPCheck(ctx context.Context, hostname string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	url := fmt.Sprintf("https://%s%s", hostname, WellKnownPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// classifyLookupErr maps NXDOMAIN/NODATA to an empty successful result and
// keeps timeouts distinguishable from other failures.
func classifyLookupErr(err error) ([]string, error) {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return []string{}, nil
		}
		if dnsErr.IsTimeout {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return nil, err
}
