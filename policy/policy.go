// Package policy holds the validated retention configuration and the pure
// classification predicates the selection engine applies.
package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrNoThresholds is returned when neither the popularity nor the staleness
// threshold is enabled. A policy in that state selects nothing, and callers
// that intend to delete must treat it as a configuration error before any
// network call is made. Archive-only runs may proceed without a policy.
var ErrNoThresholds = errors.New("neither max_reposts nor stale_limit_days is set; nothing would ever be selected")

// Policy is an immutable retention configuration. The zero value is a valid
// select-nothing policy: both thresholds read as disabled.
type Policy struct {
	maxReposts       int64
	staleDays        int
	protectedDomains []string
}

// New validates and normalizes a retention policy. A threshold of 0 means
// disabled, not zero tolerance; if both thresholds are disabled New fails
// with ErrNoThresholds so a no-op policy never slips through silently.
func New(maxReposts int, staleDays int, protectedDomains []string) (*Policy, error) {
	if maxReposts < 0 {
		return nil, fmt.Errorf("max_reposts must be >= 0, got %d", maxReposts)
	}
	if staleDays < 0 {
		return nil, fmt.Errorf("stale_limit_days must be >= 0, got %d", staleDays)
	}
	if maxReposts == 0 && staleDays == 0 {
		return nil, ErrNoThresholds
	}

	return &Policy{
		maxReposts:       int64(maxReposts),
		staleDays:        staleDays,
		protectedDomains: normalizeDomains(protectedDomains),
	}, nil
}

func normalizeDomains(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	normalized := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		domain = strings.TrimPrefix(domain, ".")
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true
		normalized = append(normalized, domain)
	}
	sort.Strings(normalized)
	return normalized
}

// IsStale reports whether a timestamp is at least stale_limit_days whole days
// old at now. Disabled (0) always reports false.
func (p *Policy) IsStale(t time.Time, now time.Time) bool {
	if p.staleDays == 0 {
		return false
	}
	return now.Sub(t) >= time.Duration(p.staleDays)*24*time.Hour
}

// IsViral reports whether a repost count strictly exceeds max_reposts. A
// count exactly at the limit is retained. Disabled (0) always reports false,
// even for a count of zero: 0 configures the feature off, it is not a
// zero-tolerance limit.
func (p *Policy) IsViral(repostCount int64) bool {
	if p.maxReposts == 0 {
		return false
	}
	return repostCount > p.maxReposts
}

// TouchesProtectedDomain reports whether any of a post's link domains is a
// protected domain or a subdomain of one. Comparison is case-insensitive.
func (p *Policy) TouchesProtectedDomain(domains []string) bool {
	if len(p.protectedDomains) == 0 || len(domains) == 0 {
		return false
	}
	for _, domain := range domains {
		domain = strings.ToLower(domain)
		for _, protected := range p.protectedDomains {
			if domain == protected || strings.HasSuffix(domain, "."+protected) {
				return true
			}
		}
	}
	return false
}

// StaleDays exposes the configured staleness threshold for reporting.
func (p *Policy) StaleDays() int {
	return p.staleDays
}

// MaxReposts exposes the configured popularity threshold for reporting.
func (p *Policy) MaxReposts() int64 {
	return p.maxReposts
}

// ProtectedDomains returns the normalized protected domain list.
func (p *Policy) ProtectedDomains() []string {
	return append([]string(nil), p.protectedDomains...)
}

// String renders the policy for run logs and the stored policy snapshot.
func (p *Policy) String() string {
	return fmt.Sprintf(
		"max_reposts=%d stale_limit_days=%d protected_domains=%s",
		p.maxReposts, p.staleDays, strings.Join(p.protectedDomains, ","),
	)
}
