// Package validator classifies recipient addresses before any send attempt:
// a syntactic check first, then an MX lookup on the domain. Both rejection
// outcomes are ordinary results, not errors — bad addresses are routine
// traffic for a campaign send.
package validator

import (
	"context"
	"net"
	"regexp"
	"strings"
)

// Result is the outcome of validating a single recipient address.
type Result string

const (
	Valid         Result = "valid"
	InvalidFormat Result = "invalid_format"
	NoMX          Result = "no_mx"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// MXLookupFunc resolves the MX records for a domain. Injectable so tests
// never hit real DNS.
type MXLookupFunc func(ctx context.Context, domain string) ([]*net.MX, error)

// Validator checks recipient deliverability.
type Validator struct {
	lookupMX MXLookupFunc
}

// New returns a Validator backed by the default DNS resolver.
func New() *Validator {
	return &Validator{
		lookupMX: func(ctx context.Context, domain string) ([]*net.MX, error) {
			return net.DefaultResolver.LookupMX(ctx, domain)
		},
	}
}

// NewWithLookup returns a Validator using a custom MX lookup.
func NewWithLookup(fn MXLookupFunc) *Validator {
	return &Validator{lookupMX: fn}
}

// Check classifies an address. Malformed input fails closed with no DNS
// query; an empty MX set or a lookup error both classify as NoMX. The MX
// lookup is a real network call and honors ctx cancellation.
func (v *Validator) Check(ctx context.Context, email string) Result {
	email = strings.TrimSpace(email)
	if len(email) < 3 || len(email) > 254 || !emailPattern.MatchString(email) {
		return InvalidFormat
	}

	domain := email[strings.LastIndex(email, "@")+1:]
	records, err := v.lookupMX(ctx, domain)
	if err != nil || len(records) == 0 {
		return NoMX
	}
	return Valid
}
