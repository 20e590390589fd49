package regdata

import (
	regtypes "github.com/domainregistry/regdata/internal/regtypes"
)

// Kind classifies a lookup failure so callers can decide whether to retry,
// fall through to another ServerSpec, or give up. Defined in
// internal/regtypes and aliased here so the resolver/rdapclient/ltpclient
// packages (which must not import this package, to avoid an import cycle
// with client.go) share the exact same type as the public API.
type Kind = regtypes.Kind

const (
	// InvalidDomain means the input failed validation. Never retried.
	InvalidDomain = regtypes.InvalidDomain
	// UnsupportedTld means the resolver returned no ServerSpecs. Never retried.
	UnsupportedTld = regtypes.UnsupportedTld
	// Timeout means a configured deadline was exceeded.
	Timeout = regtypes.Timeout
	// Network means a connect/reset/DNS failure for one ServerSpec.
	Network = regtypes.Network
	// ProtocolDecode means the RDP JSON or LTP body was unintelligible.
	ProtocolDecode = regtypes.ProtocolDecode
	// TooLarge means the response size cap was hit.
	TooLarge = regtypes.TooLarge
	// ReferralLoop means a referral chain revisited a ServerSpec.
	ReferralLoop = regtypes.ReferralLoop
	// ReferralLimit means a referral chain exceeded MaxReferrals.
	ReferralLimit = regtypes.ReferralLimit
	// CacheError is never surfaced to callers; it is logged and treated as a miss.
	CacheError = regtypes.CacheError
	// NotFound means the authoritative source affirmatively has no record.
	NotFound = regtypes.NotFound
)

// Error is the typed error returned by Client.Lookup and Client.LookupFresh.
type Error = regtypes.Error

func newErr(kind Kind, domain, server string, cause error) *Error {
	return regtypes.NewError(kind, domain, server, cause)
}

// NewError constructs a typed Error. Exported so callers building their own
// fakes/tests can construct regdata-shaped errors without reaching into
// internal/regtypes.
func NewError(kind Kind, domain, server string, cause error) *Error {
	return regtypes.NewError(kind, domain, server, cause)
}
