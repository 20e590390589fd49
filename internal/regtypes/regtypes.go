// Package regtypes holds the leaf types shared between the root regdata
// package (the lookup coordinator and public API) and its internal
// collaborators (the resolver, RDP client, and LTP client/referral
// engine). It exists purely to break the import cycle that would
// otherwise result from those collaborators needing ServerSpec/Error/Kind
// and the coordinator needing to call into the collaborators: regtypes
// depends on nothing in this module, the collaborators depend on
// regtypes, and the root package depends on both, re-exporting these
// types under their original names so the public API is unaffected.
package regtypes

import "fmt"

// Kind classifies a lookup failure so callers can decide whether to retry,
// fall through to another ServerSpec, or give up. See spec.md §7.
type Kind string

const (
	// InvalidDomain means the input failed validation. Never retried.
	InvalidDomain Kind = "invalid_domain"
	// UnsupportedTld means the resolver returned no ServerSpecs. Never retried.
	UnsupportedTld Kind = "unsupported_tld"
	// Timeout means a configured deadline was exceeded.
	Timeout Kind = "timeout"
	// Network means a connect/reset/DNS failure for one ServerSpec.
	Network Kind = "network"
	// ProtocolDecode means the RDP JSON or LTP body was unintelligible.
	ProtocolDecode Kind = "protocol_decode"
	// TooLarge means the response size cap was hit.
	TooLarge Kind = "too_large"
	// ReferralLoop means a referral chain revisited a ServerSpec.
	ReferralLoop Kind = "referral_loop"
	// ReferralLimit means a referral chain exceeded MaxReferrals.
	ReferralLimit Kind = "referral_limit"
	// CacheError is never surfaced to callers; it is logged and treated as a miss.
	CacheError Kind = "cache_error"
	// NotFound means the authoritative source affirmatively has no record.
	NotFound Kind = "not_found"
)

// Error is the typed error threaded through the resolver and both protocol
// clients, and returned (under its root-package alias) from Client.Lookup.
type Error struct {
	Kind   Kind
	Domain string
	Server string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("regdata: %s", e.Kind)
	if e.Domain != "" {
		msg += ": " + e.Domain
	}
	if e.Server != "" {
		msg += " (server " + e.Server + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is(err, regtypes.InvalidDomain) (and, via the root
// package's alias, errors.Is(err, regdata.InvalidDomain)) work by
// comparing a bare Kind against an *Error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e != nil && e.Kind == k
}

// Error makes Kind itself usable as an errors.Is sentinel.
func (k Kind) Error() string { return string(k) }

// NewError constructs a typed Error.
func NewError(kind Kind, domain, server string, cause error) *Error {
	return &Error{Kind: kind, Domain: domain, Server: server, Err: cause}
}

// ServerSpecKind tags a ServerSpec as either an RDP (RDAP) base URL or an
// LTP (port-43 WHOIS) host.
type ServerSpecKind string

const (
	// ServerRdp is a structured HTTP/JSON registration-data server.
	ServerRdp ServerSpecKind = "rdp"
	// ServerLtp is a line-oriented TCP/43 server.
	ServerLtp ServerSpecKind = "ltp"
)

// ServerSpec is an immutable description of how to reach an authoritative
// registration-data source. Exactly one of (BaseURL) or (Host, Port) is
// meaningful, selected by Kind.
type ServerSpec struct {
	Kind ServerSpecKind

	// BaseURL is set when Kind == ServerRdp.
	BaseURL string

	// Host and Port are set when Kind == ServerLtp. Port defaults to 43.
	Host string
	Port int
}

// String returns a human-readable identifier, suitable for CanonicalRecord.Server.
func (s ServerSpec) String() string {
	switch s.Kind {
	case ServerRdp:
		return s.BaseURL
	case ServerLtp:
		port := s.Port
		if port == 0 {
			port = 43
		}
		if port == 43 {
			return s.Host
		}
		return s.Host + ":" + itoa(port)
	default:
		return ""
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Equal reports whether two ServerSpecs address the same source, treating a
// zero Port as 43. The referral engine's cycle guard does not call it; it
// keys its visited set on the ServerSpec value itself.
func (s ServerSpec) Equal(o ServerSpec) bool {
	if s.Kind != o.Kind {
		return false
	}
	switch s.Kind {
	case ServerRdp:
		return s.BaseURL == o.BaseURL
	case ServerLtp:
		p1, p2 := s.Port, o.Port
		if p1 == 0 {
			p1 = 43
		}
		if p2 == 0 {
			p2 = 43
		}
		return s.Host == o.Host && p1 == p2
	default:
		return true
	}
}

// ReferralStep is one hop of a ReferralChain: the server queried, the raw
// body it returned, and the next hop it referred to (if any).
type ReferralStep struct {
	Server   ServerSpec
	Raw      string
	Referral *ServerSpec
}

// ReferralChain is the ordered sequence of hops a lookup followed. It always
// has length >= 1 on success; the last step has Referral == nil, except when
// the chain ended at an RDP referral, which is left in that step's Referral.
type ReferralChain []ReferralStep

// FinalServer returns the server that produced the terminal step.
func (c ReferralChain) FinalServer() ServerSpec {
	if len(c) == 0 {
		return ServerSpec{}
	}
	return c[len(c)-1].Server
}

// RawConcat concatenates every step's raw body, newline separated, per
// spec: CanonicalRecord.raw is "concatenation of step bodies, newline-separated".
func (c ReferralChain) RawConcat() string {
	var out string
	for i, step := range c {
		if i > 0 {
			out += "\n"
		}
		out += step.Raw
	}
	return out
}
