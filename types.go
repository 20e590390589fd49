package regdata

import (
	"math"
	"time"

	"github.com/google/uuid"

	regtypes "github.com/domainregistry/regdata/internal/regtypes"
)

// ServerSpecKind tags a ServerSpec as either an RDP (RDAP) base URL or an
// LTP (port-43 WHOIS) host. Defined in internal/regtypes and aliased here;
// see errors.go for why.
type ServerSpecKind = regtypes.ServerSpecKind

const (
	// ServerRdp is a structured HTTP/JSON registration-data server.
	ServerRdp = regtypes.ServerRdp
	// ServerLtp is a line-oriented TCP/43 server.
	ServerLtp = regtypes.ServerLtp
)

// ServerSpec is an immutable description of how to reach an authoritative
// registration-data source. Exactly one of (BaseURL) or (Host, Port) is
// meaningful, selected by Kind.
type ServerSpec = regtypes.ServerSpec

// ReferralStep is one hop of a ReferralChain: the server queried, the raw
// body it returned, and the next hop it referred to (if any).
type ReferralStep = regtypes.ReferralStep

// ReferralChain is the ordered sequence of hops a lookup followed. It always
// has length >= 1 on success; the last step has Referral == nil, except when
// the chain ended at an RDP referral, which is left in that step's Referral.
type ReferralChain = regtypes.ReferralChain

// Observation is a non-fatal parser note, surfaced only when Config.Debug is
// true. It records a field that could not be extracted and why, so that an
// operator can correlate it against a structured log line carrying the same
// CorrelationID.
type Observation struct {
	CorrelationID uuid.UUID
	Field         string
	Reason        string
	Value         string
}

// CanonicalRecord is the output contract of a lookup: the non-computed
// fields the parser extracted, plus age/expiry fields derived at lookup
// time.
type CanonicalRecord struct {
	Domain string
	Server string
	Raw    string

	Registrar *string

	CreationDate   *time.Time
	ExpirationDate *time.Time
	UpdatedDate    *time.Time

	CreatedAgo *int64
	ExpiresIn  *int64
	UpdatedAgo *int64

	NameServers []string
	Status      []string

	RegistrantEmail *string
	AdminEmail      *string
	TechEmail       *string

	// Available is a tri-state classification: nil means the parser made no
	// determination either way, true means the textual response matched a
	// "not registered" heuristic, false means a record was found.
	Available *bool

	Cached      bool
	QueryTimeMs int64

	Observations []Observation `json:"-"`
}

// LookupOptions controls a single Lookup call.
type LookupOptions struct {
	// ForceRefresh bypasses the cache and always performs a fresh lookup.
	ForceRefresh bool
}

// cachePayload is what actually gets stored in the cache: every
// CanonicalRecord field except the derived _ago/_in trio and the Cached/
// QueryTimeMs/Observations bookkeeping fields, which are meaningless once
// replayed from a cache entry inserted at a different instant.
type cachePayload struct {
	Domain          string     `json:"domain"`
	Server          string     `json:"server"`
	Raw             string     `json:"raw"`
	Registrar       *string    `json:"registrar,omitempty"`
	CreationDate    *time.Time `json:"creation_date,omitempty"`
	ExpirationDate  *time.Time `json:"expiration_date,omitempty"`
	UpdatedDate     *time.Time `json:"updated_date,omitempty"`
	NameServers     []string   `json:"name_servers,omitempty"`
	Status          []string   `json:"status,omitempty"`
	RegistrantEmail *string    `json:"registrant_email,omitempty"`
	AdminEmail      *string    `json:"admin_email,omitempty"`
	TechEmail       *string    `json:"tech_email,omitempty"`
	Available       *bool      `json:"available,omitempty"`
}

func toCachePayload(r *CanonicalRecord) cachePayload {
	return cachePayload{
		Domain:          r.Domain,
		Server:          r.Server,
		Raw:             r.Raw,
		Registrar:       r.Registrar,
		CreationDate:    r.CreationDate,
		ExpirationDate:  r.ExpirationDate,
		UpdatedDate:     r.UpdatedDate,
		NameServers:     r.NameServers,
		Status:          r.Status,
		RegistrantEmail: r.RegistrantEmail,
		AdminEmail:      r.AdminEmail,
		TechEmail:       r.TechEmail,
		Available:       r.Available,
	}
}

func fromCachePayload(p cachePayload) *CanonicalRecord {
	return &CanonicalRecord{
		Domain:          p.Domain,
		Server:          p.Server,
		Raw:             p.Raw,
		Registrar:       p.Registrar,
		CreationDate:    p.CreationDate,
		ExpirationDate:  p.ExpirationDate,
		UpdatedDate:     p.UpdatedDate,
		NameServers:     p.NameServers,
		Status:          p.Status,
		RegistrantEmail: p.RegistrantEmail,
		AdminEmail:      p.AdminEmail,
		TechEmail:       p.TechEmail,
		Available:       p.Available,
	}
}

// applyDerived computes created_ago/expires_in/updated_ago from now, per
// spec: these are pure functions of (dates, now) and are never persisted.
// Each is floored, not truncated toward zero, so a deadline a few minutes in
// the past (e.g. an expiration_date 30 minutes ago) reports -1, not 0.
func applyDerived(r *CanonicalRecord, now time.Time) {
	if r.CreationDate != nil {
		d := floorDays(now.Sub(*r.CreationDate))
		r.CreatedAgo = &d
	}
	if r.ExpirationDate != nil {
		d := floorDays(r.ExpirationDate.Sub(now))
		r.ExpiresIn = &d
	}
	if r.UpdatedDate != nil {
		d := floorDays(now.Sub(*r.UpdatedDate))
		r.UpdatedAgo = &d
	}
}

func floorDays(d time.Duration) int64 {
	return int64(math.Floor(d.Hours() / 24))
}
