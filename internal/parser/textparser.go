// Package parser implements the heuristic extraction of a canonical
// registration record from heterogeneous LTP text bodies and RDP JSON
// bodies (spec.md §4.8).
package parser

import (
	"strings"
	"time"
)

// Observation is a non-fatal note about a field that could not be
// extracted from a response. The caller (the regdata package) attaches a
// correlation ID before surfacing these to a Config.Debug caller.
type Observation struct {
	Field  string
	Reason string
	Value  string
}

// Result holds the non-computed fields extracted from one or more raw
// response bodies, plus any Observations recorded along the way.
type Result struct {
	Registrar *string

	CreationDate   *time.Time
	ExpirationDate *time.Time
	UpdatedDate    *time.Time

	NameServers []string
	Status      []string

	RegistrantEmail *string
	AdminEmail      *string
	TechEmail       *string

	Available *bool

	Observations []Observation
}

var registrarKeys = []string{
	"registrar", "sponsoring registrar", "registrar name", "registrar organization",
}

var creationKeys = []string{
	"creation date", "created", "created on", "registered on",
	"registration date", "domain registration date",
}

var expirationKeys = []string{
	"expiration date", "registry expiry date", "expires", "expires on",
	"paid-till", "renewal date",
}

var updatedKeys = []string{
	"updated date", "last updated", "last modified", "changed",
}

var nameServerKeys = []string{
	"name server", "nserver", "nameserver", "name servers",
}

var statusKeys = []string{
	"domain status", "status",
}

var emailSuffixes = []string{"email", "e-mail"}

// notFoundNeedles are case-insensitive substrings whose presence anywhere in
// a body indicates the domain is not registered. Grounded in the
// not-found-pattern table WHOIS scrapers commonly use.
var notFoundNeedles = []string{
	"no match for",
	"no data found",
	"no entries found",
	"domain not found",
	"no such domain",
	"status: free",
	"not found",
}

// ParseText extracts the canonical fields from a single raw LTP (or plain
// text RDP fallback) body using the key/value synonym tables from
// spec.md §4.8. It never returns an error: lines without a "key:" prefix are
// skipped, and unparseable dates are dropped and recorded as Observations.
func ParseText(body string) Result {
	var res Result
	seenNS := make(map[string]struct{})
	seenStatus := make(map[string]struct{})

	lines := strings.Split(body, "\n")
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(strings.TrimRight(lines[i], "\r"))
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "%") || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ">>>") {
			continue
		}
		idx := strings.IndexByte(trimmed, ':')
		if idx <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(trimmed[:idx]))
		value := strings.TrimSpace(trimmed[idx+1:])
		if value == "" {
			value = firstContinuation(lines, i+1)
			if value == "" {
				continue
			}
		}
		applyTextField(&res, key, value, seenNS, seenStatus)
	}

	classifyAvailability(&res, body)
	return res
}

// firstContinuation returns the first non-empty indented line starting at
// idx, per spec: "the value is the first non-empty continuation."
func firstContinuation(lines []string, start int) string {
	for j := start; j < len(lines); j++ {
		line := lines[j]
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !isIndented(line) {
			return ""
		}
		return strings.TrimSpace(line)
	}
	return ""
}

func isIndented(line string) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}

func applyTextField(res *Result, key, value string, seenNS, seenStatus map[string]struct{}) {
	switch {
	case matches(key, registrarKeys):
		if res.Registrar == nil {
			v := value
			res.Registrar = &v
		}
	case matches(key, creationKeys):
		setDate(&res.CreationDate, res, "creation_date", value)
	case matches(key, expirationKeys):
		setDate(&res.ExpirationDate, res, "expiration_date", value)
	case matches(key, updatedKeys):
		setDate(&res.UpdatedDate, res, "updated_date", value)
	case matches(key, nameServerKeys):
		host := strings.ToLower(strings.Fields(value)[0])
		if host != "" {
			if _, ok := seenNS[host]; !ok {
				seenNS[host] = struct{}{}
				res.NameServers = append(res.NameServers, host)
			}
		}
	case matches(key, statusKeys):
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			code := strings.Fields(part)[0]
			if code == "" {
				continue
			}
			if _, ok := seenStatus[code]; !ok {
				seenStatus[code] = struct{}{}
				res.Status = append(res.Status, code)
			}
		}
	case matchesEmailRole(key, "registrant"):
		if res.RegistrantEmail == nil {
			v := value
			res.RegistrantEmail = &v
		}
	case matchesEmailRole(key, "admin"):
		if res.AdminEmail == nil {
			v := value
			res.AdminEmail = &v
		}
	case matchesEmailRole(key, "tech"):
		if res.TechEmail == nil {
			v := value
			res.TechEmail = &v
		}
	}
}

func matches(key string, synonyms []string) bool {
	for _, s := range synonyms {
		if key == s {
			return true
		}
	}
	return false
}

func matchesEmailRole(key, role string) bool {
	for _, suffix := range emailSuffixes {
		if key == role+" "+suffix {
			return true
		}
	}
	return false
}

func setDate(dst **time.Time, res *Result, field, value string) {
	if *dst != nil {
		return
	}
	t, ok := ParseDate(value)
	if !ok {
		res.Observations = append(res.Observations, Observation{
			Field: field, Reason: "unparseable date", Value: value,
		})
		return
	}
	*dst = &t
}

func classifyAvailability(res *Result, body string) {
	lower := strings.ToLower(body)
	for _, needle := range notFoundNeedles {
		if strings.Contains(lower, needle) {
			available := true
			res.Available = &available
			return
		}
	}
	if res.Registrar != nil || len(res.NameServers) > 0 || res.CreationDate != nil {
		available := false
		res.Available = &available
	}
}
