package parser

import (
	"strings"
	"time"

	"github.com/openrdap/rdap"
)

// ParseRDAPDomain maps a decoded RDAP domain object into a Result, per
// spec.md §4.8's RDP parsing rules: ldhName -> name_servers, status ->
// status, events -> dates by eventAction, entities walked for
// registrar/registrant/administrative/technical roles.
func ParseRDAPDomain(d *rdap.Domain) Result {
	var res Result
	if d == nil {
		return res
	}

	seenNS := make(map[string]struct{})
	for _, ns := range d.Nameservers {
		host := strings.ToLower(strings.TrimSpace(ns.LDHName))
		if host == "" {
			continue
		}
		if _, ok := seenNS[host]; !ok {
			seenNS[host] = struct{}{}
			res.NameServers = append(res.NameServers, host)
		}
	}

	seenStatus := make(map[string]struct{})
	for _, st := range d.Status {
		st = strings.TrimSpace(st)
		if st == "" {
			continue
		}
		if _, ok := seenStatus[st]; !ok {
			seenStatus[st] = struct{}{}
			res.Status = append(res.Status, st)
		}
	}

	applyRDAPEvents(&res, d.Events)
	applyRDAPEntities(&res, d.Entities)
	// A decoded RDAP domain object with no nameservers/registrar/creation
	// date is not, by itself, evidence of availability the way a textual "no
	// match" line is; classifyAvailability only flips to false when one of
	// those is present, and leaves Available nil otherwise.
	classifyAvailability(&res, "")
	return res
}

func applyRDAPEvents(res *Result, events []rdap.Event) {
	for _, ev := range events {
		t, err := time.Parse(time.RFC3339, ev.Date)
		if err != nil {
			if ev.Date != "" {
				res.Observations = append(res.Observations, Observation{
					Field: "event_date", Reason: "unparseable date", Value: ev.Date,
				})
			}
			continue
		}
		t = t.UTC()
		switch strings.ToLower(ev.Action) {
		case "registration":
			if res.CreationDate == nil {
				res.CreationDate = &t
			}
		case "expiration":
			if res.ExpirationDate == nil {
				res.ExpirationDate = &t
			}
		case "last changed":
			if res.UpdatedDate == nil {
				res.UpdatedDate = &t
			}
		}
	}
}

func applyRDAPEntities(res *Result, entities []rdap.Entity) {
	for _, e := range entities {
		name, email, _ := extractVCard(e.VCard)
		for _, role := range e.Roles {
			switch strings.ToLower(role) {
			case "registrar":
				if res.Registrar == nil && name != "" {
					v := name
					res.Registrar = &v
				}
			case "registrant":
				if res.RegistrantEmail == nil && email != "" {
					v := email
					res.RegistrantEmail = &v
				}
			case "administrative":
				if res.AdminEmail == nil && email != "" {
					v := email
					res.AdminEmail = &v
				}
			case "technical":
				if res.TechEmail == nil && email != "" {
					v := email
					res.TechEmail = &v
				}
			}
		}
	}
}

// extractVCard pulls the display name (preferring the "org" property over
// the fn/name property), email, and phone out of an RDAP jCard, adapted
// from the teacher's rdap_mapping.go extractVCard.
func extractVCard(vc *rdap.VCard) (name, email, phone string) {
	if vc == nil {
		return "", "", ""
	}
	if n := vc.Name(); n != "" {
		name = n
	}
	if e := vc.Email(); e != "" {
		email = e
	}
	if t := vc.Tel(); t != "" {
		phone = t
	}
	if p := vc.GetFirst("org"); p != nil {
		vals := p.Values()
		if len(vals) > 0 && vals[0] != "" {
			name = vals[0]
		}
	}
	return
}
