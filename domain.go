package regdata

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// normalizeDomain lowercases, trims surrounding whitespace, and strips a
// single trailing dot. It does not validate.
func normalizeDomain(d string) string {
	d = strings.TrimSpace(d)
	d = strings.TrimSuffix(d, ".")
	return strings.ToLower(d)
}

// validateDomain enforces the §3 Domain key grammar: non-empty, <= 253
// octets, labels of 1-63 octets of letters/digits/hyphen with no leading or
// trailing hyphen, at least one dot.
func validateDomain(d string) bool {
	if d == "" || len(d) > 253 {
		return false
	}
	if !strings.Contains(d, ".") {
		return false
	}
	labels := strings.Split(d, ".")
	for _, label := range labels {
		if !validLabel(label) {
			return false
		}
	}
	return true
}

func validLabel(label string) bool {
	n := len(label)
	if n < 1 || n > 63 {
		return false
	}
	if label[0] == '-' || label[n-1] == '-' {
		return false
	}
	for i := 0; i < n; i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return false
		}
	}
	return true
}

// effectiveTLD returns the registrable suffix of domain (e.g. "co.uk" for
// "www.example.co.uk"), backed by the public suffix list via
// golang.org/x/net/publicsuffix, exactly as the teacher's
// lookupDomainFresh uses publicsuffix.EffectiveTLDPlusOne.
func effectiveTLD(domain string) (string, error) {
	suffix, _ := publicsuffix.PublicSuffix(domain)
	if suffix == "" {
		return "", newErr(InvalidDomain, domain, "", errNoSuffix)
	}
	return suffix, nil
}

// apexOf returns the registrable domain (suffix plus one label), e.g.
// "example.co.uk" for "www.example.co.uk".
func apexOf(domain string) (string, error) {
	apex, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return "", newErr(InvalidDomain, domain, "", err)
	}
	return apex, nil
}

var errNoSuffix = errNoSuffixErr{}

type errNoSuffixErr struct{}

func (errNoSuffixErr) Error() string { return "no recognized public suffix" }
