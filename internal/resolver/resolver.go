package resolver

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	whois "github.com/domainr/whois"
	"github.com/miekg/dns"
	"golang.org/x/sync/singleflight"

	regtypes "github.com/domainregistry/regdata/internal/regtypes"
)

// DefaultIANAHost is the root WHOIS directory queried in step 3 of the
// resolution algorithm.
const DefaultIANAHost = "whois.iana.org"

// baselineResolvers is a small set of trusted public DNS resolvers used to
// validate pattern-fallback hostnames, grounded in
// owasp-amass-engine/plugins/support/resolvers.go's baselineResolvers.
var baselineResolvers = []string{
	"8.8.8.8:53",
	"1.1.1.1:53",
	"9.9.9.9:53",
}

var whoisLine = regexp.MustCompile(`(?i)^\s*whois:\s*(\S+)`)
var urlLine = regexp.MustCompile(`(?i)(https?://\S+)`)

// Resolver implements spec.md §4.4: given a TLD, return a non-empty ordered
// list of ServerSpecs to try, memoized per process lifetime and
// single-flight coalesced per TLD.
type Resolver struct {
	bootstrap *Bootstrap

	ianaHost string
	ianaPort int

	dnsClient    *dns.Client
	dnsResolvers []string

	queryIANA func(ctx context.Context, tld string) (string, error)

	mu   sync.RWMutex
	memo map[string][]regtypes.ServerSpec

	sf singleflight.Group
}

// Option configures a Resolver at construction.
type Option func(*Resolver)

// WithIANAHost overrides the root WHOIS directory host (default whois.iana.org).
func WithIANAHost(host string) Option {
	return func(r *Resolver) { r.ianaHost = host }
}

// WithDNSResolvers overrides the public resolvers used for pattern-fallback
// validation.
func WithDNSResolvers(servers []string) Option {
	return func(r *Resolver) { r.dnsResolvers = servers }
}

// WithIANAQuery overrides the live-directory query function, for tests.
func WithIANAQuery(f func(ctx context.Context, tld string) (string, error)) Option {
	return func(r *Resolver) { r.queryIANA = f }
}

// New constructs a Resolver backed by b.
func New(b *Bootstrap, opts ...Option) *Resolver {
	r := &Resolver{
		bootstrap:    b,
		ianaHost:     DefaultIANAHost,
		ianaPort:     43,
		dnsClient:    &dns.Client{Timeout: 3 * time.Second},
		dnsResolvers: baselineResolvers,
		memo:         make(map[string][]regtypes.ServerSpec),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.queryIANA == nil {
		r.queryIANA = r.queryIANADefault
	}
	return r
}

// Resolve returns the ordered ServerSpecs for tld, stopping at the first
// non-empty step of the algorithm: memo, bootstrap table, live directory,
// pattern fallback. Fails with UnsupportedTld if every step yields nothing.
func (r *Resolver) Resolve(ctx context.Context, tld string) ([]regtypes.ServerSpec, error) {
	tld = strings.ToLower(strings.TrimSpace(tld))

	if specs, ok := r.memoized(tld); ok {
		return specs, nil
	}

	v, err, _ := r.sf.Do(tld, func() (any, error) {
		return r.resolveFresh(ctx, tld)
	})
	if err != nil {
		return nil, err
	}
	return v.([]regtypes.ServerSpec), nil
}

func (r *Resolver) memoized(tld string) ([]regtypes.ServerSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs, ok := r.memo[tld]
	return specs, ok
}

func (r *Resolver) remember(tld string, specs []regtypes.ServerSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memo[tld] = specs
}

func (r *Resolver) resolveFresh(ctx context.Context, tld string) ([]regtypes.ServerSpec, error) {
	if specs, ok := r.memoized(tld); ok {
		return specs, nil
	}

	var specs []regtypes.ServerSpec

	bases, err := r.bootstrap.RDPBases(ctx, tld)
	if err != nil {
		return nil, regtypes.NewError(regtypes.Network, "", r.ianaHost, err)
	}
	for _, u := range bases {
		if u == nil {
			continue
		}
		specs = append(specs, regtypes.ServerSpec{Kind: regtypes.ServerRdp, BaseURL: u.String()})
	}
	if host, ok := r.bootstrap.LTPHost(tld); ok && host != "" {
		specs = append(specs, regtypes.ServerSpec{Kind: regtypes.ServerLtp, Host: host, Port: 43})
	}
	if len(specs) > 0 {
		r.remember(tld, specs)
		return specs, nil
	}

	body, err := r.queryIANA(ctx, tld)
	if err == nil && body != "" {
		if urlStr := firstMatch(urlLine, body); urlStr != "" && r.authorityReachable(ctx, urlStr) {
			specs = append(specs, regtypes.ServerSpec{Kind: regtypes.ServerRdp, BaseURL: urlStr})
		}
		if host := firstMatch(whoisLine, body); host != "" {
			r.bootstrap.SetLTPHost(tld, host)
			specs = append(specs, regtypes.ServerSpec{Kind: regtypes.ServerLtp, Host: host, Port: 43})
		}
	}
	if len(specs) > 0 {
		r.remember(tld, specs)
		return specs, nil
	}

	for _, host := range []string{"whois.nic." + tld, tld + ".whois-servers.net"} {
		if r.dnsNameResolves(ctx, host) {
			specs = append(specs, regtypes.ServerSpec{Kind: regtypes.ServerLtp, Host: host, Port: 43})
		}
	}
	if len(specs) == 0 {
		return nil, regtypes.NewError(regtypes.UnsupportedTld, "", "", nil)
	}
	r.remember(tld, specs)
	return specs, nil
}

func firstMatch(re *regexp.Regexp, body string) string {
	for _, line := range strings.Split(body, "\n") {
		if m := re.FindStringSubmatch(line); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func (r *Resolver) authorityReachable(ctx context.Context, rawURL string) bool {
	host := rawURL
	if idx := strings.Index(rawURL, "://"); idx >= 0 {
		host = rawURL[idx+3:]
	}
	if idx := strings.IndexAny(host, "/:"); idx >= 0 {
		host = host[:idx]
	}
	return r.dnsNameResolves(ctx, host)
}

// dnsNameResolves performs an explicit A-record existence check via
// miekg/dns against the configured public resolvers, rather than the
// standard library's net.Resolver, matching spec.md §4.4's pattern-fallback
// requirement.
func (r *Resolver) dnsNameResolves(ctx context.Context, host string) bool {
	host = strings.TrimSuffix(strings.TrimSpace(host), ".")
	if host == "" {
		return false
	}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	for _, server := range r.dnsResolvers {
		resp, _, err := r.dnsClient.ExchangeContext(ctx, msg, server)
		if err != nil || resp == nil {
			continue
		}
		if resp.Rcode == dns.RcodeSuccess && len(resp.Answer) > 0 {
			return true
		}
	}
	return false
}

// queryIANADefault performs the live LTP query against the root directory
// host (spec.md §4.4 step 3), using domainr/whois for the raw transport,
// exactly as the teacher's whoisFetchAtHost in whois.go.
func (r *Resolver) queryIANADefault(ctx context.Context, tld string) (string, error) {
	req, err := whois.NewRequest(tld)
	if err != nil {
		return "", err
	}
	req.Host = r.ianaHost
	resp, err := whois.DefaultClient.FetchContext(ctx, req)
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}
