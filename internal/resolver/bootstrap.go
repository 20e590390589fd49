// Package resolver implements the TLD-to-ServerSpec resolution algorithm:
// bootstrap table, live IANA directory query, and pattern fallbacks.
package resolver

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/openrdap/rdap/bootstrap"
)

// rdapLookuper is satisfied by *bootstrap.Client; narrowed to an interface
// so tests can substitute a fake that never touches the network.
type rdapLookuper interface {
	Lookup(q *bootstrap.Question) (*bootstrap.Answer, error)
}

// Bootstrap wraps the IANA bootstrap registries (github.com/openrdap/rdap/bootstrap)
// for RDP base discovery, and layers an LTP-host table on top. The registries
// carry no standalone LTP mapping, so the LTP table starts empty and is
// populated lazily the first time the live IANA directory (step 3 of the
// resolver algorithm) discovers a host for a TLD; from then on step 2
// reports that host for the TLD. The resolver's memo (step 1) also holds the
// discovered list, so later Resolve calls for the TLD are answered from it.
type Bootstrap struct {
	client rdapLookuper

	mu       sync.RWMutex
	ltpHosts map[string]string
}

// NewBootstrap constructs a Bootstrap table. A nil client argument installs
// the library's default disk/memory-cached bootstrap.Client.
func NewBootstrap(client *bootstrap.Client) *Bootstrap {
	if client == nil {
		client = &bootstrap.Client{}
	}
	return &Bootstrap{client: client, ltpHosts: make(map[string]string)}
}

// newBootstrapWithLookuper builds a Bootstrap around an arbitrary
// rdapLookuper, used by tests to avoid network access.
func newBootstrapWithLookuper(l rdapLookuper) *Bootstrap {
	return &Bootstrap{client: l, ltpHosts: make(map[string]string)}
}

// LTPHost returns the previously-discovered LTP host for tld, if any.
func (b *Bootstrap) LTPHost(tld string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.ltpHosts[tld]
	return h, ok
}

// SetLTPHost records an LTP host discovered for tld via the live directory.
func (b *Bootstrap) SetLTPHost(tld, host string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ltpHosts[tld] = host
}

// RDPBases returns the ordered RDAP base URLs the bootstrap registries name
// for tld, or nil if the TLD has no entry.
func (b *Bootstrap) RDPBases(ctx context.Context, tld string) ([]*url.URL, error) {
	answer, err := b.client.Lookup((&bootstrap.Question{RegistryType: bootstrap.DNS, Query: tld}).WithContext(ctx))
	if err != nil {
		// BootstrapNoMatch and similar "no entry" conditions are not errors
		// from the resolver's point of view: step 2 simply yields nothing
		// and the algorithm falls through to step 3.
		if isNoMatch(err) {
			return nil, nil
		}
		return nil, err
	}
	if answer == nil {
		return nil, nil
	}
	return answer.URLs, nil
}

func isNoMatch(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no rdap server") ||
		strings.Contains(strings.ToLower(err.Error()), "no match")
}
