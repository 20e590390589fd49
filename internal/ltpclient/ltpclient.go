// Package ltpclient performs the LTP (port-43 WHOIS) side of a lookup: a
// single query line over a raw TCP connection, and the referral engine that
// chases "refer to" directives across hops.
package ltpclient

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	whois "github.com/domainr/whois"

	"github.com/domainregistry/regdata/internal/bufpool"
	regtypes "github.com/domainregistry/regdata/internal/regtypes"
)

// DefaultTimeout is the per-connection timeout spec.md §4.6 specifies.
const DefaultTimeout = 30 * time.Second

// DefaultMaxBytes is the total-bytes-read cap spec.md §4.6 specifies.
const DefaultMaxBytes = 10 << 20

// Config configures a Client.
type Config struct {
	Timeout  time.Duration
	MaxBytes int
	// Fetch overrides the transport, for tests. Defaults to a
	// domainr/whois-backed dial, exactly as the teacher's whoisFetchAtHost.
	Fetch func(ctx context.Context, query, host string, port int) (string, error)
	// Pool stages the capped, UTF-8-validated copy of each response body.
	// A nil Pool installs a private pool sized off MaxBytes, per spec.md
	// §4.1's "buffer pool ... used by the LTP client to stage one read per
	// connection".
	Pool *bufpool.Pool
}

// Client opens a TCP connection to host:port, writes the bare normalized
// domain followed by CRLF, and reads the response until the peer
// half-closes or the configured caps are reached.
type Client struct {
	timeout  time.Duration
	maxBytes int
	fetch    func(ctx context.Context, query, host string, port int) (string, error)
	pool     *bufpool.Pool
}

// New constructs a Client from cfg, defaulting every zero-valued field.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	c := &Client{timeout: cfg.Timeout, maxBytes: cfg.MaxBytes, fetch: cfg.Fetch, pool: cfg.Pool}
	if c.fetch == nil {
		c.fetch = c.fetchDefault
	}
	if c.pool == nil {
		c.pool = bufpool.New(1, cfg.MaxBytes)
	}
	return c
}

// Query performs one LTP step: query is the bare string sent (no flags
// added, per spec.md §4.6), host/port name the server. The returned body is
// capped at Config.MaxBytes and decoded as UTF-8 with U+FFFD replacement.
// The capped copy is staged in a pooled buffer rather than sliced/allocated
// ad hoc, so a steady stream of lookups reuses the same scratch memory
// instead of generating one transient byte slice per LTP hop.
func (c *Client) Query(ctx context.Context, query, host string, port int) (string, error) {
	if port == 0 {
		port = 43
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.fetch(ctx, query, host, port)
	if err != nil {
		return "", regtypes.NewError(classifyNetErr(err), query, serverString(host, port), err)
	}

	buf := c.pool.Get()
	defer buf.Release()

	n := len(body)
	if n > c.maxBytes {
		n = c.maxBytes
	}
	buf.B = append(buf.B, body[:n]...)
	capped := string(buf.B)

	if !utf8.ValidString(capped) {
		capped = strings.ToValidUTF8(capped, "�")
	}
	return capped, nil
}

func classifyNetErr(err error) regtypes.Kind {
	if err == context.DeadlineExceeded {
		return regtypes.Timeout
	}
	return regtypes.Network
}

func serverString(host string, port int) string {
	if port == 43 {
		return host
	}
	return host + ":" + itoa(port)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// fetchDefault performs the actual dial+write+read via github.com/domainr/whois,
// exactly as the teacher's whoisFetchAtHost in internal/registrydata/whois.go.
func (c *Client) fetchDefault(ctx context.Context, query, host string, port int) (string, error) {
	req, err := whois.NewRequest(query)
	if err != nil {
		return "", err
	}
	req.Host = host
	if port != 43 {
		req.Host = serverString(host, port)
	}
	resp, err := whois.DefaultClient.FetchContext(ctx, req)
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}
