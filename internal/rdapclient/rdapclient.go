// Package rdapclient performs the RDP (RDAP) side of a lookup: an HTTPS GET
// against a base URL, decoded into a canonical record by internal/parser.
package rdapclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/openrdap/rdap"

	"github.com/domainregistry/regdata/internal/parser"
	regtypes "github.com/domainregistry/regdata/internal/regtypes"
)

// DefaultTimeout is the connect+read timeout spec.md §4.5 specifies.
const DefaultTimeout = 10 * time.Second

// DefaultMaxBytes is the response size cap spec.md §4.5 specifies.
const DefaultMaxBytes = 10 << 20

// DefaultMaxRedirects is the redirect cap spec.md §4.5 specifies.
const DefaultMaxRedirects = 3

// Config configures a Client. A nil RDAPClient or HTTPClient installs a
// default built from Timeout/MaxBytes/MaxRedirects, mirroring the teacher's
// Config.RDAPClient/Config.HTTPClient injection points in
// internal/registrydata/types.go.
type Config struct {
	RDAPClient   *rdap.Client
	HTTPClient   *http.Client
	Timeout      time.Duration
	MaxBytes     int64
	MaxRedirects int
}

// Client wraps *rdap.Client with the transport-level guards spec.md §4.5
// requires: a response size cap and a same-authority redirect cap.
type Client struct {
	rdap *rdap.Client
}

// New constructs a Client from cfg, defaulting every zero-valued field.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}

	if cfg.RDAPClient != nil {
		return &Client{rdap: cfg.RDAPClient}
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	hc.Timeout = cfg.Timeout
	hc.Transport = &cappingRoundTripper{
		next:     roundTripperOrDefault(hc.Transport),
		maxBytes: cfg.MaxBytes,
	}
	hc.CheckRedirect = sameAuthorityRedirect(cfg.MaxRedirects)

	return &Client{rdap: &rdap.Client{HTTP: hc}}
}

func roundTripperOrDefault(rt http.RoundTripper) http.RoundTripper {
	if rt != nil {
		return rt
	}
	return http.DefaultTransport
}

// sameAuthorityRedirect enforces spec.md §4.5's "up to 3 HTTP redirects
// within the same authority".
func sameAuthorityRedirect(max int) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) > max {
			return errors.New("rdapclient: stopped after too many redirects")
		}
		if req.URL.Host != via[0].URL.Host {
			return errors.New("rdapclient: refusing cross-authority redirect")
		}
		return nil
	}
}

// cappingRoundTripper enforces the response size cap by wrapping the
// response body in a capped reader, rather than altering rdap.Client
// internals, matching the teacher's practice of only ever injecting
// cfg.HTTPClient/cfg.RDAPClient and treating *rdap.Client as opaque.
type cappingRoundTripper struct {
	next     http.RoundTripper
	maxBytes int64
}

func (c *cappingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.next.RoundTrip(req)
	if err != nil || resp == nil {
		return resp, err
	}
	resp.Body = &cappedReadCloser{
		r:     io.LimitReader(resp.Body, c.maxBytes+1),
		limit: c.maxBytes,
		orig:  resp.Body,
		tee:   rawCaptureFromContext(req.Context()),
	}
	return resp, nil
}

// rawCaptureKey is the context key a Lookup call uses to hand the
// cappingRoundTripper a buffer to tee the actual wire bytes into, so the
// caller can recover the real response body (spec.md §3's "raw" field)
// after rdap.Client.Do has consumed and closed it during JSON decoding.
type rawCaptureKey struct{}

func withRawCapture(ctx context.Context, buf *bytes.Buffer) context.Context {
	return context.WithValue(ctx, rawCaptureKey{}, buf)
}

func rawCaptureFromContext(ctx context.Context) *bytes.Buffer {
	buf, _ := ctx.Value(rawCaptureKey{}).(*bytes.Buffer)
	return buf
}

type cappedReadCloser struct {
	r     io.Reader
	limit int64
	read  int64
	orig  io.Closer
	tee   *bytes.Buffer
}

func (c *cappedReadCloser) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 && c.tee != nil {
		c.tee.Write(p[:n])
	}
	c.read += int64(n)
	if c.read > c.limit {
		return n, regtypes.NewError(regtypes.TooLarge, "", "", errors.New("rdap response exceeded size cap"))
	}
	return n, err
}

func (c *cappedReadCloser) Close() error { return c.orig.Close() }

// Lookup performs an RDAP domain lookup against base, mapping protocol-level
// outcomes onto the regdata error taxonomy: a 404 becomes NotFound, any
// other rdap.Client.Do failure (transport or body decode) becomes a
// recoverable Network error, and a response carrying no domain object
// becomes ProtocolDecode, so the coordinator can try the next ServerSpec. The raw body
// returned is the actual bytes the server sent, teed off by
// cappingRoundTripper as rdap.Client.Do reads and decodes them, not a
// rendering of the parsed object.
func (c *Client) Lookup(ctx context.Context, domain string, base *url.URL) (parser.Result, string, error) {
	var capture bytes.Buffer
	ctx = withRawCapture(ctx, &capture)

	req := (&rdap.Request{Type: rdap.DomainRequest, Query: domain}).WithContext(ctx)
	if base != nil {
		req = req.WithServer(base)
	}

	resp, err := c.rdap.Do(req)
	if err != nil {
		return parser.Result{}, "", classifyError(domain, base, resp, err)
	}
	if resp == nil || resp.Object == nil {
		return parser.Result{}, "", regtypes.NewError(regtypes.ProtocolDecode, domain, serverString(base), errors.New("empty rdap response"))
	}
	dom, ok := resp.Object.(*rdap.Domain)
	if !ok {
		return parser.Result{}, "", regtypes.NewError(regtypes.ProtocolDecode, domain, serverString(base), errors.New("unexpected rdap object type"))
	}

	res := parser.ParseRDAPDomain(dom)
	return res, capturedRaw(&capture), nil
}

// capturedRaw returns the teed response bytes, UTF-8-repaired per spec.md
// §3's "bytes that are not valid UTF-8 are replaced with U+FFFD" rule.
func capturedRaw(buf *bytes.Buffer) string {
	s := buf.String()
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return s
}

// classifyError maps a rdap.Client.Do failure onto the regdata taxonomy. A
// *regtypes.Error (e.g. TooLarge, from the capping round tripper) passes
// through unchanged; an HTTP 404 recorded on the response's fetch trail
// becomes NotFound; everything else is a recoverable Network error so the
// coordinator can try the next ServerSpec.
func classifyError(domain string, base *url.URL, resp *rdap.Response, err error) error {
	var regErr *regtypes.Error
	if errors.As(err, &regErr) {
		return err
	}
	if resp != nil {
		for _, hr := range resp.HTTP {
			if hr == nil || hr.Response == nil {
				continue
			}
			if hr.Response.StatusCode == http.StatusNotFound {
				return regtypes.NewError(regtypes.NotFound, domain, serverString(base), err)
			}
		}
	}
	if strings.Contains(err.Error(), "404") {
		return regtypes.NewError(regtypes.NotFound, domain, serverString(base), err)
	}
	return regtypes.NewError(regtypes.Network, domain, serverString(base), err)
}

func serverString(base *url.URL) string {
	if base == nil {
		return ""
	}
	return base.String()
}
