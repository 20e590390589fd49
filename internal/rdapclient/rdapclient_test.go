package rdapclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	regtypes "github.com/domainregistry/regdata/internal/regtypes"
)

const sampleRDAPBody = `{
  "objectClassName": "domain",
  "ldhName": "EXAMPLE.COM",
  "status": ["active"],
  "nameservers": [
    {"objectClassName": "nameserver", "ldhName": "NS1.EXAMPLE.COM"},
    {"objectClassName": "nameserver", "ldhName": "ns2.example.com"}
  ],
  "events": [
    {"eventAction": "registration", "eventDate": "1995-08-14T04:00:00Z"},
    {"eventAction": "expiration", "eventDate": "2026-08-13T04:00:00Z"}
  ],
  "entities": [
    {
      "objectClassName": "entity",
      "roles": ["registrar"],
      "vcardArray": ["vcard", [["version", {}, "text", "4.0"], ["org", {}, "text", "Example Registrar"]]]
    }
  ]
}`

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *url.URL) {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rdap+json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	return srv, u
}

func newClientForServer(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return New(Config{HTTPClient: srv.Client()})
}

func TestClient_Lookup_HappyPath(t *testing.T) {
	srv, base := newTestServer(t, http.StatusOK, sampleRDAPBody)
	c := newClientForServer(t, srv)

	res, raw, err := c.Lookup(context.Background(), "example.com", base)
	require.NoError(t, err)
	require.Equal(t, sampleRDAPBody, raw)
	require.Equal(t, []string{"ns1.example.com", "ns2.example.com"}, res.NameServers)
	require.NotNil(t, res.Registrar)
	require.Equal(t, "Example Registrar", *res.Registrar)
	require.NotNil(t, res.CreationDate)
	require.Equal(t, 1995, res.CreationDate.Year())
}

func TestClient_Lookup_404BecomesNotFound(t *testing.T) {
	srv, base := newTestServer(t, http.StatusNotFound, `{"errorCode": 404}`)
	c := newClientForServer(t, srv)

	_, _, err := c.Lookup(context.Background(), "nosuchdomain.example", base)
	require.Error(t, err)
	var rerr *regtypes.Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, regtypes.NotFound, rerr.Kind)
}

func TestClient_Lookup_SizeCapTrips(t *testing.T) {
	big := make([]byte, 0, 2<<10)
	for len(big) < 2<<10 {
		big = append(big, '{', '"', 'x', '"', ':', '1', ',')
	}
	srv, base := newTestServer(t, http.StatusOK, string(big))
	c := New(Config{HTTPClient: srv.Client(), MaxBytes: 64})

	_, _, err := c.Lookup(context.Background(), "example.com", base)
	require.Error(t, err)
}

func TestSameAuthorityRedirect_RejectsCrossHost(t *testing.T) {
	fn := sameAuthorityRedirect(3)
	req, _ := http.NewRequest(http.MethodGet, "https://other.example/", nil)
	via := []*http.Request{{URL: mustParseURL(t, "https://rdap.example/")}}
	err := fn(req, via)
	require.Error(t, err)
}

func TestSameAuthorityRedirect_AllowsSameHostWithinLimit(t *testing.T) {
	fn := sameAuthorityRedirect(3)
	req, _ := http.NewRequest(http.MethodGet, "https://rdap.example/next", nil)
	via := []*http.Request{{URL: mustParseURL(t, "https://rdap.example/")}}
	require.NoError(t, fn(req, via))
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
