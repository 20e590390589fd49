package resolver

import (
	"context"
	"net/url"
	"testing"

	"github.com/openrdap/rdap/bootstrap"
	"github.com/stretchr/testify/require"

	regtypes "github.com/domainregistry/regdata/internal/regtypes"
)

func bootstrapAnswerURL(raw string) (*bootstrap.Answer, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &bootstrap.Answer{URLs: []*url.URL{u}}, nil
}

// fakeLookuper is a network-free stand-in for *bootstrap.Client.
type fakeLookuper struct {
	answer *bootstrap.Answer
	err    error
}

func (f *fakeLookuper) Lookup(q *bootstrap.Question) (*bootstrap.Answer, error) {
	return f.answer, f.err
}

func TestResolver_LiveDirectoryDiscoversLTPHost(t *testing.T) {
	r := New(newBootstrapWithLookuper(&fakeLookuper{}), WithIANAQuery(func(ctx context.Context, tld string) (string, error) {
		require.Equal(t, "xyz", tld)
		return "% IANA WHOIS server\nrefer: whois.nic.xyz\nwhois: whois.nic.xyz\n", nil
	}), WithDNSResolvers(nil))

	specs, err := r.Resolve(context.Background(), "xyz")
	require.NoError(t, err)
	require.Len(t, specs, 1)
	require.Equal(t, regtypes.ServerLtp, specs[0].Kind)
	require.Equal(t, "whois.nic.xyz", specs[0].Host)

	// Second call must be served from memo without invoking queryIANA again.
	called := false
	r2 := New(newBootstrapWithLookuper(&fakeLookuper{}), WithIANAQuery(func(ctx context.Context, tld string) (string, error) {
		called = true
		return "", nil
	}))
	r2.remember("xyz", specs)
	specs2, err := r2.Resolve(context.Background(), "xyz")
	require.NoError(t, err)
	require.False(t, called)
	require.Equal(t, specs, specs2)
}

func TestResolver_UnsupportedTldWhenEverythingEmpty(t *testing.T) {
	r := New(newBootstrapWithLookuper(&fakeLookuper{}),
		WithIANAQuery(func(ctx context.Context, tld string) (string, error) { return "", nil }),
		WithDNSResolvers([]string{"127.0.0.1:1"}),
	)
	_, err := r.Resolve(context.Background(), "nosuchtld")
	require.Error(t, err)
	var rerr *regtypes.Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, regtypes.UnsupportedTld, rerr.Kind)
}

func TestResolver_MemoizedResultSkipsDiscovery(t *testing.T) {
	r := New(newBootstrapWithLookuper(&fakeLookuper{}))
	want := []regtypes.ServerSpec{{Kind: regtypes.ServerLtp, Host: "whois.nic.test", Port: 43}}
	r.remember("test", want)

	got, err := r.Resolve(context.Background(), "TEST")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestResolver_BootstrapRDPBasesShortCircuitsLiveDirectory(t *testing.T) {
	called := false
	base, err := bootstrapAnswerURL("https://rdap.example.org/")
	require.NoError(t, err)
	r := New(newBootstrapWithLookuper(&fakeLookuper{answer: base}),
		WithIANAQuery(func(ctx context.Context, tld string) (string, error) {
			called = true
			return "", nil
		}),
	)
	specs, err := r.Resolve(context.Background(), "com")
	require.NoError(t, err)
	require.False(t, called)
	require.Len(t, specs, 1)
	require.Equal(t, regtypes.ServerRdp, specs[0].Kind)
	require.Equal(t, "https://rdap.example.org/", specs[0].BaseURL)
}

func TestFirstMatch_IgnoresNonMatchingLines(t *testing.T) {
	body := "% comment\nrefer: whois.example.org\nwhois:   whois.example.org  \n"
	require.Equal(t, "whois.example.org", firstMatch(whoisLine, body))
}

func TestFirstMatch_NoMatchReturnsEmpty(t *testing.T) {
	require.Equal(t, "", firstMatch(whoisLine, "nothing here\n"))
}
