package ltpclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	regtypes "github.com/domainregistry/regdata/internal/regtypes"
)

func TestReferrer_Follow_SingleHopNoReferral(t *testing.T) {
	c := New(Config{Fetch: func(ctx context.Context, query, host string, port int) (string, error) {
		return "Domain Name: EXAMPLE.COM\nRegistrar: Example Registrar\n", nil
	}})
	r := NewReferrer(c, 0)

	chain, err := r.Follow(context.Background(), "example.com", regtypes.ServerSpec{Kind: regtypes.ServerLtp, Host: "whois.verisign-grs.com", Port: 43})
	require.NoError(t, err)
	require.Len(t, chain, 1)
	require.Nil(t, chain[0].Referral)
}

func TestReferrer_Follow_TwoHopChain(t *testing.T) {
	c := New(Config{Fetch: func(ctx context.Context, query, host string, port int) (string, error) {
		if host == "whois.iana.org" {
			return "refer: whois.example-registry.net\n", nil
		}
		return "Domain Name: EXAMPLE.COM\nRegistrar: Example Registrar\n", nil
	}})
	r := NewReferrer(c, 0)

	chain, err := r.Follow(context.Background(), "example.com", regtypes.ServerSpec{Kind: regtypes.ServerLtp, Host: "whois.iana.org", Port: 43})
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.NotNil(t, chain[0].Referral)
	require.Equal(t, "whois.example-registry.net", chain[0].Referral.Host)
	require.Nil(t, chain[1].Referral)
}

func TestReferrer_Follow_CycleGuard(t *testing.T) {
	c := New(Config{Fetch: func(ctx context.Context, query, host string, port int) (string, error) {
		return "refer: whois.loop-a.example\n", nil
	}})
	r := NewReferrer(c, 0)

	_, err := r.Follow(context.Background(), "example.com", regtypes.ServerSpec{Kind: regtypes.ServerLtp, Host: "whois.loop-a.example", Port: 43})
	require.Error(t, err)
	var rerr *regtypes.Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, regtypes.ReferralLoop, rerr.Kind)
}

func TestReferrer_Follow_HopLimitExceeded(t *testing.T) {
	i := 0
	c := New(Config{Fetch: func(ctx context.Context, query, host string, port int) (string, error) {
		i++
		return "refer: whois.hop" + itoa(i) + ".example\n", nil
	}})
	r := NewReferrer(c, 3)

	_, err := r.Follow(context.Background(), "example.com", regtypes.ServerSpec{Kind: regtypes.ServerLtp, Host: "whois.hop0.example", Port: 43})
	require.Error(t, err)
	var rerr *regtypes.Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, regtypes.ReferralLimit, rerr.Kind)
}

func TestReferrer_Follow_MidChainErrorReturnsPartialChain(t *testing.T) {
	calls := 0
	c := New(Config{Fetch: func(ctx context.Context, query, host string, port int) (string, error) {
		calls++
		if calls == 1 {
			return "refer: whois.down.example\n", nil
		}
		return "", context.DeadlineExceeded
	}})
	r := NewReferrer(c, 0)

	chain, err := r.Follow(context.Background(), "example.com", regtypes.ServerSpec{Kind: regtypes.ServerLtp, Host: "whois.iana.org", Port: 43})
	require.Error(t, err)
	require.Len(t, chain, 1)
}

func TestReferrer_Follow_RDPReferralStopsChain(t *testing.T) {
	c := New(Config{Fetch: func(ctx context.Context, query, host string, port int) (string, error) {
		return "referral url: https://rdap.example.org/\n", nil
	}})
	r := NewReferrer(c, 0)

	chain, err := r.Follow(context.Background(), "example.com", regtypes.ServerSpec{Kind: regtypes.ServerLtp, Host: "whois.iana.org", Port: 43})
	require.NoError(t, err)
	require.Len(t, chain, 1)
	require.NotNil(t, chain[0].Referral)
	require.Equal(t, regtypes.ServerRdp, chain[0].Referral.Kind)
}

func TestDetectReferral_NoDirectiveReturnsNil(t *testing.T) {
	require.Nil(t, detectReferral("Domain Name: EXAMPLE.COM\n"))
}
