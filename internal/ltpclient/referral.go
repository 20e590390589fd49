package ltpclient

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	regtypes "github.com/domainregistry/regdata/internal/regtypes"
)

// DefaultMaxReferrals is MAX_REFERRALS from spec.md §3/§4.7.
const DefaultMaxReferrals = 10

var referralLine = regexp.MustCompile(`(?i)^\s*(refer|whois server|referral url)\s*:\s*(\S+)`)

// Referrer chases "refer to" directives across LTP hops, per spec.md §4.7.
type Referrer struct {
	client       *Client
	maxReferrals int
}

// NewReferrer constructs a Referrer around client, with maxReferrals <= 0
// defaulting to DefaultMaxReferrals.
func NewReferrer(client *Client, maxReferrals int) *Referrer {
	if maxReferrals <= 0 {
		maxReferrals = DefaultMaxReferrals
	}
	return &Referrer{client: client, maxReferrals: maxReferrals}
}

// Follow queries start with query, then follows any referral directive the
// response names, stopping when: no referral is detected, the next server
// equals one already visited (cycle guard), or MaxReferrals hops have run.
// On a mid-chain transport error it returns the chain built so far plus the
// error (spec.md §9 Open Question (b): partial success), with an
// Observation recorded by the caller's parser pass.
func (r *Referrer) Follow(ctx context.Context, query string, start regtypes.ServerSpec) (regtypes.ReferralChain, error) {
	var chain regtypes.ReferralChain
	visited := map[regtypes.ServerSpec]struct{}{}
	current := start

	for len(chain) < r.maxReferrals {
		if _, seen := visited[current]; seen {
			return chain, regtypes.NewError(regtypes.ReferralLoop, query, current.String(), nil)
		}
		visited[current] = struct{}{}

		if current.Kind != regtypes.ServerLtp {
			// The referral engine only walks LTP hops; an RDP referral target
			// stays in the last step's Referral and the chain ends there,
			// without an error. FinalServer is still the last LTP server.
			return chain, nil
		}

		body, err := r.client.Query(ctx, query, current.Host, current.Port)
		if err != nil {
			return chain, err
		}

		referral := detectReferral(body)
		step := regtypes.ReferralStep{Server: current, Raw: body}
		if referral != nil {
			step.Referral = referral
		}
		chain = append(chain, step)

		if referral == nil {
			return chain, nil
		}
		current = *referral
	}

	return chain, regtypes.NewError(regtypes.ReferralLimit, query, current.String(), nil)
}

// detectReferral scans body for a referral directive (refer / whois server
// / referral url), case-insensitive, per spec.md §4.7.
func detectReferral(body string) *regtypes.ServerSpec {
	for _, line := range strings.Split(body, "\n") {
		m := referralLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		target := strings.TrimSpace(m[2])
		if target == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(target), "http://") || strings.HasPrefix(strings.ToLower(target), "https://") {
			return &regtypes.ServerSpec{Kind: regtypes.ServerRdp, BaseURL: target}
		}
		host, port := splitHostPort(target)
		return &regtypes.ServerSpec{Kind: regtypes.ServerLtp, Host: host, Port: port}
	}
	return nil
}

func splitHostPort(s string) (string, int) {
	if idx := strings.LastIndexByte(s, ':'); idx >= 0 {
		if p, err := strconv.Atoi(s[idx+1:]); err == nil {
			return s[:idx], p
		}
	}
	return s, 43
}
