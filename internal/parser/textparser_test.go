package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleBody = `Domain Name: EXAMPLE.COM
Registry Domain ID: 2336799_DOMAIN_COM-VRSN
Registrar WHOIS Server: whois.markmonitor.com
Registrar: MarkMonitor Inc.
Creation Date: 1995-08-14T04:00:00Z
Registry Expiry Date: 2026-08-13T04:00:00Z
Updated Date: 2024-08-14T07:01:31Z
Name Server: NS1.EXAMPLE.COM
Name Server: ns2.example.com
Domain Status: clientDeleteProhibited https://icann.org/epp#clientDeleteProhibited
Domain Status: clientTransferProhibited https://icann.org/epp#clientTransferProhibited
Registrant Email: Please query the RDDS service
>>> Last update of WHOIS database: 2025-07-20T00:00:00Z <<<
`

func TestParseText_HappyPath(t *testing.T) {
	res := ParseText(sampleBody)

	require.NotNil(t, res.Registrar)
	require.Equal(t, "MarkMonitor Inc.", *res.Registrar)

	require.NotNil(t, res.CreationDate)
	require.Equal(t, 1995, res.CreationDate.Year())

	require.NotNil(t, res.ExpirationDate)
	require.Equal(t, 2026, res.ExpirationDate.Year())

	require.NotNil(t, res.UpdatedDate)

	require.Equal(t, []string{"ns1.example.com", "ns2.example.com"}, res.NameServers)
	require.Equal(t, []string{"clientDeleteProhibited", "clientTransferProhibited"}, res.Status)

	require.NotNil(t, res.Available)
	require.False(t, *res.Available)
}

func TestParseText_CommentLinesIgnored(t *testing.T) {
	body := "% this is a comment\n# also a comment\nRegistrar: Example Registrar\n"
	res := ParseText(body)
	require.NotNil(t, res.Registrar)
	require.Equal(t, "Example Registrar", *res.Registrar)
}

func TestParseText_NotFoundClassifiesAvailable(t *testing.T) {
	res := ParseText("No match for domain \"NOTREGISTERED.EXAMPLE\".\n")
	require.NotNil(t, res.Available)
	require.True(t, *res.Available)
	require.Nil(t, res.Registrar)
}

func TestParseText_AmbiguousBodyLeavesAvailableNil(t *testing.T) {
	res := ParseText("% nothing of interest here\n")
	require.Nil(t, res.Available)
}

func TestParseText_ContinuationLineUsedWhenValueEmpty(t *testing.T) {
	body := "Registrar:\n    Example Registrar Name\nCreation Date: 2020-01-01\n"
	res := ParseText(body)
	require.NotNil(t, res.Registrar)
	require.Equal(t, "Example Registrar Name", *res.Registrar)
}

func TestParseText_UnparseableDateRecordsObservation(t *testing.T) {
	body := "Creation Date: not-a-real-date\n"
	res := ParseText(body)
	require.Nil(t, res.CreationDate)
	require.Len(t, res.Observations, 1)
	require.Equal(t, "creation_date", res.Observations[0].Field)
}

func TestParseText_DuplicateNameServersDeduped(t *testing.T) {
	body := "Name Server: ns1.example.com\nNameserver: NS1.EXAMPLE.COM\n"
	res := ParseText(body)
	require.Equal(t, []string{"ns1.example.com"}, res.NameServers)
}

func TestParseDate_RFC2822Fallback(t *testing.T) {
	tm, ok := ParseDate("Mon, 02 Jan 2006 15:04:05 +0000")
	require.True(t, ok)
	require.Equal(t, 2006, tm.Year())
}

func TestParseDate_EmptyIsNotOk(t *testing.T) {
	_, ok := ParseDate("   ")
	require.False(t, ok)
}
