package schema

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readTestdata(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func TestParse_AuditResult(t *testing.T) {
	out, err := Parse(readTestdata(t, "audit.json"))
	require.NoError(t, err)

	res, ok := out.(AuditResult)
	require.True(t, ok, "expected a bare AuditResult, got %T", out)
	assert.Equal(t, 2, res.AuditReportVersion)
	assert.Equal(t, 3, res.Metadata.Vulnerabilities.Total)

	var names []string
	for _, v := range res.Vulnerabilities.All() {
		names = append(names, v.Name)
	}
	// document order, not alphabetical
	assert.Equal(t, []string{"tough-cookie", "request", "mocha"}, names)

	cookie, ok := res.Vulnerabilities.Get("tough-cookie")
	require.True(t, ok)
	assert.True(t, IsFixable(cookie))
	assert.Equal(t, SeverityModerate, cookie.Severity)
	assert.Equal(t, []string{"node_modules/tough-cookie"}, cookie.Nodes)

	reports := cookie.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, int64(1097682), reports[0].Source)
	assert.Equal(t, "tough-cookie Prototype Pollution vulnerability", reports[0].Title)
	assert.Equal(t, 6.5, reports[0].CVSS.Score)
	assert.True(t, reports[0].CVSS.HasScore())
	assert.Equal(t, "<4.1.3", reports[0].Range)

	request, ok := res.Vulnerabilities.Get("request")
	require.True(t, ok)
	assert.False(t, IsFixable(request))
	assert.Equal(t, []string{"tough-cookie"}, request.Causes())
	require.Len(t, request.Reports(), 1)
	assert.Equal(t, "Server-Side Request Forgery in Request", request.Reports()[0].Title)

	mocha, ok := res.Vulnerabilities.Get("mocha")
	require.True(t, ok)
	assert.True(t, IsFixable(mocha))
	require.NotNil(t, mocha.FixAvailable.Target)
	assert.Equal(t, "10.2.0", mocha.FixAvailable.Target.Version)
	assert.True(t, mocha.FixAvailable.Target.IsSemVerMajor)
	assert.Empty(t, mocha.Reports())

	assert.Equal(t, Counts{Total: 3, Fixable: 2, Unfixable: 1}, res.Counts())
}

func TestParse_FixEnvelope(t *testing.T) {
	out, err := Parse(readTestdata(t, "fix.json"))
	require.NoError(t, err)

	env, ok := out.(FixEnvelope)
	require.True(t, ok, "expected a FixEnvelope, got %T", out)
	assert.Equal(t, 1, env.Added)
	assert.Equal(t, 2, env.Removed)
	assert.Equal(t, 3, env.Changed)
	assert.Equal(t, 146, env.Audited)

	res := out.Unwrap()
	assert.Equal(t, 1, res.Vulnerabilities.Len())
	assert.Equal(t, Counts{Total: 1, Fixable: 0, Unfixable: 1}, res.Counts())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		noPayload bool
	}{
		{name: "no brace", input: "npm ERR! code ENOLOCK", noPayload: true},
		{name: "empty", input: "", noPayload: true},
		{name: "truncated", input: `{"vulnerabilities": {`},
		{name: "wrong type", input: `{"vulnerabilities": []}`},
		{name: "key mismatch", input: `{"vulnerabilities": {"a": {"name": "b"}}}`},
		{name: "bad fixAvailable", input: `{"vulnerabilities": {"a": {"fixAvailable": "yes"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected ParseError, got %T", err)
			assert.Equal(t, tt.noPayload, errors.Is(err, ErrNoJSONPayload))
		})
	}
}

func TestParse_EmptyMapping(t *testing.T) {
	out, err := Parse(`{"auditReportVersion": 2, "vulnerabilities": {}, "metadata": {}}`)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, out.Unwrap().Counts())
	assert.Empty(t, out.Unwrap().Fixable())
}

func TestVia_Discrimination(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantReport bool
		wantName   string
	}{
		{name: "string", raw: `"minimatch"`, wantName: "minimatch"},
		{name: "advisory", raw: `{"source": 1, "name": "qs", "title": "qs vulnerable"}`, wantReport: true, wantName: "qs"},
		{name: "empty title", raw: `{"name": "qs", "title": ""}`, wantName: "qs"},
		{name: "no title", raw: `{"name": "qs"}`, wantName: "qs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Via
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &v))
			_, isReport := v.Report()
			assert.Equal(t, tt.wantReport, isReport)
			assert.Equal(t, tt.wantName, v.Name())
		})
	}
}

func TestFixAvailable(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`null`, false},
		{`{"name": "x", "version": "1.0.0", "isSemVerMajor": false}`, true},
	}
	for _, tt := range tests {
		var f FixAvailable
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &f), tt.raw)
		assert.Equal(t, tt.want, f.Available(), tt.raw)
	}
}

func TestVulnerabilities_MarshalKeepsOrder(t *testing.T) {
	vs := NewVulnerabilities(
		Vulnerability{Name: "zeta", FixAvailable: FixAvailable{Enabled: true}, Via: []Via{ViaPackage("alpha")}},
		Vulnerability{Name: "alpha", Via: []Via{ViaReport(VulnerabilityReport{Name: "alpha", Title: "bad"})}},
	)
	data, err := json.Marshal(AuditResult{AuditReportVersion: 2, Vulnerabilities: vs})
	require.NoError(t, err)

	out, err := Parse(string(data))
	require.NoError(t, err)
	got := out.Unwrap().Vulnerabilities.All()
	require.Len(t, got, 2)
	assert.Equal(t, "zeta", got[0].Name)
	assert.Equal(t, "alpha", got[1].Name)
	assert.Equal(t, []string{"alpha"}, got[0].Causes())
	assert.Len(t, got[1].Reports(), 1)
}

func TestNewVulnerabilities_DuplicateKeepsPosition(t *testing.T) {
	vs := NewVulnerabilities(
		Vulnerability{Name: "a", Range: "1"},
		Vulnerability{Name: "b"},
		Vulnerability{Name: "a", Range: "2"},
	)
	all := vs.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "2", all[0].Range)
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity("Medium")
	require.NoError(t, err)
	assert.Equal(t, SeverityModerate, s)

	_, err = ParseSeverity("severe")
	assert.Error(t, err)

	assert.Less(t, SeverityInfo.Rank(), SeverityLow.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityCritical.Rank())
}

func TestSeverity_DecodedVerbatim(t *testing.T) {
	var v struct {
		Upper   Severity `json:"upper"`
		Alias   Severity `json:"alias"`
		Unknown Severity `json:"unknown"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"upper":"CRITICAL","alias":"medium","unknown":"urgent"}`), &v))

	assert.Equal(t, Severity("CRITICAL"), v.Upper)
	assert.NotEqual(t, SeverityCritical, v.Upper)
	assert.Equal(t, Severity("medium"), v.Alias)

	assert.Equal(t, SeverityCritical.Rank(), v.Upper.Rank())
	assert.Equal(t, SeverityModerate.Rank(), v.Alias.Rank())
	assert.Equal(t, 0, v.Unknown.Rank())
}
