package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorozuya-cybersecurity/auditfix/internal/outputs"
	"github.com/yorozuya-cybersecurity/auditfix/internal/scanners"
	"github.com/yorozuya-cybersecurity/auditfix/internal/schema"
	"github.com/yorozuya-cybersecurity/auditfix/pkg/utils"
)

const toughCookieAudit = `{
  "auditReportVersion": 2,
  "vulnerabilities": {
    "tough-cookie": {
      "name": "tough-cookie",
      "severity": "moderate",
      "isDirect": false,
      "via": [{
        "source": 1097682,
        "name": "tough-cookie",
        "dependency": "tough-cookie",
        "title": "tough-cookie Prototype Pollution vulnerability",
        "url": "https://github.com/advisories/GHSA-72xf-g2v4-qvf3",
        "severity": "moderate",
        "cvss": {"score": 6.5, "vectorString": "CVSS:3.1/AV:N/AC:L/PR:N/UI:R/S:U/C:L/I:L/A:N"},
        "range": "<4.1.3"
      }],
      "effects": [],
      "range": "<4.1.3",
      "nodes": ["node_modules/tough-cookie"],
      "fixAvailable": true
    }
  },
  "metadata": {"vulnerabilities": {"moderate": 1, "total": 1}}
}`

// recordedOutputs keeps outputs in the order they were set
type recordedOutputs struct {
	names  []string
	values map[string]string
	failOn string
}

func (r *recordedOutputs) Set(name, value string) error {
	if name == r.failOn {
		return errors.New("output file is read-only")
	}
	if r.values == nil {
		r.values = map[string]string{}
	}
	r.names = append(r.names, name)
	r.values[name] = value
	return nil
}

type runner struct {
	stdout string
	err    error
	argv   [][]string
}

func (r *runner) Run(_ context.Context, _, name string, args ...string) (string, string, error) {
	r.argv = append(r.argv, append([]string{name}, args...))
	if name == "npm" && len(args) == 1 && args[0] == "--version" {
		return "10.2.4\n", "", nil
	}
	return r.stdout, "", r.err
}

func newPipeline(t *testing.T, r *runner) (*Pipeline, *recordedOutputs) {
	t.Helper()
	audit, err := scanners.NewNpmAudit(r, "", nil)
	require.NoError(t, err)
	out := &recordedOutputs{}
	return &Pipeline{Scanner: audit, Outputs: out}, out
}

func TestRun_EndToEnd(t *testing.T) {
	ws := t.TempDir()
	r := &runner{stdout: toughCookieAudit}
	p, out := newPipeline(t, r)

	res, err := p.Run(context.Background(), Options{
		Fix:              true,
		Workspace:        ws,
		WorkingDirectory: ws,
		OutputPath:       "audit-report.md",
		JSONOutputPath:   "reports/audit.json",
		CheckVersion:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"npm", "--version"},
		{"npm", "audit", "--json", "fix"},
	}, r.argv)

	assert.Equal(t, []string{outputs.IssuesTotal, outputs.IssuesFixable, outputs.IssuesUnfixable, outputs.Markdown}, out.names)
	assert.Equal(t, "1", out.values[outputs.IssuesTotal])
	assert.Equal(t, "1", out.values[outputs.IssuesFixable])
	assert.Equal(t, "0", out.values[outputs.IssuesUnfixable])
	assert.Contains(t, out.values[outputs.Markdown], "This audit fix resolves 1 of the total 1 vulnerabilities found in your project.")

	data, err := os.ReadFile(filepath.Join(ws, "audit-report.md"))
	require.NoError(t, err)
	assert.Equal(t, res.Markdown, string(data))
	assert.Equal(t, out.values[outputs.Markdown], string(data))

	assert.FileExists(t, filepath.Join(ws, "reports", "audit.json"))
	assert.Nil(t, res.Envelope)
}

func TestRun_FixEnvelope(t *testing.T) {
	fixOutput, err := os.ReadFile("../schema/testdata/fix.json")
	require.NoError(t, err)

	r := &runner{stdout: "add foo 6.5.4 -> 6.5.5\n" + string(fixOutput)}
	p, out := newPipeline(t, r)

	res, err := p.Run(context.Background(), Options{Fix: true, Workspace: t.TempDir()})
	require.NoError(t, err)
	require.NotNil(t, res.Envelope)
	assert.Equal(t, 1, res.Envelope.Added)
	assert.Equal(t, "0", out.values[outputs.IssuesFixable])
	assert.Equal(t, "# Audit report\nNo fixable problems found (1 unfixable)", out.values[outputs.Markdown])
}

func TestRun_CountsAddUp(t *testing.T) {
	fixture, err := os.ReadFile("../schema/testdata/audit.json")
	require.NoError(t, err)
	p, out := newPipeline(t, &runner{stdout: string(fixture)})

	res, err := p.Run(context.Background(), Options{Workspace: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, schema.Counts{Total: 3, Fixable: 2, Unfixable: 1}, res.Counts)

	total, _ := strconv.Atoi(out.values[outputs.IssuesTotal])
	fixable, _ := strconv.Atoi(out.values[outputs.IssuesFixable])
	unfixable, _ := strconv.Atoi(out.values[outputs.IssuesUnfixable])
	assert.Equal(t, total, fixable+unfixable)
}

func TestRun_Failures(t *testing.T) {
	t.Run("scanner error", func(t *testing.T) {
		p, out := newPipeline(t, &runner{err: errors.New("exit status 1")})

		_, err := p.Run(context.Background(), Options{Workspace: t.TempDir()})
		var execErr *scanners.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "exit status 1", err.Error())
		assert.Empty(t, out.names)
	})

	t.Run("unparsable output", func(t *testing.T) {
		p, out := newPipeline(t, &runner{stdout: "npm ERR! no lockfile"})

		_, err := p.Run(context.Background(), Options{Workspace: t.TempDir()})
		var parseErr *schema.ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.ErrorIs(t, err, schema.ErrNoJSONPayload)
		assert.Empty(t, out.names)
	})

	t.Run("output failure stops the run", func(t *testing.T) {
		p, out := newPipeline(t, &runner{stdout: toughCookieAudit})
		out.failOn = outputs.IssuesFixable

		_, err := p.Run(context.Background(), Options{Workspace: t.TempDir()})
		require.Error(t, err)
		assert.Equal(t, []string{outputs.IssuesTotal}, out.names)
	})

	t.Run("output path outside workspace", func(t *testing.T) {
		base := t.TempDir()
		ws := filepath.Join(base, "ws")
		require.NoError(t, os.Mkdir(ws, 0755))
		outside := filepath.Join(base, "passwd")

		p, out := newPipeline(t, &runner{stdout: toughCookieAudit})
		_, err := p.Run(context.Background(), Options{Workspace: ws, OutputPath: outside})

		var escErr *utils.PathEscapeError
		require.ErrorAs(t, err, &escErr)
		assert.NoFileExists(t, outside)
		// outputs are published before the report file is written
		assert.Contains(t, out.names, outputs.Markdown)
	})

	t.Run("etc passwd", func(t *testing.T) {
		p, _ := newPipeline(t, &runner{stdout: toughCookieAudit})
		_, err := p.Run(context.Background(), Options{Workspace: "/ws", OutputPath: "/etc/passwd"})

		var escErr *utils.PathEscapeError
		require.ErrorAs(t, err, &escErr)
	})

	t.Run("version check", func(t *testing.T) {
		r := &runner{stdout: toughCookieAudit}
		p, out := newPipeline(t, r)
		p.Scanner = oldNpm{p.Scanner}

		_, err := p.Run(context.Background(), Options{Workspace: t.TempDir(), CheckVersion: true})
		require.Error(t, err)
		assert.Empty(t, r.argv)
		assert.Empty(t, out.names)
	})
}

type oldNpm struct {
	Scanner
}

func (oldNpm) CheckVersion(context.Context, string) error {
	return errors.New("npm 6.14.18 does not satisfy >= 7.0.0")
}
