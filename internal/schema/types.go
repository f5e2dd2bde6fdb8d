package schema

// VulnerabilityReport is a single advisory as listed in a vulnerability's "via" array
type VulnerabilityReport struct {
	Source     int64    `json:"source"`
	Name       string   `json:"name"`
	Dependency string   `json:"dependency"`
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Severity   Severity `json:"severity"`
	CWE        []string `json:"cwe,omitempty"`
	CVSS       CVSS     `json:"cvss"`
	Range      string   `json:"range"`
}

// CVSS holds the advisory score. npm reports a zero score with a null vector when unknown.
type CVSS struct {
	Score        float64 `json:"score"`
	VectorString string  `json:"vectorString,omitempty"`
}

// HasScore reports whether a CVSS score was published for the advisory
func (c CVSS) HasScore() bool {
	return c.Score > 0
}

// Vulnerability is a per-package finding keyed by package name in AuditResult
type Vulnerability struct {
	Name         string       `json:"name"`
	Severity     Severity     `json:"severity"`
	IsDirect     bool         `json:"isDirect"`
	Via          []Via        `json:"via"`
	Effects      []string     `json:"effects"`
	Range        string       `json:"range"`
	Nodes        []string     `json:"nodes"`
	FixAvailable FixAvailable `json:"fixAvailable"`
}

// IsFixable reports whether npm knows an automated remediation for v
func IsFixable(v Vulnerability) bool {
	return v.FixAvailable.Available()
}

// Reports returns the structured advisories among v.Via, in order
func (v Vulnerability) Reports() []VulnerabilityReport {
	var out []VulnerabilityReport
	for _, via := range v.Via {
		if r, ok := via.Report(); ok {
			out = append(out, r)
		}
	}
	return out
}

// Causes returns the plain package references among v.Via, in order
func (v Vulnerability) Causes() []string {
	var out []string
	for _, via := range v.Via {
		if _, ok := via.Report(); !ok {
			out = append(out, via.Name())
		}
	}
	return out
}

// SeverityCounts is metadata.vulnerabilities
type SeverityCounts struct {
	Info     int `json:"info"`
	Low      int `json:"low"`
	Moderate int `json:"moderate"`
	High     int `json:"high"`
	Critical int `json:"critical"`
	Total    int `json:"total"`
}

// DependencyCounts is metadata.dependencies
type DependencyCounts struct {
	Prod         int `json:"prod"`
	Dev          int `json:"dev"`
	Optional     int `json:"optional"`
	PeerOptional int `json:"peerOptional"`
	Peer         int `json:"peer"`
	Total        int `json:"total"`
}

// Metadata is informational only; counts shown to users are recomputed from the vulnerabilities.
type Metadata struct {
	Vulnerabilities SeverityCounts   `json:"vulnerabilities"`
	Dependencies    DependencyCounts `json:"dependencies"`
}

// AuditResult is the output of `npm audit --json`
type AuditResult struct {
	AuditReportVersion int             `json:"auditReportVersion"`
	Vulnerabilities    Vulnerabilities `json:"vulnerabilities"`
	Metadata           Metadata        `json:"metadata"`
}

// FixEnvelope is the output of `npm audit fix --json`
type FixEnvelope struct {
	Added   int         `json:"added"`
	Removed int         `json:"removed"`
	Changed int         `json:"changed"`
	Audited int         `json:"audited"`
	Funding int         `json:"funding"`
	Audit   AuditResult `json:"audit"`
}

// Output is either an AuditResult or a FixEnvelope. No other type implements it.
type Output interface {
	Unwrap() AuditResult
	isOutput()
}

func (r AuditResult) Unwrap() AuditResult { return r }
func (AuditResult) isOutput()             {}

func (e FixEnvelope) Unwrap() AuditResult { return e.Audit }
func (FixEnvelope) isOutput()             {}

// Counts are recomputed from the vulnerability mapping
type Counts struct {
	Total     int
	Fixable   int
	Unfixable int
}

// Fixable returns the fixable vulnerabilities in mapping order
func (r AuditResult) Fixable() []Vulnerability {
	var out []Vulnerability
	for _, v := range r.Vulnerabilities.All() {
		if IsFixable(v) {
			out = append(out, v)
		}
	}
	return out
}

// Counts tallies fixable and unfixable findings
func (r AuditResult) Counts() Counts {
	c := Counts{Total: r.Vulnerabilities.Len()}
	for _, v := range r.Vulnerabilities.All() {
		if IsFixable(v) {
			c.Fixable++
		}
	}
	c.Unfixable = c.Total - c.Fixable
	return c
}
