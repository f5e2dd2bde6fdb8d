package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Via is one entry of a vulnerability's "via" array: either a structured
// advisory or the name of another vulnerable package.
type Via struct {
	report *VulnerabilityReport
	name   string
}

// ViaReport wraps an advisory
func ViaReport(r VulnerabilityReport) Via {
	return Via{report: &r}
}

// ViaPackage wraps a plain package reference
func ViaPackage(name string) Via {
	return Via{name: name}
}

// Report returns the advisory when the entry is structured
func (v Via) Report() (VulnerabilityReport, bool) {
	if v.report == nil {
		return VulnerabilityReport{}, false
	}
	return *v.report, true
}

// Name is the referenced package name, or the advisory's package for structured entries
func (v Via) Name() string {
	if v.report != nil {
		return v.report.Name
	}
	return v.name
}

// UnmarshalJSON treats an object with a non-empty title as an advisory and
// anything else as a package reference.
func (v *Via) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	switch {
	case r.IsObject() && r.Get("title").String() != "":
		var rep VulnerabilityReport
		if err := json.Unmarshal(data, &rep); err != nil {
			return fmt.Errorf("via advisory: %w", err)
		}
		*v = ViaReport(rep)
	case r.IsObject():
		*v = ViaPackage(r.Get("name").String())
	default:
		*v = ViaPackage(r.String())
	}
	return nil
}

func (v Via) MarshalJSON() ([]byte, error) {
	if v.report != nil {
		return json.Marshal(v.report)
	}
	return json.Marshal(v.name)
}

// FixTarget is the object form of fixAvailable
type FixTarget struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	IsSemVerMajor bool   `json:"isSemVerMajor"`
}

// FixAvailable is either a boolean or a FixTarget
type FixAvailable struct {
	Enabled bool
	Target  *FixTarget
}

// Available is true for `true` and for any target object
func (f FixAvailable) Available() bool {
	return f.Enabled || f.Target != nil
}

func (f *FixAvailable) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	switch {
	case r.IsObject():
		var t FixTarget
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("fixAvailable: %w", err)
		}
		*f = FixAvailable{Enabled: true, Target: &t}
	case r.Type == gjson.True, r.Type == gjson.False, r.Type == gjson.Null:
		*f = FixAvailable{Enabled: r.Bool()}
	default:
		return fmt.Errorf("fixAvailable: unexpected value %s", r.Raw)
	}
	return nil
}

func (f FixAvailable) MarshalJSON() ([]byte, error) {
	if f.Target != nil {
		return json.Marshal(f.Target)
	}
	return json.Marshal(f.Enabled)
}

// Vulnerabilities is the "vulnerabilities" object of an audit report.
// Iteration follows the key order of the JSON document.
type Vulnerabilities struct {
	items []Vulnerability
}

// NewVulnerabilities builds a mapping from vs. A later entry with the same
// name replaces the earlier one in place.
func NewVulnerabilities(vs ...Vulnerability) Vulnerabilities {
	var out Vulnerabilities
	index := make(map[string]int, len(vs))
	for _, v := range vs {
		if i, ok := index[v.Name]; ok {
			out.items[i] = v
			continue
		}
		index[v.Name] = len(out.items)
		out.items = append(out.items, v)
	}
	return out
}

// All returns the vulnerabilities in mapping order
func (vs Vulnerabilities) All() []Vulnerability {
	out := make([]Vulnerability, len(vs.items))
	copy(out, vs.items)
	return out
}

func (vs Vulnerabilities) Len() int {
	return len(vs.items)
}

// Get looks a vulnerability up by package name
func (vs Vulnerabilities) Get(name string) (Vulnerability, bool) {
	for _, v := range vs.items {
		if v.Name == name {
			return v, true
		}
	}
	return Vulnerability{}, false
}

func (vs *Vulnerabilities) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	if r.Type == gjson.Null {
		*vs = Vulnerabilities{}
		return nil
	}
	if !r.IsObject() {
		return fmt.Errorf("vulnerabilities: expected an object, got %s", r.Raw)
	}

	var (
		list []Vulnerability
		err  error
	)
	r.ForEach(func(key, value gjson.Result) bool {
		var v Vulnerability
		if err = json.Unmarshal([]byte(value.Raw), &v); err != nil {
			err = fmt.Errorf("vulnerability %q: %w", key.String(), err)
			return false
		}
		switch {
		case v.Name == "":
			v.Name = key.String()
		case v.Name != key.String():
			err = fmt.Errorf("vulnerability %q: name field is %q", key.String(), v.Name)
			return false
		}
		list = append(list, v)
		return true
	})
	if err != nil {
		return err
	}
	*vs = NewVulnerabilities(list...)
	return nil
}

func (vs Vulnerabilities) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range vs.items {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(v.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
