package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoJSONPayload is wrapped by ParseError when the scanner output holds no JSON object at all
var ErrNoJSONPayload = errors.New("scanner output contains no JSON object")

// ParseError reports scanner output that could not be decoded
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse audit output: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse decodes npm audit output. A top-level "audit" field marks the
// output of fix mode, which is returned as a FixEnvelope.
func Parse(text string) (Output, error) {
	if !strings.Contains(text, "{") {
		return nil, &ParseError{Err: ErrNoJSONPayload}
	}
	if !gjson.Valid(text) {
		// Let encoding/json describe the syntax error.
		var probe any
		err := json.Unmarshal([]byte(text), &probe)
		if err == nil {
			err = errors.New("invalid JSON")
		}
		return nil, &ParseError{Err: err}
	}

	if gjson.Get(text, "audit").Exists() {
		var env FixEnvelope
		if err := json.Unmarshal([]byte(text), &env); err != nil {
			return nil, &ParseError{Err: err}
		}
		return env, nil
	}

	var res AuditResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return nil, &ParseError{Err: err}
	}
	return res, nil
}
