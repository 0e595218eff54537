// Package dreamhost implements a client for the DreamHost DNS API.
//
// The API is a single endpoint driven by query parameters:
//
//	GET https://api.dreamhost.com/?key=KEY&format=json&cmd=dns-list_records
//	GET https://api.dreamhost.com/?key=KEY&format=json&cmd=dns-add_record&record=NAME&type=TYPE&value=VALUE
//	GET https://api.dreamhost.com/?key=KEY&format=json&cmd=dns-remove_record&record=NAME&type=TYPE&value=VALUE
//
// Every response is a JSON envelope whose "result" field is "success" when
// the command was applied. Failures carry a short reason code in "data",
// for example "invalid_api_key" or "no_such_record".
//
// Records are identified by the (record, type, value) triple; the API has no
// record IDs, so removal must name the exact value the provider holds.
package dreamhost

import (
	"errors"
	"fmt"
)

// DefaultBaseURL is the DreamHost API endpoint.
const DefaultBaseURL = "https://api.dreamhost.com/"

// API commands.
const (
	CmdListRecords  = "dns-list_records"
	CmdAddRecord    = "dns-add_record"
	CmdRemoveRecord = "dns-remove_record"
)

// resultSuccess is the envelope result value for an applied command.
const resultSuccess = "success"

// ErrEnvelope indicates the provider answered but reported failure,
// or answered without the expected payload.
var ErrEnvelope = errors.New("provider reported failure")

// EnvelopeError carries the provider's failure details.
type EnvelopeError struct {
	Command string
	Result  string
	Reason  string
}

func (e *EnvelopeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: result %q: %s", e.Command, e.Result, e.Reason)
	}
	return fmt.Sprintf("%s: result %q", e.Command, e.Result)
}

// Unwrap lets errors.Is match ErrEnvelope.
func (e *EnvelopeError) Unwrap() error {
	return ErrEnvelope
}

// IsEnvelopeFailure reports whether err is a provider-reported failure
// rather than a transport or decoding fault.
func IsEnvelopeFailure(err error) bool {
	return errors.Is(err, ErrEnvelope)
}

// Record is a DNS record as held by DreamHost.
// Metadata fields are carried through unchanged.
type Record struct {
	Record    string `json:"record"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	Zone      string `json:"zone"`
	Comment   string `json:"comment"`
	AccountID string `json:"account_id"`
	Editable  string `json:"editable"`
}

// String returns "name TYPE value".
func (r Record) String() string {
	return r.Record + " " + r.Type + " " + r.Value
}
