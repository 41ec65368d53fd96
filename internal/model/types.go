package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Instrument is a single record from the daily instrument catalog.
// The catalog serves flat string-keyed objects; the fields the bridge
// matches on are promoted, everything else is kept in Attrs.
type Instrument struct {
	InstrumentKey  string // e.g. "NSE_FO|12345"
	TradingSymbol  string // e.g. "BANKNIFTY FUT 30 APR 25"
	InstrumentType string // e.g. "FUT", "CE", "PE"
	Expiry         string // e.g. "2025-04-30"

	// Attrs holds every attribute of the raw record, including the
	// promoted ones, stringified.
	Attrs map[string]string
}

// UnmarshalJSON parses a flat catalog record, promoting the known keys.
func (in *Instrument) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	in.Attrs = make(map[string]string, len(raw))
	for k, v := range raw {
		in.Attrs[k] = scalarString(v)
	}

	in.InstrumentKey = in.Attrs["instrument_key"]
	in.TradingSymbol = in.Attrs["trading_symbol"]
	in.InstrumentType = in.Attrs["instrument_type"]
	in.Expiry = in.Attrs["expiry"]
	return nil
}

// scalarString renders a JSON scalar as its string form. Strings lose their
// quotes; numbers keep their literal representation.
func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return string(raw)
}

// ResolvedContract is the target derivative selected from the catalog:
// the raw instrument key plus the canonical exchange-qualified symbol.
// Written at most once per process, read many times.
type ResolvedContract struct {
	InstrumentKey string `json:"instrument_key"`
	Symbol        string `json:"symbol"`
}

// IsZero reports whether no contract was resolved. An empty key means
// "not found" and is a valid outcome, not an error.
func (c ResolvedContract) IsZero() bool {
	return c.InstrumentKey == ""
}

func (c ResolvedContract) String() string {
	if c.IsZero() {
		return "<unresolved>"
	}
	return fmt.Sprintf("%s (%s)", c.Symbol, c.InstrumentKey)
}

// Signal is an ephemeral broadcast payload pushed to connected clients
// on each scheduler tick. Not persisted.
type Signal struct {
	Action   string  `json:"action"`
	Target   float64 `json:"target"`
	StopLoss float64 `json:"stop_loss"`
}
