package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FlexTime accepts a JSON string or epoch-milliseconds number. It keeps the raw
// text; ParseTime interprets it later.
type FlexTime string

func (t *FlexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = FlexTime(s)
		return nil
	}
	*t = FlexTime(b)
	return nil
}

// FlexFloat accepts a JSON number, a numeric string or null. Anything that does
// not parse as a number is treated as missing.
type FlexFloat struct {
	Value float64
	Valid bool
}

// NewFlexFloat wraps a present value.
func NewFlexFloat(v float64) FlexFloat { return FlexFloat{Value: v, Valid: true} }

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	*f = FlexFloat{}
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) || len(b) == 0 {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return nil
	}
	*f = FlexFloat{Value: v, Valid: true}
	return nil
}

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid || math.IsInf(f.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Ptr returns nil for a missing value.
func (f FlexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// TradeRecord is the JSON wire shape of one trade. Unknown fields are ignored.
type TradeRecord struct {
	EntryDate FlexTime  `json:"entry_date"`
	ExitDate  FlexTime  `json:"exit_date"`
	PnL       FlexFloat `json:"pnl"`
}

func (r TradeRecord) Raw() RawTrade {
	return RawTrade{EntryDate: string(r.EntryDate), ExitDate: string(r.ExitDate), PnL: r.PnL.Ptr()}
}

// PriceRecord is the JSON wire shape of one benchmark point.
type PriceRecord struct {
	Date  FlexTime  `json:"date"`
	Price FlexFloat `json:"price"`
}

func (r PriceRecord) Raw() RawBenchmarkPoint {
	return RawBenchmarkPoint{Date: string(r.Date), Price: r.Price.Ptr()}
}

// TradesFromRecords cleans a slice of wire records.
func TradesFromRecords(recs []TradeRecord) []Trade {
	raw := make([]RawTrade, len(recs))
	for i, r := range recs {
		raw[i] = r.Raw()
	}
	return CleanTrades(raw)
}

// BenchmarkFromRecords cleans a slice of wire records.
func BenchmarkFromRecords(recs []PriceRecord) Benchmark {
	raw := make([]RawBenchmarkPoint, len(recs))
	for i, r := range recs {
		raw[i] = r.Raw()
	}
	return CleanBenchmark(raw)
}
