package kiteconnect

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Instrument is one row of the exchange instrument dump.
type Instrument struct {
	Token          string
	TradingSymbol  string
	Name           string
	Expiry         string // YYYY-MM-DD, empty for non-derivatives
	Strike         float64
	LotSize        int
	InstrumentType string // CE, PE, FUT, EQ
	Segment        string
	Exchange       string
}

// instrumentTTL bounds how long a downloaded dump is reused. The dump
// changes once a day, before market open.
const instrumentTTL = 6 * time.Hour

// Instruments returns the NFO instrument dump, downloading it at most once
// per TTL. The dump is a few megabytes of CSV; callers filter it.
func (kc *Client) Instruments(exchange string) ([]Instrument, error) {
	if kc.instruments != nil && time.Since(kc.fetchedAt) < instrumentTTL {
		return kc.instruments, nil
	}

	fullURL, err := kc.buildURL("market.instruments.exchange", exchange)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header = kc.requestHeaders()

	resp, err := kc.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("instrument dump: code %d", resp.StatusCode)
	}

	parsed, err := parseInstrumentCSV(resp.Body)
	if err != nil {
		return nil, err
	}
	kc.instruments = parsed
	kc.fetchedAt = time.Now()
	return parsed, nil
}

// InvalidateInstruments drops the cached dump.
func (kc *Client) InvalidateInstruments() {
	kc.instruments = nil
	kc.fetchedAt = time.Time{}
}

func parseInstrumentCSV(r io.Reader) ([]Instrument, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("instrument dump header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var out []Instrument
	for {
		row, err := reader.Read()
		if err != nil {
			break
		}
		strike, _ := strconv.ParseFloat(field(row, "strike"), 64)
		lotSize, _ := strconv.Atoi(field(row, "lot_size"))
		out = append(out, Instrument{
			Token:          field(row, "instrument_token"),
			TradingSymbol:  field(row, "tradingsymbol"),
			Name:           field(row, "name"),
			Expiry:         field(row, "expiry"),
			Strike:         strike,
			LotSize:        lotSize,
			InstrumentType: field(row, "instrument_type"),
			Segment:        field(row, "segment"),
			Exchange:       field(row, "exchange"),
		})
	}
	return out, nil
}
