package kiteconnect

import (
	"strings"
	"testing"
)

const sampleDump = `instrument_token,exchange_token,tradingsymbol,name,last_price,expiry,strike,tick_size,lot_size,instrument_type,segment,exchange
11493122,44895,NIFTY2590925000CE,NIFTY,0,2026-09-09,25000,0.05,75,CE,NFO-OPT,NFO
11493378,44896,NIFTY2590925000PE,NIFTY,0,2026-09-09,25000,0.05,75,PE,NFO-OPT,NFO
12601602,49225,NIFTY25SEPFUT,NIFTY,0,2026-09-24,0,0.05,75,FUT,NFO-FUT,NFO
`

func TestParseInstrumentCSV(t *testing.T) {
	instruments, err := parseInstrumentCSV(strings.NewReader(sampleDump))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(instruments) != 3 {
		t.Fatalf("rows = %d, want 3", len(instruments))
	}

	ce := instruments[0]
	if ce.TradingSymbol != "NIFTY2590925000CE" || ce.Strike != 25000 || ce.LotSize != 75 {
		t.Fatalf("first row parsed wrong: %+v", ce)
	}
	if ce.InstrumentType != "CE" || ce.Expiry != "2026-09-09" || ce.Exchange != "NFO" {
		t.Fatalf("first row parsed wrong: %+v", ce)
	}
	if instruments[2].InstrumentType != "FUT" || instruments[2].Strike != 0 {
		t.Fatalf("future row parsed wrong: %+v", instruments[2])
	}
}

func TestParseInstrumentCSVToleratesShortRows(t *testing.T) {
	dump := "instrument_token,tradingsymbol,strike,lot_size,instrument_type\n1,NIFTY25000CE,25000\n"
	instruments, err := parseInstrumentCSV(strings.NewReader(dump))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(instruments) != 1 || instruments[0].LotSize != 0 {
		t.Fatalf("short row handling: %+v", instruments)
	}
}
