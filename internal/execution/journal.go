package execution

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"options-deskv1/internal/model"
)

// Journal persists order confirmations to SQLite for audit. Both the
// execution engine and the deployment engine write to it.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		broker           TEXT NOT NULL,
		order_id         TEXT NOT NULL,
		trading_symbol   TEXT NOT NULL,
		strike           INTEGER DEFAULT 0,
		option_type      TEXT,
		expiry           TEXT,
		transaction_type TEXT NOT NULL,
		quantity         INTEGER NOT NULL,
		source           TEXT NOT NULL,
		placed_at        DATETIME NOT NULL,
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_broker ON orders(broker);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(trading_symbol);
	CREATE INDEX IF NOT EXISTS idx_orders_placed_at ON orders(placed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened order journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// Record persists one confirmation. source tags the origin engine
// ("execution", "deployment", "squareoff").
func (j *Journal) Record(conf model.OrderConfirmation, source string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO orders (broker, order_id, trading_symbol, strike, option_type, expiry, transaction_type, quantity, source, placed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conf.Broker,
		conf.OrderID,
		conf.TradingSymbol,
		conf.Strike,
		conf.OptionType,
		conf.Expiry,
		conf.TransactionType,
		conf.Quantity,
		source,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// JournalEntry represents a row from the orders table.
type JournalEntry struct {
	ID              int64  `json:"id"`
	Broker          string `json:"broker"`
	OrderID         string `json:"order_id"`
	TradingSymbol   string `json:"trading_symbol"`
	Strike          int    `json:"strike"`
	OptionType      string `json:"option_type"`
	Expiry          string `json:"expiry"`
	TransactionType string `json:"transaction_type"`
	Quantity        int    `json:"quantity"`
	Source          string `json:"source"`
	PlacedAt        string `json:"placed_at"`
}

// Recent returns the last N journal entries, newest first.
func (j *Journal) Recent(limit int) ([]JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, broker, order_id, trading_symbol, strike, option_type, expiry, transaction_type, quantity, source, placed_at
		 FROM orders ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.Broker, &e.OrderID, &e.TradingSymbol, &e.Strike,
			&e.OptionType, &e.Expiry, &e.TransactionType, &e.Quantity, &e.Source, &e.PlacedAt); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// DB returns the underlying database handle for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
