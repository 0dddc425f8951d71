// Package obstore persists the observations of the crawler in a
// sqlite3 database: one record per instrument per date, superseded
// by later recordings of the same date, never deleted.
package obstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	// sqlite3 database driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// DateFormat is the canonical date layout of the store.
const DateFormat = "2006-01-02"

// Observation is one successfully resolved price of an instrument.
// Never mutated after creation.
type Observation struct {
	Code       string
	Market     string
	Currency   string
	Value      decimal.Decimal
	Date       time.Time
	ObservedAt time.Time
	Source     string
}

// DateString returns the observation date in the canonical layout.
func (o *Observation) DateString() string {
	return o.Date.Format(DateFormat)
}

// Store is the observations database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the observations database at the given path.
func Open(path string) (*Store, error) {
	if len(path) == 0 {
		return nil, errors.New("invalid database path")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer at a time: serializing the connections
	// also serializes concurrent workers writing distinct instruments.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err = s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) createTables() error {
	const sqlTable = `
CREATE TABLE IF NOT EXISTS observations (
    code        TEXT NOT NULL,
    market      TEXT NOT NULL,
    currency    TEXT NOT NULL,
    value       TEXT NOT NULL,
    date        TEXT NOT NULL,
    observed_at TIMESTAMP NOT NULL,
    source      TEXT NOT NULL,
    PRIMARY KEY (code, date)
);
CREATE INDEX IF NOT EXISTS idx_observations_market ON observations(market, date);
`
	_, err := s.db.Exec(sqlTable)
	return err
}

// Record saves the observation.
// It is idempotent per (code, date): recording twice for the same date
// overwrites the previous row, never duplicates it.
func (s *Store) Record(obs *Observation) error {
	if obs == nil {
		return errors.New("cannot record a nil observation")
	}
	if obs.Code == "" || obs.Date.IsZero() {
		return fmt.Errorf("cannot record observation with empty code or date: %+v", obs)
	}

	const sqlInsert = `
INSERT INTO observations (code, market, currency, value, date, observed_at, source)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (code, date) DO UPDATE SET
    market      = excluded.market,
    currency    = excluded.currency,
    value       = excluded.value,
    observed_at = excluded.observed_at,
    source      = excluded.source
`
	_, err := s.db.Exec(sqlInsert,
		obs.Code, obs.Market, obs.Currency, obs.Value.String(),
		obs.DateString(), obs.ObservedAt, obs.Source)
	return err
}

// Latest returns the most recent observation of the instrument by
// date, not by insertion order: backfilling an older date never
// changes the result. It returns nil if the instrument has no
// observations.
func (s *Store) Latest(code string) (*Observation, error) {
	const sqlSelect = `
SELECT code, market, currency, value, date, observed_at, source
FROM observations
WHERE code = ?
ORDER BY date DESC
LIMIT 1
`
	obs, err := scanObservation(s.db.QueryRow(sqlSelect, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return obs, err
}

// History returns the observations of the instrument in the date range
// (inclusive), ordered by date.
func (s *Store) History(code string, from, to time.Time) ([]*Observation, error) {
	const sqlSelect = `
SELECT code, market, currency, value, date, observed_at, source
FROM observations
WHERE code = ? AND date >= ? AND date <= ?
ORDER BY date
`
	rows, err := s.db.Query(sqlSelect, code, from.Format(DateFormat), to.Format(DateFormat))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, obs)
	}
	return list, rows.Err()
}

// Has reports whether the instrument already has an observation for
// the date.
func (s *Store) Has(code string, date time.Time) (bool, error) {
	const sqlSelect = `SELECT count(*) FROM observations WHERE code = ? AND date = ?`

	var n int
	err := s.db.QueryRow(sqlSelect, code, date.Format(DateFormat)).Scan(&n)
	return n > 0, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanObservation(row scanner) (*Observation, error) {
	var (
		obs   Observation
		value string
		date  string
	)
	err := row.Scan(&obs.Code, &obs.Market, &obs.Currency, &value,
		&date, &obs.ObservedAt, &obs.Source)
	if err != nil {
		return nil, err
	}

	if obs.Value, err = decimal.NewFromString(value); err != nil {
		return nil, fmt.Errorf("invalid stored value %q: %w", value, err)
	}
	if obs.Date, err = time.Parse(DateFormat, date); err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
	}
	return &obs, nil
}
