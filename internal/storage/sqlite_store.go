package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tspspi/gomso5000/internal/scope"
)

// SqliteStore implements Store on an SQLite database file.
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store for the database at dbPath. Connections
// are opened lazily; the schema is initialized on first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", s.dbPath))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, identity *scope.Identity, config any) (sessionID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch c := config.(type) {
		case string:
			configData.Valid = true
			configData.String = c

		case []byte:
			configData.Valid = true
			configData.String = string(c)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, identity.Manufacturer, identity.Product, identity.Serial, identity.Version, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess Session
		var config sql.NullString
		if err = rows.Scan(&sess.ID, &sess.StartTime, &sess.Manufacturer, &sess.Product, &sess.Serial, &sess.Version, &config); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		if config.Valid {
			sess.Config = &config.String
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// StoreResult writes every channel trace of res plus all computed
// statistics in one transaction. Complex spectra are archived through
// their real components; the full complex arrays stay in memory only.
func (s *SqliteStore) StoreResult(ctx context.Context, sessionID int64, capturedAt time.Time, res *scope.Result) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	var xIncrement, xOrigin float64
	if len(res.X) > 0 {
		xOrigin = res.X[0]
	}
	if len(res.X) > 1 {
		xIncrement = res.X[1] - res.X[0]
	}

	channels := make([]int, 0, len(res.Channels))
	for ch := range res.Channels {
		channels = append(channels, ch)
	}
	slices.Sort(channels)

	for _, ch := range channels {
		samples := res.Channels[ch]
		if _, err = tx.ExecContext(ctx, insertWaveformSQL,
			sessionID, ch, capturedAt.UTC(), len(samples), xIncrement, xOrigin, encodeSamples(samples)); err != nil {
			return fmt.Errorf("inserting waveform for channel %d: %w", ch, err)
		}
	}

	statGroups := []struct {
		stat   string
		scalar map[string]float64
		series map[string][]float64
	}{
		{stat: string(scope.StatMean), scalar: res.Means},
		{stat: string(scope.StatFFT), series: res.FFTReal},
		{stat: string(scope.StatIFFT), series: res.IFFTReal},
		{stat: string(scope.StatCorrelate), series: res.Correlation},
		{stat: string(scope.StatAutocorrelate), series: res.Autocorrelation},
	}

	for _, group := range statGroups {
		for key, v := range group.scalar {
			if err = insertStatistic(ctx, tx, sessionID, group.stat, key, v); err != nil {
				return err
			}
		}
		for key, v := range group.series {
			if err = insertStatistic(ctx, tx, sessionID, group.stat, key, v); err != nil {
				return err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func insertStatistic(ctx context.Context, tx *sql.Tx, sessionID int64, stat, key string, value any) error {
	p, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling statistic %s.%s: %w", stat, key, err)
	}
	if _, err = tx.ExecContext(ctx, insertStatisticSQL, sessionID, stat, key, string(p)); err != nil {
		return fmt.Errorf("inserting statistic %s.%s: %w", stat, key, err)
	}
	return nil
}

func (s *SqliteStore) Waveforms(ctx context.Context, sessionID int64) (waveforms []*Waveform, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectWaveformsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying waveforms: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var w Waveform
		var blob []byte
		if err = rows.Scan(&w.ID, &w.SessionID, &w.Channel, &w.CapturedAt, &w.RecordLength, &w.XIncrement, &w.XOrigin, &blob); err != nil {
			err = fmt.Errorf("scanning waveform: %w", err)
			return
		}
		w.Samples = decodeSamples(blob)
		waveforms = append(waveforms, &w)
	}
	return waveforms, rows.Err()
}

func (s *SqliteStore) Statistics(ctx context.Context, sessionID int64) (stats []*Statistic, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectStatisticsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying statistics: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var st Statistic
		if err = rows.Scan(&st.ID, &st.SessionID, &st.Stat, &st.Key, &st.Value); err != nil {
			err = fmt.Errorf("scanning statistic: %w", err)
			return
		}
		stats = append(stats, &st)
	}
	return stats, rows.Err()
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}
