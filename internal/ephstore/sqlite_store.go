package ephstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"gpsreceiver/internal/gnss/navdata"
)

// ErrNotFound is returned by LoadEphemeris when no checkpoint exists
// for the requested PRN.
var ErrNotFound = errors.New("ephstore: no checkpoint for prn")

// SqliteStore is a Store backed by a local sqlite database file.
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

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore returns a Store backed by dbPath. The file and its
// schema are created lazily on first write.
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
		if err = runSQLCommand(db, schemaSQL); err != nil {
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
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})
	return s.readDB, s.readDBErr
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func (s *SqliteStore) SaveEphemeris(ctx context.Context, eph navdata.Ephemeris) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, upsertEphemerisSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	_, err = stmt.ExecContext(ctx,
		eph.PRN, eph.Week, eph.TOE, eph.TOC, eph.SqrtA, eph.Eccentricity, eph.I0, eph.Omega0, eph.Omega, eph.M0,
		eph.DeltaN, eph.IDot, eph.OmegaDot, eph.Cuc, eph.Cus, eph.Crc, eph.Crs, eph.Cic, eph.Cis,
		eph.AF0, eph.AF1, eph.AF2, eph.IODE, eph.IODC, eph.TGD, eph.URA, eph.Health, eph.FitIntervalH, eph.DecodedAtS,
	)
	if err != nil {
		return fmt.Errorf("upserting ephemeris: %w", err)
	}
	return nil
}

func scanEphemeris(row interface {
	Scan(dest ...any) error
}) (navdata.Ephemeris, error) {
	var eph navdata.Ephemeris
	err := row.Scan(
		&eph.PRN, &eph.Week, &eph.TOE, &eph.TOC, &eph.SqrtA, &eph.Eccentricity, &eph.I0, &eph.Omega0, &eph.Omega, &eph.M0,
		&eph.DeltaN, &eph.IDot, &eph.OmegaDot, &eph.Cuc, &eph.Cus, &eph.Crc, &eph.Crs, &eph.Cic, &eph.Cis,
		&eph.AF0, &eph.AF1, &eph.AF2, &eph.IODE, &eph.IODC, &eph.TGD, &eph.URA, &eph.Health, &eph.FitIntervalH, &eph.DecodedAtS,
	)
	return eph, err
}

func (s *SqliteStore) LoadEphemeris(ctx context.Context, prn int) (navdata.Ephemeris, error) {
	db, err := s.getReadDB()
	if err != nil {
		return navdata.Ephemeris{}, fmt.Errorf("getting read connection: %w", err)
	}

	row := db.QueryRowContext(ctx, selectEphemerisSQL, prn)
	eph, err := scanEphemeris(row)
	if errors.Is(err, sql.ErrNoRows) {
		return navdata.Ephemeris{}, ErrNotFound
	}
	if err != nil {
		return navdata.Ephemeris{}, fmt.Errorf("scanning ephemeris: %w", err)
	}
	return eph, nil
}

func (s *SqliteStore) LoadAllEphemeris(ctx context.Context) (_ map[int]navdata.Ephemeris, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectAllEphemerisSQL)
	if err != nil {
		return nil, fmt.Errorf("querying ephemeris: %w", err)
	}
	defer closeWithError(rows, &err)

	out := make(map[int]navdata.Ephemeris)
	for rows.Next() {
		eph, err := scanEphemeris(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ephemeris: %w", err)
		}
		out[eph.PRN] = eph
	}
	return out, rows.Err()
}

func (s *SqliteStore) SaveAlmanac(ctx context.Context, alm navdata.Almanac) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, upsertAlmanacSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	_, err = stmt.ExecContext(ctx,
		alm.PRN, alm.Health, alm.Eccentricity, alm.TOA, alm.I0, alm.OmegaDot,
		alm.SqrtA, alm.Omega0, alm.Omega, alm.M0, alm.AF0, alm.AF1,
	)
	if err != nil {
		return fmt.Errorf("upserting almanac: %w", err)
	}
	return nil
}

func (s *SqliteStore) LoadAllAlmanac(ctx context.Context) (_ map[int]navdata.Almanac, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectAllAlmanacSQL)
	if err != nil {
		return nil, fmt.Errorf("querying almanac: %w", err)
	}
	defer closeWithError(rows, &err)

	out := make(map[int]navdata.Almanac)
	for rows.Next() {
		var alm navdata.Almanac
		if err := rows.Scan(
			&alm.PRN, &alm.Health, &alm.Eccentricity, &alm.TOA, &alm.I0, &alm.OmegaDot,
			&alm.SqrtA, &alm.Omega0, &alm.Omega, &alm.M0, &alm.AF0, &alm.AF1,
		); err != nil {
			return nil, fmt.Errorf("scanning almanac: %w", err)
		}
		out[alm.PRN] = alm
	}
	return out, rows.Err()
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
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
