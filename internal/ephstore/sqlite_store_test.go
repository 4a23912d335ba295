package ephstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpsreceiver/internal/gnss/navdata"
)

func testEphemeris(prn, iode int) navdata.Ephemeris {
	return navdata.Ephemeris{
		PRN: prn, Week: 2300, TOE: 14400, TOC: 14400,
		SqrtA: 5153.65, Eccentricity: 0.01, I0: 0.95, Omega0: 1.2,
		Omega: -1.5, M0: 0.3, DeltaN: 4.3e-9, IDot: 1e-10, OmegaDot: -8e-9,
		Cuc: 1e-6, Cus: 2e-6, Crc: 200, Crs: -30, Cic: 1e-7, Cis: -1e-7,
		AF0: 1e-5, AF1: 1e-12, AF2: 0, IODE: iode, IODC: iode, TGD: -1e-8,
		URA: 2, Health: 0, FitIntervalH: 4, DecodedAtS: 14418,
	}
}

func testAlmanac(prn int) navdata.Almanac {
	return navdata.Almanac{
		PRN: prn, Health: 0, Eccentricity: 0.02, TOA: 61440, I0: 0.96,
		OmegaDot: -7.9e-9, SqrtA: 5153.6, Omega0: 1.1, Omega: -1.4, M0: 0.4,
		AF0: 2e-5, AF1: 0,
	}
}

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ephemeris.db")
	s := NewSqliteStore(path)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSqliteStore_SaveAndLoadEphemeris(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveEphemeris(ctx, testEphemeris(12, 84)))

	got, err := s.LoadEphemeris(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, got.PRN)
	assert.Equal(t, 84, got.IODE)
	assert.InDelta(t, 5153.65, got.SqrtA, 1e-9)
}

func TestSqliteStore_LoadEphemeris_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Force the database file and schema to exist before querying a PRN
	// that was never saved.
	require.NoError(t, s.SaveEphemeris(ctx, testEphemeris(1, 1)))

	_, err := s.LoadEphemeris(ctx, 7)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSqliteStore_SaveEphemeris_UpsertsOnNewIODE(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveEphemeris(ctx, testEphemeris(5, 10)))
	require.NoError(t, s.SaveEphemeris(ctx, testEphemeris(5, 20)))

	got, err := s.LoadEphemeris(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 20, got.IODE)

	all, err := s.LoadAllEphemeris(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSqliteStore_LoadAllEphemeris(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveEphemeris(ctx, testEphemeris(3, 1)))
	require.NoError(t, s.SaveEphemeris(ctx, testEphemeris(9, 2)))

	all, err := s.LoadAllEphemeris(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Contains(t, all, 3)
	assert.Contains(t, all, 9)
}

func TestSqliteStore_SaveAndLoadAllAlmanac(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveAlmanac(ctx, testAlmanac(14)))
	require.NoError(t, s.SaveAlmanac(ctx, testAlmanac(22)))

	all, err := s.LoadAllAlmanac(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.InDelta(t, 61440.0, all[14].TOA, 1e-9)
}

func TestSqliteStore_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveEphemeris(ctx, testEphemeris(1, 1)))
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestSqliteStore_SatisfiesStoreInterface(t *testing.T) {
	var _ Store = NewSqliteStore(filepath.Join(t.TempDir(), "x.db"))
}
