// Package ephstore persists decoded ephemeris and almanac sets to a
// local sqlite database as a checkpoint a host can inspect after a
// restart. It is purely additive: the receiver only writes to it
// (SaveEphemeris, from the application's publish loop) and never reads
// it back, at startup or otherwise; the Load methods exist for a host
// process. Nothing in the acquisition/tracking hot path depends on it
// being present.
package ephstore

import (
	"context"

	"gpsreceiver/internal/gnss/navdata"
)

// Store is the write-through ephemeris/almanac checkpoint contract.
// Implementations must be safe for concurrent use.
type Store interface {
	// SaveEphemeris upserts the latest decoded ephemeris for a PRN. A
	// write is skipped by implementations when the stored IODE/TOE pair
	// already matches, to avoid needless disk churn on unchanged data.
	SaveEphemeris(ctx context.Context, eph navdata.Ephemeris) error

	// LoadEphemeris returns the checkpointed ephemeris for prn, or
	// ErrNotFound if none has been saved.
	LoadEphemeris(ctx context.Context, prn int) (navdata.Ephemeris, error)

	// LoadAllEphemeris returns every checkpointed ephemeris, keyed by PRN,
	// for bulk seeding at startup.
	LoadAllEphemeris(ctx context.Context) (map[int]navdata.Ephemeris, error)

	// SaveAlmanac upserts the latest decoded almanac entry for a PRN.
	SaveAlmanac(ctx context.Context, alm navdata.Almanac) error

	// LoadAllAlmanac returns every checkpointed almanac entry, keyed by PRN.
	LoadAllAlmanac(ctx context.Context) (map[int]navdata.Almanac, error)

	// Close releases the database connections. Safe to call multiple times.
	Close() error
}
