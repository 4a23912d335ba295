package ephstore

import (
	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

const upsertEphemerisSQL = `
INSERT INTO ephemeris (
    prn, week, toe, toc, sqrt_a, eccentricity, i0, omega0, omega, m0,
    delta_n, i_dot, omega_dot, cuc, cus, crc, crs, cic, cis,
    af0, af1, af2, iode, iodc, tgd, ura, health, fit_interval_h, decoded_at_s,
    updated_at
) VALUES (
    ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
    ?, ?, ?, ?, ?, ?, ?, ?, ?,
    ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
    CURRENT_TIMESTAMP
)
ON CONFLICT(prn) DO UPDATE SET
    week = excluded.week,
    toe = excluded.toe,
    toc = excluded.toc,
    sqrt_a = excluded.sqrt_a,
    eccentricity = excluded.eccentricity,
    i0 = excluded.i0,
    omega0 = excluded.omega0,
    omega = excluded.omega,
    m0 = excluded.m0,
    delta_n = excluded.delta_n,
    i_dot = excluded.i_dot,
    omega_dot = excluded.omega_dot,
    cuc = excluded.cuc,
    cus = excluded.cus,
    crc = excluded.crc,
    crs = excluded.crs,
    cic = excluded.cic,
    cis = excluded.cis,
    af0 = excluded.af0,
    af1 = excluded.af1,
    af2 = excluded.af2,
    iode = excluded.iode,
    iodc = excluded.iodc,
    tgd = excluded.tgd,
    ura = excluded.ura,
    health = excluded.health,
    fit_interval_h = excluded.fit_interval_h,
    decoded_at_s = excluded.decoded_at_s,
    updated_at = CURRENT_TIMESTAMP
WHERE excluded.iode != ephemeris.iode OR excluded.toe != ephemeris.toe`

const selectEphemerisSQL = `
SELECT prn, week, toe, toc, sqrt_a, eccentricity, i0, omega0, omega, m0,
       delta_n, i_dot, omega_dot, cuc, cus, crc, crs, cic, cis,
       af0, af1, af2, iode, iodc, tgd, ura, health, fit_interval_h, decoded_at_s
FROM ephemeris
WHERE prn = ?`

const selectAllEphemerisSQL = `
SELECT prn, week, toe, toc, sqrt_a, eccentricity, i0, omega0, omega, m0,
       delta_n, i_dot, omega_dot, cuc, cus, crc, crs, cic, cis,
       af0, af1, af2, iode, iodc, tgd, ura, health, fit_interval_h, decoded_at_s
FROM ephemeris`

const upsertAlmanacSQL = `
INSERT INTO almanac (
    prn, health, eccentricity, toa, i0, omega_dot, sqrt_a, omega0, omega, m0, af0, af1, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(prn) DO UPDATE SET
    health = excluded.health,
    eccentricity = excluded.eccentricity,
    toa = excluded.toa,
    i0 = excluded.i0,
    omega_dot = excluded.omega_dot,
    sqrt_a = excluded.sqrt_a,
    omega0 = excluded.omega0,
    omega = excluded.omega,
    m0 = excluded.m0,
    af0 = excluded.af0,
    af1 = excluded.af1,
    updated_at = CURRENT_TIMESTAMP`

const selectAllAlmanacSQL = `
SELECT prn, health, eccentricity, toa, i0, omega_dot, sqrt_a, omega0, omega, m0, af0, af1
FROM almanac`
