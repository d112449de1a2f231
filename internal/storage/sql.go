package storage

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    manufacturer TEXT NOT NULL,
    product      TEXT NOT NULL,
    serial       TEXT NOT NULL,
    version      TEXT NOT NULL,
    config       TEXT
);

CREATE TABLE IF NOT EXISTS waveforms (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id    INTEGER NOT NULL REFERENCES sessions (id),
    channel       INTEGER NOT NULL,
    captured_at   DATETIME NOT NULL,
    record_length INTEGER NOT NULL,
    x_increment   REAL NOT NULL,
    x_origin      REAL NOT NULL,
    samples       BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS statistics (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL REFERENCES sessions (id),
    stat       TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      TEXT NOT NULL
);`

const initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_waveforms_session ON waveforms (session_id, channel);
CREATE INDEX IF NOT EXISTS idx_statistics_session ON statistics (session_id, stat);`

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      manufacturer,
                      product,
                      serial,
                      version,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?, ?, ?)`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    manufacturer,
    product,
    serial,
    version,
    config
FROM sessions
ORDER BY start_time, id`

	insertWaveformSQL = `
INSERT INTO waveforms (session_id,
                       channel,
                       captured_at,
                       record_length,
                       x_increment,
                       x_origin,
                       samples)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	selectWaveformsSQL = `
SELECT
    id,
    session_id,
    channel,
    captured_at,
    record_length,
    x_increment,
    x_origin,
    samples
FROM waveforms
WHERE
    session_id = ?
ORDER BY id`

	insertStatisticSQL = `
INSERT INTO statistics (session_id,
                        stat,
                        key,
                        value)
VALUES (?, ?, ?, ?)`

	selectStatisticsSQL = `
SELECT
    id,
    session_id,
    stat,
    key,
    value
FROM statistics
WHERE
    session_id = ?
ORDER BY id`
)
