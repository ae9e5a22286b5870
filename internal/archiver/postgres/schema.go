// Package postgres implements a durable Postgres destination for archived
// GridPulse data.
package postgres

const schemaDDL = `
CREATE TABLE IF NOT EXISTS alerts (
    alert_id    TEXT PRIMARY KEY,
    zone_id     TEXT NOT NULL,
    kind        TEXT NOT NULL,
    severity    TEXT NOT NULL,
    metric      TEXT,
    summary     TEXT NOT NULL,
    cycle_id    TEXT NOT NULL,
    timestamp   TIMESTAMPTZ NOT NULL,
    resolved    BOOLEAN NOT NULL DEFAULT FALSE,
    archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_alerts_zone_kind ON alerts (zone_id, kind);
CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts (timestamp);

CREATE TABLE IF NOT EXISTS constraint_events (
    event_id    TEXT PRIMARY KEY,
    zone_id     TEXT NOT NULL,
    metric      TEXT NOT NULL,
    severity    TEXT NOT NULL,
    cycle_id    TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    ended_at    TIMESTAMPTZ,
    archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_events_zone_metric ON constraint_events (zone_id, metric);
CREATE INDEX IF NOT EXISTS idx_events_started_at ON constraint_events (started_at);

CREATE TABLE IF NOT EXISTS risk_scores (
    zone_id     TEXT NOT NULL,
    cycle_id    TEXT NOT NULL,
    score       DOUBLE PRECISION NOT NULL,
    base_score  DOUBLE PRECISION NOT NULL,
    tier        TEXT NOT NULL,
    factors     JSONB,
    computed_at TIMESTAMPTZ NOT NULL,
    archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (zone_id, cycle_id)
);
CREATE INDEX IF NOT EXISTS idx_risk_scores_computed_at ON risk_scores (computed_at);

CREATE TABLE IF NOT EXISTS cycle_summaries (
    cycle_id     TEXT PRIMARY KEY,
    started_at   TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL,
    zones        JSONB NOT NULL,
    ok           INTEGER NOT NULL,
    degraded     INTEGER NOT NULL,
    failed       INTEGER NOT NULL,
    skipped      INTEGER NOT NULL,
    archived_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_cycle_summaries_started_at ON cycle_summaries (started_at);
`
