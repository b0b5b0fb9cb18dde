package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

const DefaultTable = "response_fact"

type Config struct {
	DSN      string
	Table    string
	MaxConns int32
}

// Store reads pre-flattened answers from the analytical warehouse. Each row of
// the fact table is one non-empty answer:
//
//	respondent_id text, year int, round text, code text, value text,
//	weight double precision, demographics jsonb
type Store struct {
	log   *logger.Logger
	pool  *pgxpool.Pool
	table string
}

func Open(ctx context.Context, log *logger.Logger, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("warehouse: missing dsn")
	}
	table, err := quoteTable(cfg.Table)
	if err != nil {
		return nil, err
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("warehouse: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pcfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("warehouse: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("warehouse: ping: %w", err)
	}
	log.Info("warehouse connected", "table", table, "max_conns", pcfg.MaxConns)
	return &Store{log: log.With("repo", "Warehouse"), pool: pool, table: table}, nil
}

func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// PeriodTotal counts distinct respondents of a period. Code is empty unless
// the totals were grouped per variable.
type PeriodTotal struct {
	Year        int
	Round       string
	Code        string
	Respondents int64
	Weighted    float64
}

type AnswerCount struct {
	Year     int
	Round    string
	Code     string
	Response string
	Count    int64
	Weighted float64
}

type DemographicCount struct {
	Year     int
	Round    string
	Code     string
	Response string
	Field    string
	Value    string
	Count    int64
	Weighted float64
}

// PeriodTotals counts each respondent once per (year, round), or once per
// (year, round, code) when perVariable is set.
func (s *Store) PeriodTotals(ctx context.Context, targets []survey.RoundCodes, perVariable bool) ([]PeriodTotal, error) {
	rounds, codes := pairArgs(targets)
	rows, err := s.pool.Query(ctx, periodTotalsSQL(s.table, perVariable), rounds, codes)
	if err != nil {
		return nil, classify("warehouse.PeriodTotals", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[PeriodTotal])
	if err != nil {
		return nil, classify("warehouse.PeriodTotals", err)
	}
	return out, nil
}

func (s *Store) AnswerCounts(ctx context.Context, targets []survey.RoundCodes) ([]AnswerCount, error) {
	rounds, codes := pairArgs(targets)
	rows, err := s.pool.Query(ctx, answerCountsSQL(s.table), rounds, codes)
	if err != nil {
		return nil, classify("warehouse.AnswerCounts", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[AnswerCount])
	if err != nil {
		return nil, classify("warehouse.AnswerCounts", err)
	}
	return out, nil
}

// DemographicCounts cross-tabulates answers by the given demographic fields.
// Field names come back in the caller's spelling.
func (s *Store) DemographicCounts(ctx context.Context, targets []survey.RoundCodes, fields []string) ([]DemographicCount, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	spelling := make(map[string]string, len(fields))
	upper := make([]string, 0, len(fields))
	for _, f := range fields {
		k := strings.ToUpper(strings.TrimSpace(f))
		if _, ok := spelling[k]; ok || k == "" {
			continue
		}
		spelling[k] = f
		upper = append(upper, k)
	}
	rounds, codes := pairArgs(targets)
	rows, err := s.pool.Query(ctx, demographicCountsSQL(s.table), rounds, codes, upper)
	if err != nil {
		return nil, classify("warehouse.DemographicCounts", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[DemographicCount])
	if err != nil {
		return nil, classify("warehouse.DemographicCounts", err)
	}
	for i := range out {
		if f, ok := spelling[strings.ToUpper(out[i].Field)]; ok {
			out[i].Field = f
		}
	}
	return out, nil
}

// pairArgs flattens targets into parallel round and code arrays for unnest.
func pairArgs(targets []survey.RoundCodes) ([]string, []string) {
	var rounds, codes []string
	for _, t := range targets {
		for _, c := range t.Codes {
			rounds = append(rounds, t.Round)
			codes = append(codes, survey.NormalizeCode(c))
		}
	}
	return rounds, codes
}

const pairFilter = `(f.round, upper(f.code)) IN (SELECT * FROM unnest($1::text[], $2::text[]))`

func periodTotalsSQL(table string, perVariable bool) string {
	if perVariable {
		return `SELECT f.year, f.round, upper(f.code) AS code, COUNT(DISTINCT f.respondent_id), COALESCE(SUM(f.weight), 0)
FROM ` + table + ` f
WHERE ` + pairFilter + ` AND f.value <> ''
GROUP BY f.year, f.round, upper(f.code)
ORDER BY f.year, f.round, upper(f.code)`
	}
	return `SELECT d.year, d.round, '' AS code, COUNT(*), COALESCE(SUM(d.weight), 0)
FROM (
	SELECT DISTINCT ON (f.year, f.round, f.respondent_id) f.year, f.round, f.weight
	FROM ` + table + ` f
	WHERE ` + pairFilter + ` AND f.value <> ''
	ORDER BY f.year, f.round, f.respondent_id, upper(f.code)
) d
GROUP BY d.year, d.round
ORDER BY d.year, d.round`
}

func answerCountsSQL(table string) string {
	return `SELECT f.year, f.round, upper(f.code) AS code, f.value, COUNT(*), COALESCE(SUM(f.weight), 0)
FROM ` + table + ` f
WHERE ` + pairFilter + ` AND f.value <> ''
GROUP BY f.year, f.round, upper(f.code), f.value
ORDER BY f.year, f.round, upper(f.code), COUNT(*) DESC, f.value`
}

func demographicCountsSQL(table string) string {
	return `SELECT f.year, f.round, upper(f.code) AS code, f.value, d.key, d.value, COUNT(*), COALESCE(SUM(f.weight), 0)
FROM ` + table + ` f
CROSS JOIN LATERAL jsonb_each_text(f.demographics) AS d(key, value)
WHERE ` + pairFilter + ` AND f.value <> '' AND upper(d.key) = ANY($3::text[]) AND d.value <> ''
GROUP BY f.year, f.round, upper(f.code), f.value, d.key, d.value
ORDER BY f.year, f.round, upper(f.code), f.value, d.key, COUNT(*) DESC, d.value`
}

func quoteTable(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTable
	}
	parts := strings.Split(name, ".")
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("warehouse: invalid table name %q", name)
		}
	}
	return pgx.Identifier(parts).Sanitize(), nil
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return survey.NewError(survey.CodeTimeout, op, "warehouse query exceeded its time budget", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "57014" { // query_canceled
		return survey.NewError(survey.CodeTimeout, op, "warehouse query cancelled", err)
	}
	return survey.NewError(survey.CodeBackendFailure, op, err.Error(), err)
}
