package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const classNotFound = "not_found"

type knownDBError struct {
	target error
	class  string
}

// ClassifyDBError labels errors matching target (errors.Is) with class.
// The "not_found" class is recorded as a successful query.
func (p *Prom) ClassifyDBError(target error, class string) {
	p.knownDBErrors = append(p.knownDBErrors, knownDBError{target: target, class: class})
}

// ObserveDB times fn under the logical op name. A nil *Prom just runs fn.
func (p *Prom) ObserveDB(op string, fn func() error) error {
	if p == nil {
		return fn()
	}

	start := time.Now()
	err := fn()

	status := "ok"

	if err != nil {
		class := p.classifyDBErr(err)
		if class != classNotFound {
			status = "error"
			p.DbErrorsTotal.WithLabelValues(op, class).Inc()
		}
	}
	p.DbQueryDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

func (p *Prom) classifyDBErr(err error) string {
	for _, k := range p.knownDBErrors {
		if errors.Is(err, k.target) {
			return k.class
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return "unique_violation"
		case "40001":
			return "serialization_failure"
		case "40P01":
			return "deadlock"
		case "57014":
			return "query_canceled"
		default:
			return "pg_" + pgErr.Code
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return classNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "connection"):
		return "connection"
	default:
		return "unknown"
	}
}
