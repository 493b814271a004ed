package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres holds the driver-level fields of a database error, whichever
// driver produced it.
type Postgres struct {
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Constraint string `json:"constraint,omitempty"`
}

// PostgresFrom digs a pgx or lib/pq error out of err's chain.
func PostgresFrom(err error) (Postgres, bool) {
	if pgxErr, ok := asType[*pgconn.PgError](err); ok {
		return Postgres{
			Code:       pgxErr.Code,
			Message:    pgxErr.Message,
			Detail:     pgxErr.Detail,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Constraint: pgxErr.ConstraintName,
		}, true
	}
	if pqErr, ok := asType[*pq.Error](err); ok {
		return Postgres{
			Code:       string(pqErr.Code),
			Message:    pqErr.Message,
			Detail:     pqErr.Detail,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Constraint: pqErr.Constraint,
		}, true
	}
	return Postgres{}, false
}

func asType[T error](err error) (T, bool) {
	var target T
	ok := err != nil && stdErrors.As(err, &target)
	return target, ok
}

// Chain lists every error in err's unwrap chain as "type: message".
func Chain(err error) []string {
	var out []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		out = append(out, fmt.Sprintf("%T: %v", e, e))
	}
	return out
}

// LogFields flattens err into structured log fields. Postgres fields are
// only present when a driver error is in the chain.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{
		"error":       err.Error(),
		"error_chain": Chain(err),
	}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.code)
		if d, ok := typed.details.(map[string]any); ok {
			if step, ok := d["step"]; ok {
				fields["step"] = step
			}
		}
	}
	if pg, ok := PostgresFrom(err); ok {
		fields["pg_code"] = pg.Code
		fields["pg_message"] = pg.Message
		fields["pg_detail"] = pg.Detail
		fields["pg_table"] = pg.Table
		fields["pg_column"] = pg.Column
		fields["pg_constraint"] = pg.Constraint
	}
	return fields
}
