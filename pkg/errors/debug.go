package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is a log-friendly snapshot of an error chain, including the
// Postgres diagnostics when a driver error sits somewhere in the chain.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// Dump walks err. Both pgx and lib/pq driver errors are recognised.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) {
		d.PGCode, d.PGMessage, d.PGDetail = pgErr.Code, pgErr.Message, pgErr.Detail
		d.PGConstraint, d.PGTable, d.PGColumn = pgErr.ConstraintName, pgErr.TableName, pgErr.ColumnName
	} else if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		d.PGCode, d.PGMessage, d.PGDetail = string(pqErr.Code), pqErr.Message, pqErr.Detail
		d.PGConstraint, d.PGTable, d.PGColumn = pqErr.Constraint, pqErr.Table, pqErr.Column
	}
	return d
}

// LogFields flattens the dump for structured logging. Empty Postgres fields
// are left out.
func (d ErrorDump) LogFields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_chain": d.Chain,
	}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
	}
	for key, value := range map[string]string{
		"pg_code":       d.PGCode,
		"pg_constraint": d.PGConstraint,
		"pg_table":      d.PGTable,
		"pg_column":     d.PGColumn,
		"pg_detail":     d.PGDetail,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
