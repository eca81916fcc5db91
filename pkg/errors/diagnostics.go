package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Diagnostics is a flattened view of an error for structured logs. It is
// never sent to clients.
type Diagnostics struct {
	Message  string
	Code     Code
	Chain    []string
	Postgres map[string]string
}

// Diagnose walks the error chain and extracts Postgres driver details from
// either pgx or lib/pq errors.
func Diagnose(err error) Diagnostics {
	if err == nil {
		return Diagnostics{}
	}
	d := Diagnostics{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		d.Postgres = compact(map[string]string{
			"pg_code":       pgxErr.Code,
			"pg_constraint": pgxErr.ConstraintName,
			"pg_table":      pgxErr.TableName,
			"pg_column":     pgxErr.ColumnName,
			"pg_detail":     pgxErr.Detail,
			"pg_message":    pgxErr.Message,
		})
	case stdErrors.As(err, &pqErr):
		d.Postgres = compact(map[string]string{
			"pg_code":       string(pqErr.Code),
			"pg_constraint": pqErr.Constraint,
			"pg_table":      pqErr.Table,
			"pg_column":     pqErr.Column,
			"pg_detail":     pqErr.Detail,
			"pg_message":    pqErr.Message,
		})
	}
	return d
}

// Fields renders the diagnostics as log fields, omitting empty values.
func (d Diagnostics) Fields() map[string]any {
	fields := map[string]any{"error": d.Message}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	for k, v := range d.Postgres {
		fields[k] = v
	}
	return fields
}

func compact(values map[string]string) map[string]string {
	for k, v := range values {
		if v == "" {
			delete(values, k)
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values
}
