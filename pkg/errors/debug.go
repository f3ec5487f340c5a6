package errors

import (
	stdErrors "errors"

	"github.com/jackc/pgconn"
)

// Dumped flattens an error chain for structured logging.
type Dumped struct {
	Code         Code
	TopMessage   string
	Chain        []string
	PGCode       string
	PGDetail     string
	PGMessage    string
	PGConstraint string
}

// Dump walks the chain collecting messages and any Postgres driver detail.
func Dump(err error) Dumped {
	out := Dumped{Code: CodeInternal}
	if err == nil {
		return out
	}
	out.TopMessage = err.Error()
	if typed := As(err); typed != nil {
		out.Code = typed.Code()
	}
	for chain := err; chain != nil; chain = stdErrors.Unwrap(chain) {
		out.Chain = append(out.Chain, chain.Error())
	}
	var pgErr *pgconn.PgError
	if stdErrors.As(err, &pgErr) {
		out.PGCode = pgErr.Code
		out.PGDetail = pgErr.Detail
		out.PGMessage = pgErr.Message
		out.PGConstraint = pgErr.ConstraintName
	}
	return out
}
