// Package postgres implements the repositories on PostgreSQL via pgx.
package postgres

import (
	"context"
	"strings"

	"github.com/timiFoxtrot/main-product-store/pkg/database"
)

const dbSystem = "postgresql"

func traceQuery(ctx context.Context, operation, query string) (context.Context, func(error)) {
	return database.TraceQuery(ctx, dbSystem, operation, query)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching s anywhere, with LIKE
// metacharacters in s taken literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

type rowScanner interface {
	Scan(dest ...any) error
}
