package sqlxrepos

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func pqErrCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool     { return pqErrCode(err) == uniqueViolation }
func isForeignKeyViolation(err error) bool { return pqErrCode(err) == foreignKeyViolation }

// validUUIDs drops the ids postgres would refuse to compare with a UUID column.
func validUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

// orderBy adds the orderings to the query, or defaultOrder when there are none.
// Fields must have been checked against the allowed columns by the caller.
func orderBy(q sq.SelectBuilder, orderings []core.DBOrdering, prefix, defaultOrder string) sq.SelectBuilder {
	if len(orderings) == 0 {
		return q.OrderBy(prefix + defaultOrder)
	}
	clauses := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		clauses = append(clauses, prefix+ord.String())
	}
	return q.OrderBy(clauses...)
}

func prefixed(prefix string, cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, prefix+c)
	}
	return out
}
