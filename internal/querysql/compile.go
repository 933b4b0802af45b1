// Package querysql compiles structured filter criteria into parameterized
// SQL for SQLite. Free-text terms go through the FTS5 index; every other
// dimension compiles to relational predicates over the features table and
// its association relations.
package querysql

import (
	"fmt"
	"strings"
)

// Filters is the structured filter set for a catalog search.
// Zero values mean "dimension not supplied".
type Filters struct {
	// Text is a free-text query matched against title+description with
	// per-token prefix semantics. Tokens are ANDed.
	Text string

	// Products and Platforms filter by tag with OR semantics within each set.
	Products  []string
	Platforms []string

	// Status is an exact match.
	Status string

	// GAFrom and GATo bound the GA date, inclusive, as "YYYY-MM" strings.
	// Year-month strings sort lexicographically in chronological order,
	// so plain string comparison is correct.
	GAFrom string
	GATo   string

	Limit  int
	Offset int
}

// Empty reports whether no filter dimension at all is supplied.
// Limit and offset are pagination, not filtering, and are ignored here.
// A text query that sanitizes down to nothing counts as absent.
func (f Filters) Empty() bool {
	return len(Tokenize(f.Text)) == 0 &&
		len(f.Products) == 0 &&
		len(f.Platforms) == 0 &&
		f.Status == "" &&
		f.GAFrom == "" &&
		f.GATo == ""
}

// Compiled holds the two queries a search needs: the page query and the
// pre-limit/offset count query. All values are parameterized, never
// interpolated.
type Compiled struct {
	ItemsSQL  string
	ItemsArgs []any
	CountSQL  string
	CountArgs []any
}

// selectColumns is the lightweight projection a search row carries.
// Full reconstruction goes through the by-ID path instead.
const selectColumns = "f.id, f.title, f.description, f.status, f.ga_date, f.preview_date, f.modified"

// Compile converts filters to parameterized SQL.
//
// Every page query carries the global ordering rule: modified DESC with an
// id tiebreaker for deterministic pagination across identical timestamps.
func Compile(f Filters) Compiled {
	var (
		joins  []string
		where  []string
		params []any
	)

	if tokens := Tokenize(f.Text); len(tokens) > 0 {
		joins = append(joins, "JOIN features_fts ON features_fts.rowid = f.id")
		where = append(where, "features_fts MATCH ?")
		params = append(params, strings.Join(tokens, " "))
	}

	if clause, args := tagPredicate("feature_products", f.Products); clause != "" {
		where = append(where, clause)
		params = append(params, args...)
	}
	if clause, args := tagPredicate("feature_platforms", f.Platforms); clause != "" {
		where = append(where, clause)
		params = append(params, args...)
	}

	if f.Status != "" {
		where = append(where, "f.status = ?")
		params = append(params, f.Status)
	}

	if f.GAFrom != "" {
		where = append(where, "f.ga_date >= ?")
		params = append(params, f.GAFrom)
	}
	if f.GATo != "" {
		where = append(where, "f.ga_date <= ?")
		params = append(params, f.GATo)
	}

	base := "FROM features f"
	if len(joins) > 0 {
		base += " " + strings.Join(joins, " ")
	}
	if len(where) > 0 {
		base += " WHERE " + strings.Join(where, " AND ")
	}

	itemsSQL := fmt.Sprintf(
		"SELECT %s %s ORDER BY f.modified DESC, f.id ASC LIMIT ? OFFSET ?",
		selectColumns, base,
	)
	itemsArgs := append(append([]any{}, params...), f.Limit, f.Offset)

	countSQL := "SELECT COUNT(*) " + base
	countArgs := append([]any{}, params...)

	return Compiled{
		ItemsSQL:  itemsSQL,
		ItemsArgs: itemsArgs,
		CountSQL:  countSQL,
		CountArgs: countArgs,
	}
}

// tagPredicate builds an EXISTS subquery matching any of the given tags
// (OR semantics within the set). Table names come from the two fixed
// call sites, never from caller input.
func tagPredicate(table string, tags []string) (string, []any) {
	if len(tags) == 0 {
		return "", nil
	}

	placeholders := strings.Repeat("?, ", len(tags))
	placeholders = placeholders[:len(placeholders)-2]

	clause := fmt.Sprintf(
		"EXISTS (SELECT 1 FROM %s t WHERE t.feature_id = f.id AND t.tag IN (%s))",
		table, placeholders,
	)

	args := make([]any, len(tags))
	for i, tag := range tags {
		args[i] = tag
	}
	return clause, args
}
