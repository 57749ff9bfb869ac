package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// FlagSpec names a boolean column of which at most one row may be true, optionally per scope
// column. Specs are fixed values below; table and column names are never caller supplied.
type FlagSpec struct {
	Table  string
	Column string
	Scope  string
}

var (
	SemesterActive     = FlagSpec{Table: "semesters", Column: "is_active"}
	AcademicYearActive = FlagSpec{Table: "academic_years", Column: "is_active"}
	TimetablePublished = FlagSpec{Table: "timetables", Column: "is_published", Scope: "semester_id"}
)

var knownFlags = map[FlagSpec]struct{}{
	SemesterActive:     {},
	AcademicYearActive: {},
	TimetablePublished: {},
}

// ExclusiveFlag turns one row's flag on while clearing it everywhere else in the same scope.
type ExclusiveFlag struct {
	db *sqlx.DB
}

// NewExclusiveFlag constructs the exclusive flag writer.
func NewExclusiveFlag(db *sqlx.DB) *ExclusiveFlag {
	return &ExclusiveFlag{db: db}
}

func (r *ExclusiveFlag) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Set writes value to the flag of row id. Setting true first takes a transaction scoped
// advisory lock for the scope, then clears every sibling, so exec must be a transaction for
// the clear and the set to commit together. Returns sql.ErrNoRows when id does not exist.
func (r *ExclusiveFlag) Set(ctx context.Context, exec sqlx.ExtContext, spec FlagSpec, id string, value bool) error {
	if _, ok := knownFlags[spec]; !ok {
		return fmt.Errorf("unknown exclusive flag %s.%s", spec.Table, spec.Column)
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	if value {
		lockKey := spec.Table + "." + spec.Column
		var scopeValue string
		if spec.Scope != "" {
			scopeQuery := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", spec.Scope, spec.Table)
			if err := sqlx.GetContext(ctx, target, &scopeValue, scopeQuery, id); err != nil {
				return err
			}
			lockKey += ":" + scopeValue
		}

		if _, err := target.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", lockKey); err != nil {
			return fmt.Errorf("lock %s: %w", lockKey, err)
		}

		clearQuery := fmt.Sprintf("UPDATE %s SET %s = FALSE, updated_at = $1 WHERE %s = TRUE AND id <> $2", spec.Table, spec.Column, spec.Column)
		args := []interface{}{now, id}
		if spec.Scope != "" {
			clearQuery += fmt.Sprintf(" AND %s = $3", spec.Scope)
			args = append(args, scopeValue)
		}
		if _, err := target.ExecContext(ctx, clearQuery, args...); err != nil {
			return fmt.Errorf("clear %s.%s: %w", spec.Table, spec.Column, err)
		}
	}

	setQuery := fmt.Sprintf("UPDATE %s SET %s = $1, updated_at = $2 WHERE id = $3", spec.Table, spec.Column)
	result, err := target.ExecContext(ctx, setQuery, value, now, id)
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", spec.Table, spec.Column, err)
	}
	return requireAffected(result, spec.Table)
}

// Count returns how many rows in scope have the flag set. scopeValue is ignored for unscoped specs.
func (r *ExclusiveFlag) Count(ctx context.Context, exec sqlx.ExtContext, spec FlagSpec, scopeValue string) (int, error) {
	if _, ok := knownFlags[spec]; !ok {
		return 0, fmt.Errorf("unknown exclusive flag %s.%s", spec.Table, spec.Column)
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = TRUE", spec.Table, spec.Column)
	var args []interface{}
	if spec.Scope != "" {
		query += fmt.Sprintf(" AND %s = $1", spec.Scope)
		args = append(args, scopeValue)
	}
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, args...); err != nil {
		return 0, fmt.Errorf("count %s.%s: %w", spec.Table, spec.Column, err)
	}
	return count, nil
}
