// Package store is the connector's view of the relational database: the few
// table operations the loaders and watermark resolvers need, over any gorm
// dialect.
package store

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kippnorcal/zoom/internal/models"
	"github.com/kippnorcal/zoom/internal/syncerr"
)

// BatchSize is the number of rows per INSERT statement.
const BatchSize = 500

// undefinedTable is the Postgres SQLSTATE for a missing relation.
const undefinedTable = "42P01"

type Store struct {
	db     *gorm.DB
	schema string
}

// New returns a Store that qualifies every table name with schema, when set.
func New(db *gorm.DB, schema string) *Store {
	return &Store{db: db, schema: schema}
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Table returns the qualified name of a table.
func (s *Store) Table(name string) string {
	if s.schema == "" {
		return name
	}
	return s.schema + "." + name
}

// Exists reports whether a table or view is present.
func (s *Store) Exists(ctx context.Context, table string) (bool, error) {
	ok := s.db.WithContext(ctx).Migrator().HasTable(s.Table(table))
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return ok, nil
}

// Drop removes a table. A missing table is not an error.
func (s *Store) Drop(ctx context.Context, table string) error {
	exists, err := s.Exists(ctx, table)
	if err != nil || !exists {
		return err
	}
	if err := s.db.WithContext(ctx).Migrator().DropTable(s.Table(table)); err != nil {
		return wrap("drop "+table, err)
	}
	return nil
}

// Ensure creates a table from model's columns when it does not exist yet.
func (s *Store) Ensure(ctx context.Context, table string, model any) error {
	if err := s.db.WithContext(ctx).Table(s.Table(table)).AutoMigrate(model); err != nil {
		return wrap("ensure "+table, err)
	}
	return nil
}

// Insert writes rows, a slice of model values, skipping rows whose primary
// key is already present.
func (s *Store) Insert(ctx context.Context, table string, rows any) error {
	return insert(s.db.WithContext(ctx), s.Table(table), table, rows)
}

// Append ensures the table and writes rows in a single transaction, so either
// every row of a unit lands or none does.
func (s *Store) Append(ctx context.Context, table string, model, rows any) error {
	if err := s.Ensure(ctx, table, model); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insert(tx, s.Table(table), table, rows)
	})
	if err != nil {
		return wrap("append "+table, err)
	}
	return nil
}

func insert(db *gorm.DB, qualified, table string, rows any) error {
	if isEmpty(rows) {
		return nil
	}
	err := db.Table(qualified).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, BatchSize).Error
	if err != nil {
		return wrap("insert "+table, err)
	}
	return nil
}

// LatestTime returns the greatest value of a timestamp column. ok is false
// when the table is missing or empty.
func (s *Store) LatestTime(ctx context.Context, table, column string) (latest time.Time, ok bool, err error) {
	exists, err := s.Exists(ctx, table)
	if err != nil || !exists {
		return time.Time{}, false, err
	}

	var values []time.Time
	err = s.db.WithContext(ctx).
		Table(s.Table(table)).
		Where(clause.Neq{Column: clause.Column{Name: column}, Value: nil}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: true}).
		Limit(1).
		Pluck(column, &values).Error
	if err != nil {
		return time.Time{}, false, wrap("latest "+table+"."+column, err)
	}
	if len(values) == 0 {
		return time.Time{}, false, nil
	}
	return values[0], true, nil
}

// DistinctKeys returns the distinct non-empty values of a column in
// ascending order. A missing table yields no keys.
func (s *Store) DistinctKeys(ctx context.Context, table, column string) ([]string, error) {
	exists, err := s.Exists(ctx, table)
	if err != nil || !exists {
		return nil, err
	}

	var keys []string
	col := clause.Column{Name: column}
	err = s.db.WithContext(ctx).
		Raw("SELECT DISTINCT ? FROM ? WHERE ? IS NOT NULL AND ? <> '' ORDER BY ?",
			col, clause.Table{Name: s.Table(table)}, col, col, col).
		Scan(&keys).Error
	if err != nil {
		return nil, wrap("distinct "+table+"."+column, err)
	}
	return keys, nil
}

// MissingKeys returns the parent keys that have no row in the child table,
// by left anti-join. When the child table does not exist every parent key is
// missing; when the parent table does not exist none are.
func (s *Store) MissingKeys(ctx context.Context, parent, parentKey, child, childKey string) ([]string, error) {
	parentExists, err := s.Exists(ctx, parent)
	if err != nil || !parentExists {
		return nil, err
	}
	childExists, err := s.Exists(ctx, child)
	if err != nil {
		return nil, err
	}
	if !childExists {
		return s.DistinctKeys(ctx, parent, parentKey)
	}

	pk := clause.Column{Table: "p", Name: parentKey}
	ck := clause.Column{Table: "c", Name: childKey}

	var keys []string
	err = s.db.WithContext(ctx).
		Raw("SELECT DISTINCT ? FROM ? LEFT JOIN ? ON ? = ? WHERE ? IS NULL AND ? IS NOT NULL AND ? <> '' ORDER BY ?",
			pk,
			clause.Table{Name: s.Table(parent), Alias: "p"},
			clause.Table{Name: s.Table(child), Alias: "c"},
			ck, pk, ck, pk, pk, pk).
		Scan(&keys).Error
	if err != nil {
		return nil, wrap("anti-join "+parent+"/"+child, err)
	}
	return keys, nil
}

// NewStudents reads the provisioning view.
func (s *Store) NewStudents(ctx context.Context) ([]models.NewStudent, error) {
	var rows []models.NewStudent
	err := s.db.WithContext(ctx).Table(s.Table(models.ViewNewStudents)).Find(&rows).Error
	if err != nil {
		return nil, wrap("read "+models.ViewNewStudents, err)
	}
	return rows, nil
}

// wrap classifies a database error. Missing relations become NOT_FOUND so
// callers can tell "nothing there" from a broken connection.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var classified *syncerr.Error
	if errors.As(err, &classified) {
		return err
	}
	if isUndefinedTable(err) {
		return syncerr.New(syncerr.CodeNotFound, op, err)
	}
	return syncerr.New(syncerr.CodeDatabase, op, err)
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == undefinedTable
	}
	msg := strings.ToLower(err.Error())
	// sqlite and sqlserver only report this in the message.
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "invalid object name")
}

func isEmpty(rows any) bool {
	if rows == nil {
		return true
	}
	v := reflect.ValueOf(rows)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}
	return (v.Kind() == reflect.Slice || v.Kind() == reflect.Array) && v.Len() == 0
}
