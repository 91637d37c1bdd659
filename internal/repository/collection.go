package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"scrollguard/internal/codec"
	repoerrors "scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/infrastructure/logging"
)

type indexKind int

const (
	indexText indexKind = iota
	indexInteger
)

// index is a secondary index column derived from the record
type index[T any] struct {
	column  string
	kind    indexKind
	valueOf func(T) any
}

// coerce turns a caller-supplied index value into the column's SQL type
func (ix index[T]) coerce(name string, v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch ix.kind {
	case indexText:
		if rv.Kind() == reflect.String {
			return rv.String(), nil
		}
	case indexInteger:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
			return int64(rv.Uint()), nil
		}
	}
	return nil, fmt.Errorf("index %s: unsupported value type %T", name, v)
}

// schema binds an entity type to its table
type schema[T codec.Validator] struct {
	name    string
	table   string
	keyOf   func(T) string
	codec   codec.Record[T]
	indexes map[string]index[T]
	// immutable, when set, is the ON CONFLICT guard; an upsert that fails it is rejected
	immutable string
	// normalizeKey canonicalizes caller-supplied keys
	normalizeKey func(string) string
	// validKey validates range bounds
	validKey func(string) error
}

// Collection is one indexed entity table. Upserts are keyed by the record's
// primary key and are idempotent.
type Collection[T codec.Validator] struct {
	schema *schema[T]
	db     DBTX
	gate   *Gate
	logger logging.Logger
}

func newCollection[T codec.Validator](s *schema[T], db DBTX, gate *Gate, logger logging.Logger) *Collection[T] {
	return &Collection[T]{schema: s, db: db, gate: gate, logger: logger}
}

// Name returns the collection name
func (c *Collection[T]) Name() string {
	return c.schema.name
}

func (c *Collection[T]) op(name string) string {
	return c.schema.name + "." + name
}

func (c *Collection[T]) key(k string) string {
	if c.schema.normalizeKey != nil {
		return c.schema.normalizeKey(k)
	}
	return k
}

func (c *Collection[T]) wrap(op string, err error, key string) error {
	ctx := map[string]string{"collection": c.schema.name}
	if key != "" {
		ctx["key"] = key
	}
	return repoerrors.WrapStorageErrorWithContext(op, err, ctx)
}

// finish logs the outcome of an operation and returns err unchanged
func (c *Collection[T]) finish(op string, start time.Time, err error) error {
	if err != nil {
		logging.LogError(c.logger, err, op, nil)
		return err
	}
	logging.LogOperation(c.logger, op, time.Since(start), nil)
	return nil
}

func (c *Collection[T]) lookupIndex(op, name string) (index[T], error) {
	ix, ok := c.schema.indexes[name]
	if !ok {
		return ix, repoerrors.HandleValidationError(op, "index", name, "unknown index for "+c.schema.name)
	}
	return ix, nil
}

// Put upserts rec. For collections with immutable fields a conflicting put
// is rejected with a validation error.
func (c *Collection[T]) Put(ctx context.Context, rec T) error {
	op := c.op("Put")
	if err := c.gate.check(op); err != nil {
		return err
	}
	start := time.Now()

	data, err := c.schema.codec.Encode(rec)
	if err != nil {
		return c.finish(op, start, repoerrors.NewStoreErrorWithContext(op, err, repoerrors.ErrCodeValidation, map[string]string{
			"collection": c.schema.name,
		}))
	}

	key := c.schema.keyOf(rec)
	columns := []string{"key", "value"}
	args := []any{key, string(data)}
	updates := []string{"value = excluded.value"}
	for _, ix := range c.sortedIndexes() {
		columns = append(columns, ix.column)
		args = append(args, ix.valueOf(rec))
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", ix.column, ix.column))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(key) DO UPDATE SET %s",
		c.schema.table,
		strings.Join(columns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
		strings.Join(updates, ", "))
	if c.schema.immutable != "" {
		query += " WHERE " + c.schema.immutable
	}

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return c.finish(op, start, c.wrap(op, err, key))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return c.finish(op, start, repoerrors.HandleValidationError(op, "key", key, "conflicts with the stored immutable record"))
	}
	return c.finish(op, start, nil)
}

// Get returns the record stored under key. A stored record that fails to
// decode is reported as a DecodeError.
func (c *Collection[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	op := c.op("Get")
	if err := c.gate.check(op); err != nil {
		return zero, false, err
	}
	key = c.key(key)

	var value string
	err := c.db.QueryRowContext(ctx, "SELECT value FROM "+c.schema.table+" WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, c.wrap(op, err, key)
	}

	rec, err := c.schema.codec.Decode([]byte(value))
	if err != nil {
		return zero, false, repoerrors.HandleDecodeError(op, c.schema.name, err)
	}
	return rec, true, nil
}

// GetRange returns records with lower <= key <= upper in ascending key order.
// An inverted range is empty.
func (c *Collection[T]) GetRange(ctx context.Context, lower, upper string) ([]T, error) {
	op := c.op("GetRange")
	if err := c.gate.check(op); err != nil {
		return nil, err
	}
	if c.schema.validKey != nil {
		for field, bound := range map[string]string{"lower": lower, "upper": upper} {
			if err := c.schema.validKey(bound); err != nil {
				return nil, repoerrors.HandleValidationError(op, field, bound, err.Error())
			}
		}
	}
	lower, upper = c.key(lower), c.key(upper)
	if lower > upper {
		return []T{}, nil
	}

	return c.scan(ctx, op, 0,
		"SELECT value FROM "+c.schema.table+" WHERE key >= ? AND key <= ? ORDER BY key ASC", lower, upper)
}

// QueryByIndex returns every record whose index value equals value, unordered
func (c *Collection[T]) QueryByIndex(ctx context.Context, indexName string, value any) ([]T, error) {
	op := c.op("QueryByIndex")
	if err := c.gate.check(op); err != nil {
		return nil, err
	}
	ix, err := c.lookupIndex(op, indexName)
	if err != nil {
		return nil, err
	}
	arg, err := ix.coerce(indexName, value)
	if err != nil {
		return nil, repoerrors.HandleValidationError(op, indexName, fmt.Sprint(value), err.Error())
	}

	return c.scan(ctx, op, 0,
		fmt.Sprintf("SELECT value FROM %s WHERE %s = ?", c.schema.table, ix.column), arg)
}

// QueryFrom returns every record whose index value is at least lower, in
// ascending index order
func (c *Collection[T]) QueryFrom(ctx context.Context, indexName string, lower any) ([]T, error) {
	op := c.op("QueryFrom")
	if err := c.gate.check(op); err != nil {
		return nil, err
	}
	ix, err := c.lookupIndex(op, indexName)
	if err != nil {
		return nil, err
	}
	arg, err := ix.coerce(indexName, lower)
	if err != nil {
		return nil, repoerrors.HandleValidationError(op, indexName, fmt.Sprint(lower), err.Error())
	}

	return c.scan(ctx, op, 0,
		fmt.Sprintf("SELECT value FROM %s WHERE %s >= ? ORDER BY %s ASC, key ASC", c.schema.table, ix.column, ix.column), arg)
}

// GetRecentByIndex returns at most limit records in descending index order.
// The cursor is abandoned as soon as limit records have been read.
func (c *Collection[T]) GetRecentByIndex(ctx context.Context, indexName string, limit int) ([]T, error) {
	op := c.op("GetRecentByIndex")
	if err := c.gate.check(op); err != nil {
		return nil, err
	}
	ix, err := c.lookupIndex(op, indexName)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []T{}, nil
	}

	return c.scan(ctx, op, limit,
		fmt.Sprintf("SELECT value FROM %s ORDER BY %s DESC, key DESC", c.schema.table, ix.column))
}

// scan decodes rows in order. Rows that fail to decode are skipped and logged.
// A positive limit stops the cursor after that many records.
func (c *Collection[T]) scan(ctx context.Context, op string, limit int, query string, args ...any) ([]T, error) {
	start := time.Now()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.finish(op, start, c.wrap(op, err, ""))
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, c.finish(op, start, c.wrap(op, err, ""))
		}
		rec, err := c.schema.codec.Decode([]byte(value))
		if err != nil {
			c.logger.Warn("Skipping undecodable record", "collection", c.schema.name, "error", err)
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, c.finish(op, start, c.wrap(op, err, ""))
	}

	logging.LogOperation(c.logger, op, time.Since(start), map[string]interface{}{"rows": len(out)})
	return out, nil
}

// DeleteBelow removes every record whose index value is strictly below bound
func (c *Collection[T]) DeleteBelow(ctx context.Context, indexName string, bound any) (int64, error) {
	op := c.op("DeleteBelow")
	if err := c.gate.check(op); err != nil {
		return 0, err
	}
	ix, err := c.lookupIndex(op, indexName)
	if err != nil {
		return 0, err
	}
	arg, err := ix.coerce(indexName, bound)
	if err != nil {
		return 0, repoerrors.HandleValidationError(op, indexName, fmt.Sprint(bound), err.Error())
	}

	return c.exec(ctx, op, fmt.Sprintf("DELETE FROM %s WHERE %s < ?", c.schema.table, ix.column), arg)
}

// DeleteKeysBelow removes every record whose primary key sorts strictly below key
func (c *Collection[T]) DeleteKeysBelow(ctx context.Context, key string) (int64, error) {
	op := c.op("DeleteKeysBelow")
	if err := c.gate.check(op); err != nil {
		return 0, err
	}
	if c.schema.validKey != nil {
		if err := c.schema.validKey(key); err != nil {
			return 0, repoerrors.HandleValidationError(op, "key", key, err.Error())
		}
	}
	return c.exec(ctx, op, "DELETE FROM "+c.schema.table+" WHERE key < ?", c.key(key))
}

// Delete removes one record and reports whether it existed
func (c *Collection[T]) Delete(ctx context.Context, key string) (bool, error) {
	op := c.op("Delete")
	if err := c.gate.check(op); err != nil {
		return false, err
	}
	n, err := c.exec(ctx, op, "DELETE FROM "+c.schema.table+" WHERE key = ?", c.key(key))
	return n > 0, err
}

func (c *Collection[T]) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	start := time.Now()
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, c.finish(op, start, c.wrap(op, err, ""))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, c.finish(op, start, c.wrap(op, err, ""))
	}
	logging.LogOperation(c.logger, op, time.Since(start), map[string]interface{}{"rows_affected": n})
	return n, nil
}

// Count returns the number of stored records
func (c *Collection[T]) Count(ctx context.Context) (int64, error) {
	op := c.op("Count")
	if err := c.gate.check(op); err != nil {
		return 0, err
	}
	var n int64
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.schema.table).Scan(&n); err != nil {
		return 0, c.wrap(op, err, "")
	}
	return n, nil
}

// All returns every record in key order. Unlike the query methods it fails
// on the first undecodable record, so an export never drops data silently.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	op := c.op("All")
	if err := c.gate.check(op); err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, "SELECT key, value FROM "+c.schema.table+" ORDER BY key ASC")
	if err != nil {
		return nil, c.wrap(op, err, "")
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, c.wrap(op, err, "")
		}
		rec, err := c.schema.codec.Decode([]byte(value))
		if err != nil {
			return nil, repoerrors.HandleDecodeError(op, c.schema.name+"/"+key, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, c.wrap(op, err, "")
	}
	return out, nil
}

// ReplaceAll deletes every record and inserts recs. Duplicate keys in recs
// are rejected. Callers run it inside WithTransaction to make it atomic.
func (c *Collection[T]) ReplaceAll(ctx context.Context, recs []T) error {
	op := c.op("ReplaceAll")
	if err := c.gate.check(op); err != nil {
		return err
	}
	start := time.Now()

	if _, err := c.db.ExecContext(ctx, "DELETE FROM "+c.schema.table); err != nil {
		return c.finish(op, start, c.wrap(op, err, ""))
	}

	seen := make(map[string]bool, len(recs))
	for _, rec := range recs {
		key := c.schema.keyOf(rec)
		if seen[key] {
			return c.finish(op, start, repoerrors.HandleValidationError(op, "key", key, "duplicate key"))
		}
		seen[key] = true
		if err := c.Put(ctx, rec); err != nil {
			return err
		}
	}
	return c.finish(op, start, nil)
}

func (c *Collection[T]) sortedIndexes() []index[T] {
	names := make([]string, 0, len(c.schema.indexes))
	for name := range c.schema.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]index[T], 0, len(names))
	for _, name := range names {
		out = append(out, c.schema.indexes[name])
	}
	return out
}
