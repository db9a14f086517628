// Package gormstore implements resource.Store on GORM, so list views can run
// against any SQL database GORM has a dialector for.
package gormstore

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/observability"
	"github.com/kbukum/viewkit/resource"
)

// Store implements resource.Store with table-level GORM queries. Rows are
// plain column maps; no models are required.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log.WithComponent("gormstore")
		}
	}
}

// New wraps an open database.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, log: logger.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB { return s.db }

// Select returns the rows matching q.
func (s *Store) Select(ctx context.Context, name string, q resource.Query) ([]resource.Row, error) {
	res, err := s.query(ctx, name, q, false)
	return res.Rows, err
}

// SelectWithCount returns the rows matching q and the number of rows matching
// its predicates, ignoring the range.
func (s *Store) SelectWithCount(ctx context.Context, name string, q resource.Query) (resource.Result, error) {
	return s.query(ctx, name, q, true)
}

func (s *Store) query(ctx context.Context, name string, q resource.Query, count bool) (res resource.Result, err error) {
	if err := q.Validate(name); err != nil {
		return resource.Result{}, err
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanStoreQuery, trace.WithAttributes(
		attribute.String(observability.AttrResource, name),
		attribute.String("store", "gorm"),
	))
	defer func() { observability.EndSpan(span, err) }()

	if count {
		var total int64
		if err := s.filtered(ctx, name, q.Predicates).Count(&total).Error; err != nil {
			return resource.Result{}, fromDatabase(err, name)
		}
		res.Count = int(total)
	}

	tx := s.filtered(ctx, name, q.Predicates)
	if len(q.Columns) > 0 {
		tx = tx.Select(q.Columns)
	}
	for _, o := range q.Order {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Field}, Desc: o.Desc})
	}
	if q.Range != nil {
		tx = tx.Offset(q.Range.From).Limit(q.Range.Limit())
	}

	var found []map[string]interface{}
	if err := tx.Find(&found).Error; err != nil {
		return resource.Result{}, fromDatabase(err, name)
	}
	res.Rows = toRows(found)
	if !count {
		res.Count = len(res.Rows)
	}

	s.log.Debug("rows selected", logger.Fields(logger.FieldResource, name, "rows", len(res.Rows), "count", res.Count))
	return res, nil
}

// Insert creates rows. Columns generated by the database are not read back.
func (s *Store) Insert(ctx context.Context, name string, rows ...resource.Row) ([]resource.Row, error) {
	if !resource.ValidIdentifier(name) {
		return nil, errors.InvalidInput("resource", "invalid resource name "+name)
	}
	if len(rows) == 0 {
		return []resource.Row{}, nil
	}

	values := make([]map[string]interface{}, len(rows))
	for i, r := range rows {
		values[i] = map[string]interface{}(r)
	}
	if err := s.db.WithContext(ctx).Table(name).Create(values).Error; err != nil {
		return nil, fromDatabase(err, name)
	}
	s.log.Debug("rows inserted", logger.Fields(logger.FieldResource, name, "rows", len(rows)))
	return toRows(values), nil
}

// Update sets values on rows matching where and returns them re-read with
// the same predicates.
func (s *Store) Update(ctx context.Context, name string, values resource.Row, where ...resource.Predicate) ([]resource.Row, error) {
	if err := checkWhere(name, where); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.MissingField("values")
	}

	var found []map[string]interface{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := applyPredicates(tx.Table(name), where).Updates(map[string]interface{}(values)).Error; err != nil {
			return err
		}
		return applyPredicates(tx.Table(name), where).Find(&found).Error
	})
	if err != nil {
		return nil, fromDatabase(err, name)
	}
	s.log.Debug("rows updated", logger.Fields(logger.FieldResource, name, "rows", len(found)))
	return toRows(found), nil
}

// Delete removes rows matching where.
func (s *Store) Delete(ctx context.Context, name string, where ...resource.Predicate) error {
	if err := checkWhere(name, where); err != nil {
		return err
	}
	tx := applyPredicates(s.db.WithContext(ctx).Table(name), where).Delete(map[string]interface{}{})
	if tx.Error != nil {
		return fromDatabase(tx.Error, name)
	}
	s.log.Debug("rows deleted", logger.Fields(logger.FieldResource, name, "rows", tx.RowsAffected))
	return nil
}

// CheckHealth implements observability.HealthChecker.
func (s *Store) CheckHealth(ctx context.Context) observability.Health {
	h := observability.Health{Name: "database", Status: observability.HealthStatusUp}
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		h.Status, h.Message = observability.HealthStatusDown, err.Error()
	}
	return h
}

func (s *Store) filtered(ctx context.Context, name string, preds []resource.Predicate) *gorm.DB {
	return applyPredicates(s.db.WithContext(ctx).Table(name), preds)
}

func checkWhere(name string, where []resource.Predicate) error {
	if !resource.ValidIdentifier(name) {
		return errors.InvalidInput("resource", "invalid resource name "+name)
	}
	if len(where) == 0 {
		return errors.MissingField("where")
	}
	return resource.ValidatePredicates(where)
}

func applyPredicates(tx *gorm.DB, preds []resource.Predicate) *gorm.DB {
	for _, p := range preds {
		tx = tx.Where(expression(p))
	}
	return tx
}

// expression builds a quoted clause for p. Operators are validated before
// this point.
func expression(p resource.Predicate) clause.Expression {
	col := clause.Column{Name: p.Field}
	switch p.Op {
	case resource.OpNeq:
		return clause.Neq{Column: col, Value: p.Value}
	case resource.OpGt:
		return clause.Gt{Column: col, Value: p.Value}
	case resource.OpGte:
		return clause.Gte{Column: col, Value: p.Value}
	case resource.OpLt:
		return clause.Lt{Column: col, Value: p.Value}
	case resource.OpLte:
		return clause.Lte{Column: col, Value: p.Value}
	case resource.OpIn:
		return clause.IN{Column: col, Values: p.Values}
	case resource.OpLike:
		return clause.Like{Column: col, Value: p.Value}
	case resource.OpIlike:
		return clause.Expr{SQL: "LOWER(?) LIKE LOWER(?)", Vars: []interface{}{col, p.Value}}
	case resource.OpIs:
		return clause.Eq{Column: col, Value: p.Value}
	default:
		return clause.Eq{Column: col, Value: p.Value}
	}
}

func toRows(in []map[string]interface{}) []resource.Row {
	out := make([]resource.Row, len(in))
	for i, m := range in {
		out[i] = resource.Row(m)
	}
	return out
}

var (
	_ resource.Store              = (*Store)(nil)
	_ observability.HealthChecker = (*Store)(nil)
)
