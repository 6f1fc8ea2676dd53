// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides Store, the GORM implementation of
// domain.Transactor, and the unit of work handed to reconciliation code.
//
// Every unit is one database transaction. Reads inside a unit see the unit's
// own writes; the transaction commits when the callback returns nil and rolls
// back otherwise. On Postgres, Get takes a row lock (SELECT ... FOR UPDATE)
// so a read-then-update inside a unit cannot interleave with another unit
// touching the same row.
//
// Error semantics:
//   - Missing rows surface as *domain.NotFoundError.
//   - Driver failures surface as *domain.StorageError, with Conflict set
//     when a unique constraint fired.
//   - Errors returned by the callback pass through InUnit unchanged.
package repo

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

// Store opens units of work on a *gorm.DB.
type Store struct {
	DB *gorm.DB
}

// NewStore returns a Store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

var _ domain.Transactor = (*Store)(nil)

// InUnit runs fn inside a transaction.
func (s *Store) InUnit(ctx context.Context, fn func(domain.Unit) error) error {
	var fnErr error
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&unit{
			tx:       tx,
			lockRows: tx.Dialector.Name() == DriverPostgres,
		})
		return fnErr
	})
	if err == nil {
		return nil
	}
	if fnErr != nil {
		return fnErr
	}
	// Begin or commit failed.
	return storageErr("commit", "", err)
}

type unit struct {
	tx       *gorm.DB
	lockRows bool
}

func (u *unit) Get(ctx context.Context, kind domain.Kind, id any) (domain.Entity, error) {
	e, err := domain.New(kind)
	if err != nil {
		return nil, err
	}
	q := u.tx.WithContext(ctx)
	if u.lockRows {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where("id = ?", id).Take(e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Kind: kind, ID: id}
		}
		return nil, storageErr("get", kind, err)
	}
	return e, nil
}

func (u *unit) FindAll(ctx context.Context, kind domain.Kind, f domain.Filter) ([]domain.Entity, error) {
	proto, err := domain.New(kind)
	if err != nil {
		return nil, err
	}
	q, err := applyFilter(u.tx.WithContext(ctx).Model(proto), kind, f)
	if err != nil {
		return nil, err
	}

	// []*Model, so each element satisfies domain.Entity.
	rows := reflect.New(reflect.SliceOf(reflect.TypeOf(proto)))
	if err := q.Order("id").Find(rows.Interface()).Error; err != nil {
		return nil, storageErr("find", kind, err)
	}

	slice := rows.Elem()
	out := make([]domain.Entity, slice.Len())
	for i := range out {
		out[i] = slice.Index(i).Interface().(domain.Entity)
	}
	return out, nil
}

func (u *unit) Insert(ctx context.Context, kind domain.Kind, fields domain.Fields) (domain.Entity, error) {
	e, err := domain.New(kind)
	if err != nil {
		return nil, err
	}
	if err := domain.Assign(e, fields); err != nil {
		return nil, err
	}
	if err := u.tx.WithContext(ctx).Omit(clause.Associations).Create(e).Error; err != nil {
		return nil, storageErr("insert", kind, err)
	}
	return e, nil
}

func (u *unit) Update(ctx context.Context, kind domain.Kind, id any, fields domain.Fields) (domain.Entity, error) {
	e, err := u.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	changes := fields.Clone()
	delete(changes, "id")
	if err := domain.Assign(e, changes); err != nil {
		return nil, err
	}
	if err := u.tx.WithContext(ctx).Omit(clause.Associations).Save(e).Error; err != nil {
		return nil, storageErr("update", kind, err)
	}
	return e, nil
}

func (u *unit) Delete(ctx context.Context, kind domain.Kind, id any) error {
	e, err := domain.New(kind)
	if err != nil {
		return err
	}
	res := u.tx.WithContext(ctx).Where("id = ?", id).Delete(e)
	if res.Error != nil {
		return storageErr("delete", kind, res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

// filterColumns lists, per kind, the columns a Filter may constrain.
var filterColumns = map[domain.Kind]map[string]bool{
	domain.KindChat:               {"is_take_over": true},
	domain.KindPermission:         {"chat_id": true, "user_id": true},
	domain.KindSponsorshipHistory: {"sponsor_id": true, "has_reached": true, "hidden": true},
}

// applyFilter translates each set field of f into a predicate. A field that
// does not apply to kind is an error rather than silently ignored.
func applyFilter(q *gorm.DB, kind domain.Kind, f domain.Filter) (*gorm.DB, error) {
	cols := filterColumns[kind]
	where := func(col string, v any) error {
		if !cols[col] {
			return fmt.Errorf("repo: filter on %s is not supported for %s", col, kind)
		}
		q = q.Where(col+" = ?", v)
		return nil
	}

	if f.ChatID != nil {
		if err := where("chat_id", *f.ChatID); err != nil {
			return nil, err
		}
	}
	if f.UserID != nil {
		if err := where("user_id", *f.UserID); err != nil {
			return nil, err
		}
	}
	if f.SponsorID != nil {
		if err := where("sponsor_id", *f.SponsorID); err != nil {
			return nil, err
		}
	}
	if f.HasReached != nil {
		if err := where("has_reached", *f.HasReached); err != nil {
			return nil, err
		}
	}
	if f.Hidden != nil {
		if err := where("hidden", *f.Hidden); err != nil {
			return nil, err
		}
	}
	if f.IsTakeOver != nil {
		if err := where("is_take_over", *f.IsTakeOver); err != nil {
			return nil, err
		}
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	return q, nil
}
