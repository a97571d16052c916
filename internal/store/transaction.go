package store

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type txKey struct{}

var (
	errTxFinished = errors.New("transaction already finished")
	txSequence    atomic.Int64
)

// Tx is a gorm transaction carried in a context. Store methods pick it up through FromContext,
// so a service can group several row updates (sync inserts, reset deletes) into one commit.
type Tx struct {
	id    int64
	db    *gorm.DB
	begun time.Time
	log   *zap.SugaredLogger
}

func Commit(ctx context.Context) (context.Context, error) {
	return finish(ctx, (*Tx).commit)
}

func Rollback(ctx context.Context) (context.Context, error) {
	return finish(ctx, (*Tx).rollback)
}

func finish(ctx context.Context, end func(*Tx) error) (context.Context, error) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	if !ok || tx == nil {
		return ctx, nil
	}
	return context.WithValue(ctx, txKey{}, nil), end(tx)
}

// FromContext returns the open transaction in ctx, or nil.
func FromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*Tx); ok && tx != nil {
		return tx.db
	}
	return nil
}

// newTransactionContext begins a transaction unless ctx already carries one, in which case
// the caller joins it.
func newTransactionContext(ctx context.Context, db *gorm.DB) (context.Context, error) {
	if FromContext(ctx) != nil {
		return ctx, nil
	}

	conn := db.Session(&gorm.Session{Context: ctx})
	tx, err := newTransaction(conn, zap.S().Named("store_tx"))
	if err != nil {
		return ctx, err
	}

	return context.WithValue(ctx, txKey{}, tx), nil
}

func newTransaction(db *gorm.DB, log *zap.SugaredLogger) (*Tx, error) {
	gtx := db.Begin()
	if gtx.Error != nil {
		log.Errorw("failed to begin transaction", "error", gtx.Error)
		return nil, gtx.Error
	}

	// postgres txids are only unique until wraparound; sqlite has none, so a process-local
	// sequence stands in.
	id := txSequence.Add(1)
	if gtx.Dialector.Name() == "postgres" {
		var txid struct{ ID int64 }
		if err := gtx.Raw("select txid_current() as id").Scan(&txid).Error; err == nil {
			id = txid.ID
		}
	}

	return &Tx{
		id:    id,
		db:    gtx,
		begun: time.Now(),
		log:   log.With("tx", id),
	}, nil
}

func (t *Tx) commit() error {
	if t.db == nil {
		return errTxFinished
	}

	if err := t.db.Commit().Error; err != nil {
		t.log.Errorw("commit failed", "error", err)
		return err
	}
	t.log.Debugw("committed", "duration", time.Since(t.begun))
	t.db = nil
	return nil
}

func (t *Tx) rollback() error {
	if t.db == nil {
		return errTxFinished
	}

	if err := t.db.Rollback().Error; err != nil {
		t.log.Errorw("rollback failed", "error", err)
		return err
	}
	t.log.Debugw("rolled back", "duration", time.Since(t.begun))
	t.db = nil
	return nil
}
