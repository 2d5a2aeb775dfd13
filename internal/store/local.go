package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	appLog "tripcal/internal/log"
)

// ErrNoDocument is returned by Local.Load when nothing has been saved yet.
var ErrNoDocument = errors.New("no stored document")

// Local persists the serialized itinerary on this machine.
type Local interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// BadgerLocal keeps the document under a single key in a badger database.
type BadgerLocal struct {
	db  *badger.DB
	key []byte
}

// OpenBadger opens (or creates) the database in dir. An empty dir opens an
// in-memory database.
func OpenBadger(dir, key string) (*BadgerLocal, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", dir, err)
	}
	return &BadgerLocal{db: db, key: []byte(key)}, nil
}

func (b *BadgerLocal) Load(_ context.Context) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *BadgerLocal) Save(_ context.Context, data []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key, data)
	})
}

func (b *BadgerLocal) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger's printf-style logging into the app log.
// Warnings are demoted to info; badger is chatty on open.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	appLog.Error("badger", fmt.Errorf(strings.TrimSpace(format), args...))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	appLog.Info("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	appLog.Debug("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	appLog.Debug("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}
