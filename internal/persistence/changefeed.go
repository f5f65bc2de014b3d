package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Change is one row change published by the notify trigger.
type Change struct {
	Table     string         `json:"table"`
	Op        string         `json:"op"`
	Record    map[string]any `json:"record"`
	OldRecord map[string]any `json:"old_record"`
}

// Value returns column from the new row, or from the old row for deletes.
func (c Change) Value(column string) string {
	row := c.Record
	if row == nil {
		row = c.OldRecord
	}
	if v, ok := row[column]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// Filter selects the changes a subscriber wants.
type Filter func(Change) bool

// ColumnEquals matches changes whose column equals value.
func ColumnEquals(column, value string) Filter {
	return func(c Change) bool {
		return c.Value(column) == value
	}
}

// ChangeHandler receives matching changes.
type ChangeHandler func(ctx context.Context, change Change)

type changeSubscription struct {
	table   string
	filter  Filter
	handler ChangeHandler
}

// ChangeFeed fans out Postgres notifications to in-process subscribers.
type ChangeFeed struct {
	pool      *pgxpool.Pool
	channel   string
	reconnect time.Duration
	logger    *zap.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]changeSubscription
}

// NewChangeFeed builds a feed listening on channel.
func NewChangeFeed(pool *pgxpool.Pool, channel string, logger *zap.Logger) *ChangeFeed {
	return &ChangeFeed{
		pool:      pool,
		channel:   channel,
		reconnect: 5 * time.Second,
		logger:    logger,
		subs:      make(map[uint64]changeSubscription),
	}
}

// Subscribe registers handler for changes of table accepted by filter. A nil
// filter accepts every change of the table.
func (f *ChangeFeed) Subscribe(table string, filter Filter, handler ChangeHandler) (unsubscribe func()) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subs[id] = changeSubscription{table: table, filter: filter, handler: handler}
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Run listens until ctx is cancelled, reconnecting after failures.
func (f *ChangeFeed) Run(ctx context.Context) {
	if f.pool == nil {
		f.logger.Warn("no postgres pool available; change feed disabled")
		return
	}
	for {
		err := f.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("change feed disconnected", zap.String("channel", f.channel), zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(f.reconnect):
		}
	}
}

func (f *ChangeFeed) listen(ctx context.Context) error {
	pooled, err := f.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	// a listening connection must not return to the pool
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", f.channel, err)
	}
	f.logger.Info("change feed listening", zap.String("channel", f.channel))

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		f.Deliver(ctx, []byte(notification.Payload))
	}
}

// Deliver decodes payload and hands it to every matching subscriber.
func (f *ChangeFeed) Deliver(ctx context.Context, payload []byte) {
	var change Change
	if err := json.Unmarshal(payload, &change); err != nil {
		f.logger.Warn("dropping malformed change notification", zap.Error(err))
		return
	}

	f.mu.RLock()
	matched := make([]ChangeHandler, 0, len(f.subs))
	for _, sub := range f.subs {
		if sub.table != change.Table {
			continue
		}
		if sub.filter != nil && !sub.filter(change) {
			continue
		}
		matched = append(matched, sub.handler)
	}
	f.mu.RUnlock()

	for _, handler := range matched {
		handler(ctx, change)
	}
}
