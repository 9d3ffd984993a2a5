// Package pubsub implements the notification bus on top of PostgreSQL's
// LISTEN/NOTIFY. Publications ride inside the publisher's transaction, so a
// subscriber never observes a notification for a row that was rolled back
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/thrasher-corp/fcs/database"
	"github.com/thrasher-corp/fcs/log"
)

const (
	minReconnectInterval = time.Second
	maxReconnectInterval = 10 * time.Second
)

// ErrConnectionLost is returned when the subscription's underlying
// connection drops. Not recoverable at this layer; PostgreSQL doesn't replay
// notifications missed while disconnected, so the owning loop terminates
// and is expected to be restarted from scratch
var ErrConnectionLost = errors.New("lost connection to the database")

// Notify publishes a JSON payload on the named channel using the supplied
// executor; pass a transaction to make the publication atomic with other
// mutations
func Notify(ctx context.Context, exec database.Executor, channel string, payload json.Marshaler) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	log.Debugf(log.DatabaseMgr, "Notifying %s: %s", channel, data)

	_, err = exec.ExecContext(ctx, "select pg_notify($1, $2::text)", channel, string(data))
	return err
}

// Listener is a long-lived subscription to one or more named channels.
// Within a channel, delivery order matches publication order
type Listener struct {
	pl   *pq.Listener
	errs chan error
}

// NewListener connects a dedicated listening connection and subscribes to
// the given channels. Listeners deliberately hold their own connection:
// subscription must happen before the general pool is opened, or a
// notification published in between would be missed
func NewListener(url string, channels ...string) (*Listener, error) {
	errs := make(chan error, 1)

	pl := pq.NewListener(url, minReconnectInterval, maxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			switch ev {
			case pq.ListenerEventDisconnected,
				pq.ListenerEventConnectionAttemptFailed:
				select {
				case errs <- fmt.Errorf("%w: %v", ErrConnectionLost, err):
				default:
				}
			}
		})

	for _, channel := range channels {
		if err := pl.Listen(channel); err != nil {
			_ = pl.Close()
			return nil, fmt.Errorf("couldn't listen on %q: %w", channel, err)
		}
		log.Debugf(log.DatabaseMgr, "Listening on channel %q", channel)
	}

	return &Listener{pl: pl, errs: errs}, nil
}

// C returns the raw notification stream. A nil notification means the
// connection was re-established after an outage; callers treat that the
// same as Err firing, because notifications may have been lost in between
func (l *Listener) C() <-chan *pq.Notification {
	return l.pl.Notify
}

// Err reports a dropped connection
func (l *Listener) Err() <-chan error {
	return l.errs
}

// Next blocks until the next notification payload arrives
func (l *Listener) Next(ctx context.Context) ([]byte, error) {
	select {
	case n := <-l.pl.Notify:
		if n == nil {
			return nil, ErrConnectionLost
		}
		return []byte(n.Extra), nil
	case err := <-l.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears the subscription down
func (l *Listener) Close() error {
	return l.pl.Close()
}
