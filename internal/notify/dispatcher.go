// Package notify fans help requests out to users whose subjects overlap.
package notify

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/tamir303/Afekaton2024/internal/model"
	"github.com/tamir303/Afekaton2024/internal/repository"
)

// Options bound a single fan-out.
type Options struct {
	Timeout  time.Duration
	PageSize int
}

// DefaultOptions are used for zero fields.
var DefaultOptions = Options{Timeout: 30 * time.Second, PageSize: 200}

// Dispatcher appends requester ids to the notification lists of related users.
type Dispatcher struct {
	users repository.UserRepository
	log   *zap.Logger
	opts  Options

	wg sync.WaitGroup
}

// New constructs a Dispatcher. A nil logger discards output.
func New(users repository.UserRepository, log *zap.Logger, opts Options) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions.Timeout
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultOptions.PageSize
	}
	return &Dispatcher{users: users, log: log, opts: opts}
}

// NotifyRelated walks every user and notifies those whose role differs from
// requesterRole and whose subjects intersect subjects. It returns how many
// users were notified. Users that fail to update are skipped and reported in err.
func (d *Dispatcher) NotifyRelated(ctx context.Context, requester uuid.UUID, requesterRole model.Role, subjects []string) (int, error) {
	if len(subjects) == 0 {
		return 0, nil
	}

	var (
		notified int
		failed   []error
		after    = uuid.Nil
	)
	for {
		page, err := d.users.Scan(ctx, after, d.opts.PageSize)
		if err != nil {
			return notified, fmt.Errorf("scan users: %w", err)
		}
		for _, u := range page {
			if u.Role == requesterRole || !intersects(u.Details.Capabilities(), subjects) {
				continue
			}
			if err := d.users.AppendNotification(ctx, u.ID, requester); err != nil {
				failed = append(failed, fmt.Errorf("notify %s: %w", u.ID, err))
				continue
			}
			notified++
		}
		if len(page) < d.opts.PageSize {
			return notified, errors.Join(failed...)
		}
		after = page[len(page)-1].ID
	}
}

// Dispatch runs NotifyRelated in the background under the configured timeout.
// Failures are logged, never returned.
func (d *Dispatcher) Dispatch(requester uuid.UUID, requesterRole model.Role, subjects []string) {
	subjects = slices.Clone(subjects)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
		defer cancel()

		start := time.Now()
		n, err := d.NotifyRelated(ctx, requester, requesterRole, subjects)
		fields := []zap.Field{
			zap.String("requester", requester.String()),
			zap.Strings("subjects", subjects),
			zap.Int("notified", n),
			zap.Duration("dur", time.Since(start)),
		}
		if err != nil {
			d.log.Warn("help request fan-out failed", append(fields, zap.Error(err))...)
			return
		}
		d.log.Info("help request fan-out", fields...)
	}()
}

// Wait blocks until every dispatched fan-out has finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func intersects(have, want []string) bool {
	for _, s := range have {
		if slices.Contains(want, s) {
			return true
		}
	}
	return false
}
