package store

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Fallback wraps a remote primary store with an in-process secondary.
// Every operation runs against the primary under a bounded timeout with
// at most one fast retry; when the primary fails or times out the
// operation is served by the secondary instead. Caching is an
// optimization, so backend trouble degrades rather than fails.
type Fallback struct {
	primary   Store
	secondary Store
	opTimeout time.Duration
	logger    *slog.Logger

	// OnDegrade, when set, is invoked once per degraded call with the
	// name of the failed operation. Used for metrics.
	OnDegrade func(op string)
}

// NewFallback builds the degrading wrapper. opTimeout bounds each
// primary call; zero selects a 3s default.
func NewFallback(primary, secondary Store, opTimeout time.Duration, logger *slog.Logger) *Fallback {
	if opTimeout <= 0 {
		opTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		opTimeout: opTimeout,
		logger:    logger,
	}
}

// unavailable stands in for a primary whose construction failed. Every
// operation reports the construction error so calls degrade to the
// secondary.
type unavailable struct {
	err error
}

func (u unavailable) Get(ctx context.Context, key string) (Entry, error) { return Entry{}, u.err }
func (u unavailable) Put(ctx context.Context, key string, entry Entry) error { return u.err }
func (u unavailable) Touch(ctx context.Context, key string) error         { return u.err }
func (u unavailable) Delete(ctx context.Context, key string) error        { return u.err }
func (u unavailable) Clear(ctx context.Context) error                     { return u.err }
func (u unavailable) Len(ctx context.Context) (int64, error)              { return 0, u.err }
func (u unavailable) Close() error                                        { return nil }

// OpenFallback builds the remote primary via open and wraps it with the
// in-process secondary. A primary that cannot be constructed must not
// stop the cache from serving: the failure is logged, not returned, and
// every call degrades to the secondary until the process restarts.
func OpenFallback(ctx context.Context, open func(context.Context) (Store, error), secondary Store, opTimeout time.Duration, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	primary, err := open(ctx)
	if err != nil {
		logger.Warn("remote cache store unavailable at startup, using in-process store",
			"error", err)
		primary = unavailable{err: err}
	}
	return NewFallback(primary, secondary, opTimeout, logger)
}

// degraded reports whether err means the primary is unavailable rather
// than a normal miss.
func degraded(err error) bool {
	return err != nil && !errors.Is(err, ErrNotFound)
}

func (f *Fallback) degrade(op string, err error) {
	f.logger.Warn("remote cache store unavailable, using in-process store",
		"op", op, "error", err)
	if f.OnDegrade != nil {
		f.OnDegrade(op)
	}
}

// tryPrimary runs fn against the primary with a timeout and one retry.
func (f *Fallback) tryPrimary(ctx context.Context, fn func(ctx context.Context) error) error {
	run := func() error {
		opCtx, cancel := context.WithTimeout(ctx, f.opTimeout)
		defer cancel()
		return fn(opCtx)
	}
	err := run()
	if degraded(err) {
		err = run()
	}
	return err
}

func (f *Fallback) Get(ctx context.Context, key string) (Entry, error) {
	var entry Entry
	err := f.tryPrimary(ctx, func(ctx context.Context) error {
		var err error
		entry, err = f.primary.Get(ctx, key)
		return err
	})
	if degraded(err) {
		f.degrade("get", err)
		return f.secondary.Get(ctx, key)
	}
	return entry, err
}

func (f *Fallback) Put(ctx context.Context, key string, entry Entry) error {
	err := f.tryPrimary(ctx, func(ctx context.Context) error {
		return f.primary.Put(ctx, key, entry)
	})
	if degraded(err) {
		f.degrade("put", err)
		return f.secondary.Put(ctx, key, entry)
	}
	return err
}

func (f *Fallback) Touch(ctx context.Context, key string) error {
	err := f.tryPrimary(ctx, func(ctx context.Context) error {
		return f.primary.Touch(ctx, key)
	})
	if degraded(err) {
		f.degrade("touch", err)
		return f.secondary.Touch(ctx, key)
	}
	return err
}

func (f *Fallback) Delete(ctx context.Context, key string) error {
	err := f.tryPrimary(ctx, func(ctx context.Context) error {
		return f.primary.Delete(ctx, key)
	})
	if degraded(err) {
		f.degrade("delete", err)
		return f.secondary.Delete(ctx, key)
	}
	return err
}

func (f *Fallback) Clear(ctx context.Context) error {
	err := f.tryPrimary(ctx, func(ctx context.Context) error {
		return f.primary.Clear(ctx)
	})
	if degraded(err) {
		f.degrade("clear", err)
	}
	// The secondary may hold entries written during an outage, and its
	// failure matters even when the primary is already degraded.
	return f.secondary.Clear(ctx)
}

func (f *Fallback) Len(ctx context.Context) (int64, error) {
	var n int64
	err := f.tryPrimary(ctx, func(ctx context.Context) error {
		var err error
		n, err = f.primary.Len(ctx)
		return err
	})
	if degraded(err) {
		f.degrade("len", err)
		return f.secondary.Len(ctx)
	}
	return n, err
}

func (f *Fallback) Close() error {
	perr := f.primary.Close()
	serr := f.secondary.Close()
	if perr != nil {
		return perr
	}
	return serr
}
