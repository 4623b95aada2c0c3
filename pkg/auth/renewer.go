package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultRenewInterval = 10 * time.Minute

// Renewer keeps a Credential fresh. Renew calls are serialized.
type Renewer struct {
	Provider   Provider
	Credential *Credential
	Interval   time.Duration
	Log        *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

func NewRenewer(p Provider, cred *Credential, interval time.Duration, log *slog.Logger) *Renewer {
	if interval <= 0 {
		interval = DefaultRenewInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Renewer{Provider: p, Credential: cred, Interval: interval, Log: log, now: time.Now}
}

// Renew acquires a new token and installs it. On failure the previous token
// stays in place.
func (r *Renewer) Renew(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, err := r.Provider.Acquire(ctx)
	if err != nil {
		return err
	}
	r.Credential.Set(token)
	if exp, ok := ExpiresAt(token); ok {
		r.Log.Debug("credential renewed", "expires_at", exp.Format(time.RFC3339))
	} else {
		r.Log.Debug("credential renewed")
	}
	return nil
}

// next returns the wait until the following renewal: the interval, or sooner
// when the current token expires before then.
func (r *Renewer) next() time.Duration {
	wait := r.Interval
	exp, ok := ExpiresAt(r.Credential.Token())
	if !ok {
		return wait
	}
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	if left := exp.Sub(now()) - 30*time.Second; left < wait {
		wait = max(left, time.Second)
	}
	return wait
}

// Start renews in the background until ctx is done or the returned stop func
// is called. stop waits for the goroutine to exit.
func (r *Renewer) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			timer := time.NewTimer(r.next())
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			if err := r.Renew(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				r.Log.Warn("credential refresh failed, api calls may fail", "error", err)
				continue
			}
			r.Log.Info("credential refreshed", "interval", r.Interval)
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}
