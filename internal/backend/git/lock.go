package git

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/litstore/internal/record"
)

var errLocked = errors.New("index lock held")

// lockPath returns the path of the git index lock.
func (b *Backend) lockPath() string {
	return filepath.Join(b.root, ".git", "index.lock")
}

// waitUnlocked polls the index lock with randomized exponential backoff.
//
// Waiting is logged once lockWarnAfter attempts have failed. After
// lockMaxAttempts attempts it gives up with BACKEND_UNAVAILABLE.
func (b *Backend) waitUnlocked(ctx context.Context) error {
	lock := b.lockPath()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = b.lockInterval
	policy.MaxInterval = b.lockMaxInterval
	policy.MaxElapsedTime = 0
	policy.Reset()

	attempts := 0
	poll := func() error {
		attempts++
		_, err := os.Stat(lock)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil
		case err != nil:
			return backoff.Permanent(fmt.Errorf("stat %s: %w", lock, err))
		default:
			return errLocked
		}
	}
	notify := func(_ error, wait time.Duration) {
		if attempts == lockWarnAfter {
			b.logger.Warn("waiting for git index lock",
				"lock", lock,
				"attempts", attempts,
				"next_wait", wait)
		}
	}

	retries := uint64(b.lockMaxAttempts - 1)
	err := backoff.RetryNotify(poll, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx), notify)
	if errors.Is(err, errLocked) {
		b.logger.Error("git index lock not released",
			"lock", lock,
			"attempts", attempts)
		return record.NewBackendUnavailableError(lock, attempts)
	}
	return err
}
