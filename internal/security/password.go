package security

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Hasher runs bcrypt off the calling goroutine and caps how many hashes run at
// once. Both operations block until the result is ready or ctx is done.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted

	dummyOnce sync.Once
	dummy     string
}

func NewHasher(cost, concurrency int) *Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Hasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(concurrency)),
	}
}

type hashResult struct {
	hash []byte
	err  error
}

// Hash hashes a plain text password with bcrypt. The cost is embedded in the output.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}

	done := make(chan hashResult, 1)
	go func() {
		defer h.sem.Release(1)
		hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
		done <- hashResult{hash: hash, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		return string(res.hash), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Verify reports whether plain matches hash. A mismatch is (false, nil);
// a malformed hash or a cancelled ctx is an error.
func (h *Hasher) Verify(ctx context.Context, plain, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}

	done := make(chan error, 1)
	go func() {
		defer h.sem.Release(1)
		done <- bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	}()

	select {
	case err := <-done:
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Burn runs a comparison against a throwaway hash. Login calls it for unknown
// accounts so both failure paths spend the same bcrypt time.
func (h *Hasher) Burn(ctx context.Context, plain string) {
	h.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("identityhub-dummy-password"), h.cost)
		if err == nil {
			h.dummy = string(hash)
		}
	})
	if h.dummy == "" {
		return
	}
	_, _ = h.Verify(ctx, plain, h.dummy)
}
