package crate

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cratesign/cratesign/crate/entities"
)

// BatchOptions configure a bulk operation.
type BatchOptions struct {
	// DestinationPath prefixes embedded entry names (AddAll only).
	DestinationPath string

	// RootPath overrides the root entry names are derived from.
	RootPath string

	// ContinueOnError attempts every unit and reports all failures
	// joined. When false, the first failure stops remaining work in the
	// batch; callers are expected to skip Update in that case so a
	// partially-complete crate is never persisted.
	ContinueOnError bool

	// Concurrency bounds the worker pool. Defaults to GOMAXPROCS.
	Concurrency int
}

func (o BatchOptions) workers() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

// AddAll ingests many files through a worker pool, hashing each
// independently. Per-item failures are isolated under ContinueOnError;
// otherwise the first error cancels the remaining units cooperatively.
func (c *Crate) AddAll(ctx context.Context, paths []string, opts BatchOptions) error {
	if c.isReadOnly() {
		return entities.ErrReadOnly
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	var mu sync.Mutex
	var failures []error

	for _, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := c.AddEntry(p, opts.DestinationPath, opts.RootPath)
			if err == nil {
				return nil
			}
			if opts.ContinueOnError {
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", p, err))
				mu.Unlock()
				return nil
			}
			return fmt.Errorf("%s: %w", p, err)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(failures...)
}

// AddDir enumerates all regular files under root and ingests them,
// deriving entry names relative to root.
func (c *Crate) AddDir(ctx context.Context, root string, opts BatchOptions) error {
	files, err := c.fs.Enumerate(root)
	if err != nil {
		return fmt.Errorf("enumerating %q: %w", root, err)
	}
	if opts.RootPath == "" {
		opts.RootPath = root
	}
	return c.AddAll(ctx, files, opts)
}

// VerifyOutcome classifies one entry of a bulk verification pass.
type VerifyOutcome int

const (
	// OutcomeVerified - the recomputed hash matched the manifest.
	OutcomeVerified VerifyOutcome = iota

	// OutcomeTampered - the content hash no longer matches.
	OutcomeTampered

	// OutcomeMissing - the backing file or member is absent.
	OutcomeMissing

	// OutcomeErrored - verification failed for another reason.
	OutcomeErrored
)

// VerifyReport aggregates a bulk integrity pass, letting the host display
// verified/tampered/missing/errored counts independently of the
// signature results.
type VerifyReport struct {
	Outcomes map[string]VerifyOutcome
	Errors   map[string]error
}

// Count returns how many entries landed in an outcome.
func (r *VerifyReport) Count(outcome VerifyOutcome) int {
	n := 0
	for _, o := range r.Outcomes {
		if o == outcome {
			n++
		}
	}
	return n
}

// AllVerified reports whether every entry verified clean.
func (r *VerifyReport) AllVerified() bool {
	return r.Count(OutcomeVerified) == len(r.Outcomes)
}

// VerifyAll recomputes every entry's hash through a worker pool. Item
// failures never abort sibling items; the report carries each entry's
// outcome.
func (c *Crate) VerifyAll(ctx context.Context, opts BatchOptions) (*VerifyReport, error) {
	report := &VerifyReport{
		Outcomes: make(map[string]VerifyOutcome),
		Errors:   make(map[string]error),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	var mu sync.Mutex
	record := func(name string, outcome VerifyOutcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Outcomes[name] = outcome
		if err != nil {
			report.Errors[name] = err
		}
	}

	for _, entry := range c.manifest.Entries() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, err := c.VerifyFileIntegrity(entry.Name)
			switch {
			case err == nil && ok:
				record(entry.Name, OutcomeVerified, nil)
			case err == nil:
				record(entry.Name, OutcomeTampered, nil)
			case errors.Is(err, entities.ErrNotFound):
				record(entry.Name, OutcomeMissing, err)
			default:
				record(entry.Name, OutcomeErrored, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

// VerifyAllSignatures checks every recorded signature against the current
// manifest bytes, keyed by signer fingerprint.
func (c *Crate) VerifyAllSignatures() (map[string]bool, error) {
	results := make(map[string]bool, c.signatures.Len())
	for _, entry := range c.signatures.Entries() {
		ok, err := c.VerifySignature(entry.Fingerprint)
		if err != nil {
			return nil, err
		}
		results[entry.Fingerprint] = ok
	}
	return results, nil
}
