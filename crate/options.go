package crate

import (
	"log/slog"

	"github.com/cratesign/cratesign/crate/ports"
	"github.com/cratesign/cratesign/trust"
)

// Option configures a Crate at construction.
type Option func(*Crate)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Crate) { c.logger = l }
}

// WithStoreOriginalFiles embeds the original file bytes in the container
// alongside their digests.
func WithStoreOriginalFiles() Option {
	return func(c *Crate) { c.storeOriginalFiles = true }
}

// WithUpdatedBy sets the provenance tag carried in the manifest. It
// participates in the signed bytes, so it is fixed before signing rather
// than stamped during Update.
func WithUpdatedBy(name string) Option {
	return func(c *Crate) { c.updatedBy = name }
}

// WithProtectedEntryNames reserves additional doublestar patterns beyond
// the container's own namespace. The protected set is per-crate
// configuration; instances in one process never share it.
func WithProtectedEntryNames(patterns ...string) Option {
	return func(c *Crate) {
		c.extraProtected = append(c.extraProtected, patterns...)
	}
}

// WithCacheCapacity bounds the read cache, in bytes.
func WithCacheCapacity(capacity int64) Option {
	return func(c *Crate) { c.cacheCapacity = capacity }
}

// WithCache substitutes the read cache implementation.
func WithCache(cache ports.ByteCache) Option {
	return func(c *Crate) { c.cache = cache }
}

// WithFileSystem substitutes the filesystem capability used by the
// staging and verification paths.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(c *Crate) { c.fs = fs }
}

// WithDigester substitutes the content digest capability.
func WithDigester(d ports.Digester) Option {
	return func(c *Crate) { c.digester = d }
}

// WithMaxBufferSize caps how many bytes a single read accessor may
// buffer into memory.
func WithMaxBufferSize(limit int64) Option {
	return func(c *Crate) { c.maxBuffer = limit }
}

// WithTrustConfig sets the default trust sources for VerifyCertificate.
func WithTrustConfig(cfg trust.Config) Option {
	return func(c *Crate) { c.trustCfg = cfg }
}

// WithTrustVerifier substitutes the trust verification engine.
func WithTrustVerifier(v *trust.Verifier) Option {
	return func(c *Crate) { c.verifier = v }
}
