// Package crate implements the tamper-evident file-bundling and signing
// container: a zip-based archive carrying a content-hash manifest,
// detached X.509 signatures over the manifest bytes, and optionally the
// original file bytes themselves.
package crate

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/cratesign/cratesign/cache"
	"github.com/cratesign/cratesign/crate/codec"
	"github.com/cratesign/cratesign/crate/container"
	"github.com/cratesign/cratesign/crate/entities"
	"github.com/cratesign/cratesign/crate/ports"
	"github.com/cratesign/cratesign/crate/signing"
	"github.com/cratesign/cratesign/crate/values"
	"github.com/cratesign/cratesign/fsutil"
	"github.com/cratesign/cratesign/trust"
)

// ReadSource selects where a read accessor resolves an entry.
type ReadSource int

const (
	// SourceAuto reads from the container when original files are
	// embedded, else from disk relative to the crate root.
	SourceAuto ReadSource = iota

	// SourceContainer reads the container member only.
	SourceContainer

	// SourceDisk reads the backing file on disk only.
	SourceDisk
)

// DefaultMaxBufferSize caps single-accessor in-memory buffering.
const DefaultMaxBufferSize int64 = 1 << 30 // 1 GiB

// Crate is the aggregate root: it owns one manifest and one signature
// set, stages pending entry additions and removals, and is the only
// component that touches the backing container.
//
// Concurrent reads (GetBytes, VerifyFileIntegrity, VerifySignature)
// against a loaded read-only crate are safe. Mutating calls (AddEntry,
// DeleteEntry, Sign) may run from parallel ingestion workers, but Update
// must not run concurrently with any mutating call; the host serializes
// that per crate.
type Crate struct {
	path string
	root string

	manifest   *entities.Manifest
	signatures *entities.Signatures

	mu             sync.Mutex // lifecycle flags and staging collections
	loaded         bool
	readOnly       bool
	memory         []byte // container bytes when loaded from memory
	stagedAdds     map[string][]byte
	stagedRemovals []string

	cache    ports.ByteCache
	fs       ports.FileSystem
	digester ports.Digester
	logger   *slog.Logger
	verifier *trust.Verifier
	trustCfg trust.Config

	maxBuffer          int64
	cacheCapacity      int64
	storeOriginalFiles bool
	updatedBy          string
	extraProtected     []string
	protected          []string // container defaults + extras, fixed in New
}

// New creates a crate referencing a container path. The crate root (used
// for disk reads and as the default AddEntry root) is the directory
// containing the path. Nothing is read until Load, and nothing is written
// until Update.
func New(path string, opts ...Option) *Crate {
	c := &Crate{
		path:       path,
		root:       filepath.Dir(path),
		signatures: entities.NewSignatures(),
		stagedAdds: make(map[string][]byte),
		fs:         fsutil.NewOSFileSystem(),
		digester:   signing.NewSHA512Digester(),
		logger:     slog.Default(),
		maxBuffer:  DefaultMaxBufferSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = cache.New(c.cacheCapacity)
	}
	if c.verifier == nil {
		c.verifier = trust.NewVerifier(trust.WithLogger(c.logger))
	}

	c.protected = append(append([]string(nil), container.DefaultProtectedPatterns...), c.extraProtected...)
	c.manifest = entities.NewManifest(c.protected...)
	c.manifest.StoreOriginalFiles = c.storeOriginalFiles
	c.manifest.UpdatedBy = c.updatedBy
	return c
}

// Load opens the backing container from disk, exactly once. Missing
// manifest or signatures members degrade to empty defaults with a
// warning, supporting containers produced by other means.
func (c *Crate) Load(readOnly bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return entities.ErrAlreadyLoaded
	}

	arch, err := container.OpenFile(c.path)
	if err != nil {
		return err
	}
	defer func() { _ = arch.Close() }()

	if err := c.parseMembers(arch); err != nil {
		return err
	}

	c.loaded = true
	c.readOnly = readOnly
	if readOnly {
		c.activateCache()
	}
	c.logger.Info("crate loaded", "path", c.path, "read_only", readOnly,
		"entries", c.manifest.Len(), "signers", c.signatures.Len())
	return nil
}

// LoadFromBytes opens the container from an in-memory buffer. The crate
// is forced read-only.
func (c *Crate) LoadFromBytes(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return entities.ErrAlreadyLoaded
	}

	arch, err := container.OpenBytes(data)
	if err != nil {
		return err
	}
	if err := c.parseMembers(arch); err != nil {
		return err
	}

	c.memory = data
	c.loaded = true
	c.readOnly = true
	c.activateCache()
	c.logger.Info("crate loaded from memory", "size", len(data),
		"entries", c.manifest.Len(), "signers", c.signatures.Len())
	return nil
}

func (c *Crate) parseMembers(arch *container.Archive) error {
	if arch.Has(container.ManifestMember) {
		data, err := arch.Member(container.ManifestMember, c.maxBuffer)
		if err != nil {
			return err
		}
		// The crate's own reserved namespace applies regardless of what
		// the stored document claims.
		m, err := codec.ParseManifest(data, c.protected...)
		if err != nil {
			return err
		}
		c.manifest = m
	} else {
		c.logger.Warn("manifest member missing, starting from empty manifest",
			"path", c.path)
	}

	if arch.Has(container.SignaturesMember) {
		data, err := arch.Member(container.SignaturesMember, c.maxBuffer)
		if err != nil {
			return err
		}
		s, err := codec.ParseSignatures(data)
		if err != nil {
			return err
		}
		c.signatures = s
	} else {
		c.logger.Warn("signatures member missing, starting from empty signature set",
			"path", c.path)
	}
	return nil
}

// AddEntry hashes a file and records it in the manifest under its
// canonical name relative to rootPath (default: the crate root). When
// original files are embedded, the raw bytes are staged and the name is
// prefixed with destinationPath before recording.
func (c *Crate) AddEntry(filePath, destinationPath, rootPath string) error {
	if c.isReadOnly() {
		return entities.ErrReadOnly
	}
	if rootPath == "" {
		rootPath = c.root
	}

	name, err := values.EntryNameFromFile(filePath, rootPath)
	if err != nil {
		return err
	}
	if pattern, ok := c.manifest.ProtectedPattern(name.String()); ok {
		return &entities.ProtectedNameError{Name: name.String(), Pattern: pattern}
	}

	f, err := c.fs.Open(filePath)
	if err != nil {
		return notFoundIfMissing(err, "file", filePath)
	}
	digest, err := c.digester.Digest(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("hashing %q: %w", filePath, err)
	}

	if !c.manifest.StoreOriginalFiles {
		if err := c.manifest.AddEntry(name, digest); err != nil {
			return err
		}
		c.logger.Debug("entry added", "name", name.String())
		return nil
	}

	if destinationPath != "" {
		if name, err = name.Prefixed(destinationPath); err != nil {
			return err
		}
	}
	data, err := c.fs.ReadAll(filePath)
	if err != nil {
		return notFoundIfMissing(err, "file", filePath)
	}
	if err := c.manifest.AddEntry(name, digest); err != nil {
		return err
	}

	c.mu.Lock()
	c.stagedAdds[name.String()] = data
	c.mu.Unlock()
	c.logger.Debug("entry added and staged", "name", name.String(), "size", len(data))
	return nil
}

// DeleteEntry removes a manifest entry. A staged-for-add entry is simply
// unstaged; anything else is scheduled for deletion from the container on
// the next Update.
func (c *Crate) DeleteEntry(name string) error {
	if c.isReadOnly() {
		return entities.ErrReadOnly
	}

	entry, err := values.NewEntryName(name)
	if err != nil {
		return err
	}
	if err := c.manifest.DeleteEntry(entry); err != nil {
		return err
	}

	key := entry.String()
	c.mu.Lock()
	if _, staged := c.stagedAdds[key]; staged {
		delete(c.stagedAdds, key)
		c.mu.Unlock()
		c.logger.Debug("staged entry unstaged", "name", key)
		return nil
	}
	c.stagedRemovals = append(c.stagedRemovals, key)
	c.mu.Unlock()
	c.logger.Debug("entry scheduled for removal", "name", key)
	return nil
}

// Sign signs the current manifest bytes with an RSA private key and
// embeds the PEM-armored certificate under its fingerprint.
func (c *Crate) Sign(cert *x509.Certificate, key *rsa.PrivateKey) error {
	signer, err := signing.NewRSASignerVerifier(key)
	if err != nil {
		return err
	}
	return c.SignWith(cert, signer)
}

// SignWith signs using an injected signing capability. Re-signing with
// the same certificate overwrites the prior signature entry.
func (c *Crate) SignWith(cert *x509.Certificate, signer ports.Signer) error {
	if c.isReadOnly() {
		return entities.ErrReadOnly
	}

	manifestBytes := codec.ExportManifest(c.manifest)
	sig, err := signer.SignMessage(bytes.NewReader(manifestBytes))
	if err != nil {
		return fmt.Errorf("signing manifest: %w", err)
	}

	fingerprint := values.Fingerprint(cert)
	c.signatures.Add(fingerprint, sig)

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	c.mu.Lock()
	c.stagedAdds[container.CertMember(fingerprint)] = pemBytes
	c.mu.Unlock()

	c.logger.Info("manifest signed", "fingerprint", fingerprint,
		"subject", cert.Subject.String())
	return nil
}

// Update persists all staged changes into the backing container: staged
// removals are deleted first, the manifest and signatures members are
// always rewritten, then staged additions are written. Must not run
// concurrently with any mutating call.
func (c *Crate) Update() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readOnly {
		return entities.ErrReadOnly
	}

	writes := make(map[string][]byte, len(c.stagedAdds)+2)
	for name, data := range c.stagedAdds {
		writes[name] = data
	}
	writes[container.ManifestMember] = codec.ExportManifest(c.manifest)
	writes[container.SignaturesMember] = codec.ExportSignatures(c.signatures)

	missing, err := container.Rewrite(c.path, c.stagedRemovals, writes)
	if err != nil {
		return fmt.Errorf("updating container: %w", err)
	}
	for _, name := range missing {
		c.logger.Warn("staged removal not present in container", "name", name)
	}

	c.logger.Info("container updated", "path", c.path,
		"written", len(writes), "removed", len(c.stagedRemovals)-len(missing))
	c.stagedAdds = make(map[string][]byte)
	c.stagedRemovals = nil
	return nil
}

// VerifyFileIntegrity recomputes the content hash of an entry and
// compares it byte-for-byte against the manifest. A missing file or
// member is an ErrNotFound failure, distinct from a false (mismatch)
// result.
func (c *Crate) VerifyFileIntegrity(name string) (bool, error) {
	recorded, ok := c.manifest.Digest(name)
	if !ok {
		return false, &entities.NotFoundError{Kind: "entry", Name: name}
	}

	rc, err := c.GetStream(name, SourceAuto)
	if err != nil {
		return false, err
	}
	defer func() { _ = rc.Close() }()

	actual, err := c.digester.Digest(rc)
	if err != nil {
		return false, fmt.Errorf("hashing entry %q: %w", name, err)
	}
	return recorded.Equal(actual), nil
}

// VerifySignature checks the recorded signature for a certificate
// fingerprint against the current serialized manifest bytes. A failed
// check is a false result, not an error.
func (c *Crate) VerifySignature(fingerprint string) (bool, error) {
	sig, ok := c.signatures.Get(fingerprint)
	if !ok {
		return false, &entities.NotFoundError{Kind: "signature", Name: fingerprint}
	}
	cert, err := c.Certificate(fingerprint)
	if err != nil {
		return false, err
	}

	verifier, err := signing.NewCertificateVerifier(cert)
	if err != nil {
		return false, err
	}

	manifestBytes := codec.ExportManifest(c.manifest)
	if err := verifier.VerifySignature(sig, bytes.NewReader(manifestBytes)); err != nil {
		c.logger.Debug("signature verification failed", "fingerprint", fingerprint,
			"error", err)
		return false, nil
	}
	return true, nil
}

// VerifyCertificate evaluates the trust of an embedded signer
// certificate under the crate's trust configuration, or an override.
func (c *Crate) VerifyCertificate(fingerprint string, override ...trust.Config) (trust.Result, error) {
	cert, err := c.Certificate(fingerprint)
	if err != nil {
		return trust.Result{}, err
	}
	cfg := c.trustCfg
	if len(override) > 0 {
		cfg = override[0]
	}
	return c.verifier.Verify(cert, cfg), nil
}

// Certificate returns the embedded signer certificate for a fingerprint.
func (c *Crate) Certificate(fingerprint string) (*x509.Certificate, error) {
	data, err := c.GetBytes(container.CertMember(fingerprint), SourceContainer)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			return nil, &entities.NotFoundError{Kind: "certificate", Name: fingerprint}
		}
		return nil, err
	}
	certs, err := trust.ParsePEMCertificates(data)
	if err != nil {
		return nil, fmt.Errorf("certificate %s: %w", fingerprint, err)
	}
	return certs[0], nil
}

// GetBytes reads a whole entry into memory from the selected source.
// Protected names always resolve to the container regardless of the
// requested source. Members staged but not yet persisted are served from
// the staging area, so a freshly signed crate can verify its own
// signature before Update. On a read-only crate the cache is consulted
// first and populated when the payload fits.
func (c *Crate) GetBytes(name string, source ReadSource) ([]byte, error) {
	fromContainer := c.resolveSource(name, source)

	if c.isReadOnly() {
		if data, ok := c.cache.TryGet(name); ok {
			return data, nil
		}
	}

	var data []byte
	if fromContainer {
		if staged, ok := c.stagedBytes(name); ok {
			return staged, nil
		}
		arch, err := c.openArchive()
		if err != nil {
			return nil, err
		}
		defer func() { _ = arch.Close() }()
		if data, err = arch.Member(name, c.maxBuffer); err != nil {
			return nil, err
		}
	} else {
		rc, err := c.fs.Open(c.diskPath(name))
		if err != nil {
			return nil, notFoundIfMissing(err, "file", name)
		}
		defer func() { _ = rc.Close() }()
		if data, err = fsutil.ReadAllLimited(rc, c.maxBuffer); err != nil {
			return nil, err
		}
	}

	if c.isReadOnly() {
		c.cache.Insert(name, data)
	}
	return data, nil
}

// GetStream opens an entry for streaming from the selected source. Cached
// and staged payloads are served from memory; misses stream directly
// without populating the cache.
func (c *Crate) GetStream(name string, source ReadSource) (io.ReadCloser, error) {
	fromContainer := c.resolveSource(name, source)

	if c.isReadOnly() {
		if data, ok := c.cache.TryGet(name); ok {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
	}

	if fromContainer {
		if staged, ok := c.stagedBytes(name); ok {
			return io.NopCloser(bytes.NewReader(staged)), nil
		}
		arch, err := c.openArchive()
		if err != nil {
			return nil, err
		}
		rc, err := arch.MemberReader(name)
		if err != nil {
			_ = arch.Close()
			return nil, err
		}
		return &archiveStream{ReadCloser: rc, archive: arch}, nil
	}

	rc, err := c.fs.Open(c.diskPath(name))
	if err != nil {
		return nil, notFoundIfMissing(err, "file", name)
	}
	return rc, nil
}

// Manifest returns the crate's manifest for inspection and reporting.
func (c *Crate) Manifest() *entities.Manifest {
	return c.manifest
}

// Signatures returns the crate's signature set for inspection.
func (c *Crate) Signatures() *entities.Signatures {
	return c.signatures
}

// Path returns the backing container path.
func (c *Crate) Path() string {
	return c.path
}

// Loaded reports whether the container has been opened.
func (c *Crate) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// ReadOnly reports whether mutating operations are rejected.
func (c *Crate) ReadOnly() bool {
	return c.isReadOnly()
}

func (c *Crate) isReadOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readOnly
}

// resolveSource reports whether the read goes to the container.
func (c *Crate) resolveSource(name string, source ReadSource) bool {
	if c.manifest.IsProtected(name) {
		return true
	}
	switch source {
	case SourceContainer:
		return true
	case SourceDisk:
		return false
	default:
		return c.manifest.StoreOriginalFiles
	}
}

func (c *Crate) stagedBytes(name string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.stagedAdds[name]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, true
}

func (c *Crate) openArchive() (*container.Archive, error) {
	c.mu.Lock()
	memory := c.memory
	c.mu.Unlock()

	if memory != nil {
		return container.OpenBytes(memory)
	}
	return container.OpenFile(c.path)
}

func (c *Crate) activateCache() {
	if activator, ok := c.cache.(interface{ Activate() }); ok {
		activator.Activate()
	}
}

func (c *Crate) diskPath(name string) string {
	return filepath.Join(c.root, filepath.FromSlash(name))
}

func notFoundIfMissing(err error, kind, name string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &entities.NotFoundError{Kind: kind, Name: name}
	}
	return err
}

// archiveStream closes the underlying archive together with the member
// reader.
type archiveStream struct {
	io.ReadCloser
	archive *container.Archive
}

func (s *archiveStream) Close() error {
	err := s.ReadCloser.Close()
	if cerr := s.archive.Close(); err == nil {
		err = cerr
	}
	return err
}
