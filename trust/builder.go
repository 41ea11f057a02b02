package trust

import (
	"crypto/x509"
	"fmt"
	"time"
)

// BuildOptions parameterize one chain-building attempt.
type BuildOptions struct {
	// Roots is the explicit trust set. Ignored when UseSystemRoots is set.
	Roots []*x509.Certificate

	// UseSystemRoots builds against the default/system trust store.
	UseSystemRoots bool

	// Intermediates supplement the chain with extra untrusted
	// certificates.
	Intermediates []*x509.Certificate

	// IgnoreTimeValidity retries a time-invalid chain at a point inside
	// the leaf's validity window, degrading the failure to a status.
	IgnoreTimeValidity bool
}

// ChainBuilder builds and evaluates a certificate chain under one policy,
// returning success plus a status list. Implementations decide what
// revocation checking, if any, they perform.
type ChainBuilder interface {
	Build(cert *x509.Certificate, opts BuildOptions) (bool, []Status)
}

// X509Builder implements ChainBuilder on crypto/x509 chain verification.
// It performs no revocation checking, so chains it accepts report nothing
// for revocation.
type X509Builder struct {
	systemRoots *x509.CertPool // test override for the system store
}

// X509BuilderOption configures an X509Builder.
type X509BuilderOption func(*X509Builder)

// WithSystemPool substitutes the pool used for system-trust attempts.
// Lets tests model the default store without touching the host.
func WithSystemPool(pool *x509.CertPool) X509BuilderOption {
	return func(b *X509Builder) {
		b.systemRoots = pool
	}
}

// NewX509Builder creates the default chain builder.
func NewX509Builder(opts ...X509BuilderOption) *X509Builder {
	b := &X509Builder{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build attempts one chain construction.
func (b *X509Builder) Build(cert *x509.Certificate, opts BuildOptions) (bool, []Status) {
	roots, err := b.rootPool(opts)
	if err != nil {
		return false, []Status{{Code: StatusUntrustedRoot, Detail: err.Error()}}
	}

	intermediates := x509.NewCertPool()
	for _, ic := range opts.Intermediates {
		intermediates.AddCert(ic)
	}

	verifyOpts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}

	_, verifyErr := cert.Verify(verifyOpts)
	if verifyErr == nil {
		return true, nil
	}

	if opts.IgnoreTimeValidity && isTimeValidityError(verifyErr) {
		// Re-evaluate inside the leaf's own validity window; any
		// remaining failure is a real trust problem, not clock skew, and
		// is what gets reported.
		verifyOpts.CurrentTime = midpoint(cert.NotBefore, cert.NotAfter)
		_, retryErr := cert.Verify(verifyOpts)
		if retryErr == nil {
			return true, []Status{{
				Code:   StatusNotTimeValid,
				Detail: "time validity ignored by policy",
			}}
		}
		return false, statusesFromError(retryErr)
	}

	return false, statusesFromError(verifyErr)
}

func (b *X509Builder) rootPool(opts BuildOptions) (*x509.CertPool, error) {
	if opts.UseSystemRoots {
		if b.systemRoots != nil {
			return b.systemRoots, nil
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			return nil, fmt.Errorf("system trust store unavailable: %w", err)
		}
		return pool, nil
	}

	pool := x509.NewCertPool()
	for _, root := range opts.Roots {
		pool.AddCert(root)
	}
	return pool, nil
}

func isTimeValidityError(err error) bool {
	if invalid, ok := err.(x509.CertificateInvalidError); ok {
		return invalid.Reason == x509.Expired
	}
	return false
}

func midpoint(notBefore, notAfter time.Time) time.Time {
	return notBefore.Add(notAfter.Sub(notBefore) / 2)
}

func statusesFromError(err error) []Status {
	switch e := err.(type) {
	case x509.UnknownAuthorityError:
		return []Status{{Code: StatusUntrustedRoot, Detail: e.Error()}}
	case x509.CertificateInvalidError:
		switch e.Reason {
		case x509.Expired:
			return []Status{{Code: StatusNotTimeValid, Detail: e.Error()}}
		case x509.IncompatibleUsage:
			return []Status{{Code: StatusInvalidUsage, Detail: e.Error()}}
		case x509.TooManyIntermediates, x509.TooManyConstraints:
			return []Status{{Code: StatusPartialChain, Detail: e.Error()}}
		default:
			return []Status{{Code: StatusMalformed, Detail: e.Error()}}
		}
	case x509.SystemRootsError:
		return []Status{{Code: StatusUntrustedRoot, Detail: e.Error()}}
	default:
		return []Status{{Code: StatusMalformed, Detail: err.Error()}}
	}
}
