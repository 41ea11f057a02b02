package trust

import (
	"crypto/x509"
	"log/slog"
)

// Policy names one chain-building strategy in the fallback order.
type Policy string

const (
	// PolicySelfSigned trusts only a configured self-signed root,
	// ignoring time validity and skipping revocation.
	PolicySelfSigned Policy = "self-signed-root"

	// PolicySystem trusts the default/system store, supplemented with
	// configured intermediates.
	PolicySystem Policy = "system"

	// PolicyCustomRoots trusts exactly the configured custom root set.
	PolicyCustomRoots Policy = "custom-roots"
)

// Config is the trust-source configuration for one verification.
type Config struct {
	// SelfSignedRoot, when set, is tried first and alone; success ends
	// the evaluation immediately.
	SelfSignedRoot *x509.Certificate

	// Intermediates supplement the system and custom-root attempts.
	Intermediates []*x509.Certificate

	// CustomRoots, when non-empty, is the trust set of the final
	// fallback attempt.
	CustomRoots []*x509.Certificate

	// AllowExpired applies time-validity leniency to the system and
	// custom-root attempts. The self-signed attempt is always lenient.
	AllowExpired bool
}

// Attempt records one policy evaluation for reporting.
type Attempt struct {
	Policy   Policy
	OK       bool
	Statuses []Status
}

// Result aggregates a full fallback evaluation. Trusted is true if any
// attempt succeeded. When every attempt failed, Statuses is the
// set-intersection of all attempted status lists: the failure reasons
// every policy agreed on, keeping policy-specific noise away from the
// caller while still surfacing a universally-true reason.
type Result struct {
	Trusted  bool
	Statuses []Status
	Attempts []Attempt
}

// Verifier evaluates certificate trust under the ordered policy fallback.
type Verifier struct {
	builder ChainBuilder
	logger  *slog.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithChainBuilder substitutes the chain-building capability.
func WithChainBuilder(b ChainBuilder) VerifierOption {
	return func(v *Verifier) { v.builder = b }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) VerifierOption {
	return func(v *Verifier) { v.logger = l }
}

// NewVerifier creates a verifier with the given options.
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		builder: NewX509Builder(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify evaluates the certificate against the configured trust sources
// in the fixed fallback order:
//
//  1. A configured self-signed root, alone, time-lenient, no revocation.
//     Success short-circuits the whole evaluation.
//  2. The default/system trust store plus configured intermediates.
//  3. If 2 failed and custom roots are configured: exactly the custom
//     root set plus intermediates, reusing the leniency flags of 2.
func (v *Verifier) Verify(cert *x509.Certificate, cfg Config) Result {
	var attempts []Attempt

	if cfg.SelfSignedRoot != nil {
		ok, statuses := v.builder.Build(cert, BuildOptions{
			Roots:              []*x509.Certificate{cfg.SelfSignedRoot},
			IgnoreTimeValidity: true,
		})
		attempts = append(attempts, Attempt{Policy: PolicySelfSigned, OK: ok, Statuses: statuses})
		if ok {
			v.logger.Debug("certificate trusted", "policy", PolicySelfSigned,
				"subject", cert.Subject.String())
			return Result{Trusted: true, Statuses: statuses, Attempts: attempts}
		}
	}

	ok, statuses := v.builder.Build(cert, BuildOptions{
		UseSystemRoots:     true,
		Intermediates:      cfg.Intermediates,
		IgnoreTimeValidity: cfg.AllowExpired,
	})
	attempts = append(attempts, Attempt{Policy: PolicySystem, OK: ok, Statuses: statuses})
	if ok {
		v.logger.Debug("certificate trusted", "policy", PolicySystem,
			"subject", cert.Subject.String())
		return Result{Trusted: true, Statuses: statuses, Attempts: attempts}
	}

	if len(cfg.CustomRoots) > 0 {
		ok, statuses = v.builder.Build(cert, BuildOptions{
			Roots:              cfg.CustomRoots,
			Intermediates:      cfg.Intermediates,
			IgnoreTimeValidity: cfg.AllowExpired,
		})
		attempts = append(attempts, Attempt{Policy: PolicyCustomRoots, OK: ok, Statuses: statuses})
		if ok {
			v.logger.Debug("certificate trusted", "policy", PolicyCustomRoots,
				"subject", cert.Subject.String())
			return Result{Trusted: true, Statuses: statuses, Attempts: attempts}
		}
	}

	lists := make([][]Status, 0, len(attempts))
	for _, a := range attempts {
		lists = append(lists, a.Statuses)
	}
	agreed := intersect(lists)
	v.logger.Debug("certificate untrusted", "subject", cert.Subject.String(),
		"attempts", len(attempts), "agreed_statuses", len(agreed))
	return Result{Trusted: false, Statuses: agreed, Attempts: attempts}
}
