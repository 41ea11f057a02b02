package trust_test

import (
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cratesign/cratesign/trust"
)

// scriptedBuilder replays canned outcomes in call order while recording
// the options of every attempt.
type scriptedBuilder struct {
	results []scriptedResult
	calls   []trust.BuildOptions
}

type scriptedResult struct {
	ok       bool
	statuses []trust.Status
}

func (s *scriptedBuilder) Build(_ *x509.Certificate, opts trust.BuildOptions) (bool, []trust.Status) {
	s.calls = append(s.calls, opts)
	if len(s.results) == 0 {
		return false, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.ok, r.statuses
}

func TestVerifier_SelfSignedShortCircuits(t *testing.T) {
	t.Parallel()

	ca := newCA(t, "pinned-root")
	leaf := validLeaf(t, "signer", ca)

	builder := &scriptedBuilder{results: []scriptedResult{{ok: true}}}
	v := trust.NewVerifier(trust.WithChainBuilder(builder))

	result := v.Verify(leaf.cert, trust.Config{SelfSignedRoot: ca.cert})

	assert.True(t, result.Trusted)
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, trust.PolicySelfSigned, result.Attempts[0].Policy)

	// The pinned-root attempt is always time-lenient and carries only the
	// configured root.
	require.Len(t, builder.calls, 1)
	assert.True(t, builder.calls[0].IgnoreTimeValidity)
	assert.False(t, builder.calls[0].UseSystemRoots)
	require.Len(t, builder.calls[0].Roots, 1)
	assert.True(t, builder.calls[0].Roots[0].Equal(ca.cert))
}

func TestVerifier_FallsBackToSystem(t *testing.T) {
	t.Parallel()

	ca := newCA(t, "pinned-root")
	leaf := validLeaf(t, "signer", ca)

	builder := &scriptedBuilder{results: []scriptedResult{
		{ok: false, statuses: []trust.Status{{Code: trust.StatusUntrustedRoot}}},
		{ok: true},
	}}
	v := trust.NewVerifier(trust.WithChainBuilder(builder))

	inter := newIntermediate(t, "issuing-ca", ca)
	result := v.Verify(leaf.cert, trust.Config{
		SelfSignedRoot: ca.cert,
		Intermediates:  []*x509.Certificate{inter.cert},
		AllowExpired:   true,
	})

	assert.True(t, result.Trusted)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, trust.PolicySelfSigned, result.Attempts[0].Policy)
	assert.Equal(t, trust.PolicySystem, result.Attempts[1].Policy)

	require.Len(t, builder.calls, 2)
	assert.True(t, builder.calls[1].UseSystemRoots)
	assert.Len(t, builder.calls[1].Intermediates, 1)
	assert.True(t, builder.calls[1].IgnoreTimeValidity)
}

func TestVerifier_FallsBackToCustomRoots(t *testing.T) {
	t.Parallel()

	ca := newCA(t, "custom-root")
	leaf := validLeaf(t, "signer", ca)

	builder := &scriptedBuilder{results: []scriptedResult{
		{ok: false, statuses: []trust.Status{{Code: trust.StatusUntrustedRoot}}},
		{ok: true},
	}}
	v := trust.NewVerifier(trust.WithChainBuilder(builder))

	result := v.Verify(leaf.cert, trust.Config{
		CustomRoots: []*x509.Certificate{ca.cert},
	})

	assert.True(t, result.Trusted)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, trust.PolicySystem, result.Attempts[0].Policy)
	assert.Equal(t, trust.PolicyCustomRoots, result.Attempts[1].Policy)

	require.Len(t, builder.calls, 2)
	assert.False(t, builder.calls[1].UseSystemRoots)
	require.Len(t, builder.calls[1].Roots, 1)
	assert.True(t, builder.calls[1].Roots[0].Equal(ca.cert))
}

func TestVerifier_NoCustomRootsSkipsFinalAttempt(t *testing.T) {
	t.Parallel()

	ca := newCA(t, "root")
	leaf := validLeaf(t, "signer", ca)

	builder := &scriptedBuilder{results: []scriptedResult{
		{ok: false, statuses: []trust.Status{{Code: trust.StatusUntrustedRoot}}},
	}}
	v := trust.NewVerifier(trust.WithChainBuilder(builder))

	result := v.Verify(leaf.cert, trust.Config{})

	assert.False(t, result.Trusted)
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, trust.PolicySystem, result.Attempts[0].Policy)
}

func TestVerifier_FailureIntersectsStatuses(t *testing.T) {
	t.Parallel()

	ca := newCA(t, "root")
	leaf := validLeaf(t, "signer", ca)

	builder := &scriptedBuilder{results: []scriptedResult{
		{ok: false, statuses: []trust.Status{
			{Code: trust.StatusUntrustedRoot, Detail: "pinned"},
			{Code: trust.StatusNotTimeValid, Detail: "pinned clock"},
		}},
		{ok: false, statuses: []trust.Status{
			{Code: trust.StatusNotTimeValid, Detail: "system clock"},
			{Code: trust.StatusPartialChain, Detail: "system"},
		}},
		{ok: false, statuses: []trust.Status{
			{Code: trust.StatusNotTimeValid, Detail: "custom clock"},
			{Code: trust.StatusUntrustedRoot, Detail: "custom"},
		}},
	}}
	v := trust.NewVerifier(trust.WithChainBuilder(builder))

	result := v.Verify(leaf.cert, trust.Config{
		SelfSignedRoot: ca.cert,
		CustomRoots:    []*x509.Certificate{ca.cert},
	})

	assert.False(t, result.Trusted)
	require.Len(t, result.Attempts, 3)

	// Only the code every attempt reported survives; the detail comes from
	// the first attempt that carried it.
	require.Len(t, result.Statuses, 1)
	assert.Equal(t, trust.StatusNotTimeValid, result.Statuses[0].Code)
	assert.Equal(t, "pinned clock", result.Statuses[0].Detail)
}

func TestVerifier_RealBuilderEndToEnd(t *testing.T) {
	t.Parallel()

	ca := newCA(t, "pinned-root")
	leaf := validLeaf(t, "signer", ca)

	// An empty substitute for the host store keeps the test hermetic.
	builder := trust.NewX509Builder(trust.WithSystemPool(x509.NewCertPool()))
	v := trust.NewVerifier(trust.WithChainBuilder(builder))

	t.Run("pinned root trusts", func(t *testing.T) {
		result := v.Verify(leaf.cert, trust.Config{SelfSignedRoot: ca.cert})
		assert.True(t, result.Trusted)
	})

	t.Run("custom roots trust", func(t *testing.T) {
		result := v.Verify(leaf.cert, trust.Config{
			CustomRoots: []*x509.Certificate{ca.cert},
		})
		assert.True(t, result.Trusted)
		require.Len(t, result.Attempts, 2)
		assert.False(t, result.Attempts[0].OK)
		assert.True(t, result.Attempts[1].OK)
	})

	t.Run("nothing configured distrusts", func(t *testing.T) {
		result := v.Verify(leaf.cert, trust.Config{})
		assert.False(t, result.Trusted)
		require.NotEmpty(t, result.Statuses)
		assert.Equal(t, trust.StatusUntrustedRoot, result.Statuses[0].Code)
	})
}
