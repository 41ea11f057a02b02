// Package trust implements certificate trust resolution for crate
// signers: a fixed fallback order of chain-building policies (self-signed
// root, system store, custom trusted roots) with partial-failure
// aggregation.
package trust

// StatusCode is a structured reason describing why a chain build failed
// (or what a successful build tolerated).
type StatusCode string

const (
	// StatusUntrustedRoot - the chain terminates in a root that is not in
	// the attempted trust set.
	StatusUntrustedRoot StatusCode = "untrusted_root"

	// StatusNotTimeValid - a certificate in the chain is expired or not
	// yet valid.
	StatusNotTimeValid StatusCode = "not_time_valid"

	// StatusPartialChain - a chain up to a trusted root could not be
	// completed from the presented and configured certificates.
	StatusPartialChain StatusCode = "partial_chain"

	// StatusInvalidUsage - a certificate is not authorized for the
	// attempted usage.
	StatusInvalidUsage StatusCode = "invalid_usage"

	// StatusNotSignatureValid - a signature inside the chain did not
	// verify.
	StatusNotSignatureValid StatusCode = "not_signature_valid"

	// StatusRevoked - a certificate in the chain is revoked.
	StatusRevoked StatusCode = "revoked"

	// StatusRevocationUnknown - revocation could not be determined.
	StatusRevocationUnknown StatusCode = "revocation_unknown"

	// StatusMalformed - a certificate could not be processed.
	StatusMalformed StatusCode = "malformed"
)

// Status is a reason code plus human-readable detail.
type Status struct {
	Code   StatusCode
	Detail string
}

// intersect keeps the statuses whose code appears in every attempted
// list: the parts of the failure every policy agreed on. Detail comes
// from the first list carrying the code.
func intersect(lists [][]Status) []Status {
	if len(lists) == 0 {
		return nil
	}

	counts := make(map[StatusCode]int)
	first := make(map[StatusCode]Status)
	for _, list := range lists {
		seen := make(map[StatusCode]struct{})
		for _, st := range list {
			if _, dup := seen[st.Code]; dup {
				continue
			}
			seen[st.Code] = struct{}{}
			counts[st.Code]++
			if _, ok := first[st.Code]; !ok {
				first[st.Code] = st
			}
		}
	}

	var out []Status
	emitted := make(map[StatusCode]struct{})
	for _, st := range lists[0] {
		if _, dup := emitted[st.Code]; dup {
			continue
		}
		if counts[st.Code] == len(lists) {
			emitted[st.Code] = struct{}{}
			out = append(out, first[st.Code])
		}
	}
	return out
}
