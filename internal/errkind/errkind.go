// Package errkind defines the closed set of error kinds surfaced at engine
// boundaries. Internal helpers are free to use ordinary wrapped errors; any
// error that crosses a component boundary (repo, delta, signingevent,
// onlinesign) must be classifiable as one of these kinds via errors.Is.
package errkind

import "errors"

// The closed set of error kinds. Every error returned by a public engine
// entry point wraps exactly one of these sentinels.
var (
	// MalformedMetadata is returned when a role file is missing required
	// fields or has a field of the wrong type.
	MalformedMetadata = errors.New("malformed metadata")

	// UnknownScheme is returned when a key's scheme is not implemented by
	// the active signer backend registry.
	UnknownScheme = errors.New("unknown key scheme")

	// SignerUnavailable is returned when a configured signer backend
	// cannot be reached (hardware token absent, KMS unreachable, OIDC
	// flow failed).
	SignerUnavailable = errors.New("signer backend unavailable")

	// SignatureRejected is returned when signing itself fails, or (during
	// verification) when a presented signature does not verify.
	SignatureRejected = errors.New("signature rejected")

	// InvariantViolation covers violations of the §3 invariants that
	// don't have a more specific kind below.
	InvariantViolation = errors.New("metadata invariant violation")

	// VersionRegression is returned when a role's new version does not
	// exceed its baseline version.
	VersionRegression = errors.New("version regression")

	// ExpiryPolicyViolation is returned when a role's new expiry falls
	// outside its declared expiry-period policy.
	ExpiryPolicyViolation = errors.New("expiry policy violation")

	// GitSurfaceError wraps failures from the abstract git surface
	// (read_file, commit, push).
	GitSurfaceError = errors.New("git surface error")

	// Cancelled is returned when an engine invocation's cancellation
	// signal fires. The working tree is left untouched.
	Cancelled = errors.New("operation cancelled")
)
