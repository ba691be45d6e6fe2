// Package codecerr defines the sentinel error taxonomy shared by every stage
// of the video codec pipeline, plus a structured wrapper that attaches
// operational context without breaking errors.Is/errors.As.
package codecerr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Handlers should check for these with errors.Is and map
// them to CLI exit codes or stage-local recovery behavior.
var (
	// ErrFormat indicates a magic mismatch, truncated header, or out-of-range
	// field in a wire record. Local to the record: tile-level records are
	// dropped silently, envelope-level records are fatal.
	ErrFormat = errors.New("malformed record")

	// ErrCryptoAuth indicates an AEAD authentication tag failure. Always fatal.
	ErrCryptoAuth = errors.New("authentication failed")

	// ErrKeyUnwrap indicates an asymmetric key-unwrap (RSA-OAEP) failure.
	// Always fatal.
	ErrKeyUnwrap = errors.New("key unwrap failed")

	// ErrInsufficientBlocks indicates fewer than K blocks were received.
	// Always fatal.
	ErrInsufficientBlocks = errors.New("insufficient blocks to reconstruct")

	// ErrRecoveryLimit indicates the loss fraction exceeds the declared
	// redundancy (35%). The decoder refuses to attempt recovery.
	ErrRecoveryLimit = errors.New("loss exceeds recovery limit")

	// ErrPerColumnDecode indicates a single FEC column could not be
	// corrected. Never propagated past pkg/fec: pkg/fec substitutes NUL
	// bytes for what it could not recover and lets the AEAD layer detect
	// the corruption.
	ErrPerColumnDecode = errors.New("column decode failed")

	// ErrDependency indicates an external rasterizer or video muxer is
	// missing or failed, or a filesystem operation (reading input, writing
	// output, manifest or staging files) failed. Fatal, with a distinct CLI
	// exit code.
	ErrDependency = errors.New("missing external dependency")
)

// Error wraps a sentinel error with the operation and stage that produced
// it, in the style of PayloadError from the teacher's storage layer:
// Unwrap() preserves errors.Is/errors.As against the sentinel.
type Error struct {
	// Stage names the pipeline stage that raised the error: "envelope",
	// "privkey", "chunk", "fec", "framer", "frame", "manifest".
	Stage string

	// Op names the operation within the stage: "seal", "unseal", "encode",
	// "decode", "wrap", "unwrap", "assemble", "disassemble".
	Op string

	// Err is the wrapped sentinel error.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Stage, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap constructs an *Error attributing err to stage/op.
func Wrap(stage, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Stage: stage, Op: op, Err: err}
}

// IsDependency reports whether err (or anything it wraps) is ErrDependency,
// the signal CLIs use to pick a distinct "missing external tool" exit code
// rather than a generic failure code.
func IsDependency(err error) bool {
	return errors.Is(err, ErrDependency)
}
