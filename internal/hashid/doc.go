// Package hashid computes deterministic fingerprints of JSON-serializable data.
//
// Both persistence backends key their records by content: the history backend
// derives a record key from the initial value of a binding, and the durable
// backend stores canonical JSON so identical snapshots produce identical
// bytes.
//
// Fingerprints are computed over RFC 8785 canonical JSON:
//   - object keys sorted by UTF-16 code units
//   - strings NFC normalized, no HTML escaping
//   - numbers in shortest round-trip form
//
// and hashed with SHA-256 using a domain prefix, so a fingerprint of a
// record can never collide with a fingerprint from another domain.
//
// Fingerprints are stable within a build. They are not promised to be stable
// across releases of this module.
package hashid
