// Package integrity computes the SHA-256 integrity hashes attached to genesis
// and certification records.
//
// Hashes are lowercase hex strings. HashJSON hashes the encoding/json
// serialization of a value, so struct field order is part of the digest.
package integrity
