// Package credentials generates per-user salts and derives and verifies
// password hashes.
//
// New hashes use Argon2id and carry their cost parameters in the encoded
// string, so raising the cost only affects hashes created afterwards.
// Hashes written by the previous bcrypt scheme are still verifiable.
package credentials
