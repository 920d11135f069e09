// Package merkle provides the hashing and signing primitives for a feed,
// and the generator that grows a feed's tree one leaf at a time.
//
// All hashes are BLAKE2b-256. The three structural hashes are domain
// separated by a single prefix byte so that a leaf can never be confused
// with an interior node, nor an interior node with a root summary:
//
//	0x00  leaf:    H(0x00 || len || data)
//	0x01  parent:  H(0x01 || lsize+rsize || lhash || rhash)
//	0x02  roots:   H(0x02 || (hash || index || size)...)
//
// Lengths, sizes and indices are always hashed big endian. The discovery
// key is a keyed BLAKE2b-256 of a fixed label under the feed's public key;
// it identifies a feed on the wire without disclosing the key itself.
package merkle
