// Package bitfield implements the paged presence maps backing a feed.
//
// Three bitmaps are interleaved in fixed pages: the data bitfield has one
// bit per block, the tree bitfield has one bit per tree index, and the
// index bitfield is a coarse summary used to accelerate scans. A page
// serializes as a single 3328 byte record
//
//	data[1024] || tree[2048] || index[256]
//
// so the on disk layout of the bitfield store is just the concatenation of
// page records at pageIndex * 3328.
//
// The index summary holds two bits for every sixteen bit unit of the data
// region, arranged as the flat tree over the page's units: value 3 means
// every bit in the covered range is set, 0 means none are, 2 means mixed.
// Keeping the summary as a tree lets NextMissing and NextPresent skip
// fully set or fully empty runs in logarithmic steps instead of scanning
// them.
//
// Pages track their dirty state. Mutations queue the owning page in
// insertion order; the feed drains the queue into storage when it syncs.
package bitfield
