// Package saver runs a batch of share-page downloads on a bounded worker
// pool.
//
// Each source URL becomes one task. A task fetches the share page, decodes
// the embedded page data and writes, per item, the caption text, at most one
// cover image for the whole batch and the first video. Every task concludes
// as exactly one success or one failure, so once the pool drains
// success+fail equals the number of URLs.
package saver
