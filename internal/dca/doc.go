// Package dca reads and writes DCA containers.
//
// A container is an optional header followed by length-prefixed opus packets:
//
//	"DCA1" | int32 LE metadata length | metadata JSON      (omitted in raw mode)
//	int16 LE packet length | packet bytes                 (repeated)
//
// The packet count is not recorded anywhere; the stream ends where the bytes
// end.
package dca
