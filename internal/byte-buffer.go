package internal

import "sync"

var bufPool = sync.Pool{New: func() interface{} {
	return []byte(nil)
}}

// ReserveByteBuffer fetches a zero-length byte slice from the shared
// pool, reusing whatever capacity a previous caller returned rather
// than always allocating fresh. sizeHint lets a caller that already
// knows roughly how large its output will be (vcfout sizes a VCF data
// line off the sample count) grow the slice once up front instead of
// through append's own doubling.
func ReserveByteBuffer(sizeHint int) []byte {
	buf := bufPool.Get().([]byte)[:0]
	if cap(buf) < sizeHint {
		grown := make([]byte, 0, sizeHint)
		return grown
	}
	return buf
}

// ReleaseByteBuffer returns buf to the pool ReserveByteBuffer draws
// from.
func ReleaseByteBuffer(buf []byte) {
	bufPool.Put(buf)
}
