// Package boundary implements the boundary-key catalog (J): a
// disk-backed, mmap-read sorted list of partition boundary keys, plus
// the partition-bounds lookups the record filter and the recovery path
// build on.
//
// On-disk layout: an 8-byte little-endian partition_count, followed by
// partition_count fixed-size entries, followed by the boundary keys
// concatenated in the order they were added. Each entry is 24 bytes:
// a 1-byte valid flag, 7 bytes of padding, an 8-byte little-endian
// offset, a 4-byte little-endian length, and 4 bytes of padding. Valid
// entries always form a contiguous prefix of the entries array.
package boundary

import "encoding/binary"

const (
	headerSize = 8
	entrySize  = 24
)

// entry is the decoded form of one fixed-size catalog entry.
type entry struct {
	valid  bool
	offset uint64
	length uint32
}

func encodeEntry(e entry) [entrySize]byte {
	var buf [entrySize]byte
	if e.valid {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint64(buf[8:16], e.offset)
	binary.LittleEndian.PutUint32(buf[16:20], e.length)
	return buf
}

func decodeEntry(buf []byte) entry {
	return entry{
		valid:  buf[0] != 0,
		offset: binary.LittleEndian.Uint64(buf[8:16]),
		length: binary.LittleEndian.Uint32(buf[16:20]),
	}
}

func metadataSize(partitionCount uint64) int64 {
	return headerSize + int64(partitionCount)*entrySize
}

func entryOffset(index uint64) int64 {
	return headerSize + int64(index)*entrySize
}
