package container

// OwnsBlock reports whether the block introduced by the sync marker at
// syncOffset belongs to the byte range [start, end). A block belongs to the
// one range that holds the first byte of its leading marker, so ranges that
// partition a file partition its blocks. A negative syncOffset means no
// marker was found and is never owned.
func OwnsBlock(start, end, syncOffset int64) bool {
	return syncOffset >= 0 && syncOffset >= start && syncOffset < end
}
