package hypersig

// decodeUint64 interprets in as a big-endian integer.
func decodeUint64(in []byte) (ret uint64) {
	for i := 0; i < len(in); i++ {
		ret |= uint64(in[i]) << uint(8*(len(in)-1-i))
	}
	return
}
