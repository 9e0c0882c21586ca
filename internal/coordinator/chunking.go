package coordinator

// ChunkSizes splits total bytes into n lengths. The first total%n chunks get
// one extra byte, so lengths differ by at most one and sum to total.
func ChunkSizes(total, n int) []int {
	if n < 1 {
		return nil
	}
	if total < 0 {
		total = 0
	}
	size, rem := total/n, total%n
	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = size
		if i < rem {
			sizes[i]++
		}
	}
	return sizes
}

// SplitChunks cuts data into n contiguous slices sharing its backing array
func SplitChunks(data []byte, n int) [][]byte {
	sizes := ChunkSizes(len(data), n)
	chunks := make([][]byte, len(sizes))
	offset := 0
	for i, size := range sizes {
		chunks[i] = data[offset : offset+size : offset+size]
		offset += size
	}
	return chunks
}
