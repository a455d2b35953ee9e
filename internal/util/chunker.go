package util

// ChunkText splits text into overlapping windows of chunkSize runes with the
// given overlap. Chunk i starts at rune offset i*(chunkSize-overlap) and spans
// min(chunkSize, remaining) runes; iteration stops once a window would start
// at or past the end of the text. Slices are taken verbatim, so concatenating
// chunks in order and collapsing the overlap reproduces the input exactly.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	runes := []rune(text)
	step := chunkSize - overlap
	out := make([]string, 0)
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// ReconstructText reverses ChunkText: every chunk after the first contributes
// only the runes past the overlap with its predecessor.
func ReconstructText(chunks []string, overlap int) string {
	if len(chunks) == 0 {
		return ""
	}
	if overlap < 0 {
		overlap = 0
	}
	out := []rune(chunks[0])
	for _, c := range chunks[1:] {
		runes := []rune(c)
		if overlap >= len(runes) {
			continue
		}
		out = append(out, runes[overlap:]...)
	}
	return string(out)
}
