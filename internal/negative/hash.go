package negative

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
)

const hashChunk = 1 << 20 // 1 MiB

// FileHash fingerprints a scan file without reading it fully: the digest
// covers the size, the first MiB, and (for files over 2 MiB) the last MiB.
// Settings sidecars key on this hash, so it must stay stable across
// releases.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	size := info.Size()

	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(size, 10)))

	head := make([]byte, hashChunk)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	h.Write(head[:n])

	if size > 2*hashChunk {
		if _, err := f.Seek(-hashChunk, io.SeekEnd); err != nil {
			return "", fmt.Errorf("hash %s: %w", path, err)
		}
		tail := make([]byte, hashChunk)
		n, err := io.ReadFull(f, tail)
		if err != nil && err != io.ErrUnexpectedEOF {
			return "", fmt.Errorf("hash %s: %w", path, err)
		}
		h.Write(tail[:n])
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
