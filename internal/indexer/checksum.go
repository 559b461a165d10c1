package indexer

import (
	"encoding/hex"
	"io"
	"os"

	"github.com/minio/highwayhash"
)

// Fixed key so checksums stay comparable across daemon restarts.
var checksumKey = []byte("fsal-index-checksum-key-32bytes!")

// fileChecksum hashes the file contents with HighwayHash-64 and returns the
// hex-encoded digest.
func fileChecksum(path string) (string, error) {
	h, err := highwayhash.New64(checksumKey)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
