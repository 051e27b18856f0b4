//go:build !unix

package project

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
)

// stableID hashes the absolute path where no inode is available.
func stableID(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(path)))
	return strconv.FormatUint(h.Sum64(), 10), nil
}
