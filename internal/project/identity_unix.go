//go:build unix

package project

import (
	"strconv"

	"golang.org/x/sys/unix"
)

func stableID(path string) (string, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return "", err
	}
	return strconv.FormatUint(uint64(st.Ino), 10), nil
}
