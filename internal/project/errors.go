package project

import "errors"

var (
	// ErrNoConfig is returned when a command needs iotz.json and there is none.
	ErrNoConfig = errors.New("iotz.json file is needed. try 'iotz help'")

	// ErrNoToolchain is returned when iotz.json names no toolchain and none was detected.
	ErrNoToolchain = errors.New(`no toolchain is defined. i.e. "toolchain":"arduino" in iotz.json`)
)
