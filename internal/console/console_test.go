package console

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinterRoutesStreams(t *testing.T) {
	var out, errOut bytes.Buffer
	p := &Printer{Out: &out, Err: &errOut}

	p.Progress("initializing the project container..")
	p.Success("container is deleted")
	p.Error("no toolchain is defined", "try 'iotz init' ?")
	p.Warn("shared drive?")

	assert.Contains(t, out.String(), "initializing the project container..")
	assert.Contains(t, out.String(), "container is deleted")
	assert.NotContains(t, out.String(), "no toolchain")

	assert.Contains(t, errOut.String(), "error:")
	assert.Contains(t, errOut.String(), "no toolchain is defined")
	assert.Contains(t, errOut.String(), "try 'iotz init' ?")
	assert.Contains(t, errOut.String(), "warning:")
}
