package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputTypeIsValid(t *testing.T) {
	for _, output := range []OutputType{LogOutputStdout, LogOutputStderr, LogOutputFile} {
		assert.True(t, output.IsValid(), output.String())
	}

	assert.False(t, OutputType("syslog").IsValid())
}
