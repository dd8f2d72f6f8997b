package crtcbuild

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAskForConfirmation(t *testing.T) {
	cases := []struct {
		input string
		def   bool
		want  bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"\n", true, true},
		{"\n", false, false},
		{"maybe\nyes\n", false, true},
		{"", true, false},  // EOF
		{"y", false, true}, // no trailing newline
	}
	for _, c := range cases {
		got := askForConfirmation(strings.NewReader(c.input), nil, c.def, "Remove %d path(s)?", 2)
		assert.Equal(t, c.want, got, "input %q default %v", c.input, c.def)
	}
}
