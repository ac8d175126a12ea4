package listener

import "testing"

import "github.com/stretchr/testify/assert"

func TestProviderStatus(t *testing.T) {
	cases := map[string]string{
		"period1":      "Period1",
		"Period2":      "Period2",
		"overtime":     "Overtime",
		"shootout":     "Shootout",
		"intermission": "Intermission",
		"post-game":    "Finished",
		"pre-game":     "Coming",
		"nonsense":     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, providerStatus(in), "input %q", in)
	}
}
