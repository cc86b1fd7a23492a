package dates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := map[string][]string{
		"":                                  {},
		"2024-01-01":                        {"2024-01-01"},
		"2024-01-01, 2024-01-02":            {"2024-01-01", "2024-01-02"},
		"2024-01-01\n\n 2024-01-02 \r\n,,x": {"2024-01-01", "2024-01-02", "x"},
		" , \n ":                            {},
	}
	for in, want := range tests {
		assert.Equal(t, want, Parse(in), "input %q", in)
	}
}

func TestFilterKeepsOrder(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "b"}, Filter([]string{"b", "", " a ", "  ", "b"}))
}
