package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskValue(t *testing.T) {
	tests := []struct {
		value   string
		visible int
		want    string
	}{
		{value: "", visible: 2, want: ""},
		{value: "ab", visible: 2, want: "**"},
		{value: "abcd", visible: 2, want: "****"},
		{value: "abcde", visible: 2, want: "ab*de"},
		{value: "abcdefgh", visible: 2, want: "ab****gh"},
		{value: "user@example.com", visible: 3, want: "use**********com"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskValue(tt.value, tt.visible), "MaskValue(%q, %d)", tt.value, tt.visible)
	}
}
