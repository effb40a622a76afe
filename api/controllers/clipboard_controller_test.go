package controllers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWait(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"", 0},
		{"0", 0},
		{"5", 5 * time.Second},
		{"120", MaxWait},
		{"121", MaxWait},
		{"10000000000", MaxWait},
		{"9223372036", MaxWait},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := parseWait(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, raw := range []string{"-1", "abc", "1.5", "99999999999999999999"} {
		_, err := parseWait(raw)
		assert.Error(t, err, raw)
	}
}
