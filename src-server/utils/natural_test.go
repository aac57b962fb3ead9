package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseNaturalTime(t *testing.T) {
	w := NewWhen()
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	base := time.Date(2026, 3, 10, 9, 30, 0, 0, jakarta)

	got, err := ParseNaturalTime(w, "2026-03-12", base)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, jakarta), got)

	got, err = ParseNaturalTime(w, "2026-03-12T10:00:00Z", base)
	require.NoError(t, err)
	require.True(t, got.Equal(time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)))

	got, err = ParseNaturalTime(w, "", base)
	require.NoError(t, err)
	require.Equal(t, base, got)

	got, err = ParseNaturalTime(w, "tomorrow", base)
	require.NoError(t, err)
	require.Equal(t, 11, got.In(jakarta).Day())

	_, err = ParseNaturalTime(w, "zzzz", base)
	require.Error(t, err)
}
