package crypto

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashReader(t *testing.T) {
	r := NewHashReader(strings.NewReader("head\nrow\n"))

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "head\nrow\n", string(data))
	require.Equal(t, int64(9), r.Size())
	require.Equal(t, Checksum(data), r.Sum())
	require.True(t, ValidateChecksum(r.Sum()))
}

func TestChecksum_Distinguishes(t *testing.T) {
	require.NotEqual(t, Checksum([]byte("a")), Checksum([]byte("b")))
	require.Equal(t, Checksum([]byte("a")), Checksum([]byte("a")))
}

func TestValidateChecksum(t *testing.T) {
	require.False(t, ValidateChecksum(""))
	require.False(t, ValidateChecksum(strings.Repeat("z", 64)))
	require.True(t, ValidateChecksum(strings.Repeat("0a", 32)))
}
