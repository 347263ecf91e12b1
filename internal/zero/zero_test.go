package zero

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytes(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 31, 32, 52, 1000} {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte(i + 1)
		}
		Bytes(b)
		require.Equal(t, make([]byte, n), b)
	}
}
