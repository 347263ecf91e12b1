package prompt

import (
	"bufio"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadSecret(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "single line", in: "Uabc\n", want: "Uabc"},
		{name: "no newline", in: "Uabc", want: "Uabc"},
		{name: "skips blank lines", in: "\n  \nUxyz  \n", want: "Uxyz"},
		{name: "empty", in: "", wantErr: ErrNoInput},
		{name: "blank only", in: "\n\n", wantErr: ErrNoInput},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			got, err := readSecret(bufio.NewReader(strings.NewReader(test.in)))
			if test.wantErr != nil {
				require.ErrorIs(t, err, test.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.want, got)
		})
	}
}

// TestProvideSecretPipe checks that consecutive prompts read consecutive
// lines of a piped stdin.
func TestProvideSecretPipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	_, err = w.WriteString("WIFKEY\n\nrpcpass\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	oldStdin := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = oldStdin }()

	first, err := ProvideSecret("WIF private key")
	require.NoError(t, err)
	require.Equal(t, "WIFKEY", first)

	second, err := ProvideSecret("node RPC password")
	require.NoError(t, err)
	require.Equal(t, "rpcpass", second)

	_, err = ProvideSecret("anything")
	require.ErrorIs(t, err, ErrNoInput)
}
