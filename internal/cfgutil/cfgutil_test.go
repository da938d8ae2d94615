package cfgutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Manta-Network/manta-signer/shielded"
	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/require"
)

func TestAmountFlag(t *testing.T) {
	tests := []struct {
		input   string
		assetID shielded.AssetID
		value   uint64
		valid   bool
	}{
		{"1.5 DOT", shielded.AssetDOT, 15000000000, true},
		{"0.000000000001 KSM", shielded.AssetKSM, 1, true},
		{"2 ksm", shielded.AssetKSM, 2000000000000, true},
		{"1.5", 0, 0, false},
		{"1.5 XYZ", 0, 0, false},
		{"abc DOT", 0, 0, false},
		{"0.00000000001 DOT", 0, 0, false},
	}
	for _, test := range tests {
		var a AmountFlag
		err := a.UnmarshalFlag(test.input)
		if !test.valid {
			require.Error(t, err, test.input)
			continue
		}
		require.NoError(t, err, test.input)
		require.Equal(t, test.assetID, a.AssetID, test.input)
		require.Equal(t, test.value, a.Value, test.input)
	}

	s, err := NewAmountFlag(shielded.AssetDOT, 15000000000).MarshalFlag()
	require.NoError(t, err)
	require.Equal(t, "1.5 DOT", s)
}

func TestExplicitString(t *testing.T) {
	var opts struct {
		AppData *ExplicitString `long:"appdata"`
		Other   *ExplicitString `long:"other"`
	}
	opts.AppData = NewExplicitString("default")
	opts.Other = NewExplicitString("default")

	_, err := flags.ParseArgs(&opts, []string{"--appdata=/tmp/x"})
	require.NoError(t, err)
	require.True(t, opts.AppData.ExplicitlySet())
	require.Equal(t, "/tmp/x", opts.AppData.Value)
	require.False(t, opts.Other.ExplicitlySet())
	require.Equal(t, "default", opts.Other.Value)
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")

	ok, err := FileExists(path)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, os.WriteFile(path, nil, 0600))
	ok, err = FileExists(path)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"127.0.0.1", "127.0.0.1:29987"},
		{"localhost:8000", "localhost:8000"},
		{"::1", "[::1]:29987"},
		{"[::1]:1", "[::1]:1"},
	}
	for _, test := range tests {
		got, err := NormalizeAddress(test.addr, "29987")
		require.NoError(t, err, test.addr)
		require.Equal(t, test.want, got, test.addr)
	}
}
