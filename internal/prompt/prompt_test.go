package prompt

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testPhrase = "abandon abandon abandon abandon abandon abandon " +
	"abandon abandon abandon abandon abandon about"

func reader(lines ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

// scriptPasswords swaps the terminal for the given answers.
func scriptPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func() ([]byte, error) {
		if len(answers) == 0 {
			return nil, io.EOF
		}
		next := answers[0]
		answers = answers[1:]
		return []byte(next), nil
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		def   string
		want  bool
	}{
		{"yes", []string{"yes"}, "no", true},
		{"short no", []string{"n"}, "yes", false},
		{"default", []string{""}, "yes", true},
		{"retry until valid", []string{"maybe", "Y"}, "no", true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Confirm(reader(test.input...), "Continue?", test.def)
			require.NoError(t, err)
			require.Equal(t, test.want, got)
		})
	}

	_, err := Confirm(bufio.NewReader(strings.NewReader("")), "Continue?", "")
	require.True(t, errors.Is(err, io.EOF))
}

func TestNewPassphrase(t *testing.T) {
	scriptPasswords(t, "", "first", "mismatch", "  second ", "second")

	pass, err := NewPassphrase()
	require.NoError(t, err)
	require.Equal(t, "second", string(pass))
}

func TestPassphraseOrDecline(t *testing.T) {
	scriptPasswords(t, "secret", " ")

	pass, err := PassphraseOrDecline("Password")
	require.NoError(t, err)
	require.Equal(t, "secret", string(pass))

	pass, err = PassphraseOrDecline("Password")
	require.NoError(t, err)
	require.Nil(t, pass)

	_, err = PassphraseOrDecline("Password")
	require.ErrorIs(t, err, io.EOF)
}

func TestMnemonic(t *testing.T) {
	phrase, err := Mnemonic(reader(
		"",
		"abandon abandon abandon",
		"  ABANDON abandon abandon abandon abandon abandon "+
			"abandon abandon abandon abandon abandon   about ",
	))
	require.NoError(t, err)
	require.Equal(t, testPhrase, phrase)
}

func TestShowMnemonic(t *testing.T) {
	require.NoError(t, ShowMnemonic(reader("ok", `"OK"`), testPhrase))

	err := ShowMnemonic(reader("not yet"), testPhrase)
	require.ErrorIs(t, err, io.EOF)
}
