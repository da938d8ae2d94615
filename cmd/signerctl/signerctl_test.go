package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Manta-Network/manta-signer/shielded"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, h http.HandlerFunc) *config {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	return &config{
		ServiceURL: u.Host,
		AppVersion: "1.0.0",
		Timeout:    5 * time.Second,
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		id     shielded.AssetID
		want   uint64
		err    bool
	}{
		{name: "plain", amount: "1.5", id: shielded.AssetDOT, want: 15000000000},
		{name: "with symbol", amount: "1.5 DOT", id: shielded.AssetDOT, want: 15000000000},
		{name: "symbol mismatch", amount: "1.5 KSM", id: shielded.AssetDOT, err: true},
		{name: "unknown asset integer", amount: "42", id: 99, want: 42},
		{name: "garbage", amount: "abc", id: shielded.AssetDOT, err: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := parseAmount(test.amount, test.id)
			if test.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.want, got)
		})
	}
}

func TestGenerateAssetParams(t *testing.T) {
	params, err := generateAssetParams([]string{"KSM", "2", "m/44'/611'/0'/0/3"})
	require.NoError(t, err)

	p := params.(*shielded.GenerateAssetParams)
	require.Equal(t, shielded.AssetKSM, p.AssetID)
	require.Equal(t, uint64(2000000000000), p.Value)
	require.Equal(t, "m/44'/611'/0'/0/3", p.KeyPath.String())

	_, err = generateAssetParams([]string{"XYZ", "2", "m/0"})
	require.Error(t, err)
	_, err = generateAssetParams([]string{"1", "2", "n/0"})
	require.Error(t, err)
}

func TestFileParams(t *testing.T) {
	newParams := fileParams(func() interface{} {
		return new(shielded.RecoverAccountParams)
	})

	file := filepath.Join(t.TempDir(), "recover.json")
	require.NoError(t, os.WriteFile(file,
		[]byte(`{"asset_id": 1, "account": 2, "gap_limit": 5}`), 0600))
	params, err := newParams([]string{file})
	require.NoError(t, err)
	p := params.(*shielded.RecoverAccountParams)
	require.Equal(t, uint32(2), p.Account)
	require.Equal(t, uint32(5), p.GapLimit)

	stdin = strings.NewReader(`{"asset_id": 2}`)
	defer func() { stdin = os.Stdin }()
	params, err = newParams([]string{"-"})
	require.NoError(t, err)
	require.Equal(t, shielded.AssetKSM, params.(*shielded.RecoverAccountParams).AssetID)

	stdin = strings.NewReader(`{"bogus": 1}`)
	_, err = newParams([]string{"-"})
	require.Error(t, err)

	stdin = strings.NewReader("  ")
	_, err = newParams([]string{"-"})
	require.Error(t, err)
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `{"a":1}`, want: "{\n  \"a\": 1\n}"},
		{in: `"text"`, want: "text"},
		{in: `null`, want: ""},
		{in: "heartbeat", want: "heartbeat"},
	}
	for _, test := range tests {
		got, err := formatResult([]byte(test.in))
		require.NoError(t, err)
		require.Equal(t, test.want, got)
	}
}

func TestRunHeartbeat(t *testing.T) {
	cfg := testConfig(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/heartbeat", r.URL.Path)
		require.Equal(t, "1.0.0", r.URL.Query().Get("app_version"))
		io.WriteString(w, "heartbeat")
	})

	out, err := run(cfg, []string{"heartbeat"})
	require.NoError(t, err)
	require.Equal(t, "heartbeat", out)

	_, err = run(cfg, []string{"heartbeat", "extra"})
	require.Error(t, err)
}

func TestRunDeriveShieldedAddress(t *testing.T) {
	cfg := testConfig(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/deriveShieldedAddress", r.URL.Path)

		var params shielded.DeriveShieldedAddressParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		require.Equal(t, "m/44'/611'/0'/0/0", params.KeyPath.String())

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"address":"abc"}`)
	})

	out, err := run(cfg, []string{"deriveshieldedaddress", "m/44'/611'/0'/0/0"})
	require.NoError(t, err)
	require.Equal(t, "{\n  \"address\": \"abc\"\n}", out)
}

func TestRunRejected(t *testing.T) {
	cfg := testConfig(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `"Transaction rejected by user"`)
	})

	_, err := run(cfg, []string{"mint", "DOT", "1 DOT", "m/0"})
	require.EqualError(t, err, "401 Transaction rejected by user")
}

func TestRequestURL(t *testing.T) {
	cfg := &config{ServiceURL: "127.0.0.1:29987"}
	require.Equal(t, "http://127.0.0.1:29987/heartbeat", requestURL(cfg, "/heartbeat"))

	cfg.AppVersion = "2.0"
	require.Equal(t, "http://127.0.0.1:29987/heartbeat?app_version=2.0",
		requestURL(cfg, "/heartbeat"))
}

func TestCommandsRouteToServer(t *testing.T) {
	for name, cmd := range commands {
		require.True(t, strings.HasPrefix(cmd.usage, name), name)
		require.True(t, strings.HasPrefix(cmd.path, "/"), name)
		require.Equal(t, cmd.nargs == 0, cmd.params == nil, name)
	}
}
