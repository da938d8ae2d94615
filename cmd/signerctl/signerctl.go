package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Manta-Network/manta-signer/internal/cfgutil"
	"github.com/Manta-Network/manta-signer/shielded"
)

const (
	showHelpMessage = "Specify -h to show available options"
	listCmdMessage  = "Specify -l to list available commands"
)

// command describes one signer endpoint reachable from the command line.
type command struct {
	usage string
	path  string
	nargs int

	// params builds the request body from the arguments.  A nil params
	// sends a GET.
	params func(args []string) (interface{}, error)
}

var commands = map[string]command{
	"heartbeat": {
		usage: "heartbeat",
		path:  "/heartbeat",
	},
	"deriveshieldedaddress": {
		usage:  "deriveshieldedaddress <keypath>",
		path:   "/deriveShieldedAddress",
		nargs:  1,
		params: deriveShieldedAddressParams,
	},
	"generateasset": {
		usage:  "generateasset <assetid> <amount> <keypath>",
		path:   "/generateAsset",
		nargs:  3,
		params: generateAssetParams,
	},
	"mint": {
		usage:  "mint <assetid> <amount> <keypath>",
		path:   "/generateMintData",
		nargs:  3,
		params: generateAssetParams,
	},
	"recoveraccount": {
		usage:  "recoveraccount <file|->",
		path:   "/recoverAccount",
		nargs:  1,
		params: fileParams(func() interface{} { return new(shielded.RecoverAccountParams) }),
	},
	"privatetransfer": {
		usage: "privatetransfer <file|->",
		path:  "/generatePrivateTransferData",
		nargs: 1,
		params: fileParams(func() interface{} {
			return new(shielded.GeneratePrivateTransferBatchParams)
		}),
	},
	"reclaim": {
		usage:  "reclaim <file|->",
		path:   "/generateReclaimData",
		nargs:  1,
		params: fileParams(func() interface{} { return new(shielded.GenerateReclaimBatchParams) }),
	},
}

// stdin is where the special `-` argument is read from.
var stdin io.Reader = os.Stdin

// commandUsage display the usage for a specific command.
func commandUsage(method string) {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintf(os.Stderr, "  %s\n", commands[method].usage)
}

// usage displays the general usage when the help flag is not displayed and
// and an invalid command was specified.  The commandUsage function is used
// instead when a valid command was specified.
func usage(errorMessage string) {
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	fmt.Fprintln(os.Stderr, errorMessage)
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintf(os.Stderr, "  %s [OPTIONS] <command> <args...>\n\n",
		appName)
	fmt.Fprintln(os.Stderr, showHelpMessage)
	fmt.Fprintln(os.Stderr, listCmdMessage)
}

// listCommands prints the usage of every command.
func listCommands() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(commands[name].usage)
	}
}

// parseAssetID accepts a numeric asset id or a currency symbol.
func parseAssetID(s string) (shielded.AssetID, error) {
	if id, err := strconv.ParseUint(s, 10, 32); err == nil {
		return shielded.AssetID(id), nil
	}
	currency, err := shielded.CurrencyBySymbol(s)
	if err != nil {
		return 0, err
	}
	return currency.ID, nil
}

// parseAmount reads amount in units of id.  An amount carrying its currency
// symbol, such as "1.5 DOT", must name the same asset.
func parseAmount(amount string, id shielded.AssetID) (uint64, error) {
	if len(strings.Fields(amount)) == 1 {
		return shielded.ParseAmount(amount, id)
	}
	var flag cfgutil.AmountFlag
	if err := flag.UnmarshalFlag(amount); err != nil {
		return 0, err
	}
	if flag.AssetID != id {
		return 0, fmt.Errorf("amount %q is not in asset %d", amount, id)
	}
	return flag.Value, nil
}

func deriveShieldedAddressParams(args []string) (interface{}, error) {
	path, err := shielded.ParseKeyPath(args[0])
	if err != nil {
		return nil, err
	}
	return &shielded.DeriveShieldedAddressParams{KeyPath: path}, nil
}

func generateAssetParams(args []string) (interface{}, error) {
	id, err := parseAssetID(args[0])
	if err != nil {
		return nil, err
	}
	value, err := parseAmount(args[1], id)
	if err != nil {
		return nil, err
	}
	path, err := shielded.ParseKeyPath(args[2])
	if err != nil {
		return nil, err
	}
	return &shielded.GenerateAssetParams{
		AssetID: id,
		Value:   value,
		KeyPath: path,
	}, nil
}

// fileParams reads the JSON request from a file, or from stdin when the
// argument is `-`, and decodes it into a fresh value so malformed requests
// fail before anything is sent.
func fileParams(newParams func() interface{}) func([]string) (interface{}, error) {
	return func(args []string) (interface{}, error) {
		var (
			raw []byte
			err error
		)
		if args[0] == "-" {
			raw, err = io.ReadAll(bufio.NewReader(stdin))
		} else {
			raw, err = os.ReadFile(cleanAndExpandPath(args[0]))
		}
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil, errors.New("empty request")
		}

		params := newParams()
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(params); err != nil {
			return nil, fmt.Errorf("malformed request: %v", err)
		}
		return params, nil
	}
}

// formatResult chooses how to display the result based on its type.
func formatResult(result []byte) (string, error) {
	strResult := string(bytes.TrimSpace(result))
	switch {
	case strings.HasPrefix(strResult, "{") || strings.HasPrefix(strResult, "["):
		var dst bytes.Buffer
		if err := json.Indent(&dst, []byte(strResult), "", "  "); err != nil {
			return "", fmt.Errorf("failed to format result: %v", err)
		}
		return dst.String(), nil

	case strings.HasPrefix(strResult, `"`):
		var str string
		if err := json.Unmarshal([]byte(strResult), &str); err != nil {
			return "", fmt.Errorf("failed to unmarshal result: %v", err)
		}
		return str, nil

	case strResult == "null":
		return "", nil
	}
	return strResult, nil
}

// run executes one command against the signer and returns what to print.
func run(cfg *config, args []string) (string, error) {
	method := args[0]
	cmd := commands[method]
	if len(args)-1 != cmd.nargs {
		return "", fmt.Errorf("%s takes %d arguments, got %d", method,
			cmd.nargs, len(args)-1)
	}

	var body interface{}
	if cmd.params != nil {
		var err error
		body, err = cmd.params(args[1:])
		if err != nil {
			return "", fmt.Errorf("%s command: %v", method, err)
		}
	}

	result, err := sendRequest(cfg, cmd.path, body)
	if err != nil {
		return "", err
	}
	return formatResult(result)
}

func main() {
	cfg, args, err := loadConfig(os.Args[1:])
	if err != nil {
		os.Exit(1)
	}
	if len(args) < 1 {
		usage("No command specified")
		os.Exit(1)
	}

	// Ensure the specified method identifies a valid registered command.
	method := args[0]
	if _, ok := commands[method]; !ok {
		fmt.Fprintf(os.Stderr, "Unrecognized command '%s'\n", method)
		fmt.Fprintln(os.Stderr, listCmdMessage)
		os.Exit(1)
	}

	out, err := run(cfg, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), method) {
			commandUsage(method)
		}
		os.Exit(1)
	}
	if out != "" {
		fmt.Println(out)
	}
}
