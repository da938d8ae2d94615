package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Manta-Network/manta-signer/internal/cfgutil"
	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
	"github.com/mitchellh/go-homedir"
)

const (
	defaultConfigFilename = "signerctl.conf"
	defaultServiceURL     = "127.0.0.1:29987"
	defaultServicePort    = "29987"
	defaultTimeout        = 10 * time.Minute
)

var (
	signerctlHomeDir  = btcutil.AppDataDir("signerctl", false)
	defaultConfigFile = filepath.Join(signerctlHomeDir, defaultConfigFilename)
)

// config defines the configuration options for signerctl.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ConfigFile   string        `short:"C" long:"configfile" description:"Path to configuration file"`
	ListCommands bool          `short:"l" long:"listcommands" description:"List all of the supported commands and exit"`
	ShowVersion  bool          `short:"V" long:"version" description:"Display version information and exit"`
	ServiceURL   string        `short:"s" long:"serviceurl" description:"Signer service to connect to (host:port)"`
	AppVersion   string        `long:"appversion" description:"Version reported to the signer as the app_version query parameter"`
	Proxy        string        `long:"proxy" description:"Connect via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser    string        `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass    string        `long:"proxypass" default-mask:"-" description:"Password for proxy server"`
	Timeout      time.Duration `long:"timeout" description:"Give up on a request after this long; proofs and password prompts are slow"`
}

// cleanAndExpandPath expands environement variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if expanded, err := homedir.Expand(path); err == nil {
		path = expanded
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in functioning properly without any config settings
// while still allowing the user to override settings with config files and
// command line options.  Command line options always take precedence.
func loadConfig(args []string) (*config, []string, error) {
	// Default config.
	cfg := config{
		ConfigFile: defaultConfigFile,
		ServiceURL: defaultServiceURL,
		Timeout:    defaultTimeout,
	}

	// Pre-parse the command line options to see if an alternative config
	// file, the version flag, or the list commands flag was specified.  Any
	// errors aside from the help message error can be ignored here since
	// they will be caught by the final parse below.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "The special parameter `-` "+
				"indicates that a parameter should be read "+
				"from the\nnext unread line from standard input.")
			return nil, nil, err
		}
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show options", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	// Show the available commands and exit if the associated flag was
	// specified.
	if preCfg.ListCommands {
		listCommands()
		os.Exit(0)
	}

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(cleanAndExpandPath(preCfg.ConfigFile))
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %v\n",
				err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, nil, err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, nil, err
	}

	// Add default port to service URL if needed.
	cfg.ServiceURL, err = cfgutil.NormalizeAddress(cfg.ServiceURL,
		defaultServicePort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid service URL: %v\n", err)
		return nil, nil, err
	}

	return &cfg, remainingArgs, nil
}

// version returns the signerctl version.
func version() string {
	return "0.7.0-beta"
}
