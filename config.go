package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Manta-Network/manta-signer/internal/cfgutil"
	"github.com/Manta-Network/manta-signer/rpc/signerrpc"
	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
	"github.com/mitchellh/go-homedir"
)

const (
	defaultConfigFilename = "manta-signer.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "manta-signer.log"
	defaultProvingDirname = "proving"
	defaultMaxClients     = 16
	signerDbName          = "signer.db"

	authorizerTerminal = "terminal"
	authorizerUI       = "ui"
)

var (
	defaultAppDataDir = btcutil.AppDataDir("manta-signer", false)
	defaultConfigFile = filepath.Join(defaultAppDataDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultAppDataDir, defaultLogDirname)
)

type config struct {
	// General application behavior
	ConfigFile  *cfgutil.ExplicitString `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool                    `short:"V" long:"version" description:"Display version information and exit"`
	AppDataDir  *cfgutil.ExplicitString `short:"A" long:"appdata" description:"Application data directory for the signer database and proving keys"`
	LogDir      string                  `long:"logdir" description:"Directory to log output."`
	DebugLevel  string                  `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`

	// Account setup
	Create     bool `long:"create" description:"Create a new account and exit"`
	Recover    bool `long:"recover" description:"Restore an account from its recovery phrase and exit"`
	ChangePass bool `long:"changepass" description:"Change the password of the account and exit"`
	ResetPass  bool `long:"resetpass" description:"Set a new password using the recovery phrase and exit"`
	ShowPhrase bool `long:"showphrase" description:"Display the recovery phrase of the account and exit"`
	FastScrypt bool `long:"fastscrypt" description:"Use weak scrypt parameters when sealing the account (testing only)"`

	// Service
	ServiceURL    string        `long:"serviceurl" description:"Listen for dApp requests on this interface/port"`
	DevOrigin     string        `long:"devorigin" description:"Development dApp origin allowed by CORS"`
	ProdOrigin    string        `long:"prodorigin" description:"Production dApp origin allowed by CORS"`
	Authorizer    string        `long:"authorizer" description:"Where requests are authorized {terminal, ui}"`
	MaxClients    int           `long:"maxclients" description:"Max number of simultaneous dApp connections"`
	RetryDelay    time.Duration `long:"retrydelay" description:"Delay before asking again after a wrong password"`
	ProvingKeyDir string        `long:"provingkeydir" description:"Directory of the circuit proving and verifying keys"`

	// Deep links
	URL string `long:"url" description:"Handle a manta:// link and exit"`
}

// cleanAndExpandPath expands environement variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if expanded, err := homedir.Expand(path); err == nil {
		path = expanded
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
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
// The above results in the signer functioning properly without any config
// settings while still allowing the user to override settings with config files
// and command line options.  Command line options always take precedence.
func loadConfig() (*config, []string, error) {
	return parseConfig(os.Args[1:])
}

func defaultConfig() config {
	return config{
		ConfigFile: cfgutil.NewExplicitString(defaultConfigFile),
		AppDataDir: cfgutil.NewExplicitString(defaultAppDataDir),
		LogDir:     defaultLogDir,
		DebugLevel: defaultLogLevel,
		ServiceURL: signerrpc.DefaultServiceURL,
		DevOrigin:  signerrpc.DevOrigin,
		ProdOrigin: signerrpc.ProdOrigin,
		Authorizer: authorizerTerminal,
		MaxClients: defaultMaxClients,
		RetryDelay: signerrpc.DefaultRetryDelay,
	}
}

func parseConfig(args []string) (*config, []string, error) {
	cfg := defaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			preParser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// Show the version and exit if the version flag was specified.
	funcName := "loadConfig"
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	// Load additional config from file.  A config file under a custom
	// app data dir is preferred when no config file was given.
	configFilePath := preCfg.ConfigFile.Value
	if preCfg.AppDataDir.ExplicitlySet() && !preCfg.ConfigFile.ExplicitlySet() {
		configFilePath = filepath.Join(preCfg.AppDataDir.Value,
			defaultConfigFilename)
	}
	configFilePath = cleanAndExpandPath(configFilePath)

	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(configFilePath)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// The log directory follows a custom app data dir unless it was set.
	cfg.AppDataDir.Value = cleanAndExpandPath(cfg.AppDataDir.Value)
	if cfg.AppDataDir.ExplicitlySet() && cfg.LogDir == defaultLogDir {
		cfg.LogDir = filepath.Join(cfg.AppDataDir.Value, defaultLogDirname)
	}
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	if cfg.ProvingKeyDir == "" {
		cfg.ProvingKeyDir = filepath.Join(cfg.AppDataDir.Value,
			defaultProvingDirname)
	}
	cfg.ProvingKeyDir = cleanAndExpandPath(cfg.ProvingKeyDir)

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	if err := initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	// Only one account setup flow may run at a time.
	setupFlows := 0
	for _, set := range []bool{cfg.Create, cfg.Recover, cfg.ChangePass,
		cfg.ResetPass, cfg.ShowPhrase} {
		if set {
			setupFlows++
		}
	}
	if setupFlows > 1 {
		err := fmt.Errorf("%s: the --create, --recover, --changepass, "+
			"--resetpass and --showphrase options may not be combined",
			funcName)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	switch cfg.Authorizer {
	case authorizerTerminal, authorizerUI:
	default:
		err := fmt.Errorf("%s: unknown authorizer %q", funcName, cfg.Authorizer)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	if cfg.MaxClients < 0 {
		err := fmt.Errorf("%s: --maxclients may not be negative", funcName)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	cfg.ServiceURL, err = cfgutil.NormalizeAddress(cfg.ServiceURL, "29987")
	if err != nil {
		err := fmt.Errorf("%s: invalid --serviceurl: %v", funcName, err)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Warn about missing config file after the final command line parse
	// succeeds.  This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil {
		log.Warnf("%v", configFileError)
	}

	return &cfg, remainingArgs, nil
}

// origins returns the dApp origins CORS allows.
func (c *config) origins() []string {
	var origins []string
	for _, o := range []string{c.DevOrigin, c.ProdOrigin} {
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// dbPath returns the path of the signer database.
func (c *config) dbPath() string {
	return filepath.Join(c.AppDataDir.Value, signerDbName)
}
