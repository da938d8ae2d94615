package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/Manta-Network/manta-signer/rpc/signerrpc"
	"github.com/Manta-Network/manta-signer/seedmgr"
	"github.com/Manta-Network/manta-signer/zkp"
	"github.com/lightningnetwork/lnd/clock"
)

// heartbeatTimeout bounds the check for a running daemon.
const heartbeatTimeout = 2 * time.Second

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Work around defer not working after os.Exit.
	if err := signerMain(); err != nil {
		os.Exit(1)
	}
}

// signerMain is a work-around main function that is required since deferred
// functions (such as log flushing) are not called with calls to os.Exit.
// Instead, main runs this function and checks for a non-nil error, at which
// point any defers have already run, and if the error is non-nil, the program
// can be exited with an error exit status.
func signerMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	if cfg.URL != "" {
		return handleIncomingURL(cfg)
	}

	log.Infof("Version %s", version())

	db, err := openDB(cfg)
	if err != nil {
		log.Errorf("Unable to open signer database: %v", err)
		return err
	}
	defer db.Close()

	clk := clock.NewDefaultClock()

	// Setup flows run to completion and exit.
	ran, err := runAccountSetup(cfg, db, clk)
	if ran {
		if err != nil {
			log.Errorf("%v", err)
		}
		return err
	}

	mgr, err := seedmgr.Open(db)
	if seedmgr.IsError(err, seedmgr.ErrNoExist) {
		err = errNoAccount
	}
	if err != nil {
		log.Errorf("Unable to open account: %v", err)
		return err
	}
	defer mgr.Close()

	engine := zkp.NewEngine(zkp.Config{ProvingKeyDir: cfg.ProvingKeyDir})
	log.Infof("Loading proving keys from %s", cfg.ProvingKeyDir)
	if err := engine.Load(); err != nil {
		log.Errorf("Unable to load proving keys: %v", err)
		return err
	}

	var authorizer signerrpc.Authorizer
	switch cfg.Authorizer {
	case authorizerUI:
		ui := signerrpc.NewUIAuthorizer()
		defer ui.Close()
		authorizer = ui
		log.Infof("Waiting for the authorizer UI on ws://%s/authorizer",
			cfg.ServiceURL)
	default:
		authorizer = newTerminalAuthorizer()
	}

	server := signerrpc.NewServer(&signerrpc.Config{
		ServiceURL: cfg.ServiceURL,
		Origins:    cfg.origins(),
		MaxClients: cfg.MaxClients,
		RetryDelay: cfg.RetryDelay,
		Clock:      clk,
		Version:    version(),
	}, mgr, authorizer, engine)

	ctx, cancel := context.WithCancel(context.Background())
	addInterruptHandler(cancel)

	started := make(chan error, 1)
	go func() {
		started <- server.Start(ctx)
	}()

	select {
	case err := <-started:
		if err != nil {
			log.Errorf("Unable to start service: %v", err)
			return err
		}
	case <-interruptHandlersDone:
		// Interrupted while waiting for the starting password.
		return nil
	}

	addInterruptHandler(func() {
		log.Infof("Stopping service...")
		server.Stop()
		log.Info("Service shutdown")
	})

	<-interruptHandlersDone
	log.Info("Shutdown complete")
	return nil
}

// handleIncomingURL handles a manta:// link by checking that a daemon is
// running to act on it.
func handleIncomingURL(cfg *config) error {
	in, err := parseIncomingURL(cfg.URL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	log.Debugf("Incoming %s link with params %v", in.Action, in.Params)

	client := &http.Client{Timeout: heartbeatTimeout}
	resp, err := client.Get("http://" + cfg.ServiceURL + "/heartbeat")
	if err != nil {
		fmt.Fprintf(os.Stderr, "The signer is not running on %s\n", cfg.ServiceURL)
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := errors.New(resp.Status)
		fmt.Fprintf(os.Stderr, "Unexpected heartbeat response: %v\n", err)
		return err
	}

	fmt.Printf("The signer is running on %s\n", cfg.ServiceURL)
	return nil
}
