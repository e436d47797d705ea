package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	"github.com/notepid/guestbook/internal/archive"
	"github.com/notepid/guestbook/internal/config"
	"github.com/notepid/guestbook/internal/contract"
	"github.com/notepid/guestbook/internal/db"
	"github.com/notepid/guestbook/internal/deploy"
	"github.com/notepid/guestbook/internal/guestbook"
	"github.com/notepid/guestbook/internal/scripting"
	"github.com/notepid/guestbook/internal/ui"
	"github.com/notepid/guestbook/internal/wallet"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	envPath := flag.String("env", ".env", "path to a dotenv file with wallet secrets")
	probe := flag.Bool("probe", false, "check the contract address and exit")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to load %s: %v", *envPath, err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.Paths.Data, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Keep log output off the TUI
	if !*probe {
		f, err := tea.LogToFile(cfg.Paths.Log, "guestbook")
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database
	database, err := db.Open(cfg.Paths.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()
	log.Printf("Database opened: %s", cfg.Paths.Database)

	dedup, err := guestbook.ParseDedupPolicy(cfg.Feed.Dedup)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	key, err := wallet.LoadKey(cfg.Wallet)
	if err != nil {
		log.Fatalf("Failed to load wallet key: %v", err)
	}

	opts := guestbook.Options{
		ExpectedChainID: cfg.ExpectedChainHex(),
		WaitTimeout:     cfg.Transactions.WaitTimeout,
		Dedup:           dedup,
	}

	// A missing node leaves the controller without a provider; connecting
	// then reports the wallet as unavailable.
	client, err := wallet.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		log.Printf("Node unavailable: %v", err)
	} else {
		defer client.Close()
		opts.Provider = wallet.New(client, key)

		addr, err := contractAddress(ctx, cfg, client)
		if err != nil {
			log.Printf("Contract unavailable: %v", err)
		} else {
			log.Printf("Using Guestbook at %s", addr.Hex())
			opts.Contract = contract.New(addr, client)
			opts.Archive = archive.NewRepo(database.DB).Archiver(addr)
		}
	}

	ctrl := guestbook.NewController(opts)

	if *probe {
		runProbe(ctx, ctrl)
		return
	}

	var dec guestbook.Decorator
	if cfg.Paths.Script != "" {
		filter, err := scripting.LoadFilter(cfg.Paths.Script, func() common.Address {
			return ctrl.State().Session().Account
		})
		if err != nil {
			log.Fatalf("Failed to load display script: %v", err)
		}
		defer filter.Close()
		dec = filter
		log.Printf("Display script loaded: %s", cfg.Paths.Script)
	}

	if err := ui.Run(ctx, ctrl, dec); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// contractAddress returns the configured address, or the one the deployment
// journal records for the node's chain.
func contractAddress(ctx context.Context, cfg *config.Config, client *ethclient.Client) (common.Address, error) {
	if s := strings.TrimSpace(cfg.Contract.Address); s != "" {
		if !common.IsHexAddress(s) {
			return common.Address{}, fmt.Errorf("contract.address %q is not a hex address", s)
		}
		return common.HexToAddress(s), nil
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("eth_chainId: %w", err)
	}
	module, ok := deploy.Lookup(cfg.Deploy.Module)
	if !ok {
		return common.Address{}, fmt.Errorf("unknown deploy module %q", cfg.Deploy.Module)
	}
	future, ok := module.Future("Guestbook")
	if !ok {
		return common.Address{}, fmt.Errorf("module %s does not deploy Guestbook", module.ID)
	}
	return deploy.ResolveAddress(cfg.Contract.Deployments, chainID.Int64(), future.ID)
}

func runProbe(ctx context.Context, ctrl *guestbook.Controller) {
	report, err := ctrl.Probe(ctx)
	if err != nil {
		log.Fatalf("Probe failed: %v", err)
	}

	fmt.Printf("Contract: %s\n", report.Address.Hex())
	fmt.Printf("Block:    %d\n", report.Block)
	if report.FetchErr != nil {
		fmt.Printf("Messages: error: %v\n", report.FetchErr)
	} else {
		fmt.Printf("Messages: %d\n", report.Messages)
	}
	if report.HasCode {
		fmt.Printf("Code:     %d bytes, contract detected\n", report.CodeSize)
		return
	}
	fmt.Println("Code:     none. This address is not a contract on the connected network; check contract.address or the network.")
	os.Exit(2)
}
