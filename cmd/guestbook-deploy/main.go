package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"

	"github.com/notepid/guestbook/internal/config"
	"github.com/notepid/guestbook/internal/db"
	"github.com/notepid/guestbook/internal/deploy"
	"github.com/notepid/guestbook/internal/wallet"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	envPath := flag.String("env", ".env", "path to a dotenv file with wallet secrets")
	moduleID := flag.String("module", "", "module to deploy (default: deploy.module from the config)")
	yes := flag.Bool("yes", false, "deploy without asking for confirmation")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to load %s: %v", *envPath, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *moduleID == "" {
		*moduleID = cfg.Deploy.Module
	}
	module, ok := deploy.Lookup(*moduleID)
	if !ok {
		log.Fatalf("Unknown module %q", *moduleID)
	}

	key, err := wallet.LoadKey(cfg.Wallet)
	if err != nil {
		log.Fatalf("Failed to load wallet key: %v", err)
	}
	if key == nil {
		log.Fatalf("No deployer key: set %s or wallet.keystore", cfg.Wallet.KeyEnv)
	}

	if err := os.MkdirAll(cfg.Paths.Data, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	database, err := db.Open(cfg.Paths.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := wallet.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		log.Fatalf("Failed to connect to node: %v", err)
	}
	defer client.Close()

	signer, err := wallet.New(client, key).Signer(ctx)
	if err != nil {
		log.Fatalf("Failed to create signer: %v", err)
	}

	d := &deploy.Deployer{
		Backend:     client,
		Opts:        signer,
		Artifacts:   cfg.Deploy.Artifacts,
		Journal:     cfg.Contract.Deployments,
		Recorder:    database,
		WaitTimeout: cfg.Transactions.WaitTimeout,
	}

	chainID, pending, err := d.Plan(ctx, module)
	if err != nil {
		log.Fatalf("Failed to plan deployment: %v", err)
	}
	if chainID != cfg.Chain.ChainID {
		log.Printf("Warning: node is on chain %d, config expects %d", chainID, cfg.Chain.ChainID)
	}
	if len(pending) == 0 {
		fmt.Printf("%s is already deployed on chain %d (%s)\n", module.ID, chainID,
			deploy.JournalPath(cfg.Contract.Deployments, chainID))
		return
	}

	fmt.Printf("Deploying %s to chain %d from %s\n", module.ID, chainID, crypto.PubkeyToAddress(key.PublicKey).Hex())
	for _, f := range pending {
		fmt.Printf("  %s (%d constructor args)\n", f.ID, len(f.Args))
	}

	if !*yes {
		confirmed := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("Confirm deploy to chain %d?", chainID)).
			Value(&confirmed).
			Run()
		if err != nil {
			log.Fatalf("Confirmation aborted: %v", err)
		}
		if !confirmed {
			fmt.Println("Deployment cancelled.")
			return
		}
	}

	res, err := d.Deploy(ctx, module)
	if err != nil {
		log.Fatalf("Deployment failed: %v", err)
	}

	fmt.Printf("\n[ %s ] successfully deployed\n", module.ID)
	for _, id := range res.Deployed {
		fmt.Printf("  %s - %s\n", id, res.Addresses[id].Hex())
	}
	fmt.Printf("Journal: %s\n", deploy.JournalPath(cfg.Contract.Deployments, chainID))
}
