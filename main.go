package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"itcwallet/application"
	"itcwallet/cmd"
	"itcwallet/config"
	"itcwallet/database"
	"itcwallet/domain/interfaces"
	"itcwallet/infrastructure"
	"itcwallet/repository"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Check for migration subcommands
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatal("Migration error: ", err)
		}
		return
	}

	// Check for balance adjustment subcommands
	if len(os.Args) > 1 && os.Args[1] == "adjust-balance" {
		if err := handleBalanceAdjustment(); err != nil {
			log.Fatal("Balance adjustment error: ", err)
		}
		return
	}

	if len(os.Args) > 1 && os.Args[1] != "serve" {
		log.Fatalf("unknown command %q, expected serve, migrate or adjust-balance", os.Args[1])
	}

	// Normal service operation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error: ", err)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: itcwallet migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

// handleBalanceAdjustment records an admin adjustment through the ledger so the
// balance history stays consistent. Events are not published.
func handleBalanceAdjustment() error {
	if len(os.Args) < 5 {
		return fmt.Errorf("usage: itcwallet adjust-balance <userId> <amount> <reason>")
	}
	userID := os.Args[2]
	amount, err := decimal.NewFromString(os.Args[3])
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", os.Args[3], err)
	}
	reason := strings.Join(os.Args[4:], " ")

	ctx := context.Background()
	cfg := config.Get()
	cmd.ConfigureLogging(cfg)

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	uowFactory := repository.NewUnitOfWorkFactory(db, func() interfaces.TransactionalEventPublisher {
		return infrastructure.NewNATSTransactionalPublisher(infrastructure.NewNoopEventPublisher())
	})
	wallet := application.NewWalletApp(uowFactory, cfg.TokenUSDRate)

	result, err := wallet.AdjustBalance(ctx, userID, amount, reason)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"userId":        result.UserID,
		"balance":       result.Balance.String(),
		"transactionId": result.TransactionID,
	}).Info("Balance adjusted")
	return nil
}
