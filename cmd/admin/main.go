// Package main provides the operator CLI. The set-role command writes the
// database directly; every other command logs in to a running game server
// as an admin account and calls its admin operations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/bitcory/knight/internal/config"
	"github.com/bitcory/knight/internal/gameserver"
	"github.com/bitcory/knight/internal/storage/postgres"
)

const usage = `usage: admin [flags] <command> [args]

commands:
  set-role <username> <player|admin>   assign a role (database)
  gift <username> <amount>             credit gold
  boost <username>                     arm the one-shot enhancement boost
  purge-feed <days>                    remove feed messages older than days (0 removes all)
  purge-inactive <days>                remove non-admin accounts idle for days
  reset-all                            reset every player to starter state

flags:
`

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	addr := flag.String("addr", "", "game server address (defaults to the configured gRPC address)")
	user := flag.String("user", os.Getenv("KNIGHT_ADMIN_USER"), "admin username for server commands")
	password := flag.String("password", os.Getenv("KNIGHT_ADMIN_PASSWORD"), "admin password for server commands")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd, rest := args[0], args[1:]
	if cmd == "set-role" {
		need(rest, 2)
		if err := setRole(ctx, cfg.Database, rest[0], rest[1]); err != nil {
			log.Fatal(err)
		}
		fmt.Fprintf(os.Stdout, "[%s]\n", time.Since(start))
		return
	}

	if *user == "" || *password == "" {
		log.Fatal("-user and -password (or KNIGHT_ADMIN_USER and KNIGHT_ADMIN_PASSWORD) are required")
	}
	target := *addr
	if target == "" {
		target = cfg.GameServer.Addr()
	}
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("dialing %s: %v", target, err)
	}
	defer conn.Close()

	client := gameserver.NewClient(conn)
	if _, err := client.Login(ctx, *user, *password); err != nil {
		log.Fatalf("logging in as %s: %v", *user, err)
	}
	defer func() { _ = client.Logout(ctx) }()

	if err := run(ctx, client, cmd, rest); err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
	fmt.Fprintf(os.Stdout, "[%s]\n", time.Since(start))
}

func setRole(ctx context.Context, dbCfg config.DatabaseConfig, username, role string) error {
	if !postgres.ValidRole(role) {
		return fmt.Errorf("invalid role %q: must be one of player, admin", role)
	}
	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	repo := postgres.NewAccountRepository(pool.DB())
	acct, err := repo.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("looking up account %q: %w", username, err)
	}
	if err := repo.SetRole(ctx, acct.ID, role); err != nil {
		return fmt.Errorf("setting role: %w", err)
	}
	fmt.Fprintf(os.Stdout, "set role for %s (#%d): %s -> %s\n", acct.Username, acct.ID, acct.Role, role)
	return nil
}

func run(ctx context.Context, c *gameserver.Client, cmd string, args []string) error {
	switch cmd {
	case "gift":
		need(args, 2)
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("parsing amount %q: %w", args[1], err)
		}
		p, err := c.GiftGold(ctx, args[0], amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "gifted %d gold to %s, balance %d\n", amount, p.Username, p.Gold)
	case "boost":
		need(args, 1)
		if err := c.ArmBoost(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "boost armed for %s\n", args[0])
	case "purge-feed":
		need(args, 1)
		days, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("parsing days %q: %w", args[0], err)
		}
		r, err := c.PurgeFeed(ctx, days)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "removed %d feed messages\n", r.Count)
	case "purge-inactive":
		need(args, 1)
		days, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("parsing days %q: %w", args[0], err)
		}
		r, err := c.PurgeInactive(ctx, days)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "removed %d accounts %v\n", r.Count, r.Names)
	case "reset-all":
		r, err := c.ResetAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "reset %d players\n", r.Count)
	default:
		return fmt.Errorf("unknown command")
	}
	return nil
}

func need(args []string, n int) {
	if len(args) != n {
		flag.Usage()
		os.Exit(1)
	}
}
