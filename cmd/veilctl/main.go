// Command veilctl is the author-side client for the market creation
// service: it signs and submits drafts, prices the creation deposit, drives
// on-chain activation, and shows the local transaction log.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veilco/market-creation/internal/cache/redis"
	"github.com/veilco/market-creation/internal/chain"
	"github.com/veilco/market-creation/internal/client"
	"github.com/veilco/market-creation/internal/config"
	"github.com/veilco/market-creation/internal/crypto"
	"github.com/veilco/market-creation/internal/domain"
	"github.com/veilco/market-creation/internal/service"
)

const usage = `usage: veilctl [-config config.toml] <command> [flags]

commands:
  create       -file market.json          create a signed draft
  update       -uid UID -file market.json rewrite a draft
  activate     -uid UID                   create the market on-chain and flag the draft
  get          -uid UID                   show one market
  list         -author 0x...              list an author's markets
  categories                              show the category catalogue
  cost                                    quote the market creation deposit
  transactions                            show the local transaction log
  encrypt-key  -out key.json              encrypt a raw private key into a keystore file
`

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli := &ctl{
		cfg:    cfg,
		api:    client.NewAPI(cfg.Client.APIURL, cfg.Client.APIKey),
		logger: logger,
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if err := cli.run(ctx, cmd, args); err != nil {
		fatal("%s: %v", cmd, err)
	}
}

type ctl struct {
	cfg    *config.Config
	api    *client.API
	logger *slog.Logger
}

func (c *ctl) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "create":
		return c.create(ctx, args)
	case "update":
		return c.update(ctx, args)
	case "activate":
		return c.activate(ctx, args)
	case "get":
		return c.get(ctx, args)
	case "list":
		return c.list(ctx, args)
	case "categories":
		return c.categories(ctx)
	case "cost":
		return c.cost(ctx)
	case "transactions":
		return c.transactions()
	case "encrypt-key":
		return c.encryptKey(args)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *ctl) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	file := fs.String("file", "", "path to market JSON")
	fs.Parse(args)

	in, err := readMarketInput(*file)
	if err != nil {
		return err
	}
	sig, err := c.sign(in.Description)
	if err != nil {
		return err
	}

	market, err := c.api.CreateMarket(ctx, in, sig)
	if err != nil {
		return err
	}
	return printJSON(market)
}

func (c *ctl) update(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	uid := fs.String("uid", "", "market uid")
	file := fs.String("file", "", "path to market JSON")
	fs.Parse(args)

	existing, err := c.api.GetMarket(ctx, *uid)
	if err != nil {
		return err
	}
	in, err := readMarketInput(*file)
	if err != nil {
		return err
	}
	// The signature authorizes against the record as stored.
	sig, err := c.sign(existing.Description)
	if err != nil {
		return err
	}

	market, err := c.api.UpdateMarket(ctx, *uid, in, sig)
	if err != nil {
		return err
	}
	return printJSON(market)
}

func (c *ctl) activate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("activate", flag.ExitOnError)
	uid := fs.String("uid", "", "market uid")
	fs.Parse(args)

	market, err := c.api.GetMarket(ctx, *uid)
	if err != nil {
		return err
	}

	emitter, cleanup, err := c.buildEmitter(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	cost, err := emitter.CreationCost(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("creation cost: %s wei (validity bond %s wei, no-show bond %s attorep)\n",
		cost.MarketCreationCost, cost.ValidityBond, cost.NoShowBond)

	act := emitter.ActivateDraftMarket(ctx, market)
	go func() {
		for s := range act.Signals() {
			fmt.Printf("activation %s: %s\n", market.UID, s)
		}
	}()
	if err := act.Wait(ctx); err != nil {
		return err
	}
	fmt.Printf("market %s is activating; the service will confirm it on-chain\n", market.UID)
	return nil
}

func (c *ctl) get(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	uid := fs.String("uid", "", "market uid")
	fs.Parse(args)

	market, err := c.api.GetMarket(ctx, *uid)
	if err != nil {
		return err
	}
	return printJSON(market)
}

func (c *ctl) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	author := fs.String("author", "", "author address")
	fs.Parse(args)

	markets, err := c.api.ListMarkets(ctx, *author)
	if err != nil {
		return err
	}
	return printJSON(markets)
}

func (c *ctl) categories(ctx context.Context) error {
	cats, err := c.api.Categories(ctx)
	if err != nil {
		return err
	}
	return printJSON(cats)
}

func (c *ctl) cost(ctx context.Context) error {
	emitter, cleanup, err := c.buildEmitter(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	cost, err := emitter.CreationCost(ctx)
	if err != nil {
		return err
	}
	return printJSON(cost)
}

func (c *ctl) transactions() error {
	log, cleanup, err := c.buildTransactionLog(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	txs, err := log.Load()
	if err != nil {
		return err
	}
	return printJSON(txs)
}

func (c *ctl) encryptKey(args []string) error {
	fs := flag.NewFlagSet("encrypt-key", flag.ExitOnError)
	out := fs.String("out", "keystore.json", "output keystore path")
	fs.Parse(args)

	if c.cfg.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key (or VEIL_WALLET_PRIVATE_KEY) must be set")
	}
	if c.cfg.Wallet.KeyPassword == "" {
		return fmt.Errorf("wallet.key_password (or VEIL_WALLET_KEY_PASSWORD) must be set")
	}

	blob, err := crypto.EncryptKey(c.cfg.Wallet.PrivateKey, c.cfg.Wallet.KeyPassword)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, blob, 0o600); err != nil {
		return err
	}
	fmt.Printf("keystore written to %s\n", *out)
	return nil
}

// sign authorizes a mutation of the market content with the configured key.
func (c *ctl) sign(description string) (domain.Signature, error) {
	key, err := crypto.LoadSigningKey(crypto.KeySource{
		RawPrivateKey: c.cfg.Wallet.PrivateKey,
		KeystorePath:  c.cfg.Wallet.EncryptedKeyPath,
		Password:      c.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return domain.Signature{}, err
	}
	return crypto.SignMarketMessage(&domain.Market{Description: description}, key, time.Now())
}

// buildEmitter wires the chain client, tracker, and signing key together.
func (c *ctl) buildEmitter(ctx context.Context) (*client.Emitter, func(), error) {
	key, err := crypto.LoadSigningKey(crypto.KeySource{
		RawPrivateKey: c.cfg.Wallet.PrivateKey,
		KeystorePath:  c.cfg.Wallet.EncryptedKeyPath,
		Password:      c.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, nil, err
	}

	chainClient, err := chain.Dial(ctx, c.cfg.Chain.RPCURL)
	if err != nil {
		return nil, nil, err
	}
	chainClient.EnableSending(key)

	log, logCleanup, err := c.buildTransactionLog(ctx)
	if err != nil {
		chainClient.Close()
		return nil, nil, err
	}
	tracker, err := client.NewTracker(ctx, log, chainClient, c.logger)
	if err != nil {
		logCleanup()
		chainClient.Close()
		return nil, nil, err
	}

	emitter := client.NewEmitter(
		client.EmitterConfig{
			Universe:          c.cfg.Augur.Universe,
			DenominationToken: c.cfg.Augur.DenominationToken,
		},
		chainClient,
		c.api,
		tracker,
		key,
		c.logger,
	)
	cleanup := func() {
		logCleanup()
		chainClient.Close()
	}
	return emitter, cleanup, nil
}

// buildTransactionLog selects the file backend when a path is configured,
// otherwise the Redis backend keyed by the author address.
func (c *ctl) buildTransactionLog(ctx context.Context) (domain.TransactionLog, func(), error) {
	if c.cfg.Client.TransactionsPath != "" {
		return client.NewFileTransactionLog(c.cfg.Client.TransactionsPath), func() {}, nil
	}

	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       c.cfg.Redis.Addr,
		Password:   c.cfg.Redis.Password,
		DB:         c.cfg.Redis.DB,
		PoolSize:   c.cfg.Redis.PoolSize,
		MaxRetries: c.cfg.Redis.MaxRetries,
		TLSEnabled: c.cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return nil, nil, err
	}
	return redis.NewTransactionLog(redisClient, "veilctl"),
		func() { _ = redisClient.Close() }, nil
}

func readMarketInput(path string) (service.MarketInput, error) {
	if path == "" {
		return service.MarketInput{}, fmt.Errorf("-file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return service.MarketInput{}, err
	}
	var in service.MarketInput
	if err := json.Unmarshal(data, &in); err != nil {
		return service.MarketInput{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return in, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "veilctl: "+format+"\n", args...)
	os.Exit(1)
}
