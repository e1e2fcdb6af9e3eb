package client

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/veilco/market-creation/internal/augur"
	"github.com/veilco/market-creation/internal/crypto"
	"github.com/veilco/market-creation/internal/domain"
)

// Signal marks a milestone in an activation's progress.
type Signal string

const (
	// SignalSigned fires once the creation transaction has been signed and
	// broadcast.
	SignalSigned Signal = "signed"
	// SignalSuccess fires once the draft has been flagged activating on
	// the off-chain service.
	SignalSuccess Signal = "success"
)

// Activation is the in-flight result of ActivateDraftMarket. Milestones
// arrive on Signals; the terminal outcome is delivered exactly once
// through Wait.
type Activation struct {
	MarketUID string

	signals chan Signal
	done    chan error
}

func newActivation(uid string) *Activation {
	return &Activation{
		MarketUID: uid,
		// Buffered so the flow never blocks on an inattentive caller.
		signals: make(chan Signal, 2),
		done:    make(chan error, 1),
	}
}

// Signals yields progress milestones in order.
func (a *Activation) Signals() <-chan Signal {
	return a.signals
}

// Wait blocks until the activation settles or ctx expires.
func (a *Activation) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-a.done:
		return err
	}
}

func (a *Activation) emit(s Signal) {
	select {
	case a.signals <- s:
	default:
	}
}

func (a *Activation) finish(err error) {
	a.done <- err
	close(a.signals)
}

// chainBackend is what the emitter needs from the chain client: read-only
// calls for deposit pricing and signed sends for market creation.
type chainBackend interface {
	domain.ContractCaller
	domain.TransactionSender
}

// EmitterConfig carries the protocol addresses the emitter talks to.
type EmitterConfig struct {
	// Universe is the protocol's universe singleton that owns market
	// creation.
	Universe string
	// DenominationToken is the ERC-20 the market trades in.
	DenominationToken string
}

// Emitter drives a draft market onto the chain: it prices the creation
// deposit, packs and sends the type-specific creation call, registers the
// hash with the tracker, and flags the draft activating on the service.
type Emitter struct {
	cfg     EmitterConfig
	chain   chainBackend
	api     *API
	tracker *Tracker
	key     *ecdsa.PrivateKey
	now     func() time.Time
	logger  *slog.Logger
}

func NewEmitter(cfg EmitterConfig, chain chainBackend, api *API, tracker *Tracker, key *ecdsa.PrivateKey, logger *slog.Logger) *Emitter {
	return &Emitter{
		cfg:     cfg,
		chain:   chain,
		api:     api,
		tracker: tracker,
		key:     key,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "emitter")),
	}
}

// CreationCost is the deposit quote for creating one market.
type CreationCost struct {
	// MarketCreationCost is the total ETH (wei) attached to the creation
	// transaction.
	MarketCreationCost *big.Int `json:"marketCreationCost"`
	// ValidityBond is the ETH (wei) share refunded on valid resolution.
	ValidityBond *big.Int `json:"validityBond"`
	// NoShowBond is the REP (attorep) staked on the designated reporter.
	NoShowBond *big.Int `json:"noShowBond"`
}

// CreationCost quotes the current deposits so a caller can show the user
// what activating will cost before anything is signed.
func (e *Emitter) CreationCost(ctx context.Context) (CreationCost, error) {
	cost, err := e.callUint256(ctx, augur.MethodMarketCreationCost)
	if err != nil {
		return CreationCost{}, err
	}
	validity, err := e.callUint256(ctx, augur.MethodValidityBond)
	if err != nil {
		return CreationCost{}, err
	}
	noShow, err := e.callUint256(ctx, augur.MethodNoShowBond)
	if err != nil {
		return CreationCost{}, err
	}
	return CreationCost{
		MarketCreationCost: cost,
		ValidityBond:       validity,
		NoShowBond:         noShow,
	}, nil
}

func (e *Emitter) callUint256(ctx context.Context, method string) (*big.Int, error) {
	input, err := augur.PackCall(method)
	if err != nil {
		return nil, err
	}
	output, err := e.chain.CallContract(ctx, e.cfg.Universe, input)
	if err != nil {
		return nil, fmt.Errorf("client: call %s: %w", method, err)
	}
	return augur.UnpackUint256(method, output)
}

// ActivateDraftMarket creates market on-chain and flags the draft
// activating. The returned Activation settles asynchronously; any failure
// before the transaction is sent leaves both chain and service untouched.
func (e *Emitter) ActivateDraftMarket(ctx context.Context, market domain.Market) *Activation {
	act := newActivation(market.UID)
	go func() {
		act.finish(e.run(ctx, act, market))
	}()
	return act
}

func (e *Emitter) run(ctx context.Context, act *Activation, market domain.Market) error {
	cost, err := e.callUint256(ctx, augur.MethodMarketCreationCost)
	if err != nil {
		return err
	}

	input, err := e.packCreation(market)
	if err != nil {
		return err
	}

	txHash, err := e.chain.SendTransaction(ctx, e.cfg.Universe, input, cost.String())
	if err != nil {
		return fmt.Errorf("client: send creation transaction: %w", err)
	}

	e.tracker.Add(ctx, domain.TxTypeActivateMarket, txHash, map[string]any{
		"marketUid":   market.UID,
		"description": market.Description,
	})
	act.emit(SignalSigned)

	e.logger.InfoContext(ctx, "creation transaction sent",
		slog.String("uid", market.UID),
		slog.String("tx_hash", txHash),
	)

	sig, err := crypto.SignMarketMessage(&market, e.key, e.now())
	if err != nil {
		return err
	}
	if _, err := e.api.ActivateMarket(ctx, market.UID, txHash, sig); err != nil {
		return err
	}

	act.emit(SignalSuccess)
	return nil
}

// packCreation ABI-encodes the type-specific market creation call.
func (e *Emitter) packCreation(market domain.Market) ([]byte, error) {
	feePerEth, err := feeRateToWei(market.MarketCreatorFeeRate)
	if err != nil {
		return nil, err
	}
	extraInfo, err := encodeExtraInfo(market)
	if err != nil {
		return nil, err
	}

	base := augur.YesNoMarketParams{
		EndTime:            big.NewInt(market.EndTime.Unix()),
		FeePerEthInWei:     feePerEth,
		DenominationToken:  e.cfg.DenominationToken,
		DesignatedReporter: market.Author,
		Topic:              augur.EncodeTopic(market.Category),
		Description:        market.Description,
		ExtraInfo:          extraInfo,
	}

	if !market.IsScalar() {
		return augur.PackCreateYesNoMarket(base)
	}

	if market.MinPrice == nil || market.MaxPrice == nil || market.NumTicks == nil {
		return nil, fmt.Errorf("client: scalar market %s is missing price bounds: %w", market.UID, domain.ErrValidation)
	}
	minPrice, err := scaleToWei(*market.MinPrice)
	if err != nil {
		return nil, err
	}
	maxPrice, err := scaleToWei(*market.MaxPrice)
	if err != nil {
		return nil, err
	}
	numTicks, ok := new(big.Int).SetString(*market.NumTicks, 10)
	if !ok {
		return nil, fmt.Errorf("client: numTicks %q is not an integer: %w", *market.NumTicks, domain.ErrValidation)
	}

	return augur.PackCreateScalarMarket(augur.ScalarMarketParams{
		YesNoMarketParams: base,
		MinPrice:          minPrice,
		MaxPrice:          maxPrice,
		NumTicks:          numTicks,
	})
}

// extraInfo is the auxiliary market content stored on-chain as JSON.
type extraInfo struct {
	LongDescription  string   `json:"longDescription,omitempty"`
	ResolutionSource string   `json:"resolutionSource,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

func encodeExtraInfo(market domain.Market) (string, error) {
	info := extraInfo{
		LongDescription: market.Details,
		Tags:            market.Tags,
	}
	if market.ResolutionSource != nil {
		info.ResolutionSource = *market.ResolutionSource
	}
	data, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("client: encode extra info: %w", err)
	}
	return string(data), nil
}

var weiScale = apd.New(1, 18)

// scaleToWei converts a decimal string to its 10^18-scaled integer form.
func scaleToWei(value string) (*big.Int, error) {
	d, _, err := apd.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("client: decimal %q: %w", value, domain.ErrValidation)
	}
	scaled := new(apd.Decimal)
	ctx := apd.BaseContext.WithPrecision(78)
	if _, err := ctx.Mul(scaled, d, weiScale); err != nil {
		return nil, fmt.Errorf("client: scale %q: %w", value, err)
	}
	reduced := new(apd.Decimal)
	if _, _, err := ctx.Reduce(reduced, scaled); err != nil {
		return nil, fmt.Errorf("client: scale %q: %w", value, err)
	}
	n, ok := new(big.Int).SetString(reduced.Text('f'), 10)
	if !ok {
		return nil, fmt.Errorf("client: %q does not scale to an integer: %w", value, domain.ErrValidation)
	}
	return n, nil
}

// feeRateToWei converts a percent fee rate to the per-ETH wei fee the
// creation call expects: rate/100 * 10^18.
func feeRateToWei(rate string) (*big.Int, error) {
	d, _, err := apd.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("client: fee rate %q: %w", rate, domain.ErrValidation)
	}
	ctx := apd.BaseContext.WithPrecision(78)
	scaled := new(apd.Decimal)
	if _, err := ctx.Mul(scaled, d, apd.New(1, 16)); err != nil {
		return nil, fmt.Errorf("client: fee rate %q: %w", rate, err)
	}
	reduced := new(apd.Decimal)
	if _, _, err := ctx.Reduce(reduced, scaled); err != nil {
		return nil, fmt.Errorf("client: fee rate %q: %w", rate, err)
	}
	n, ok := new(big.Int).SetString(reduced.Text('f'), 10)
	if !ok {
		return nil, fmt.Errorf("client: fee rate %q does not scale to an integer: %w", rate, domain.ErrValidation)
	}
	return n, nil
}
