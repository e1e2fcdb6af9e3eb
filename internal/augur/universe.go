package augur

import (
	_ "embed"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

//go:embed abi/universe.json
var universeABIJSON []byte

// universeABI is the interface of the protocol's universe singleton, which
// owns market creation and its deposit pricing.
var universeABI = mustParseABI(universeABIJSON)

// Universe method names used by the activation flow.
const (
	MethodCreateYesNoMarket  = "createYesNoMarket"
	MethodCreateScalarMarket = "createScalarMarket"
	MethodMarketCreationCost = "getOrCacheMarketCreationCost"
	MethodValidityBond       = "getOrCacheValidityBond"
	MethodNoShowBond         = "getOrCacheDesignatedReportNoShowBond"
)

// PackCall ABI-encodes a no-argument universe method call, e.g. the deposit
// pricing getters.
func PackCall(method string) ([]byte, error) {
	input, err := universeABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("augur: pack %s: %w", method, err)
	}
	return input, nil
}

// UnpackUint256 decodes the single uint256 return value of a universe call.
func UnpackUint256(method string, output []byte) (*big.Int, error) {
	values, err := universeABI.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("augur: unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("augur: %s returned %d values, want 1", method, len(values))
	}
	n, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("augur: %s returned %T, want *big.Int", method, values[0])
	}
	return n, nil
}

// YesNoMarketParams carries the arguments of createYesNoMarket.
type YesNoMarketParams struct {
	EndTime            *big.Int
	FeePerEthInWei     *big.Int
	DenominationToken  string
	DesignatedReporter string
	Topic              [32]byte
	Description        string
	ExtraInfo          string
}

// PackCreateYesNoMarket ABI-encodes the yes/no market creation call.
func PackCreateYesNoMarket(p YesNoMarketParams) ([]byte, error) {
	input, err := universeABI.Pack(MethodCreateYesNoMarket,
		p.EndTime,
		p.FeePerEthInWei,
		common.HexToAddress(p.DenominationToken),
		common.HexToAddress(p.DesignatedReporter),
		p.Topic,
		p.Description,
		p.ExtraInfo,
	)
	if err != nil {
		return nil, fmt.Errorf("augur: pack %s: %w", MethodCreateYesNoMarket, err)
	}
	return input, nil
}

// ScalarMarketParams carries the arguments of createScalarMarket. MinPrice
// and MaxPrice are 10^18-scaled.
type ScalarMarketParams struct {
	YesNoMarketParams
	MinPrice *big.Int
	MaxPrice *big.Int
	NumTicks *big.Int
}

// PackCreateScalarMarket ABI-encodes the scalar market creation call.
func PackCreateScalarMarket(p ScalarMarketParams) ([]byte, error) {
	input, err := universeABI.Pack(MethodCreateScalarMarket,
		p.EndTime,
		p.FeePerEthInWei,
		common.HexToAddress(p.DenominationToken),
		p.MinPrice,
		p.MaxPrice,
		p.NumTicks,
		common.HexToAddress(p.DesignatedReporter),
		p.Topic,
		p.Description,
		p.ExtraInfo,
	)
	if err != nil {
		return nil, fmt.Errorf("augur: pack %s: %w", MethodCreateScalarMarket, err)
	}
	return input, nil
}

// EncodeTopic packs a market category into the bytes32 topic argument:
// UTF-8 bytes, right-padded, truncated at 32.
func EncodeTopic(category string) [32]byte {
	var topic [32]byte
	copy(topic[:], category)
	return topic
}
