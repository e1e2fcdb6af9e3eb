package augur

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilco/market-creation/internal/domain"
)

// marketCreatedLog packs a MarketCreated log the way the protocol emits it.
func marketCreatedLog(t *testing.T, market common.Address) domain.Log {
	t.Helper()

	event, ok := augurABI.Events[MarketCreatedEvent]
	require.True(t, ok)

	data, err := abi.Arguments(event.Inputs.NonIndexed()).Pack(
		"Will it rain tomorrow?", // description
		"{}",                     // extraInfo
		market,
		[][32]byte{},           // outcomes
		big.NewInt(1e16),       // marketCreationFee
		big.NewInt(0),          // minPrice
		big.NewInt(1e18),       // maxPrice
		uint8(0),               // marketType
	)
	require.NoError(t, err)

	indexed, err := abi.MakeTopics([]any{
		common.HexToHash("0x01"), // topic
		common.HexToAddress("0x1111111111111111111111111111111111111111"), // universe
		common.HexToAddress("0x2222222222222222222222222222222222222222"), // marketCreator
	})
	require.NoError(t, err)

	topics := []string{event.ID.Hex()}
	for _, h := range indexed[0] {
		topics = append(topics, h.Hex())
	}
	return domain.Log{Topics: topics, Data: data}
}

func TestDecodeLogsMarketCreated(t *testing.T) {
	market := common.HexToAddress("0xAbcDef0123456789AbcDef0123456789aBCdef01")
	events := DecodeLogs([]domain.Log{marketCreatedLog(t, market)})

	require.Len(t, events, 1)
	assert.Equal(t, MarketCreatedEvent, events[0].Name)
	assert.Equal(t, market, events[0].Values["market"])
	assert.Equal(t, "Will it rain tomorrow?", events[0].Values["description"])

	addr, ok := FindMarketCreated(events)
	require.True(t, ok)
	assert.Equal(t, market.Hex(), addr)
}

func TestDecodeLogsDropsForeignEntries(t *testing.T) {
	market := common.HexToAddress("0xAbcDef0123456789AbcDef0123456789aBCdef01")
	logs := []domain.Log{
		{}, // no topics
		{Topics: []string{"0xnothex"}},
		{Topics: []string{common.HexToHash("0xdead").Hex()}}, // unknown event id
		marketCreatedLog(t, market),
		{Topics: []string{augurABI.Events[MarketCreatedEvent].ID.Hex()}}, // truncated data
	}

	events := DecodeLogs(logs)
	require.Len(t, events, 1)
	assert.Equal(t, MarketCreatedEvent, events[0].Name)
}

func TestFindMarketCreatedAbsent(t *testing.T) {
	_, ok := FindMarketCreated(nil)
	assert.False(t, ok)

	_, ok = FindMarketCreated([]DecodedEvent{{Name: "CompleteSetsPurchased"}})
	assert.False(t, ok)
}

func TestEncodeTopic(t *testing.T) {
	topic := EncodeTopic("politics")
	assert.Len(t, topic, 32)
	assert.Equal(t, byte('p'), topic[0])
	assert.Equal(t, byte(0), topic[31])
}
