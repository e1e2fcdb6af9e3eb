// Package augur knows the Augur protocol's contract interface: decoding
// event logs out of transaction receipts and packing the market-creation
// calls against the universe singleton.
package augur

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/veilco/market-creation/internal/domain"
)

//go:embed abi/augur.json
var augurABIJSON []byte

// augurABI is the parsed protocol event interface. Parsing a bad embedded
// ABI is a programming error, hence the panic at init.
var augurABI = mustParseABI(augurABIJSON)

// MarketCreatedEvent is the name of the event signalling that the protocol
// deployed a new market contract.
const MarketCreatedEvent = "MarketCreated"

// DecodedEvent is one protocol log parsed against the contract interface.
type DecodedEvent struct {
	Name   string
	Values map[string]any
	Log    domain.Log
}

// DecodeLogs parses raw receipt logs against every known protocol event.
// Entries that match no known event or fail to unpack are silently dropped:
// receipts routinely carry logs from unrelated contracts. Successfully
// decoded events are returned in input order.
func DecodeLogs(logs []domain.Log) []DecodedEvent {
	var out []DecodedEvent
	for _, lg := range logs {
		if ev, ok := decodeLog(lg); ok {
			out = append(out, ev)
		}
	}
	return out
}

func decodeLog(lg domain.Log) (DecodedEvent, bool) {
	if len(lg.Topics) == 0 {
		return DecodedEvent{}, false
	}

	topics := make([]common.Hash, 0, len(lg.Topics))
	for _, t := range lg.Topics {
		raw, err := hexToHash(t)
		if err != nil {
			return DecodedEvent{}, false
		}
		topics = append(topics, raw)
	}

	event, err := augurABI.EventByID(topics[0])
	if err != nil {
		return DecodedEvent{}, false
	}

	values := make(map[string]any)
	if err := abi.Arguments(event.Inputs.NonIndexed()).UnpackIntoMap(values, lg.Data); err != nil {
		return DecodedEvent{}, false
	}

	var indexed abi.Arguments
	for _, in := range event.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if err := abi.ParseTopicsIntoMap(values, indexed, topics[1:]); err != nil {
		return DecodedEvent{}, false
	}

	return DecodedEvent{Name: event.Name, Values: values, Log: lg}, true
}

// FindMarketCreated scans decoded events for the market-creation event and
// returns the deployed market's address.
func FindMarketCreated(events []DecodedEvent) (string, bool) {
	for _, ev := range events {
		if ev.Name != MarketCreatedEvent {
			continue
		}
		addr, ok := ev.Values["market"].(common.Address)
		if !ok {
			continue
		}
		return addr.Hex(), true
	}
	return "", false
}

func hexToHash(s string) (common.Hash, error) {
	raw, err := hexDecode(s)
	if err != nil {
		return common.Hash{}, err
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("augur: topic is %d bytes, want %d", len(raw), common.HashLength)
	}
	return common.BytesToHash(raw), nil
}

func hexDecode(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	raw := common.FromHex("0x" + s)
	// common.FromHex swallows bad input; re-check length parity instead.
	if len(raw)*2 != len(s) {
		return nil, fmt.Errorf("augur: %q is not valid hex", s)
	}
	return raw, nil
}

func mustParseABI(blob []byte) abi.ABI {
	parsed, err := abi.JSON(bytes.NewReader(blob))
	if err != nil {
		panic(fmt.Sprintf("augur: parse embedded ABI: %v", err))
	}
	return parsed
}
