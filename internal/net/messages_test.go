package net_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"heimdall/internal/asset"
	"heimdall/internal/net"
	"heimdall/internal/registry"
)

func TestParseMessage_CreateOrder(t *testing.T) {
	sent := net.CreateOrderMessage{
		BaseMessage: net.BaseMessage{TypeOf: net.CreateOrder},
		OfferAsset:  "GUZ",
		OfferAmount: 100,
		WantAsset:   "W3B",
		WantAmount:  20,
		Caller:      "alice",
	}

	parsed, err := net.ParseMessage(sent.Serialize())
	assert.NoError(t, err)
	assert.Equal(t, sent, parsed)
}

func TestParseMessage_OrderActions(t *testing.T) {
	approve := net.ApproveOrderMessage{
		BaseMessage: net.BaseMessage{TypeOf: net.ApproveOrder},
		OrderID:     1,
		Caller:      "odin",
	}
	parsed, err := net.ParseMessage(approve.Serialize())
	assert.NoError(t, err)
	assert.Equal(t, approve, parsed)

	cancel := net.CancelOrderMessage{
		BaseMessage: net.BaseMessage{TypeOf: net.CancelOrder},
		OrderID:     7,
		Caller:      "alice",
	}
	parsed, err = net.ParseMessage(cancel.Serialize())
	assert.NoError(t, err)
	assert.Equal(t, cancel, parsed)

	fulfill := net.FulfillOrderMessage{
		BaseMessage: net.BaseMessage{TypeOf: net.FulfillOrder},
		OrderID:     1,
		Budget:      50000,
		Caller:      "bob",
	}
	parsed, err = net.ParseMessage(fulfill.Serialize())
	assert.NoError(t, err)
	assert.Equal(t, fulfill, parsed)

	get := net.GetOrderMessage{
		BaseMessage: net.BaseMessage{TypeOf: net.GetOrder},
		OrderID:     3,
	}
	parsed, err = net.ParseMessage(get.Serialize())
	assert.NoError(t, err)
	assert.Equal(t, get, parsed)
}

func TestParseMessage_Heartbeat(t *testing.T) {
	parsed, err := net.ParseMessage([]byte{0x00, 0x00})
	assert.NoError(t, err)
	assert.Equal(t, net.Heartbeat, parsed.GetType())
}

func TestParseMessage_TooShort(t *testing.T) {
	_, err := net.ParseMessage([]byte{0x00})
	assert.ErrorIs(t, err, net.ErrMessageTooShort)

	// A create header with a caller length pointing past the buffer.
	truncated := net.CreateOrderMessage{
		BaseMessage: net.BaseMessage{TypeOf: net.CreateOrder},
		OfferAsset:  "GUZ",
		OfferAmount: 100,
		WantAsset:   "W3B",
		WantAmount:  20,
		Caller:      "alice",
	}.Serialize()
	_, err = net.ParseMessage(truncated[:len(truncated)-2])
	assert.ErrorIs(t, err, net.ErrMessageTooShort)
}

func TestSerialize_OversizedCallerBounded(t *testing.T) {
	// The caller length prefix is a single byte; longer principals are
	// bounded at serialization so the frame stays self-consistent.
	long := asset.Account(strings.Repeat("x", 300))

	parsed, err := net.ParseMessage(net.CreateOrderMessage{
		OfferAsset:  "GUZ",
		OfferAmount: 100,
		WantAsset:   "W3B",
		WantAmount:  20,
		Caller:      long,
	}.Serialize())
	assert.NoError(t, err)
	assert.Equal(t, long[:255], parsed.(net.CreateOrderMessage).Caller)

	parsed, err = net.ParseMessage(net.ApproveOrderMessage{
		OrderID: 1,
		Caller:  long,
	}.Serialize())
	assert.NoError(t, err)
	assert.Equal(t, long[:255], parsed.(net.ApproveOrderMessage).Caller)

	parsed, err = net.ParseMessage(net.FulfillOrderMessage{
		OrderID: 1,
		Budget:  100,
		Caller:  long,
	}.Serialize())
	assert.NoError(t, err)
	assert.Equal(t, long[:255], parsed.(net.FulfillOrderMessage).Caller)
}

func TestParseMessage_InvalidType(t *testing.T) {
	_, err := net.ParseMessage([]byte{0xff, 0xff})
	assert.ErrorIs(t, err, net.ErrInvalidMessageType)
}

func TestReport_RoundTrip(t *testing.T) {
	sent := net.Report{
		MessageType: net.OrderReport,
		Flags:       0b101, // approved and fulfilled
		OrderID:     1,
		OfferAmount: 100,
		WantAmount:  20,
		MakerLen:    5,
		OfferAsset:  "GUZ",
		WantAsset:   "W3B",
		Maker:       "alice",
	}

	parsed, err := net.ParseReport(sent.Serialize())
	assert.NoError(t, err)
	assert.Equal(t, sent, parsed)
	assert.True(t, parsed.Approved())
	assert.False(t, parsed.Canceled())
	assert.True(t, parsed.Fulfilled())
}

func TestReport_Error_RoundTrip(t *testing.T) {
	sent := net.Report{
		MessageType: net.ErrorReport,
		ErrStrLen:   uint32(len(registry.ErrOrderNotFound.Error())),
		Err:         registry.ErrOrderNotFound.Error(),
	}

	parsed, err := net.ParseReport(sent.Serialize())
	assert.NoError(t, err)
	assert.Equal(t, sent, parsed)
	assert.Equal(t, asset.Asset(""), parsed.OfferAsset)
}

func TestParseReport_TooShort(t *testing.T) {
	_, err := net.ParseReport(make([]byte, net.ReportFixedHeaderLen-1))
	assert.ErrorIs(t, err, net.ErrMessageTooShort)
}
