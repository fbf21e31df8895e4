package net

import (
	"encoding/binary"
	"errors"

	"heimdall/internal/asset"
	"heimdall/internal/registry"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	CreateOrder
	ApproveOrder
	CancelOrder
	FulfillOrder
	GetOrder
)

type ReportMessageType int

const (
	OrderReport ReportMessageType = iota
	ErrorReport
)

type Message interface {
	GetType() MessageType
}

// Message format constants. Asset identifiers travel as 8-byte fixed fields,
// caller principals as length-prefixed strings.
const (
	BaseMessageHeaderLen         = 2
	AssetFieldLen                = 8
	CreateOrderMessageHeaderLen  = 8 + 8 + 8 + 8 + 1
	ApproveOrderMessageHeaderLen = 8 + 1
	CancelOrderMessageHeaderLen  = 8 + 1
	FulfillOrderMessageHeaderLen = 8 + 8 + 1
	GetOrderMessageHeaderLen     = 8
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

// ParseMessage decodes one wire message, header included.
func ParseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, ErrMessageTooShort
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case CreateOrder:
		return parseCreateOrder(msg)
	case ApproveOrder:
		return parseApproveOrder(msg)
	case CancelOrder:
		return parseCancelOrder(msg)
	case FulfillOrder:
		return parseFulfillOrder(msg)
	case GetOrder:
		return parseGetOrder(msg)
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

type CreateOrderMessage struct {
	BaseMessage
	OfferAsset  asset.Asset   // 8 bytes
	OfferAmount uint64        // 8 bytes
	WantAsset   asset.Asset   // 8 bytes
	WantAmount  uint64        // 8 bytes
	Caller      asset.Account // 1 byte length + n bytes
}

func (m CreateOrderMessage) Serialize() []byte {
	caller := boundPrincipal(m.Caller)
	buf := make([]byte, BaseMessageHeaderLen+CreateOrderMessageHeaderLen+len(caller))
	binary.BigEndian.PutUint16(buf[0:2], uint16(CreateOrder))
	packAsset(buf[2:10], m.OfferAsset)
	binary.BigEndian.PutUint64(buf[10:18], m.OfferAmount)
	packAsset(buf[18:26], m.WantAsset)
	binary.BigEndian.PutUint64(buf[26:34], m.WantAmount)
	buf[34] = uint8(len(caller))
	copy(buf[35:], caller)
	return buf
}

func parseCreateOrder(msg []byte) (CreateOrderMessage, error) {
	if len(msg) < CreateOrderMessageHeaderLen {
		return CreateOrderMessage{}, ErrMessageTooShort
	}
	m := CreateOrderMessage{BaseMessage: BaseMessage{TypeOf: CreateOrder}}
	m.OfferAsset = unpackAsset(msg[0:8])
	m.OfferAmount = binary.BigEndian.Uint64(msg[8:16])
	m.WantAsset = unpackAsset(msg[16:24])
	m.WantAmount = binary.BigEndian.Uint64(msg[24:32])

	callerLen := int(msg[32])
	if len(msg) < CreateOrderMessageHeaderLen+callerLen {
		return CreateOrderMessage{}, ErrMessageTooShort
	}
	m.Caller = asset.Account(msg[33 : 33+callerLen])
	return m, nil
}

type ApproveOrderMessage struct {
	BaseMessage
	OrderID uint64        // 8 bytes
	Caller  asset.Account // 1 byte length + n bytes
}

func (m ApproveOrderMessage) Serialize() []byte {
	return serializeOrderAction(ApproveOrder, m.OrderID, m.Caller)
}

func parseApproveOrder(msg []byte) (ApproveOrderMessage, error) {
	id, caller, err := parseOrderAction(msg)
	if err != nil {
		return ApproveOrderMessage{}, err
	}
	return ApproveOrderMessage{
		BaseMessage: BaseMessage{TypeOf: ApproveOrder},
		OrderID:     id,
		Caller:      caller,
	}, nil
}

type CancelOrderMessage struct {
	BaseMessage
	OrderID uint64        // 8 bytes
	Caller  asset.Account // 1 byte length + n bytes
}

func (m CancelOrderMessage) Serialize() []byte {
	return serializeOrderAction(CancelOrder, m.OrderID, m.Caller)
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	id, caller, err := parseOrderAction(msg)
	if err != nil {
		return CancelOrderMessage{}, err
	}
	return CancelOrderMessage{
		BaseMessage: BaseMessage{TypeOf: CancelOrder},
		OrderID:     id,
		Caller:      caller,
	}, nil
}

type FulfillOrderMessage struct {
	BaseMessage
	OrderID uint64        // 8 bytes
	Budget  uint64        // 8 bytes, 0 = unmetered
	Caller  asset.Account // 1 byte length + n bytes
}

func (m FulfillOrderMessage) Serialize() []byte {
	caller := boundPrincipal(m.Caller)
	buf := make([]byte, BaseMessageHeaderLen+FulfillOrderMessageHeaderLen+len(caller))
	binary.BigEndian.PutUint16(buf[0:2], uint16(FulfillOrder))
	binary.BigEndian.PutUint64(buf[2:10], m.OrderID)
	binary.BigEndian.PutUint64(buf[10:18], m.Budget)
	buf[18] = uint8(len(caller))
	copy(buf[19:], caller)
	return buf
}

func parseFulfillOrder(msg []byte) (FulfillOrderMessage, error) {
	if len(msg) < FulfillOrderMessageHeaderLen {
		return FulfillOrderMessage{}, ErrMessageTooShort
	}
	m := FulfillOrderMessage{BaseMessage: BaseMessage{TypeOf: FulfillOrder}}
	m.OrderID = binary.BigEndian.Uint64(msg[0:8])
	m.Budget = binary.BigEndian.Uint64(msg[8:16])

	callerLen := int(msg[16])
	if len(msg) < FulfillOrderMessageHeaderLen+callerLen {
		return FulfillOrderMessage{}, ErrMessageTooShort
	}
	m.Caller = asset.Account(msg[17 : 17+callerLen])
	return m, nil
}

type GetOrderMessage struct {
	BaseMessage
	OrderID uint64 // 8 bytes
}

func (m GetOrderMessage) Serialize() []byte {
	buf := make([]byte, BaseMessageHeaderLen+GetOrderMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(GetOrder))
	binary.BigEndian.PutUint64(buf[2:10], m.OrderID)
	return buf
}

func parseGetOrder(msg []byte) (GetOrderMessage, error) {
	if len(msg) < GetOrderMessageHeaderLen {
		return GetOrderMessage{}, ErrMessageTooShort
	}
	return GetOrderMessage{
		BaseMessage: BaseMessage{TypeOf: GetOrder},
		OrderID:     binary.BigEndian.Uint64(msg[0:8]),
	}, nil
}

func serializeOrderAction(typeOf MessageType, orderID uint64, caller asset.Account) []byte {
	bounded := boundPrincipal(caller)
	buf := make([]byte, BaseMessageHeaderLen+ApproveOrderMessageHeaderLen+len(bounded))
	binary.BigEndian.PutUint16(buf[0:2], uint16(typeOf))
	binary.BigEndian.PutUint64(buf[2:10], orderID)
	buf[10] = uint8(len(bounded))
	copy(buf[11:], bounded)
	return buf
}

func parseOrderAction(msg []byte) (uint64, asset.Account, error) {
	if len(msg) < ApproveOrderMessageHeaderLen {
		return 0, "", ErrMessageTooShort
	}
	id := binary.BigEndian.Uint64(msg[0:8])
	callerLen := int(msg[8])
	if len(msg) < ApproveOrderMessageHeaderLen+callerLen {
		return 0, "", ErrMessageTooShort
	}
	return id, asset.Account(msg[9 : 9+callerLen]), nil
}

// Order lifecycle flag bits in Report.Flags.
const (
	flagApproved  = 1 << 0
	flagCanceled  = 1 << 1
	flagFulfilled = 1 << 2
)

// Report is the server's reply to any request: either an order snapshot or
// an error string.
type Report struct {
	MessageType ReportMessageType // 1 byte
	Flags       uint8             // 1 byte: approved/canceled/fulfilled bits
	OrderID     uint64            // 8 bytes
	OfferAmount uint64            // 8 bytes
	WantAmount  uint64            // 8 bytes
	MakerLen    uint8             // 1 byte
	ErrStrLen   uint32            // 4 bytes
	OfferAsset  asset.Asset       // 8 bytes
	WantAsset   asset.Asset       // 8 bytes
	Maker       asset.Account     // n bytes
	Err         string            // n bytes
}

const ReportFixedHeaderLen = 1 + 1 + 8 + 8 + 8 + 1 + 4 + 8 + 8

func (r Report) Approved() bool  { return r.Flags&flagApproved != 0 }
func (r Report) Canceled() bool  { return r.Flags&flagCanceled != 0 }
func (r Report) Fulfilled() bool { return r.Flags&flagFulfilled != 0 }

// Serialize converts the report to be sent on the wire.
func (r Report) Serialize() []byte {
	buf := make([]byte, ReportFixedHeaderLen+len(r.Maker)+len(r.Err))
	buf[0] = byte(r.MessageType)
	buf[1] = r.Flags
	binary.BigEndian.PutUint64(buf[2:10], r.OrderID)
	binary.BigEndian.PutUint64(buf[10:18], r.OfferAmount)
	binary.BigEndian.PutUint64(buf[18:26], r.WantAmount)
	buf[26] = r.MakerLen
	binary.BigEndian.PutUint32(buf[27:31], r.ErrStrLen)
	packAsset(buf[31:39], r.OfferAsset)
	packAsset(buf[39:47], r.WantAsset)

	offset := ReportFixedHeaderLen
	copy(buf[offset:], r.Maker)
	offset += len(r.Maker)
	copy(buf[offset:], r.Err)
	return buf
}

// ParseReport decodes a report off the wire.
func ParseReport(msg []byte) (Report, error) {
	if len(msg) < ReportFixedHeaderLen {
		return Report{}, ErrMessageTooShort
	}
	r := Report{
		MessageType: ReportMessageType(msg[0]),
		Flags:       msg[1],
		OrderID:     binary.BigEndian.Uint64(msg[2:10]),
		OfferAmount: binary.BigEndian.Uint64(msg[10:18]),
		WantAmount:  binary.BigEndian.Uint64(msg[18:26]),
		MakerLen:    msg[26],
		ErrStrLen:   binary.BigEndian.Uint32(msg[27:31]),
		OfferAsset:  unpackAsset(msg[31:39]),
		WantAsset:   unpackAsset(msg[39:47]),
	}

	totalLen := ReportFixedHeaderLen + int(r.MakerLen) + int(r.ErrStrLen)
	if len(msg) < totalLen {
		return Report{}, ErrMessageTooShort
	}
	offset := ReportFixedHeaderLen
	r.Maker = asset.Account(msg[offset : offset+int(r.MakerLen)])
	offset += int(r.MakerLen)
	r.Err = string(msg[offset : offset+int(r.ErrStrLen)])
	return r, nil
}

// newOrderReport snapshots an order into a wire report.
func newOrderReport(order registry.Order) Report {
	var flags uint8
	if order.Approved {
		flags |= flagApproved
	}
	if order.Canceled {
		flags |= flagCanceled
	}
	if order.Fulfilled {
		flags |= flagFulfilled
	}
	maker := boundPrincipal(order.Maker)
	return Report{
		MessageType: OrderReport,
		Flags:       flags,
		OrderID:     order.ID,
		OfferAmount: order.OfferAmount,
		WantAmount:  order.WantAmount,
		MakerLen:    uint8(len(maker)),
		OfferAsset:  order.OfferAsset,
		WantAsset:   order.WantAsset,
		Maker:       maker,
	}
}

func newErrorReport(err error) Report {
	errStr := err.Error()
	return Report{
		MessageType: ErrorReport,
		ErrStrLen:   uint32(len(errStr)),
		Err:         errStr,
	}
}

// boundPrincipal caps a principal to what the wire's one-byte length prefix
// can carry, keeping serialized frames self-consistent.
func boundPrincipal(principal asset.Account) asset.Account {
	if len(principal) > 255 {
		return principal[:255]
	}
	return principal
}

// packAsset writes a into dst zero-padded, truncating past AssetFieldLen.
func packAsset(dst []byte, a asset.Asset) {
	copy(dst, a)
}

func unpackAsset(src []byte) asset.Asset {
	end := len(src)
	for end > 0 && src[end-1] == 0 {
		end--
	}
	return asset.Asset(src[:end])
}
