package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	gonet "net"
	"os"
	"strings"

	"heimdall/internal/asset"
	heimdallNet "heimdall/internal/net"
)

func main() {
	// CLI Parameter Parsing
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	caller := flag.String("caller", "", "Calling principal (compulsory for state changes)")
	action := flag.String("action", "get", "Action to perform: ['create', 'approve', 'cancel', 'fulfill', 'get']")

	// Create Parameters
	offerAsset := flag.String("offer-asset", "GUZ", "Asset offered (max 8 chars)")
	offerAmount := flag.Uint64("offer-amount", 100, "Quantity of the offered asset")
	wantAsset := flag.String("want-asset", "W3B", "Asset wanted (max 8 chars)")
	wantAmount := flag.Uint64("want-amount", 20, "Quantity of the wanted asset")

	// Order Parameters
	orderID := flag.Uint64("order", 0, "Order id for approve/cancel/fulfill/get")
	budget := flag.Uint64("budget", 0, "Settlement budget for fulfill (0 = unmetered)")

	flag.Parse()

	message, err := buildMessage(*action, *caller, *offerAsset, *offerAmount, *wantAsset, *wantAmount, *orderID, *budget)
	if err != nil {
		fmt.Println("Error:", err)
		flag.Usage()
		os.Exit(1)
	}

	// Connect to Server
	conn, err := gonet.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()

	if _, err := conn.Write(message.Serialize()); err != nil {
		log.Fatalf("Failed to send request: %v", err)
	}

	report, err := readReport(conn)
	if err != nil {
		log.Fatalf("Failed to read report: %v", err)
	}
	printReport(report)
}

type wireMessage interface {
	Serialize() []byte
}

// buildMessage maps the CLI action onto a wire message.
func buildMessage(action, caller, offerAsset string, offerAmount uint64, wantAsset string, wantAmount, orderID, budget uint64) (wireMessage, error) {
	principal := asset.Account(caller)
	switch strings.ToLower(action) {
	case "create":
		if caller == "" {
			return nil, fmt.Errorf("-caller is compulsory for create")
		}
		return heimdallNet.CreateOrderMessage{
			OfferAsset:  asset.Asset(offerAsset),
			OfferAmount: offerAmount,
			WantAsset:   asset.Asset(wantAsset),
			WantAmount:  wantAmount,
			Caller:      principal,
		}, nil
	case "approve":
		if caller == "" {
			return nil, fmt.Errorf("-caller is compulsory for approve")
		}
		return heimdallNet.ApproveOrderMessage{OrderID: orderID, Caller: principal}, nil
	case "cancel":
		if caller == "" {
			return nil, fmt.Errorf("-caller is compulsory for cancel")
		}
		return heimdallNet.CancelOrderMessage{OrderID: orderID, Caller: principal}, nil
	case "fulfill":
		if caller == "" {
			return nil, fmt.Errorf("-caller is compulsory for fulfill")
		}
		return heimdallNet.FulfillOrderMessage{OrderID: orderID, Budget: budget, Caller: principal}, nil
	case "get":
		return heimdallNet.GetOrderMessage{OrderID: orderID}, nil
	default:
		return nil, fmt.Errorf("unknown action: %s", action)
	}
}

// readReport reads the fixed header then the variable tail of one report.
func readReport(conn gonet.Conn) (heimdallNet.Report, error) {
	header := make([]byte, heimdallNet.ReportFixedHeaderLen)
	if _, err := io.ReadFull(conn, header); err != nil {
		return heimdallNet.Report{}, err
	}

	makerLen := int(header[26])
	errStrLen := int(binary.BigEndian.Uint32(header[27:31]))
	tailLen := makerLen + errStrLen
	buf := make([]byte, len(header)+tailLen)
	copy(buf, header)
	if tailLen > 0 {
		if _, err := io.ReadFull(conn, buf[len(header):]); err != nil {
			return heimdallNet.Report{}, err
		}
	}
	return heimdallNet.ParseReport(buf)
}

func printReport(report heimdallNet.Report) {
	if report.MessageType == heimdallNet.ErrorReport {
		fmt.Printf("[SERVER ERROR] %s\n", report.Err)
		os.Exit(1)
	}

	fmt.Printf("Order %d: %s offers %d %s for %d %s\n",
		report.OrderID,
		report.Maker,
		report.OfferAmount, report.OfferAsset,
		report.WantAmount, report.WantAsset,
	)
	fmt.Printf("  approved=%v canceled=%v fulfilled=%v\n",
		report.Approved(), report.Canceled(), report.Fulfilled())
}
