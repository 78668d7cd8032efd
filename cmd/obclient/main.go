// Command obclient is a small CLI for exercising an obcored server: place
// orders, cancel them, and query the book, one request per invocation.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lattice-markets/obcore/internal/book"
	obnet "github.com/lattice-markets/obcore/internal/net"
)

func main() {
	server := flag.String("server", "127.0.0.1:50051", "address of the obcored server")
	action := flag.String("action", "place", "action: place|cancel|best-bid|best-ask|orders-at|stats|health")

	sideStr := flag.String("side", "buy", "order side: buy|sell")
	kindStr := flag.String("kind", "limit", "order kind: limit|market")
	strategyStr := flag.String("strategy", "other", "order strategy, e.g. quant_long_term, high_frequency")
	price := flag.Float64("price", 100.0, "limit price")
	qty := flag.Int64("qty", 10, "order quantity")
	orderID := flag.Uint64("order-id", 0, "order id, required for -action=cancel")

	flag.Parse()

	client, err := obnet.Dial(*server)
	if err != nil {
		log.Fatalf("connect to %s: %v", *server, err)
	}
	defer client.Close()

	switch strings.ToLower(*action) {
	case "place":
		id, err := client.SubmitOrder(obnet.SubmitOrderRequest{
			Strategy: parseStrategy(*strategyStr),
			Side:     parseSide(*sideStr),
			Kind:     parseKind(*kindStr),
			Price:    *price,
			Quantity: *qty,
		})
		if err != nil {
			log.Fatalf("submit order: %v", err)
		}
		fmt.Printf("order accepted: id=%d\n", id)

	case "cancel":
		if *orderID == 0 {
			log.Fatal("-order-id is required for -action=cancel")
		}
		found, err := client.CancelOrder(*orderID)
		if err != nil {
			log.Fatalf("cancel order: %v", err)
		}
		fmt.Printf("cancel order %d: found=%v\n", *orderID, found)

	case "best-bid":
		resp, err := client.BestBid()
		if err != nil {
			log.Fatalf("best bid: %v", err)
		}
		printPrice("bid", resp)

	case "best-ask":
		resp, err := client.BestAsk()
		if err != nil {
			log.Fatalf("best ask: %v", err)
		}
		printPrice("ask", resp)

	case "orders-at":
		orders, err := client.OrdersAtPrice(parseSide(*sideStr), *price)
		if err != nil {
			log.Fatalf("orders at price: %v", err)
		}
		fmt.Printf("%d order(s) at %.4f\n", len(orders), *price)
		for _, o := range orders {
			fmt.Printf("  id=%d side=%s kind=%s qty=%d strategy=%s\n",
				o.ID, o.Side, o.Kind, o.Quantity, o.Strategy)
		}

	case "stats":
		stats, err := client.PerformanceStats()
		if err != nil {
			log.Fatalf("performance stats: %v", err)
		}
		fmt.Printf("requests=%d orders_accepted=%d current_ops=%.1f peak_ops=%.1f uptime=%.1fs queue_depth=%d/%d\n",
			stats.TotalRequests, stats.TotalAccepted, stats.CurrentOps, stats.PeakOps,
			stats.UptimeSeconds, stats.QueueDepth, stats.QueueCapacity)

	case "health":
		health, err := client.HealthCheck()
		if err != nil {
			log.Fatalf("health check: %v", err)
		}
		fmt.Printf("healthy=%v status=%s uptime=%.1fs active_orders=%d total_processed=%d\n",
			health.Healthy, health.Status, health.UptimeSeconds, health.ActiveOrders, health.TotalProcessed)

	default:
		fmt.Fprintf(os.Stderr, "unknown action %q\n", *action)
		flag.Usage()
		os.Exit(1)
	}
}

func printPrice(label string, resp obnet.PriceResponse) {
	if !resp.HasLevels {
		fmt.Printf("no resting %s levels\n", label)
		return
	}
	fmt.Printf("best %s: %.4f\n", label, resp.Price)
}

func parseSide(s string) book.Side {
	if strings.ToLower(s) == "sell" {
		return book.Sell
	}
	return book.Buy
}

func parseKind(s string) book.Kind {
	if strings.ToLower(s) == "market" {
		return book.Market
	}
	return book.Limit
}

func parseStrategy(s string) book.Strategy {
	switch strings.ToLower(s) {
	case "quant_long_term":
		return book.StrategyQuantLongTerm
	case "high_frequency":
		return book.StrategyHighFrequency
	case "hedge_fund":
		return book.StrategyHedgeFund
	case "algorithmic":
		return book.StrategyAlgorithmic
	case "investment_bank":
		return book.StrategyInvestmentBank
	case "pension_fund":
		return book.StrategyPensionFund
	case "insurance":
		return book.StrategyInsurance
	default:
		return book.StrategyOther
	}
}
