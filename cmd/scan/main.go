// Command scan runs one scanner pass against the live gainer feed and prints
// the candidates that clear the surge filters. Useful for checking feed
// connectivity and threshold tuning without starting a session.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/surge-intraday-bot/pkg/config"
	"github.com/surge-intraday-bot/pkg/feed"
	"github.com/surge-intraday-bot/pkg/scanner"
)

func main() {
	timeoutFlag := flag.Duration("timeout", 30*time.Second, "Overall fetch timeout")
	verboseFlag := flag.Bool("v", false, "Log each candidate as it passes")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verboseFlag {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	marketFeed := feed.NewHTTPFeed(cfg.FeedBaseURL, cfg.FeedAPIKey)
	sc := scanner.New(marketFeed, cfg, logger)

	gainers, err := sc.Gainers(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Gainer fetch failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Fetched %d gainers for the %s window\n", len(gainers), cfg.Window)

	candidates := sc.Scan(ctx, gainers, nil)
	if len(candidates) == 0 {
		fmt.Println("No candidates passed the surge filters.")
		return
	}

	fmt.Printf("\n%-8s %8s %10s %12s\n", "SYMBOL", "CHANGE", "CLOSE", "VOLUME")
	for _, c := range candidates {
		fmt.Printf("%-8s %7.1f%% %10.2f %12d\n",
			c.Symbol, c.ChangePct*100, c.LatestClose, c.LatestVolume)
	}
}
