// Package main probes a set of rippled endpoints and prints a latency table,
// for picking the endpoint rotation of a gateway deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"xrpl-gateway/internal/xrpl"
)

type probeResult struct {
	url     string
	latency time.Duration
	build   string
	ledger  int64
	err     error
}

func main() {
	endpoints := flag.String("endpoints", os.Getenv("XRPL_WS_ENDPOINTS"), "Comma-separated rippled WebSocket endpoints")
	timeout := flag.Duration("timeout", 10*time.Second, "Per-endpoint probe timeout")
	flag.Parse()

	var urls []string
	for _, part := range strings.Split(*endpoints, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			urls = append(urls, part)
		}
	}
	if len(urls) == 0 {
		log.Fatal("--endpoints is required")
	}

	results := make([]probeResult, 0, len(urls))
	for _, url := range urls {
		results = append(results, probe(url, *timeout))
	}

	sort.Slice(results, func(i, j int) bool {
		if (results[i].err == nil) != (results[j].err == nil) {
			return results[i].err == nil
		}
		return results[i].latency < results[j].latency
	})

	fmt.Printf("%-45s %-12s %-12s %s\n", "ENDPOINT", "LATENCY", "LEDGER", "BUILD")
	for _, r := range results {
		if r.err != nil {
			fmt.Printf("%-45s %-12s %-12s %v\n", r.url, "-", "-", r.err)
			continue
		}
		fmt.Printf("%-45s %-12s %-12d %s\n", r.url, r.latency.Round(time.Millisecond), r.ledger, r.build)
	}
}

func probe(url string, timeout time.Duration) probeResult {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := xrpl.Dial(ctx, url, nil)
	if err != nil {
		return probeResult{url: url, err: err}
	}
	defer client.Close()

	start := time.Now()
	if err := client.Ping(ctx); err != nil {
		return probeResult{url: url, err: err}
	}
	latency := time.Since(start)

	info, err := client.ServerInfo(ctx)
	if err != nil {
		return probeResult{url: url, latency: latency, err: err}
	}

	return probeResult{
		url:     url,
		latency: latency,
		build:   info.BuildVersion,
		ledger:  info.ValidatedLedgerSeq,
	}
}
