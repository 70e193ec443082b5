// apitest exercises a running engine end to end through the HTTP API.
// Usage: go run ./cmd/apitest --url http://localhost:8080 --token $(go run ./cmd/tokengen --user alice)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/rickgao/emission-engine/internal/api"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "engine base URL")
	token := flag.String("token", "", "session token for the mining endpoints")
	flag.Parse()

	client := api.NewClient(*baseURL, *token, api.WithTimeout(10*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Test 1: Health
	fmt.Println("=== Testing Health ===")
	if err := client.Health(ctx); err != nil {
		log.Fatalf("Health failed: %v", err)
	}
	fmt.Println("Engine healthy")

	// Test 2: Trigger ticks
	fmt.Println("\n=== Testing TriggerTick ===")
	for i := 0; i < 3; i++ {
		tick, err := client.TriggerTick(ctx)
		if err != nil {
			log.Fatalf("TriggerTick failed: %v", err)
		}
		fmt.Printf("  %d. price=%s high=%s low=%s target=%s progress=%.3f day=%s\n",
			i+1, tick.Price, tick.High, tick.Low, tick.TargetPrice, tick.ProgressRatio, tick.ReferenceDate)
	}

	// Test 3: Latest and history
	fmt.Println("\n=== Testing GetLatestTick ===")
	latest, err := client.GetLatestTick(ctx)
	if err != nil {
		log.Fatalf("GetLatestTick failed: %v", err)
	}
	fmt.Printf("Latest: id=%d price=%s at %s\n", latest.ID, latest.Price, latest.Timestamp.Format(time.RFC3339))

	fmt.Println("\n=== Testing GetHistory ===")
	history, err := client.GetHistory(ctx, 5)
	if err != nil {
		log.Fatalf("GetHistory failed: %v", err)
	}
	fmt.Printf("Fetched %d ticks\n", len(history))
	for i, t := range history {
		fmt.Printf("  %d. id=%d price=%s\n", i+1, t.ID, t.Price)
	}

	// Test 4: Supply
	fmt.Println("\n=== Testing GetSupply ===")
	supply, err := client.GetSupply(ctx)
	if err != nil {
		log.Fatalf("GetSupply failed: %v", err)
	}
	fmt.Printf("Total: %s, Mined: %s, Remaining: %s\n", supply.TotalSupply, supply.MinedSupply, supply.RemainingSupply)

	if *token == "" {
		fmt.Println("\nNo --token given, skipping mining endpoints")
		fmt.Println("\n=== All tests passed! ===")
		return
	}

	// Test 5: Status
	fmt.Println("\n=== Testing GetStatus ===")
	status, err := client.GetStatus(ctx)
	if err != nil {
		log.Fatalf("GetStatus failed: %v", err)
	}
	fmt.Printf("Can mine: %v, next: %s, rate: %s (%d referrals)\n",
		status.CanMine, status.NextMine.Format(time.RFC3339), status.BoostedRate.FinalRate, status.BoostedRate.ReferralCount)

	// Test 6: Claim
	fmt.Println("\n=== Testing Claim ===")
	claim, err := client.Claim(ctx)
	var apiErr *api.APIError
	switch {
	case err == nil:
		fmt.Printf("Granted %s (requested %s, partial %v), balance %s, next %s\n",
			claim.Amount, claim.Requested, claim.Partial, claim.Balance, claim.NextMine.Format(time.RFC3339))
	case errors.As(err, &apiErr) && apiErr.Code == api.CodeNotYetEligible:
		if apiErr.NextMine != nil {
			fmt.Printf("On cooldown until %s\n", apiErr.NextMine.Format(time.RFC3339))
		} else {
			fmt.Println("On cooldown")
		}
	default:
		log.Fatalf("Claim failed: %v", err)
	}

	fmt.Println("\n=== All tests passed! ===")
}
