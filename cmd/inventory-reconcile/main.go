package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/parts_backend/config"
	"bitbucket.org/mmdatafocus/parts_backend/models"
)

// Recomputes on-hand quantities from the transaction ledger and repairs any
// cached counter that has drifted. Safe to run while the service is live.
func main() {
	itemID := flag.Int("item-id", 0, "Optional: reconcile a single inventory item")
	dryRun := flag.Bool("dry-run", false, "Report drift without repairing it")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing items and continue with the rest")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	// No Redis here: the reconcile lock is best-effort and the DB row lock
	// is what serializes repairs. The tool must work when Redis is down.

	ctx := context.Background()

	var ids []int
	if *itemID > 0 {
		ids = append(ids, *itemID)
	} else {
		if err := db.Model(&models.InventoryItem{}).Order("id").Pluck("id", &ids).Error; err != nil {
			fmt.Fprintf(os.Stderr, "list inventory items: %v\n", err)
			os.Exit(1)
		}
	}

	repairedCount := 0
	for _, id := range ids {
		if *dryRun {
			item, err := models.GetInventoryItem(ctx, id)
			if err != nil {
				if *continueOnError {
					fmt.Fprintf(os.Stderr, "item %d: %v (skipping)\n", id, err)
					continue
				}
				fmt.Fprintf(os.Stderr, "item %d: %v\n", id, err)
				os.Exit(1)
			}
			onHand, err := models.FoldOnHand(ctx, id)
			if err != nil {
				if *continueOnError {
					fmt.Fprintf(os.Stderr, "item %d: %v (skipping)\n", id, err)
					continue
				}
				fmt.Fprintf(os.Stderr, "item %d: %v\n", id, err)
				os.Exit(1)
			}
			if onHand != item.QuantityInStock {
				fmt.Printf("item %d drifted: cached=%d ledger=%d\n", id, item.QuantityInStock, onHand)
				repairedCount++
			}
			continue
		}

		onHand, repaired, err := models.ReconcileInventoryItem(ctx, id)
		if err != nil {
			if *continueOnError {
				fmt.Fprintf(os.Stderr, "reconcile item %d: %v (skipping)\n", id, err)
				continue
			}
			fmt.Fprintf(os.Stderr, "reconcile item %d: %v\n", id, err)
			os.Exit(1)
		}
		if repaired {
			fmt.Printf("item %d repaired: on-hand now %d\n", id, onHand)
			repairedCount++
		}
	}

	if *dryRun {
		fmt.Printf("inventory reconcile dry run complete: %d item(s) drifted\n", repairedCount)
		return
	}
	fmt.Printf("inventory reconcile complete: %d item(s) repaired\n", repairedCount)
}
