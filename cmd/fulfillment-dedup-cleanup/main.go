package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"gorm.io/gorm"
)

// Removes legacy duplicate ledger rows: rows sharing a (delivery_item_id,
// po_item_id) pair from before pair uniqueness was enforced at write time.
// The read side already dedupes by keeping the max-qty row per pair; this tool
// makes the cleanup physical.
func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	dryRun := flag.Bool("dry-run", true, "Show duplicate rows only (no writes)")
	confirm := flag.String("confirm", "", "Type DELETE to proceed when dry-run=false")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}
	if !*dryRun && strings.TrimSpace(*confirm) != "DELETE" {
		fmt.Fprintln(os.Stderr, "set --confirm=DELETE to proceed")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	var biz models.Business
	if err := db.Where("id = ?", *businessID).First(&biz).Error; err != nil {
		fmt.Fprintf(os.Stderr, "business not found: %v\n", err)
		os.Exit(1)
	}

	var rows []models.Fulfillment
	if err := db.
		Where("business_id = ?", *businessID).
		Order("delivery_item_id, po_item_id, qty DESC, created_at, id").
		Find(&rows).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to load ledger: %v\n", err)
		os.Exit(1)
	}

	type pair struct{ deliveryItemId, poItemId int }
	seen := make(map[pair]string)
	var duplicateIds []string
	for _, row := range rows {
		key := pair{row.DeliveryItemId, row.PoItemId}
		if keeper, ok := seen[key]; ok {
			fmt.Printf("duplicate: id=%s pair=(%d,%d) qty=%s keeper=%s\n",
				row.ID, row.DeliveryItemId, row.PoItemId, row.Qty.String(), keeper)
			duplicateIds = append(duplicateIds, row.ID)
			continue
		}
		seen[key] = row.ID
	}

	fmt.Printf("scanned %d rows, %d duplicates\n", len(rows), len(duplicateIds))
	if *dryRun || len(duplicateIds) == 0 {
		if *dryRun {
			fmt.Println("dry-run: nothing deleted")
		}
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Where("business_id = ? AND id IN ?", *businessID, duplicateIds).
			Delete(&models.Fulfillment{}).Error
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cleanup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("deleted %d duplicate rows\n", len(duplicateIds))
}
