package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Purchases prints recent purchase records.
func (a *App) Purchases(ctx context.Context, opts PurchasesOptions) error {
	_, purchaseLog, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	if closeStores != nil {
		defer closeStores()
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	records, err := purchaseLog.ListRecent(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no purchases recorded")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Purchased (UTC)\tNumber\tTransaction\tService\tCountry\tPrice")

	for _, rec := range records {
		price := "N/A"
		if rec.Price != nil {
			price = rec.Price.StringFixed(2)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%d\t%s\n",
			rec.PurchasedAt.UTC().Format(time.RFC3339),
			rec.Number,
			rec.TransactionID,
			rec.Service,
			rec.Country,
			price,
		)
	}

	writer.Flush()
	return nil
}
