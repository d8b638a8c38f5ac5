package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/NasaVasa/itemwatcher/internal/money"
	"github.com/NasaVasa/itemwatcher/internal/usecase"
)

func displayPrice(minor *int64, currency string) string {
	if minor == nil {
		return "-"
	}
	return money.Display(*minor, currency)
}

func displayStock(inStock *bool) string {
	switch {
	case inStock == nil:
		return "-"
	case *inStock:
		return "in stock"
	}
	return "out of stock"
}

func displayTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func shorten(s string, limit int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= limit {
		return string(r)
	}
	return string(r[:limit-3]) + "..."
}

func printList(w io.Writer, summaries []usecase.ProductSummary) error {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No products tracked.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tSTOCK\tTARGET\tLOWEST\tCHECKED")
	for _, s := range summaries {
		p := s.Product
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID,
			shorten(p.Title, 40),
			displayPrice(p.LastPrice, p.Currency),
			displayStock(p.LastInStock),
			displayPrice(p.TargetPrice, p.Currency),
			displayPrice(s.LowestPrice, p.Currency),
			displayTime(p.LastCheckedAt),
		)
	}
	return tw.Flush()
}

func printHistory(w io.Writer, p domain.Product, history []domain.Observation, lowest *int64) error {
	fmt.Fprintf(w, "#%d %s\n", p.ID, p.Title)
	fmt.Fprintf(w, "Lowest ever: %s\n\n", displayPrice(lowest, p.Currency))
	if len(history) == 0 {
		fmt.Fprintln(w, "No observations yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OBSERVED\tPRICE\tMRP\tSTOCK")
	for _, obs := range history {
		inStock := obs.InStock
		observed := obs.ObservedAt
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			displayTime(&observed),
			displayPrice(obs.Price, obs.Currency),
			displayPrice(obs.OriginalPrice, obs.Currency),
			displayStock(&inStock),
		)
	}
	return tw.Flush()
}

func printAdded(w io.Writer, p domain.Product, result domain.CheckResult) {
	fmt.Fprintf(w, "Tracking #%d %s\n", p.ID, p.Title)
	printCheckResult(w, result)
}

func printTarget(w io.Writer, p domain.Product) {
	if p.TargetPrice == nil {
		fmt.Fprintf(w, "Target cleared for #%d\n", p.ID)
		return
	}
	fmt.Fprintf(w, "Target for #%d set to %s\n", p.ID, money.Display(*p.TargetPrice, p.Currency))
}

func printCheckResult(w io.Writer, r domain.CheckResult) {
	if !r.OK() {
		fmt.Fprintf(w, "#%d failed (%s): %s\n", r.ProductID, r.FailureKind(), r.FailureKind().Describe())
		return
	}
	obs := r.Observation
	fmt.Fprintf(w, "#%d %s %s: %s\n", r.ProductID, displayPrice(obs.Price, obs.Currency), displayStock(&obs.InStock), r.Transitions)
	for _, d := range r.Deliveries {
		status := "sent"
		if !d.Delivered {
			status = "not sent: " + d.Reason
		}
		fmt.Fprintf(w, "  alert %s via %s %s\n", d.Kind, d.Channel, status)
	}
}

func printBatch(w io.Writer, batch domain.BatchResult) {
	for _, r := range batch.Results {
		printCheckResult(w, r)
	}
	checked, failed, skipped, alerts := batch.Summary()
	fmt.Fprintf(w, "Run %s: checked %d, failed %d, skipped %d, alerts %d\n", batch.RunID, checked, failed, skipped, alerts)
}

func printObservation(w io.Writer, retailer string, obs domain.Observation) {
	fmt.Fprintf(w, "Retailer: %s\n", retailer)
	fmt.Fprintf(w, "Title:    %s\n", obs.Title)
	fmt.Fprintf(w, "Price:    %s\n", displayPrice(obs.Price, obs.Currency))
	fmt.Fprintf(w, "MRP:      %s\n", displayPrice(obs.OriginalPrice, obs.Currency))
	if pct := obs.DiscountPercent(); pct != nil {
		fmt.Fprintf(w, "Discount: %.1f%%\n", *pct)
	}
	fmt.Fprintf(w, "Stock:    %s\n", displayStock(&obs.InStock))
	if obs.Seller != "" {
		fmt.Fprintf(w, "Seller:   %s\n", obs.Seller)
	}
}
