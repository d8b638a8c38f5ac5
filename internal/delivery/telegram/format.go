package telegram

import (
	"fmt"
	"strings"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/NasaVasa/itemwatcher/internal/money"
	"github.com/NasaVasa/itemwatcher/internal/usecase"
)

func displayTitle(p domain.Product) string {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return p.URL
	}
	if r := []rune(title); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return title
}

func formatProductState(p domain.Product) string {
	if !p.Checked() {
		return "Not checked yet"
	}
	price := "no price"
	if p.LastPrice != nil {
		price = money.Display(*p.LastPrice, p.Currency)
	}
	stock := "in stock"
	if p.LastInStock != nil && !*p.LastInStock {
		stock = "out of stock"
	}
	line := price + ", " + stock
	if p.TargetPrice != nil {
		line += ", target " + money.Display(*p.TargetPrice, p.Currency)
	}
	return line
}

func formatProductList(summaries []usecase.ProductSummary) string {
	var builder strings.Builder
	builder.WriteString("Tracked products:\n")
	remaining := 0
	for i, s := range summaries {
		block := fmt.Sprintf("#%d %s\n%s", s.Product.ID, displayTitle(s.Product), formatProductState(s.Product))
		if s.LowestPrice != nil {
			block += ", lowest " + money.Display(*s.LowestPrice, s.Product.Currency)
		}
		block += "\n\n"
		if builder.Len()+len(block) > maxMessageLen {
			remaining = len(summaries) - i
			break
		}
		builder.WriteString(block)
	}
	if remaining > 0 {
		builder.WriteString(fmt.Sprintf("...and %d more", remaining))
	}
	return strings.TrimRight(builder.String(), "\n")
}

func formatCheckResult(result domain.CheckResult) string {
	if !result.OK() {
		return fmt.Sprintf("Check of #%d failed: %s", result.ProductID, result.FailureKind().Describe())
	}
	obs := result.Observation
	price := "no price"
	if obs.Price != nil {
		price = money.Display(*obs.Price, obs.Currency)
	}
	text := fmt.Sprintf("#%d %s: %s", result.ProductID, price, strings.ToLower(strings.ReplaceAll(result.Transitions.String(), "_", " ")))
	if pct := obs.DiscountPercent(); pct != nil {
		text += fmt.Sprintf(" (%.1f%% off MRP)", *pct)
	}
	return text
}

func formatBatch(batch domain.BatchResult) string {
	if batch.ListErr != nil {
		return "Could not load products: " + domain.KindOf(batch.ListErr).Describe()
	}
	checked, failed, skipped, alerts := batch.Summary()
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Checked %d, failed %d, skipped %d, alerts %d", checked, failed, skipped, alerts))
	for _, r := range batch.Results {
		if !r.OK() {
			builder.WriteString(fmt.Sprintf("\n#%d: %s", r.ProductID, r.FailureKind().Describe()))
		}
	}
	return builder.String()
}

func formatHistory(p domain.Product, history []domain.Observation, lowest *int64) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("#%d %s\n", p.ID, displayTitle(p)))
	if lowest != nil {
		builder.WriteString("Lowest ever: " + money.Display(*lowest, p.Currency) + "\n")
	}
	if len(history) == 0 {
		builder.WriteString("No observations yet.")
		return builder.String()
	}
	for _, obs := range history {
		price := "no price"
		if obs.Price != nil {
			price = money.Display(*obs.Price, obs.Currency)
		}
		stock := ""
		if !obs.InStock {
			stock = " (out of stock)"
		}
		builder.WriteString(fmt.Sprintf("%s  %s%s\n", obs.ObservedAt.Format("2006-01-02 15:04"), price, stock))
	}
	return strings.TrimRight(builder.String(), "\n")
}
