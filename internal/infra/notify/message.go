package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/NasaVasa/itemwatcher/internal/money"
)

const subjectTitleLimit = 50

// Message is an alert rendered for delivery.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

var headlines = map[domain.TransitionKind]string{
	domain.TransitionFirstSeen:     "Now tracking",
	domain.TransitionPriceDrop:     "Price drop",
	domain.TransitionPriceRise:     "Price rise",
	domain.TransitionBackInStock:   "Back in stock",
	domain.TransitionOutOfStock:    "Out of stock",
	domain.TransitionTargetReached: "Target reached",
}

func Headline(kind domain.TransitionKind) string {
	if h, ok := headlines[kind]; ok {
		return h
	}
	return string(kind)
}

// Render builds the subject, plain text and HTML bodies for an alert.
func Render(event domain.AlertEvent) Message {
	lines := detailLines(event)

	var text strings.Builder
	text.WriteString(Headline(event.Kind) + "!\n\n")
	text.WriteString(event.Title + "\n\n")
	for _, line := range lines {
		text.WriteString(line + "\n")
	}
	text.WriteString("\nView: " + event.URL + "\n")

	var html bytes.Buffer
	_ = htmlTemplate.Execute(&html, struct {
		Headline string
		Title    string
		Lines    []string
		URL      string
	}{Headline(event.Kind), event.Title, lines, event.URL})

	return Message{
		Subject: fmt.Sprintf("%s: %s", Headline(event.Kind), truncate(event.Title, subjectTitleLimit)),
		Text:    text.String(),
		HTML:    html.String(),
	}
}

// Short renders a compact one-message form used by chat channels.
func Short(event domain.AlertEvent) string {
	parts := []string{Headline(event.Kind) + ": " + event.Title}
	parts = append(parts, detailLines(event)...)
	parts = append(parts, event.URL)
	return strings.Join(parts, "\n")
}

func detailLines(event domain.AlertEvent) []string {
	var lines []string
	if event.NewPrice != nil {
		lines = append(lines, "Current price: "+money.Display(*event.NewPrice, event.Currency))
	} else {
		lines = append(lines, "Current price: unavailable")
	}

	switch event.Kind {
	case domain.TransitionPriceDrop, domain.TransitionPriceRise:
		if event.OldPrice != nil && event.NewPrice != nil && *event.OldPrice > 0 {
			diff := *event.OldPrice - *event.NewPrice
			label := "Drop"
			if diff < 0 {
				diff = -diff
				label = "Rise"
			}
			pct := float64(diff) / float64(*event.OldPrice) * 100
			lines = append(lines,
				"Previous price: "+money.Display(*event.OldPrice, event.Currency),
				fmt.Sprintf("%s: %s (%.1f%%)", label, money.Display(diff, event.Currency), pct),
			)
		}
	case domain.TransitionOutOfStock:
		if event.OldPrice != nil {
			lines = append(lines, "Last seen at: "+money.Display(*event.OldPrice, event.Currency))
		}
	}

	if event.TargetPrice != nil {
		line := "Target price: " + money.Display(*event.TargetPrice, event.Currency)
		if event.Kind == domain.TransitionTargetReached {
			line += " (reached)"
		}
		lines = append(lines, line)
	}
	return lines
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit])) + "..."
}

var htmlTemplate = template.Must(template.New("alert").Parse(`<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
	<h2>{{.Headline}}!</h2>
	<div style="background: #f5f5f5; padding: 20px; border-radius: 8px;">
		<h3 style="margin-top: 0;">{{.Title}}</h3>
		{{range .Lines}}<p>{{.}}</p>
		{{end}}
		<a href="{{.URL}}">View product</a>
	</div>
	<p style="color: #666; font-size: 12px;">Sent by itemwatcher</p>
</body>
</html>`))
