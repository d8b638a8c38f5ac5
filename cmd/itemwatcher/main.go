package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NasaVasa/itemwatcher/internal/app"
	"github.com/NasaVasa/itemwatcher/internal/config"
	cli "github.com/jawher/mow.cli"
)

var errChecksFailed = errors.New("one or more checks failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	itemwatcher := cli.App("itemwatcher", "Watch product pages for price and stock changes")

	itemwatcher.Command("serve", "Run the scheduler, Telegram bot and HTTP API", func(cmd *cli.Cmd) {
		cmd.Action = func() {
			withApp(ctx, app.Options{Serve: true, Notify: true}, func(a *app.App) error {
				return a.Run(ctx)
			})
		}
	})

	itemwatcher.Command("add", "Start tracking a product URL and check it once", func(cmd *cli.Cmd) {
		cmd.Spec = "[--target] URL"
		target := cmd.StringOpt("t target", "", "Target price, alert when the price drops to it")
		productURL := cmd.StringArg("URL", "", "Product page URL")
		cmd.Action = func() {
			withApp(ctx, app.Options{Notify: true}, func(a *app.App) error {
				product, result, err := a.Products.AddProduct(ctx, *productURL, *target)
				if err != nil {
					return err
				}
				printAdded(os.Stdout, *product, result)
				return nil
			})
		}
	})

	itemwatcher.Command("list", "List tracked products", func(cmd *cli.Cmd) {
		cmd.Action = func() {
			withApp(ctx, app.Options{}, func(a *app.App) error {
				summaries, err := a.Products.ListProducts(ctx)
				if err != nil {
					return err
				}
				return printList(os.Stdout, summaries)
			})
		}
	})

	itemwatcher.Command("remove", "Stop tracking a product", func(cmd *cli.Cmd) {
		productID := cmd.IntArg("ID", 0, "Product ID")
		cmd.Action = func() {
			withApp(ctx, app.Options{}, func(a *app.App) error {
				id, err := toProductID(*productID)
				if err != nil {
					return err
				}
				product, err := a.Products.RemoveProduct(ctx, id)
				if err != nil {
					return err
				}
				fmt.Printf("Stopped tracking #%d %s\n", product.ID, product.Title)
				return nil
			})
		}
	})

	itemwatcher.Command("history", "Show recent observations of a product", func(cmd *cli.Cmd) {
		cmd.Spec = "[-n] ID"
		limit := cmd.IntOpt("n limit", 20, "Number of observations to show")
		productID := cmd.IntArg("ID", 0, "Product ID")
		cmd.Action = func() {
			withApp(ctx, app.Options{}, func(a *app.App) error {
				id, err := toProductID(*productID)
				if err != nil {
					return err
				}
				product, history, lowest, err := a.Products.History(ctx, id, *limit)
				if err != nil {
					return err
				}
				return printHistory(os.Stdout, *product, history, lowest)
			})
		}
	})

	itemwatcher.Command("target", "Set or clear (\"off\") the target price of a product", func(cmd *cli.Cmd) {
		productID := cmd.IntArg("ID", 0, "Product ID")
		price := cmd.StringArg("PRICE", "", "Target price, or off")
		cmd.Action = func() {
			withApp(ctx, app.Options{}, func(a *app.App) error {
				id, err := toProductID(*productID)
				if err != nil {
					return err
				}
				text := *price
				if text == "off" || text == "none" {
					text = ""
				}
				product, err := a.Products.SetTarget(ctx, id, text)
				if err != nil {
					return err
				}
				printTarget(os.Stdout, *product)
				return nil
			})
		}
	})

	itemwatcher.Command("check", "Check one product, or all of them, now", func(cmd *cli.Cmd) {
		productID := cmd.IntOpt("id", 0, "Only check this product")
		cmd.Action = func() {
			withApp(ctx, app.Options{Notify: true}, func(a *app.App) error {
				if *productID != 0 {
					id, err := toProductID(*productID)
					if err != nil {
						return err
					}
					result := a.Watch.Check(ctx, id)
					printCheckResult(os.Stdout, result)
					if !result.OK() {
						return errChecksFailed
					}
					return nil
				}
				batch := a.Watch.CheckAll(ctx)
				if batch.ListErr != nil {
					return batch.ListErr
				}
				printBatch(os.Stdout, batch)
				if _, failed, _, _ := batch.Summary(); failed > 0 {
					return errChecksFailed
				}
				return nil
			})
		}
	})

	itemwatcher.Command("test", "Scrape a URL once without tracking it", func(cmd *cli.Cmd) {
		productURL := cmd.StringArg("URL", "", "Product page URL")
		cmd.Action = func() {
			withApp(ctx, app.Options{}, func(a *app.App) error {
				obs, adapter, err := a.Products.TestURL(ctx, *productURL)
				if err != nil {
					return err
				}
				printObservation(os.Stdout, adapter.Retailer(), obs)
				return nil
			})
		}
	})

	if err := itemwatcher.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp builds the application, runs fn and exits non-zero on failure.
// One-shot commands log in console format unless LOG_FORMAT is set.
func withApp(ctx context.Context, opts app.Options, fn func(*app.App) error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		cli.Exit(1)
	}
	if !opts.Serve {
		if _, ok := os.LookupEnv("LOG_FORMAT"); !ok {
			cfg.LogFormat = "console"
		}
	}

	application, err := app.New(ctx, cfg, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize app:", err)
		cli.Exit(1)
	}

	err = fn(application)
	application.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cli.Exit(1)
	}
}

func toProductID(id int) (uint, error) {
	if id <= 0 {
		return 0, fmt.Errorf("invalid product id %d", id)
	}
	return uint(id), nil
}
