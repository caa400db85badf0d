package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/JoeBashe/stl-scraper/internal"
	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

const usage = `Usage:
  stl-scraper search <query> [--checkin --checkout --priceMin --priceMax --roomTypes --storage]
  stl-scraper calendar (<listingId> | --all) [--updated 48h] [--storage]
  stl-scraper pricing <listingId> --checkin <date> --checkout <date>
  stl-scraper data <listingId>
  stl-scraper serve
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// batch runs cancel on Ctrl-C so workers and backoff sleeps drain
	// cleanly; serve installs its own shutdown handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "search":
		err = runSearch(ctx, os.Args[2:])
	case "calendar":
		err = runCalendar(ctx, os.Args[2:])
	case "pricing":
		err = runPricing(ctx, os.Args[2:])
	case "data":
		err = runData(ctx, os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("stl-scraper %s: %v", os.Args[1], err)
	}
}

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	checkin := fs.String("checkin", "", "check-in date (YYYY-MM-DD)")
	checkout := fs.String("checkout", "", "check-out date (YYYY-MM-DD)")
	priceMin := fs.Int("priceMin", 0, "minimum nightly price")
	priceMax := fs.Int("priceMax", 0, "maximum nightly price")
	roomTypes := fs.String("roomTypes", "", "comma-separated room types, e.g. \"Entire home/apt\"")
	storage := fs.String("storage", "", "storage backend override (csv, elasticsearch, postgres)")
	query, err := parseWithPositional(fs, args, "query")
	if err != nil {
		return err
	}

	app, err := internal.NewApp(internal.Options{
		Storage: *storage,
		CSVPath: csvPath(query),
	})
	if err != nil {
		return err
	}
	defer app.Close()

	filters := domain.SearchFilters{
		Checkin:  *checkin,
		Checkout: *checkout,
		PriceMin: *priceMin,
		PriceMax: *priceMax,
	}
	if *roomTypes != "" {
		for _, rt := range strings.Split(*roomTypes, ",") {
			if trimmed := strings.TrimSpace(rt); trimmed != "" {
				filters.RoomTypes = append(filters.RoomTypes, trimmed)
			}
		}
	}

	return app.Search(app.BaseContext(ctx), query, filters)
}

func runCalendar(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("calendar", flag.ExitOnError)
	all := fs.Bool("all", false, "refresh every stale listing in storage")
	updated := fs.Duration("updated", 0, "staleness window override, e.g. 48h")
	storage := fs.String("storage", "", "storage backend override (elasticsearch, postgres)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := internal.NewApp(internal.Options{Storage: *storage})
	if err != nil {
		return err
	}
	defer app.Close()
	ctx = app.BaseContext(ctx)

	if *all {
		if fs.NArg() != 0 {
			return fmt.Errorf("--all and a listing id are mutually exclusive")
		}
		olderThan := app.Staleness()
		if *updated > 0 {
			olderThan = *updated
		}
		return app.RefreshAll(ctx, olderThan)
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("a listing id (or --all) is required")
	}
	listingID := fs.Arg(0)

	calendar, quotes, err := app.InspectCalendar(ctx, listingID)
	if err != nil {
		return err
	}
	return printCalendar(calendar, quotes)
}

func runPricing(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pricing", flag.ExitOnError)
	checkin := fs.String("checkin", "", "check-in date (YYYY-MM-DD)")
	checkout := fs.String("checkout", "", "check-out date (YYYY-MM-DD)")
	listingID, err := parseWithPositional(fs, args, "listingId")
	if err != nil {
		return err
	}
	if *checkin == "" || *checkout == "" {
		return fmt.Errorf("--checkin and --checkout are required")
	}

	app, err := internal.NewApp(internal.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	quote, err := app.Pricing(app.BaseContext(ctx), *checkin, *checkout, listingID)
	if err != nil {
		return err
	}
	return printJSON(quote)
}

func runData(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("data", flag.ExitOnError)
	listingID, err := parseWithPositional(fs, args, "listingId")
	if err != nil {
		return err
	}

	app, err := internal.NewApp(internal.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	raw, err := app.RawListing(app.BaseContext(ctx), listingID)
	if err != nil {
		return err
	}
	var pretty map[string]interface{}
	if err := json.Unmarshal(raw, &pretty); err != nil {
		// not an object; print as-is
		fmt.Println(string(raw))
		return nil
	}
	return printJSON(pretty)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	storage := fs.String("storage", "", "storage backend override (csv, elasticsearch, postgres)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := internal.NewApp(internal.Options{Storage: *storage})
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Serve()
}

// parseWithPositional parses flags that may appear before or after the single
// required positional argument (flag stops at the first non-flag word).
func parseWithPositional(fs *flag.FlagSet, args []string, name string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() < 1 {
		return "", fmt.Errorf("a %s argument is required", name)
	}
	positional := fs.Arg(0)
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return "", err
	}
	return positional, nil
}

// csvPath derives the flat-file destination from the query, e.g.
// "Madrid, Spain" -> "madrid-spain.csv".
func csvPath(query string) string {
	slug := strings.ToLower(query)
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, slug)
	slug = strings.Trim(strings.Join(strings.FieldsFunc(slug, func(r rune) bool { return r == '-' }), "-"), "-")
	if slug == "" {
		slug = "stl"
	}
	return slug + ".csv"
}

func printCalendar(calendar domain.BookingCalendar, quotes map[int]*domain.PricingQuote) error {
	booked := calendar.BookedDates()
	out := struct {
		BookedDates []string               `json:"booked_dates"`
		Quotes      []*domain.PricingQuote `json:"quotes"`
	}{BookedDates: booked}

	lengths := make([]int, 0, len(quotes))
	for nights := range quotes {
		lengths = append(lengths, nights)
	}
	sort.Ints(lengths)
	for _, nights := range lengths {
		out.Quotes = append(out.Quotes, quotes[nights])
	}
	return printJSON(out)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
