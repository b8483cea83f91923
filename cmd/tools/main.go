package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"house-prices/internal/address"
	"house-prices/internal/config"
	"house-prices/internal/db"
	"house-prices/internal/geo"
	"house-prices/internal/sites"
)

func main() {
	// Sub-commands
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	os.Args = os.Args[1:] // Shift args for flag parsing

	switch cmd {
	case "cache-list":
		listCache()
	case "cache-prune":
		pruneCache()
	case "cache-invalidate":
		invalidateCache()
	case "geocode":
		geocode()
	case "distance":
		distance()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: tools <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  cache-list        List cached resolved URLs")
	fmt.Println("  cache-prune       Delete cached URLs older than the TTL")
	fmt.Println("  cache-invalidate  Forget one site's URL for an address")
	fmt.Println("  geocode           Geocode an address with Nominatim")
	fmt.Println("  distance          Distance in km between two lat,lng pairs")
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func openCache(cfg *config.Config, dbPath string) *db.DB {
	if dbPath == "" {
		dbPath = cfg.Cache.Path
	}
	database, err := db.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	return database
}

func listCache() {
	configPath := flag.String("config", "", "Config file")
	dbPath := flag.String("db", "", "Database path (default: cache.path)")
	site := flag.String("site", "", "Only show this site")
	flag.Parse()

	cfg := loadConfig(*configPath)
	database := openCache(cfg, *dbPath)
	defer database.Close()

	entries, err := database.ListResolvedEntries(context.Background())
	if err != nil {
		log.Fatalf("Failed to list cache: %v", err)
	}

	now := time.Now()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SITE\tADDRESS\tAGE\tSTATUS\tURL")
	shown := 0
	for _, e := range entries {
		if *site != "" && e.Site != *site {
			continue
		}
		status := "fresh"
		if e.Expired(now, cfg.Cache.TTL) {
			status = "expired"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Site, e.AddressKey, now.Sub(e.ResolvedAt).Round(time.Minute), status, e.URL)
		shown++
	}
	tw.Flush()
	log.Printf("%d entries", shown)
}

func pruneCache() {
	configPath := flag.String("config", "", "Config file")
	dbPath := flag.String("db", "", "Database path (default: cache.path)")
	ttl := flag.Duration("ttl", 0, "Age beyond which entries are deleted (default: cache.ttl)")
	flag.Parse()

	cfg := loadConfig(*configPath)
	if *ttl <= 0 {
		*ttl = cfg.Cache.TTL
	}
	database := openCache(cfg, *dbPath)
	defer database.Close()

	n, err := database.DeleteExpired(context.Background(), time.Now().Add(-*ttl))
	if err != nil {
		log.Fatalf("Failed to prune cache: %v", err)
	}
	log.Printf("Pruned %d entries older than %s", n, *ttl)
}

func invalidateCache() {
	configPath := flag.String("config", "", "Config file")
	dbPath := flag.String("db", "", "Database path (default: cache.path)")
	site := flag.String("site", "", "Site to forget the URL for")
	flag.Parse()

	raw := strings.Join(flag.Args(), " ")
	if !sites.Known(*site) || raw == "" {
		log.Fatalf("Usage: tools cache-invalidate -site <%s> <address>", strings.Join(sites.Names(), "|"))
	}

	cfg := loadConfig(*configPath)
	database := openCache(cfg, *dbPath)
	defer database.Close()

	key := address.New(raw).Key()
	if err := database.DeleteResolvedEntry(context.Background(), *site, key); err != nil {
		log.Fatalf("Failed to invalidate: %v", err)
	}
	log.Printf("Forgot %s URL for %q", *site, key)
}

func geocode() {
	configPath := flag.String("config", "", "Config file")
	flag.Parse()

	raw := strings.Join(flag.Args(), " ")
	if raw == "" {
		log.Fatal("Usage: tools geocode <address>")
	}
	cfg := loadConfig(*configPath)

	g := geo.NewNominatim(
		geo.WithBaseURL(cfg.Geocoder.BaseURL),
		geo.WithUserAgent(cfg.Geocoder.UserAgent),
		geo.WithCountry(cfg.Geocoder.Country),
	)
	addr := address.New(raw)
	coords, err := g.Geocode(context.Background(), addr.String())
	if err != nil {
		log.Fatalf("Failed to geocode %q: %v", addr.String(), err)
	}
	fmt.Printf("%s\t%s\n", addr.String(), coords)
}

func distance() {
	flag.Parse()
	if flag.NArg() != 2 {
		log.Fatal("Usage: tools distance -- <lat,lng> <lat,lng>")
	}

	a, err := parseCoordinates(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	b, err := parseCoordinates(flag.Arg(1))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%.3f km\n", geo.DistanceKm(a, b))
}

func parseCoordinates(s string) (geo.Coordinates, error) {
	var lat, lng float64
	if _, err := fmt.Sscanf(strings.ReplaceAll(s, " ", ""), "%f,%f", &lat, &lng); err != nil {
		return geo.Coordinates{}, fmt.Errorf("invalid coordinates %q: want lat,lng", s)
	}
	return geo.NewCoordinates(lat, lng)
}
