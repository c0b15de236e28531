package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/nulzo/tier-router/internal/store/model"
	"github.com/nulzo/tier-router/internal/store/sqlite"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type priceEntry struct {
	Model  string `mapstructure:"model"`
	Input  int64  `mapstructure:"input_micros_per_1k"`
	Output int64  `mapstructure:"output_micros_per_1k"`
}

// Loads model prices into the cost tracking database. Without -file the
// current table is printed.
//
// A price file looks like:
//
//	prices:
//	  - model: gpt-4o
//	    input_micros_per_1k: 2500
//	    output_micros_per_1k: 10000
func main() {
	dsn := flag.String("dsn", "file:tier-router.db?cache=shared&_journal_mode=WAL&_busy_timeout=5000", "SQLite DSN")
	file := flag.String("file", "", "YAML or JSON file with a 'prices' list")
	flag.Parse()

	repo, err := sqlite.NewSQLiteStorage(*dsn, zap.NewNop())
	if err != nil {
		log.Fatal(err)
	}
	defer repo.Close()

	ctx := context.Background()

	if *file != "" {
		v := viper.New()
		v.SetConfigFile(*file)
		if err := v.ReadInConfig(); err != nil {
			log.Fatalf("Failed to read %s: %v", *file, err)
		}

		var entries []priceEntry
		if err := v.UnmarshalKey("prices", &entries); err != nil {
			log.Fatalf("Failed to decode prices: %v", err)
		}

		now := time.Now().UTC()
		prices := make([]model.ModelPricing, 0, len(entries))
		for _, e := range entries {
			if e.Model == "" {
				continue
			}
			prices = append(prices, model.ModelPricing{
				ModelID:               e.Model,
				InputCostMicrosPer1k:  e.Input,
				OutputCostMicrosPer1k: e.Output,
				UpdatedAt:             now,
			})
		}

		if err := repo.Pricing().Upsert(ctx, prices); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Upserted %d prices from %s\n\n", len(prices), *file)
	}

	prices, err := repo.Pricing().List(ctx)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%-32s %12s %12s\n", "MODEL", "IN/1K (µ$)", "OUT/1K (µ$)")
	for _, p := range prices {
		fmt.Printf("%-32s %12d %12d\n", p.ModelID, p.InputCostMicrosPer1k, p.OutputCostMicrosPer1k)
	}
}
