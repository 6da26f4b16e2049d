// Command seed fills an empty batch API with reference lists and a few open
// batches so the pages have something to show in development.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dyetrack/dyetrack/internal/batches"
	"github.com/dyetrack/dyetrack/internal/platform/restapi"
	"github.com/dyetrack/dyetrack/internal/reference"
)

var seedLists = map[reference.Kind][]string{
	reference.Companies:     {"Acme Textiles", "Blue Mills", "Sunrise Fabrics"},
	reference.Mediators:     {"Ravi Agencies", "Patel Brokers"},
	reference.MaterialTypes: {"Cotton", "Silk", "Polyester", "Rayon"},
	reference.Destinations:  {"Acme Textiles", "Blue Mills", "City Warehouse"},
}

// kinds fixes the seeding order so batches can refer to created ids.
var kinds = []reference.Kind{reference.Companies, reference.Mediators, reference.MaterialTypes, reference.Destinations}

func main() {
	baseURL := getenv("API_BASE_URL", "http://localhost:3000/api")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := restapi.New(baseURL, 10*time.Second)
	refs := reference.NewRepository(client)
	repo := batches.NewRepository(client)

	ids := make(map[reference.Kind]map[string]int64, len(kinds))
	for _, kind := range kinds {
		fmt.Printf("→ Seeding %s...\n", kind)
		seeded, err := seedKind(ctx, refs, kind, seedLists[kind])
		if err != nil {
			log.Fatalf("seed %s: %v", kind, err)
		}
		ids[kind] = seeded
	}

	fmt.Println("→ Seeding batches...")
	if err := seedBatches(ctx, repo, ids); err != nil {
		log.Fatalf("seed batches: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

// seedKind creates the names that are not in the list yet and returns the id
// of every name.
func seedKind(ctx context.Context, refs reference.Repository, kind reference.Kind, names []string) (map[string]int64, error) {
	existing, err := refs.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(names))
	for _, name := range names {
		if e, ok := reference.FindByName(existing, name); ok {
			out[name] = e.ID
			continue
		}
		created, err := refs.Create(ctx, kind, name)
		if err != nil {
			return nil, fmt.Errorf("create %q: %w", name, err)
		}
		out[name] = created.ID
	}
	return out, nil
}

// seedBatches only runs against an empty batch list.
func seedBatches(ctx context.Context, repo batches.Repository, ids map[reference.Kind]map[string]int64) error {
	list, err := repo.List(ctx)
	if err != nil {
		return err
	}
	if len(list) > 0 {
		fmt.Printf("  %d batches already present, skipping\n", len(list))
		return nil
	}

	companies := ids[reference.Companies]
	materials := ids[reference.MaterialTypes]
	inputs := []batches.Input{
		{
			CompanyID:       companies["Acme Textiles"],
			LotNumber:       "LOT-1001",
			ReceivedThrough: batches.ChannelCompany,
			Items: []batches.ItemInput{
				{MaterialTypeID: materials["Cotton"], Color: "Navy", Rolls: 12},
				{MaterialTypeID: materials["Silk"], Color: "Ivory", Rolls: 4},
			},
		},
		{
			CompanyID:       companies["Blue Mills"],
			LotNumber:       "LOT-1002",
			ReceivedThrough: batches.ChannelMediator,
			MediatorID:      ids[reference.Mediators]["Ravi Agencies"],
			Items: []batches.ItemInput{
				{MaterialTypeID: materials["Polyester"], Color: "Crimson", Rolls: 8},
			},
		},
		{
			CompanyID:       companies["Sunrise Fabrics"],
			LotNumber:       "LOT-1003",
			ReceivedThrough: batches.ChannelCompany,
			Items: []batches.ItemInput{
				{MaterialTypeID: materials["Rayon"], Color: "Teal", Rolls: 20},
			},
		},
	}
	for i := range inputs {
		if v := batches.ValidateInput(&inputs[i]); !v.OK() {
			return fmt.Errorf("sample batch %s: %w", inputs[i].LotNumber, v)
		}
		created, err := repo.Create(ctx, inputs[i])
		if err != nil {
			return fmt.Errorf("create %s: %w", inputs[i].LotNumber, err)
		}
		fmt.Printf("  created batch %d (%s)\n", created.ID, inputs[i].LotNumber)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
