package main

import (
	"fmt"
	"os"

	"github.com/DIEGHOST64/Prisma/internal/render"
)

// Validates status catalog files (statuses, colors and the fallback entry).
func main() {
	if len(os.Args) < 2 {
		fmt.Println("No files to check.")
		os.Exit(0)
	}

	failed := false
	for _, path := range os.Args[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("❌ Failed to read %s: %v\n", path, err)
			failed = true
			continue
		}

		catalog, err := render.ParseCatalog(data)
		if err != nil {
			fmt.Printf("❌ Invalid status catalog %s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("✅ %s is valid (%d statuses)\n", path, len(catalog.Statuses))
	}

	if failed {
		os.Exit(1)
	}
}
