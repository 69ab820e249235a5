// Package main is a diagnostic tool for database connectivity. It loads the same
// configuration as the server, connects, and prints the migration state plus a
// short summary of club data. It exits non-zero on any failure so it can gate
// deployment pipelines on a reachable, migrated database.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/clubroom/clubroom/internal/config"
	"github.com/clubroom/clubroom/internal/db"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	database, err := db.Connect(ctx, cfg.Database.GetDSN(), 2, 1)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		log.Fatalf("Failed to read migration state: %v", err)
	}
	fmt.Printf("Schema version: %d (dirty: %v)\n", version, dirty)
	if dirty {
		fmt.Println("Run `server migrate force <version>` after checking the failed migration.")
	}

	var clubs, active, pending int
	err = database.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM clubs),
			(SELECT COUNT(*) FROM club_members WHERE status = 'active'),
			(SELECT COUNT(*) FROM club_members WHERE status = 'pending')`,
	).Scan(&clubs, &active, &pending)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Println("\n=== CLUBS ===")
	fmt.Printf("Clubs:               %d\n", clubs)
	fmt.Printf("Active members:      %d\n", active)
	fmt.Printf("Pending invitations: %d\n", pending)

	rows, err := database.QueryContext(ctx, `
		SELECT c.id, c.name, COUNT(m.id)
		FROM clubs c
		LEFT JOIN club_members m ON m.club_id = c.id AND m.status = 'active'
		GROUP BY c.id, c.name
		ORDER BY c.created_at DESC
		LIMIT 20`)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	fmt.Println("\n=== RECENT CLUBS ===")
	for rows.Next() {
		var id, name string
		var members int
		if err := rows.Scan(&id, &name, &members); err != nil {
			log.Printf("Warning: failed to scan club row: %v", err)
			continue
		}
		fmt.Printf("%s  %-30s members=%d\n", id, name, members)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Row iteration failed: %v", err)
	}
}
