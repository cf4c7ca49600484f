// Package main provides a read-only inspection tool for the server store.
//
// Usage:
//
//	DB_PATH=~/Tartil/data/db go run ./cmd/dbinspect
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/tartilapp/tartil-server/internal/domain"
	"github.com/tartilapp/tartil-server/internal/store"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to resolve home directory: %v", err)
		}
		dbPath = filepath.Join(home, "Tartil", "data", "db")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Store Inspection ===")
	fmt.Println()

	err = db.View(func(txn *badger.Txn) error {
		showPlayerSettings(txn)
		showResumePoint(txn)
		showRemainingKeys(txn)
		return nil
	})
	if err != nil {
		log.Fatalf("Inspection failed: %v", err)
	}
}

func showPlayerSettings(txn *badger.Txn) {
	item, err := txn.Get([]byte("settings:player"))
	if err != nil {
		fmt.Println("Player settings: (none)")
		return
	}

	_ = item.Value(func(val []byte) error {
		var settings domain.PlayerSettings
		if err := json.Unmarshal(val, &settings); err != nil {
			fmt.Printf("Player settings: unreadable (%v)\n", err)
			return nil
		}
		fmt.Println("Player settings:")
		fmt.Printf("  Reciter ID: %d\n", settings.ReciterID)
		fmt.Printf("  Speed:      %.2f\n", settings.Speed)
		fmt.Printf("  Repeat:     %v\n", settings.Repeat)
		fmt.Printf("  Updated:    %s\n", settings.UpdatedAt.Format("2006-01-02 15:04:05"))
		return nil
	})
	fmt.Println()
}

func showResumePoint(txn *badger.Txn) {
	item, err := txn.Get([]byte("session:resume"))
	if err != nil {
		fmt.Println("Resume point: (none)")
		fmt.Println()
		return
	}

	_ = item.Value(func(val []byte) error {
		var point store.ResumePoint
		if err := json.Unmarshal(val, &point); err != nil {
			fmt.Printf("Resume point: unreadable (%v)\n", err)
			return nil
		}
		fmt.Println("Resume point:")
		fmt.Printf("  Reciter ID: %d\n", point.ReciterID)
		fmt.Printf("  Chapter:    %d\n", point.Chapter)
		fmt.Printf("  Position:   %.1fs\n", float64(point.PositionMs)/1000)
		fmt.Printf("  Updated:    %s\n", point.UpdatedAt.Format("2006-01-02 15:04:05"))
		return nil
	})
	fmt.Println()
}

func showRemainingKeys(txn *badger.Txn) {
	known := map[string]bool{
		"settings:player": true,
		"session:resume":  true,
	}

	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	total := 0
	var unknown []string
	for it.Rewind(); it.Valid(); it.Next() {
		total++
		key := string(it.Item().Key())
		if !known[key] {
			unknown = append(unknown, key)
		}
	}

	fmt.Printf("Total keys: %d\n", total)
	if len(unknown) > 0 {
		fmt.Println("Other keys:")
		for _, key := range unknown {
			fmt.Printf("  %s\n", key)
		}
	}
}
