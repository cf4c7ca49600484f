// Package main provides a tool to build per-reciter timing databases.
//
// It reads a JSON timing file and writes {reciterID}.db into the timing
// directory the server watches. With --synth it generates uniform synthetic
// timings instead, which is handy for exercising the verse tracker without
// real data.
//
// Usage:
//
//	go run ./cmd/timingimport --reciter 1 --in timings.json
//	go run ./cmd/timingimport --reciter 1 --synth --chapter 36 --verse-ms 4000
//
// The input file holds one chapter table per entry:
//
//	[
//	  {"chapter": 1, "verses": [
//	    {"chapter": 1, "verse": 1, "start_ms": 0, "end_ms": 5800},
//	    {"chapter": 1, "verse": 2, "start_ms": 5800, "end_ms": 11900}
//	  ]}
//	]
package main

import (
	"encoding/json/v2"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tartilapp/tartil-server/internal/domain"
	"github.com/tartilapp/tartil-server/internal/mushaf"
	"github.com/tartilapp/tartil-server/internal/timing"
)

var (
	reciterID = flag.Int("reciter", 0, "Reciter ID the database belongs to (required)")
	inFile    = flag.String("in", "", "JSON timing file to import")
	outDir    = flag.String("out", "", "Timing directory (default: $HOME/Tartil/data/timings)")
	synth     = flag.Bool("synth", false, "Generate synthetic uniform timings instead of importing")
	chapter   = flag.Int("chapter", 0, "Chapter for --synth (0 = all 114)")
	verseMs   = flag.Int64("verse-ms", 5000, "Verse length in milliseconds for --synth")
)

func main() {
	flag.Parse()

	if *reciterID <= 0 {
		log.Fatal("--reciter is required and must be positive")
	}
	if !*synth && *inFile == "" {
		log.Fatal("either --in or --synth is required")
	}

	dir := *outDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to resolve home directory: %v", err)
		}
		dir = filepath.Join(home, "Tartil", "data", "timings")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("Failed to create timing directory: %v", err)
	}

	var tables []*domain.ChapterTiming
	var err error
	if *synth {
		tables = synthesize(*chapter, *verseMs)
	} else {
		tables, err = readTables(*inFile)
		if err != nil {
			log.Fatalf("Failed to read timing file: %v", err)
		}
	}

	if len(tables) == 0 {
		log.Fatal("No chapter tables to write")
	}

	verses := 0
	for _, table := range tables {
		verses += len(table.Verses)
	}

	path := filepath.Join(dir, strconv.Itoa(*reciterID)+".db")
	if err := timing.CreateDatabase(path, tables...); err != nil {
		log.Fatalf("Failed to write timing database: %v", err)
	}

	fmt.Printf("Wrote %s: %d chapters, %d verses\n", path, len(tables), verses)
}

// readTables loads and sanity checks the chapter tables from a JSON file.
func readTables(path string) ([]*domain.ChapterTiming, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tables []*domain.ChapterTiming
	if err := json.UnmarshalRead(f, &tables); err != nil {
		return nil, err
	}

	for _, table := range tables {
		if !domain.ValidChapter(table.Chapter) {
			return nil, fmt.Errorf("chapter %d out of range", table.Chapter)
		}
		for _, v := range table.Verses {
			if v.EndMs <= v.StartMs {
				return nil, fmt.Errorf("verse %d:%d has empty interval [%d, %d)",
					table.Chapter, v.Verse, v.StartMs, v.EndMs)
			}
		}
		if gaps := table.Gaps(); len(gaps) > 0 {
			fmt.Printf("Warning: chapter %d has %d gaps between verses\n", table.Chapter, len(gaps))
		}
	}
	return tables, nil
}

// synthesize builds uniform timing tables from the canonical verse counts.
func synthesize(onlyChapter int, verseMs int64) []*domain.ChapterTiming {
	var tables []*domain.ChapterTiming
	for _, ch := range mushaf.All() {
		if onlyChapter != 0 && ch.Number != onlyChapter {
			continue
		}
		table := &domain.ChapterTiming{Chapter: ch.Number}
		for v := 1; v <= ch.Verses; v++ {
			table.Verses = append(table.Verses, domain.VerseTiming{
				Chapter: ch.Number,
				Verse:   v,
				StartMs: int64(v-1) * verseMs,
				EndMs:   int64(v) * verseMs,
			})
		}
		tables = append(tables, table)
	}
	return tables
}
