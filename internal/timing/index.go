// Package timing serves verse timing tables from per-reciter SQLite
// databases and resolves playback positions to verses.
//
// Databases live in one directory as {reciterID}.db and may appear or
// disappear while the server runs; a directory watcher keeps the set of
// timed reciters current. Chapter tables are loaded lazily and cached
// until evicted.
package timing

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tartilapp/tartil-server/internal/domain"
	"github.com/tartilapp/tartil-server/internal/errors"
)

type tableKey struct {
	reciter int
	chapter int
}

// Index is the timing lookup service.
type Index struct {
	dir        string
	correction time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	dbs     map[int]*sql.DB
	tables  map[tableKey]*domain.ChapterTiming
	loading map[tableKey]chan struct{}

	timedMu sync.RWMutex
	timed   map[int]bool
}

// NewIndex creates a timing index over dir. The directory is created if
// missing and scanned for existing databases.
func NewIndex(dir string, correction time.Duration, logger *slog.Logger) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create timing dir: %w", err)
	}

	idx := &Index{
		dir:        dir,
		correction: correction,
		logger:     logger,
		dbs:        make(map[int]*sql.DB),
		tables:     make(map[tableKey]*domain.ChapterTiming),
		loading:    make(map[tableKey]chan struct{}),
		timed:      make(map[int]bool),
	}

	if err := idx.rescan(); err != nil {
		return nil, err
	}

	logger.Info("Timing index ready", "dir", dir, "reciters", idx.timedCount())
	return idx, nil
}

// Correction returns the lookup correction offset.
func (idx *Index) Correction() time.Duration {
	return idx.correction
}

// Dir returns the directory holding the timing databases.
func (idx *Index) Dir() string {
	return idx.dir
}

// HasTiming reports whether a timing database exists for the reciter.
func (idx *Index) HasTiming(reciterID int) bool {
	idx.timedMu.RLock()
	defer idx.timedMu.RUnlock()
	return idx.timed[reciterID]
}

// TimedReciters returns the IDs of all reciters with a local database.
func (idx *Index) TimedReciters() []int {
	idx.timedMu.RLock()
	defer idx.timedMu.RUnlock()

	out := make([]int, 0, len(idx.timed))
	for id := range idx.timed {
		out = append(out, id)
	}
	return out
}

// Watch follows directory changes until ctx is canceled, keeping the set
// of timed reciters current. Blocks; run it in its own goroutine.
func (idx *Index) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(idx.dir); err != nil {
		return fmt.Errorf("watch timing dir: %w", err)
	}

	idx.logger.Debug("Watching timing directory", "dir", idx.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".db") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := idx.rescan(); err != nil {
				idx.logger.Warn("Timing directory rescan failed", "error", err)
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				idx.evictFile(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			idx.logger.Warn("Timing watcher error", "error", err)
		}
	}
}

// ChapterTable returns the timing table for one chapter, loading it from
// the reciter's database on first use. Concurrent requests for the same
// table share a single load.
func (idx *Index) ChapterTable(ctx context.Context, reciterID, chapter int) (*domain.ChapterTiming, error) {
	if !domain.ValidChapter(chapter) {
		return nil, errors.InvalidArgumentf("chapter %d out of range [%d, %d]", chapter, domain.MinChapter, domain.MaxChapter)
	}

	key := tableKey{reciter: reciterID, chapter: chapter}

	for {
		idx.mu.Lock()
		if table, ok := idx.tables[key]; ok {
			idx.mu.Unlock()
			return table, nil
		}
		if ch, ok := idx.loading[key]; ok {
			// Another goroutine is loading this table; wait for it.
			idx.mu.Unlock()
			select {
			case <-ch:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		ch := make(chan struct{})
		idx.loading[key] = ch
		idx.mu.Unlock()

		table, err := idx.loadTable(ctx, reciterID, chapter)

		idx.mu.Lock()
		delete(idx.loading, key)
		if err == nil {
			idx.tables[key] = table
		}
		idx.mu.Unlock()
		close(ch)

		return table, err
	}
}

// CurrentVerse resolves a playback position to a verse number. The
// correction offset is subtracted first, floored at zero. Returns 0 when
// the position falls outside every verse interval.
func (idx *Index) CurrentVerse(ctx context.Context, reciterID, chapter int, positionMs int64) (int, error) {
	table, err := idx.ChapterTable(ctx, reciterID, chapter)
	if err != nil {
		return 0, err
	}

	corrected := positionMs - idx.correction.Milliseconds()
	if corrected < 0 {
		corrected = 0
	}
	return table.VerseAt(corrected), nil
}

// TimingFor returns the timing entry for one verse.
func (idx *Index) TimingFor(ctx context.Context, reciterID, chapter, verse int) (domain.VerseTiming, error) {
	table, err := idx.ChapterTable(ctx, reciterID, chapter)
	if err != nil {
		return domain.VerseTiming{}, err
	}

	for _, v := range table.Verses {
		if v.Verse == verse {
			return v, nil
		}
	}
	return domain.VerseTiming{}, errors.NotFoundf("verse %d:%d not in timing table", chapter, verse)
}

// ChapterDuration returns the end of the last timed verse, used as the
// item duration when the stream itself does not report one.
func (idx *Index) ChapterDuration(ctx context.Context, reciterID, chapter int) (int64, error) {
	table, err := idx.ChapterTable(ctx, reciterID, chapter)
	if err != nil {
		return 0, err
	}
	return table.EndMs(), nil
}

// VerseStart returns the start position of a verse in milliseconds.
func (idx *Index) VerseStart(ctx context.Context, reciterID, chapter, verse int) (int64, error) {
	entry, err := idx.TimingFor(ctx, reciterID, chapter, verse)
	if err != nil {
		return 0, err
	}
	return entry.StartMs, nil
}

// Preload warms the cache for a set of chapters. Missing chapters are
// reported but do not abort the remaining loads.
func (idx *Index) Preload(ctx context.Context, reciterID int, chapters []int) error {
	var errs []error
	for _, chapter := range chapters {
		if _, err := idx.ChapterTable(ctx, reciterID, chapter); err != nil {
			errs = append(errs, fmt.Errorf("chapter %d: %w", chapter, err))
		}
	}
	return errors.Join(errs...)
}

// ClearCache drops all cached tables and closes open database handles.
func (idx *Index) ClearCache() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for id, db := range idx.dbs {
		if err := db.Close(); err != nil {
			idx.logger.Warn("Failed to close timing database", "reciter_id", id, "error", err)
		}
	}
	idx.dbs = make(map[int]*sql.DB)
	idx.tables = make(map[tableKey]*domain.ChapterTiming)

	idx.logger.Info("Timing cache cleared")
}

// Close releases all database handles.
func (idx *Index) Close() error {
	idx.ClearCache()
	return nil
}

// loadTable opens the reciter database if needed and reads one chapter.
func (idx *Index) loadTable(ctx context.Context, reciterID, chapter int) (*domain.ChapterTiming, error) {
	db, err := idx.openDB(reciterID)
	if err != nil {
		return nil, err
	}

	table, err := queryChapter(ctx, db, chapter)
	if err != nil {
		return nil, err
	}
	if len(table.Verses) == 0 {
		return nil, errors.NotFoundf("no timing for reciter %d chapter %d", reciterID, chapter)
	}

	if gaps := table.Gaps(); len(gaps) > 0 {
		idx.logger.Warn("Timing table has gaps between verses",
			"reciter_id", reciterID, "chapter", chapter, "gaps", len(gaps))
	}

	idx.logger.Debug("Timing table loaded",
		"reciter_id", reciterID, "chapter", chapter, "verses", len(table.Verses))
	return table, nil
}

func (idx *Index) openDB(reciterID int) (*sql.DB, error) {
	idx.mu.Lock()
	if db, ok := idx.dbs[reciterID]; ok {
		idx.mu.Unlock()
		return db, nil
	}
	idx.mu.Unlock()

	path := filepath.Join(idx.dir, strconv.Itoa(reciterID)+".db")
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NotFoundf("no timing database for reciter %d", reciterID)
	}

	db, err := openTimingDB(path)
	if err != nil {
		return nil, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	// Another goroutine may have opened it while we did; keep theirs.
	if existing, ok := idx.dbs[reciterID]; ok {
		db.Close()
		return existing, nil
	}
	idx.dbs[reciterID] = db
	return db, nil
}

// rescan rebuilds the timed reciter set from the directory contents.
func (idx *Index) rescan() error {
	entries, err := os.ReadDir(idx.dir)
	if err != nil {
		return fmt.Errorf("read timing dir: %w", err)
	}

	timed := make(map[int]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".db") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, ".db"))
		if err != nil || id <= 0 {
			continue
		}
		timed[id] = true
	}

	idx.timedMu.Lock()
	idx.timed = timed
	idx.timedMu.Unlock()
	return nil
}

// evictFile drops cached state for a removed database file.
func (idx *Index) evictFile(path string) {
	name := filepath.Base(path)
	id, err := strconv.Atoi(strings.TrimSuffix(name, ".db"))
	if err != nil {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if db, ok := idx.dbs[id]; ok {
		db.Close()
		delete(idx.dbs, id)
	}
	for key := range idx.tables {
		if key.reciter == id {
			delete(idx.tables, key)
		}
	}

	idx.logger.Info("Timing database removed", "reciter_id", id)
}

func (idx *Index) timedCount() int {
	idx.timedMu.RLock()
	defer idx.timedMu.RUnlock()
	return len(idx.timed)
}
