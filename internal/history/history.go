package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"hedgedash/internal/interfaces"
	"hedgedash/internal/logger"
	"hedgedash/internal/types"
)

const (
	kindNav   = "nav"
	kindHedge = "hedge"
)

// Log appends hedge tables and holdings summaries as JSON lines to one file
// per day and kind: <dir>/<kind>/2006-01-02.jsonl.
type Log struct {
	mu  sync.Mutex
	dir string
	loc *time.Location
	now func() time.Time
}

func New(dir string, loc *time.Location) *Log {
	if loc == nil {
		loc = time.Local
	}
	return &Log{dir: dir, loc: loc, now: time.Now}
}

type navEntry struct {
	Time    string            `json:"time"`
	Summary *types.NavSummary `json:"summary"`
}

type hedgeEntry struct {
	Time  string            `json:"time"`
	Table *types.HedgeTable `json:"table"`
}

func (l *Log) AppendNav(s *types.NavSummary) error {
	now := l.now().In(l.loc)
	return l.append(kindNav, now, navEntry{Time: now.Format(time.RFC3339), Summary: s})
}

func (l *Log) AppendHedge(t *types.HedgeTable) error {
	now := l.now().In(l.loc)
	return l.append(kindHedge, now, hedgeEntry{Time: now.Format(time.RFC3339), Table: t})
}

func (l *Log) dailyFilepath(kind string, t time.Time) string {
	return filepath.Join(l.dir, kind, t.Format("2006-01-02")+".jsonl")
}

func (l *Log) append(kind string, now time.Time, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s entry: %w", kind, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.dailyFilepath(kind, now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips .jsonl files last modified more than retentionDays ago
// and removes the originals. It returns how many files were compressed.
func (l *Log) CompressOlder(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := l.now().AddDate(0, 0, -retentionDays)

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	err := filepath.WalkDir(l.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".jsonl") {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}

		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			return os.Remove(p)
		}
		if err := gzipFile(p, gz); err != nil {
			return fmt.Errorf("compress %s: %w", p, err)
		}
		n++
		return os.Remove(p)
	})
	return n, err
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

type recordingCalculator struct {
	inner interfaces.HedgeCalculator
	log   *Log
}

// RecordHedge appends every successful computation that produced rows.
// Write failures are logged and never fail the computation.
func RecordHedge(calc interfaces.HedgeCalculator, l *Log) interfaces.HedgeCalculator {
	return &recordingCalculator{inner: calc, log: l}
}

func (r *recordingCalculator) Compute(ctx context.Context, notionalWan float64) (*types.HedgeTable, error) {
	table, err := r.inner.Compute(ctx, notionalWan)
	if err == nil && len(table.Rows) > 0 {
		if werr := r.log.AppendHedge(table); werr != nil {
			logger.ErrorWithErr(ctx, "Failed to record hedge table", werr)
		}
	}
	return table, err
}

type recordingExtractor struct {
	inner interfaces.NavExtractor
	log   *Log
}

// RecordNav appends every successful holdings refresh.
func RecordNav(ex interfaces.NavExtractor, l *Log) interfaces.NavExtractor {
	return &recordingExtractor{inner: ex, log: l}
}

func (r *recordingExtractor) Refresh(ctx context.Context, password string) (*types.NavSummary, error) {
	summary, err := r.inner.Refresh(ctx, password)
	if err == nil {
		if werr := r.log.AppendNav(summary); werr != nil {
			logger.ErrorWithErr(ctx, "Failed to record holdings summary", werr)
		}
	}
	return summary, err
}
