// Package tradelog keeps a daily JSONL journal of the orders placed through
// the server.
package tradelog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var ist = time.FixedZone("IST", 19800)

const (
	dayLayout = "2006-01-02"
	ext       = ".jsonl"
)

type Entry struct {
	Time       time.Time `json:"time"`
	OrderID    string    `json:"order_id"`
	Ticker     string    `json:"ticker"`
	Side       string    `json:"side"`
	Type       string    `json:"type"`
	Quantity   int       `json:"quantity"`
	LimitPrice float64   `json:"limit_price,omitempty"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	Mode       string    `json:"mode,omitempty"`
}

// Journal appends entries to one file per IST day under dir.
type Journal struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func New(dir string) *Journal {
	if dir == "" {
		dir = filepath.Join("logs", "journal")
	}
	return &Journal{dir: dir, now: time.Now}
}

func (j *Journal) Dir() string { return j.dir }

func (j *Journal) dailyFilepath(t time.Time) string {
	return filepath.Join(j.dir, t.In(ist).Format(dayLayout)+ext)
}

// Append stamps e with the current time unless it already carries one.
func (j *Journal) Append(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = j.now()
	}
	e.Time = e.Time.In(ist)
	p := j.dailyFilepath(e.Time)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// Read returns entries at or after since, oldest first. Compressed days are
// read transparently.
func (j *Journal) Read(since time.Time) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	files, err := os.ReadDir(j.dir)
	if os.IsNotExist(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, err
	}

	sinceDay := ""
	if !since.IsZero() {
		sinceDay = since.In(ist).Format(dayLayout)
	}

	plain := make(map[string]bool, len(files))
	for _, f := range files {
		plain[f.Name()] = true
	}

	out := []Entry{}
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !(strings.HasSuffix(name, ext) || strings.HasSuffix(name, ext+".gz")) {
			continue
		}
		// A day that is still plain was not fully archived.
		if strings.HasSuffix(name, ".gz") && plain[strings.TrimSuffix(name, ".gz")] {
			continue
		}
		day := strings.SplitN(name, ".", 2)[0]
		if day < sinceDay {
			continue
		}
		entries, err := readFile(filepath.Join(j.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		for _, e := range entries {
			if !e.Time.Before(since) {
				out = append(out, e)
			}
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Time.Before(out[b].Time) })
	return out, nil
}

func readFile(p string) ([]Entry, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(p, ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		r = gr
	}

	var out []Entry
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// CompressOlder gzips journal files older than retentionDays and removes the
// plain copies. A plain file is only removed once its archive has been fully
// written, so a failed pass leaves it in place for the next one. Failures are
// joined and returned after every eligible file has been tried.
func (j *Journal) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := j.now().AddDate(0, 0, -retentionDays)
	var errs []error
	walkErr := filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == j.dir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			errs = append(errs, err)
			return nil
		}
		if d.IsDir() || filepath.Ext(p) != ext {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		// The plain file wins over any archive left by an earlier pass.
		if err := gzipFile(p, p+".gz"); err != nil {
			errs = append(errs, fmt.Errorf("compress %s: %w", filepath.Base(p), err))
			return nil
		}
		if err := os.Remove(p); err != nil {
			errs = append(errs, err)
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return errors.Join(errs...)
}

// gzipFile writes src compressed to a temporary file and renames it over dst,
// so dst is either absent, untouched, or complete.
func gzipFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(tmp)
		}
	}()

	gw := gzip.NewWriter(out)
	if _, err = io.Copy(gw, in); err != nil {
		return err
	}
	if err = gw.Close(); err != nil {
		return err
	}
	if err = out.Sync(); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

// Timespans accepted by Since.
var Timespans = []string{"day", "week", "month", "3month", "year", "5year", "all"}

// Since returns the start of timespan ending at now. "all" is the zero time.
func Since(timespan string, now time.Time) (time.Time, error) {
	switch strings.ToLower(timespan) {
	case "day":
		return now.AddDate(0, 0, -1), nil
	case "week":
		return now.AddDate(0, 0, -7), nil
	case "month":
		return now.AddDate(0, -1, 0), nil
	case "3month":
		return now.AddDate(0, -3, 0), nil
	case "year":
		return now.AddDate(-1, 0, 0), nil
	case "5year":
		return now.AddDate(-5, 0, 0), nil
	case "all":
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("invalid timespan %q, expected one of %s", timespan, strings.Join(Timespans, ", "))
	}
}
