package fileproto

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// rotationName renders the timestamped filename form spec.md §4.H names:
// "basename-YYYY-MM-DD-HH-mm-ss.ext" in UTC.
func rotationName(stem, ext string, t time.Time) string {
	t = t.UTC()
	return stem + "-" + t.Format("2006-01-02-15-04-05") + ext
}

var rotationPattern = regexp.MustCompile(`^(.*)-(\d{4})-(\d{2})-(\d{2})-(\d{2})-(\d{2})-(\d{2})(\.[^.]*)?$`)

// rotationSibling is one file on disk believed to belong to the same
// rotation stem, with its embedded timestamp parsed out.
type rotationSibling struct {
	path string
	ts   time.Time
}

// listRotationSiblings scans dir for files matching "stem-<timestamp>ext",
// sorted by embedded timestamp ascending (oldest first).
func listRotationSiblings(dir, stem, ext string) ([]rotationSibling, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []rotationSibling
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		m := rotationPattern.FindStringSubmatch(name)
		if m == nil || m[1] != stem {
			continue
		}
		if ext != "" && m[8] != ext {
			continue
		}
		ts, ok := parseRotationTimestamp(m[2:8])
		if !ok {
			continue
		}
		out = append(out, rotationSibling{path: filepath.Join(dir, name), ts: ts})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ts.Before(out[j].ts) })
	return out, nil
}

func parseRotationTimestamp(parts []string) (time.Time, bool) {
	if len(parts) != 6 {
		return time.Time{}, false
	}
	nums := make([]int, 6)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}
	return time.Date(nums[0], time.Month(nums[1]), nums[2], nums[3], nums[4], nums[5], 0, time.UTC), true
}

// splitStemExt splits a filename option like "log.sil" into ("log", ".sil").
func splitStemExt(filename string) (dir, stem, ext string) {
	dir = filepath.Dir(filename)
	base := filepath.Base(filename)
	ext = filepath.Ext(base)
	stem = strings.TrimSuffix(base, ext)
	return dir, stem, ext
}
