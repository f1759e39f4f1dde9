package textproto

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// rotationName builds a "stem-YYYY-MM-DD-HH-mm-ss.ext" filename, matching
// fileproto's rotation naming scheme so log management tooling sees one
// consistent convention across binary and text sinks.
func rotationName(stem, ext string, t time.Time) string {
	return stem + "-" + t.UTC().Format("2006-01-02-15-04-05") + ext
}

func splitStemExt(filename string) (dir, stem, ext string) {
	dir = filepath.Dir(filename)
	base := filepath.Base(filename)
	ext = filepath.Ext(base)
	stem = strings.TrimSuffix(base, ext)
	return dir, stem, ext
}

var rotationPattern = regexp.MustCompile(`^(.+)-(\d{4})-(\d{2})-(\d{2})-(\d{2})-(\d{2})-(\d{2})$`)

type rotationSibling struct {
	path string
	ts   time.Time
}

func listRotationSiblings(dir, stem, ext string) ([]rotationSibling, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []rotationSibling
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ext) {
			continue
		}
		base := strings.TrimSuffix(name, ext)
		m := rotationPattern.FindStringSubmatch(base)
		if m == nil || m[1] != stem {
			continue
		}
		ts, ok := parseRotationTimestamp(m[2:])
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

func pruneMaxParts(dir, stem, ext string, maxParts int, activePath string) error {
	siblings, err := listRotationSiblings(dir, stem, ext)
	if err != nil {
		return err
	}
	excess := len(siblings) - maxParts
	for i := 0; i < excess; i++ {
		if siblings[i].path == activePath {
			continue
		}
		if err := os.Remove(siblings[i].path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
