package publish

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	fallbackPrefix = "lead_"
	fallbackExt    = ".json"
	// fallbackTimeLayout renders UTC time with microseconds, e.g.
	// 20261017T142501.123456Z.
	fallbackTimeLayout = "20060102T150405.000000Z"
)

// FallbackRecord is one message that could not be delivered. The file holds
// the exact payload that was handed to the broker.
type FallbackRecord struct {
	// ID is the file name without extension. It is unique per record, which
	// makes replay idempotent.
	ID        string
	FileName  string
	CreatedAt time.Time
	Payload   []byte
}

// FallbackQueue stores undeliverable messages as files in one directory.
type FallbackQueue struct {
	dir string
	mu  sync.Mutex
}

// NewFallbackQueue creates dir if needed.
func NewFallbackQueue(dir string) (*FallbackQueue, error) {
	if dir == "" {
		return nil, eris.New("publish: fallback dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "publish: create fallback dir %s", dir)
	}
	return &FallbackQueue{dir: dir}, nil
}

// Dir returns the queue directory.
func (q *FallbackQueue) Dir() string { return q.dir }

// Write stores payload atomically: the bytes go to a temp file that is then
// renamed into place, so a reader never sees a partial record.
func (q *FallbackQueue) Write(name string, payload []byte, at time.Time) (FallbackRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	at = at.UTC()
	slug := Slug(name)
	var fileName string
	for {
		fileName = fallbackPrefix + at.Format(fallbackTimeLayout) + "_" + slug + fallbackExt
		if _, err := os.Stat(filepath.Join(q.dir, fileName)); err != nil {
			break
		}
		at = at.Add(time.Microsecond)
	}

	tmp, err := os.CreateTemp(q.dir, ".tmp-"+fallbackPrefix+"*")
	if err != nil {
		return FallbackRecord{}, eris.Wrap(err, "publish: create fallback temp file")
	}
	tmpName := tmp.Name()
	fail := func(err error, action string) (FallbackRecord, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return FallbackRecord{}, eris.Wrap(err, "publish: "+action)
	}
	if _, err := tmp.Write(payload); err != nil {
		return fail(err, "write fallback temp file")
	}
	if err := tmp.Sync(); err != nil {
		return fail(err, "sync fallback temp file")
	}
	if err := tmp.Close(); err != nil {
		return fail(err, "close fallback temp file")
	}
	if err := os.Rename(tmpName, filepath.Join(q.dir, fileName)); err != nil {
		return fail(err, "rename fallback file")
	}

	return FallbackRecord{
		ID:        strings.TrimSuffix(fileName, fallbackExt),
		FileName:  fileName,
		CreatedAt: at,
		Payload:   payload,
	}, nil
}

// List returns the stored records, oldest first. Temp files are ignored.
func (q *FallbackQueue) List() ([]FallbackRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "publish: read fallback dir %s", q.dir)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, fallbackPrefix) || !strings.HasSuffix(name, fallbackExt) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]FallbackRecord, 0, len(names))
	for _, name := range names {
		payload, err := os.ReadFile(filepath.Join(q.dir, name))
		if err != nil {
			return nil, eris.Wrapf(err, "publish: read fallback file %s", name)
		}
		records = append(records, FallbackRecord{
			ID:        strings.TrimSuffix(name, fallbackExt),
			FileName:  name,
			CreatedAt: parseFallbackTime(name),
			Payload:   payload,
		})
	}
	return records, nil
}

// Remove deletes a record. Removing a missing record is not an error.
func (q *FallbackQueue) Remove(rec FallbackRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	err := os.Remove(filepath.Join(q.dir, rec.FileName))
	if err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "publish: remove fallback file %s", rec.FileName)
	}
	return nil
}

func parseFallbackTime(name string) time.Time {
	rest := strings.TrimPrefix(name, fallbackPrefix)
	if len(rest) < len(fallbackTimeLayout) {
		return time.Time{}
	}
	t, err := time.Parse(fallbackTimeLayout, rest[:len(fallbackTimeLayout)])
	if err != nil {
		return time.Time{}
	}
	return t
}

// Slug turns a display name into a lowercase ASCII file-name fragment.
// Accents are folded, other runs of non-alphanumerics become single dashes
// and the result is capped at 48 characters. Empty input gives "unknown".
func Slug(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimRight(sb.String(), "-")
	if len(slug) > 48 {
		slug = strings.TrimRight(slug[:48], "-")
	}
	if slug == "" {
		return "unknown"
	}
	return slug
}
