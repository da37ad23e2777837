// Package atlas resolves alternate image URLs from the proteinatlas
// metadata dump. Images occasionally move off the standard antibody
// path; the dump's imageUrl entries record where they actually live.
// An Index built from the dump serves as the orchestrator's fallback
// resolver for tasks that failed with permanent-not-found.
package atlas

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/pithecene-io/stainfetch/iox"
	"github.com/pithecene-io/stainfetch/types"
)

// imageURLPattern extracts the URL from an imageUrl element line.
var imageURLPattern = regexp.MustCompile(`<imageUrl>\s*(.*?)\s*</imageUrl>`)

// Reader streams the proteinatlas.xml dump one line at a time,
// accepting a local path or an HTTP URL, gzipped or plain.
type Reader struct {
	client *http.Client
}

// NewReader returns a Reader using http.DefaultClient for remote
// dumps.
func NewReader() *Reader {
	return &Reader{client: http.DefaultClient}
}

// NewReaderWithClient returns a Reader with a custom HTTP client.
func NewReaderWithClient(client *http.Client) *Reader {
	return &Reader{client: client}
}

// Lines opens source and invokes fn for each line until EOF or fn
// returns an error. Dumps ending in .gz are decompressed on the fly.
func (r *Reader) Lines(ctx context.Context, source string, fn func(line string) error) error {
	raw, err := r.open(ctx, source)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(raw)

	var stream io.Reader = raw
	if strings.HasSuffix(source, ".gz") {
		gz, err := gzip.NewReader(raw)
		if err != nil {
			return fmt.Errorf("open gzip stream %s: %w", source, err)
		}
		defer gz.Close()
		stream = gz
	}

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", source, err)
	}
	return nil
}

func (r *Reader) open(ctx context.Context, source string) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("build atlas request: %w", err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch atlas dump %s: %w", source, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch atlas dump %s: status %d", source, resp.StatusCode)
		}
		return resp.Body, nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open atlas dump: %w", err)
	}
	return f, nil
}

// Index maps tile stems ("1736_F10_19_") to the full image URL the
// atlas serves for that tile. Only blue-stain composite entries are
// indexed; every tile has one.
type Index struct {
	urls map[string]string
}

// BuildIndex streams source through r and collects blue-stain
// imageUrl entries into an Index.
func BuildIndex(ctx context.Context, r *Reader, source string) (*Index, error) {
	idx := &Index{urls: make(map[string]string)}
	err := r.Lines(ctx, source, func(line string) error {
		idx.addLine(line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// addLine indexes line if it is a blue-stain imageUrl entry;
// everything else is ignored.
func (idx *Index) addLine(line string) {
	if !strings.Contains(line, "blue") {
		return
	}
	m := imageURLPattern.FindStringSubmatch(line)
	if m == nil {
		return
	}
	url := m[1]

	// "https://images.proteinatlas.org/15021/1736_F10_19_cr...jpg"
	// keys as "1736_F10_19_".
	tail := url[strings.LastIndex(url, "/")+1:]
	parts := strings.SplitN(tail, "_", 4)
	if len(parts) < 4 {
		return
	}
	stem := strings.Join(parts[:3], "_") + "_"
	if _, ok := idx.urls[stem]; !ok {
		idx.urls[stem] = url
	}
}

// Len reports how many tiles the index knows.
func (idx *Index) Len() int { return len(idx.urls) }

// URLs returns every indexed image URL, ordered by tile stem so
// repeated builds over the same dump enumerate identically.
func (idx *Index) URLs() []string {
	stems := make([]string, 0, len(idx.urls))
	for stem := range idx.urls {
		stems = append(stems, stem)
	}
	sort.Strings(stems)

	urls := make([]string, 0, len(stems))
	for _, stem := range stems {
		urls = append(urls, idx.urls[stem])
	}
	return urls
}

// Lookup returns the alternate URL for a tile stem.
func (idx *Index) Lookup(stem string) (string, bool) {
	url, ok := idx.urls[stem]
	return url, ok
}

// Resolver adapts the index to the orchestrator's fallback hook. The
// atlas serves one composite image per tile regardless of channel, so
// every channel task of a tile resolves to the same URL.
func (idx *Index) Resolver() func(task *types.ChannelTask) (string, bool) {
	return func(task *types.ChannelTask) (string, bool) {
		return idx.Lookup(task.Key.Stem())
	}
}
