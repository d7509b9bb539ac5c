// Package bundle exports and imports journal records as a deterministic TAR
// archive: blocks/<cid> entries in lexicographic order plus an optional
// index.json naming the records of each guard request.
package bundle

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/tonkeeper/2fa-extension/journal"
)

// FormatVersion is the index schema version.
const FormatVersion = 1

var epoch = time.Unix(0, 0).UTC()

// ExportOptions controls Export.
type ExportOptions struct {
	// Labels maps descriptive names (e.g. "counter-3/receipt") to CIDs.
	Labels map[string]cid.Cid
	// IncludeIndex adds index.json.
	IncludeIndex bool
}

// Export writes the records ids from a to w. Every record is re-verified
// against its CID before it is written.
func Export(w io.Writer, a journal.Archive, ids []cid.Cid, opts ExportOptions) (err error) {
	if a == nil {
		return errors.New("bundle: nil archive")
	}
	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return journal.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	names := make([]string, 0, len(uniq))
	for s := range uniq {
		names = append(names, s)
	}
	sort.Strings(names)

	tw := tar.NewWriter(w)
	defer func() {
		if cerr := tw.Close(); err == nil {
			err = cerr
		}
	}()

	idx := index{Version: FormatVersion, CIDCodec: "raw", Multihash: "sha2-256"}
	for _, s := range names {
		b, err := a.Get(uniq[s])
		if err != nil {
			return fmt.Errorf("bundle: get %s: %w", s, err)
		}
		if err := journal.Verify(uniq[s], b); err != nil {
			return err
		}
		if err := writeEntry(tw, "blocks/"+s, b); err != nil {
			return err
		}
		idx.Blocks = append(idx.Blocks, indexBlock{CID: s, Size: len(b)})
	}
	if !opts.IncludeIndex {
		return nil
	}

	labels := make([]string, 0, len(opts.Labels))
	for k := range opts.Labels {
		if k == "" {
			return errors.New("bundle: empty label")
		}
		labels = append(labels, k)
	}
	sort.Strings(labels)
	for _, k := range labels {
		v := opts.Labels[k]
		if !v.Defined() {
			return journal.ErrInvalidCID
		}
		idx.Labels = append(idx.Labels, indexLabel{Name: k, CID: v.String()})
	}
	b, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return writeEntry(tw, "index.json", append(b, '\n'))
}

// ImportOptions controls Import.
type ImportOptions struct {
	// IgnoreUnknown skips unexpected entries instead of failing.
	IgnoreUnknown bool
}

// Import reads a bundle and stores every block in a. It fails closed on
// unknown entries unless opts.IgnoreUnknown is set. It returns the imported
// CIDs in bundle order.
func Import(r io.Reader, a journal.Archive, opts ImportOptions) ([]cid.Cid, error) {
	if a == nil {
		return nil, errors.New("bundle: nil archive")
	}
	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var out []cid.Cid
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		name := cleanPath(h.Name)
		if name == "" {
			return out, fmt.Errorf("bundle: invalid entry path %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return out, fmt.Errorf("bundle: unexpected entry type %v (%s)", h.Typeflag, name)
		}
		if name == "index.json" {
			continue
		}
		s, ok := strings.CutPrefix(name, "blocks/")
		if !ok {
			if opts.IgnoreUnknown {
				continue
			}
			return out, fmt.Errorf("bundle: unknown entry %s", name)
		}
		id, err := cid.Decode(s)
		if err != nil || !id.Defined() {
			return out, journal.ErrInvalidCID
		}
		if _, dup := seen[s]; dup {
			return out, fmt.Errorf("bundle: duplicate block %s", s)
		}
		seen[s] = struct{}{}

		b, err := io.ReadAll(tr)
		if err != nil {
			return out, err
		}
		if err := journal.Verify(id, b); err != nil {
			return out, err
		}
		got, err := a.Put(b)
		if err != nil {
			return out, err
		}
		if !got.Equals(id) {
			return out, journal.ErrCIDMismatch
		}
		out = append(out, id)
	}
}

// ReadIndex extracts index.json labels from a bundle.
func ReadIndex(r io.Reader) (map[string]cid.Cid, error) {
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil, errors.New("bundle: no index.json")
		}
		if err != nil {
			return nil, err
		}
		if cleanPath(h.Name) != "index.json" {
			continue
		}
		var idx index
		if err := json.NewDecoder(tr).Decode(&idx); err != nil {
			return nil, fmt.Errorf("bundle: decode index: %w", err)
		}
		if idx.Version != FormatVersion {
			return nil, fmt.Errorf("bundle: unsupported index version %d", idx.Version)
		}
		out := make(map[string]cid.Cid, len(idx.Labels))
		for _, l := range idx.Labels {
			id, err := cid.Decode(l.CID)
			if err != nil {
				return nil, journal.ErrInvalidCID
			}
			out[l.Name] = id
		}
		return out, nil
	}
}

type index struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Blocks    []indexBlock `json:"blocks"`
	Labels    []indexLabel `json:"labels,omitempty"`
}

type indexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type indexLabel struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

func writeEntry(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

func cleanPath(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimPrefix(strings.TrimPrefix(name, "./"), "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
