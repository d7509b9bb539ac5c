package receipt

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tonkeeper/2fa-extension/envelope"
	"github.com/tonkeeper/2fa-extension/guard"
)

// ErrNonCanonical is returned for receipts that parse but do not match their
// canonical rendering byte for byte.
var ErrNonCanonical = errors.New("receipt: non-canonical encoding")

type document struct {
	receipt Receipt
	crypto  []string
}

// Parse decodes canonical receipt bytes.
func Parse(b []byte) (*Receipt, error) {
	doc, err := parse(b)
	if err != nil {
		return nil, err
	}
	r := doc.receipt
	return &r, nil
}

func parse(b []byte) (*document, error) {
	text := string(b)
	if !strings.HasPrefix(text, Preamble+"\n") || !strings.HasSuffix(text, Postamble+"\n") {
		return nil, errors.New("receipt: missing preamble or postamble")
	}
	body := strings.TrimSuffix(strings.TrimPrefix(text, Preamble+"\n"), Postamble+"\n")
	blocks := strings.Split(body, "\n\n")
	if len(blocks) != len(sections)+1 || blocks[len(blocks)-1] != "" {
		return nil, fmt.Errorf("receipt: expected %d sections", len(sections))
	}

	lines := make(map[string][]string, len(sections))
	for i, name := range sections {
		ls := strings.Split(blocks[i], "\n")
		if ls[0] != name {
			return nil, fmt.Errorf("receipt: expected section %s, got %q", name, ls[0])
		}
		for _, l := range ls[1:] {
			if l == "" {
				return nil, fmt.Errorf("receipt: %s: empty line", name)
			}
		}
		lines[name] = ls[1:]
	}

	var (
		doc document
		r   = &doc.receipt
		err error
	)
	meta, err := fields("META", lines["META"])
	if err != nil {
		return nil, err
	}
	if meta["Spec"] != SpecName || meta["Version"] != strconv.Itoa(Version) {
		return nil, errors.New("receipt: unsupported Spec or Version")
	}
	r.Guard = meta["Guard"]
	if r.IssuedAt, err = uintField("META", meta, "Issued-At"); err != nil {
		return nil, err
	}

	req, err := fields("REQUEST", lines["REQUEST"])
	if err != nil {
		return nil, err
	}
	if r.Op, err = envelope.ParseOpCode(req["Op"]); err != nil {
		return nil, fmt.Errorf("receipt: REQUEST: %w", err)
	}
	if r.Counter, err = uintField("REQUEST", req, "Counter"); err != nil {
		return nil, err
	}
	if r.ValidUntil, err = uintField("REQUEST", req, "Valid-Until"); err != nil {
		return nil, err
	}
	r.RequestCID = req["Request-CID"]

	res, err := fields("RESULT", lines["RESULT"])
	if err != nil {
		return nil, err
	}
	r.Outcome = guard.Outcome(res["Outcome"])
	if r.CounterAfter, err = uintField("RESULT", res, "Counter-After"); err != nil {
		return nil, err
	}
	if r.Removed, err = strconv.ParseBool(res["Removed"]); err != nil {
		return nil, errors.New("receipt: RESULT: invalid Removed")
	}
	r.SnapshotCID = res["Snapshot-CID"]

	for _, l := range lines["EFFECTS"] {
		e, ok := strings.CutPrefix(l, "Effect: ")
		if !ok {
			return nil, fmt.Errorf("receipt: EFFECTS: unexpected line %q", l)
		}
		r.Effects = append(r.Effects, e)
	}
	doc.crypto = lines["CRYPTO"]

	if err := r.validate(); err != nil {
		return nil, err
	}
	if !bytes.Equal(render(*r, doc.crypto), b) {
		return nil, ErrNonCanonical
	}
	return &doc, nil
}

func fields(section string, lines []string) (map[string]string, error) {
	out := make(map[string]string, len(lines))
	for _, l := range lines {
		k, v, ok := strings.Cut(l, ": ")
		if !ok || k == "" {
			return nil, fmt.Errorf("receipt: %s: malformed line %q", section, l)
		}
		if _, dup := out[k]; dup {
			return nil, fmt.Errorf("receipt: %s: duplicate field %s", section, k)
		}
		out[k] = v
	}
	return out, nil
}

func uintField(section string, f map[string]string, key string) (uint64, error) {
	v, ok := f[key]
	if !ok {
		return 0, fmt.Errorf("receipt: %s: missing %s", section, key)
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("receipt: %s: invalid %s", section, key)
	}
	return n, nil
}
