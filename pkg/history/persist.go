package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/golang/snappy"

	"github.com/dd0wney/cluso-resilsim/pkg/flow"
)

// File format: [Magic:4][Checksum:4][DataLen:4][Data:N] where Data is the
// snappy-compressed JSON document and the checksum covers the compressed
// bytes.
const fileMagic = uint32(0x52534831) // "RSH1"

type historyJSON struct {
	Times  []float64             `json:"times"`
	Keys   []string              `json:"keys"`
	Series map[string][]rawValue `json:"series"`
}

type rawValue = json.RawMessage

// Save writes the history to path, snappy-compressed.
func (h *History) Save(path string) error {
	doc := historyJSON{
		Times:  h.times,
		Keys:   h.keys,
		Series: make(map[string][]rawValue, len(h.series)),
	}
	for key, s := range h.series {
		vals := make([]rawValue, len(s))
		for i, v := range s {
			raw, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encoding history key %q: %w", key, err)
			}
			vals[i] = raw
		}
		doc.Series[key] = vals
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	compressed := snappy.Encode(nil, data)

	header := make([]byte, 12)
	binary.BigEndian.PutUint32(header[0:4], fileMagic)
	binary.BigEndian.PutUint32(header[4:8], crc32.ChecksumIEEE(compressed))
	binary.BigEndian.PutUint32(header[8:12], uint32(len(compressed)))

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating history file: %w", err)
	}
	if _, err := f.Write(header); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing history header: %w", err)
	}
	if _, err := f.Write(compressed); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing history data: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing history file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads a history written by Save, verifying the checksum.
func Load(path string) (*History, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading history file: %w", err)
	}
	if len(raw) < 12 {
		return nil, fmt.Errorf("history file %q too short", path)
	}
	if magic := binary.BigEndian.Uint32(raw[0:4]); magic != fileMagic {
		return nil, fmt.Errorf("history file %q has bad magic %#x", path, magic)
	}
	checksum := binary.BigEndian.Uint32(raw[4:8])
	dataLen := binary.BigEndian.Uint32(raw[8:12])
	compressed := raw[12:]
	if uint32(len(compressed)) != dataLen {
		return nil, fmt.Errorf("history file %q truncated: have %d bytes, header says %d", path, len(compressed), dataLen)
	}
	if crc := crc32.ChecksumIEEE(compressed); crc != checksum {
		return nil, fmt.Errorf("history file %q checksum mismatch", path)
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("decompressing history file %q: %w", path, err)
	}

	var doc historyJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding history file %q: %w", path, err)
	}
	h := New()
	h.times = doc.Times
	h.keys = doc.Keys
	for key, vals := range doc.Series {
		s := make([]flow.Value, len(vals))
		for i, raw := range vals {
			if err := json.Unmarshal(raw, &s[i]); err != nil {
				return nil, fmt.Errorf("decoding history key %q: %w", key, err)
			}
		}
		h.series[key] = s
	}
	for _, key := range h.keys {
		if _, ok := h.series[key]; !ok {
			return nil, fmt.Errorf("history file %q missing series for key %q", path, key)
		}
	}
	return h, nil
}
