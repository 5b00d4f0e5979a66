package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchdata"
)

// ErrCorrupt is returned for files that fail structural or checksum checks.
var ErrCorrupt = errors.New("corrupt snapshot")

// maxBlockSize bounds the decoded size of one stored result file.
const maxBlockSize = 256 << 20

// Reader gives access to a snapshot. Files are decoded on first use.
type Reader struct {
	file   *os.File
	path   string
	header Header
	dict   Dictionary
	size   int64

	mu     sync.Mutex
	tables map[string]*searchdata.Table
}

// Open validates the header, footer and both checksums of a snapshot.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	r, err := open(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func open(f *os.File, path string) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat snapshot file: %w", err)
	}
	size := info.Size()
	if size < int64(HeaderSize+FooterSize) {
		return nil, fmt.Errorf("%w: file too short (%d bytes)", ErrCorrupt, size)
	}

	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x", ErrCorrupt, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, header.Version)
	}
	if header.PayloadSize < 0 || header.PayloadSize > size ||
		header.DictSize < 0 || header.DictSize > size {
		return nil, fmt.Errorf("%w: section sizes out of range", ErrCorrupt)
	}
	if header.PayloadOffset != int64(HeaderSize) ||
		header.DictOffset != header.PayloadOffset+header.PayloadSize ||
		header.DictOffset+header.DictSize+int64(FooterSize) != size {
		return nil, fmt.Errorf("%w: inconsistent offsets", ErrCorrupt)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, size-int64(FooterSize)); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	if int64(binary.LittleEndian.Uint64(footer[8:16])) != header.DictOffset {
		return nil, fmt.Errorf("%w: footer does not match header", ErrCorrupt)
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, fmt.Errorf("%w: dictionary checksum mismatch", ErrCorrupt)
	}
	payloadCRC := crc32.NewIEEE()
	if _, err := io.Copy(payloadCRC, io.NewSectionReader(f, header.PayloadOffset, header.PayloadSize)); err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	if payloadCRC.Sum32() != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, fmt.Errorf("%w: payload checksum mismatch", ErrCorrupt)
	}

	var dict Dictionary
	if err := json.NewDecoder(bytes.NewReader(dictBytes)).Decode(&dict); err != nil {
		return nil, fmt.Errorf("%w: parsing dictionary: %v", ErrCorrupt, err)
	}
	for _, b := range dict.Blocks {
		if err := checkBlock(b, header.PayloadSize); err != nil {
			return nil, err
		}
	}
	return &Reader{
		file:   f,
		path:   path,
		header: header,
		dict:   dict,
		size:   size,
		tables: make(map[string]*searchdata.Table),
	}, nil
}

func checkBlock(b BlockEntry, payloadSize int64) error {
	switch {
	case b.Offset < 0 || b.Length < 0 || int64(b.Length) > payloadSize-b.Offset:
		return fmt.Errorf("%w: block %s out of range", ErrCorrupt, b.Name)
	case b.RawLen < 0 || b.RawLen > maxBlockSize:
		return fmt.Errorf("%w: block %s has raw length %d", ErrCorrupt, b.Name, b.RawLen)
	case b.Codec == CodecNone && b.RawLen != b.Length:
		return fmt.Errorf("%w: block %s stored length %d, raw length %d", ErrCorrupt, b.Name, b.Length, b.RawLen)
	}
	return nil
}

func (r *Reader) Header() Header { return r.header }

func (r *Reader) Size() int64 { return r.size }

// Blocks lists the stored result files in write order.
func (r *Reader) Blocks() []BlockEntry {
	return append([]BlockEntry(nil), r.dict.Blocks...)
}

// Table decodes one stored result file.
func (r *Reader) Table(name string) (*searchdata.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tables[name]; ok {
		return t, nil
	}
	for _, b := range r.dict.Blocks {
		if b.Name != name {
			continue
		}
		data := make([]byte, b.Length)
		if _, err := r.file.ReadAt(data, r.header.PayloadOffset+b.Offset); err != nil {
			return nil, fmt.Errorf("reading block %s: %w", name, err)
		}
		raw, err := decompress(b.Codec, data, b.RawLen)
		if err != nil {
			return nil, fmt.Errorf("%w: block %s: %v", ErrCorrupt, name, err)
		}
		var entries []searchdata.Entry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("%w: block %s: %v", ErrCorrupt, name, err)
		}
		t := searchdata.NewTable(b.Section, entries)
		r.tables[name] = t
		return t, nil
	}
	return nil, fmt.Errorf("snapshot has no file %q", name)
}

// Catalog decodes every block.
func (r *Reader) Catalog() (*catalog.Catalog, error) {
	files := make([]catalog.File, 0, len(r.dict.Blocks))
	for _, b := range r.dict.Blocks {
		t, err := r.Table(b.Name)
		if err != nil {
			return nil, err
		}
		files = append(files, catalog.File{Name: b.Name, Section: b.Section, Index: b.Index, Table: t})
	}
	return catalog.New(r.dict.Sections, files), nil
}

func (r *Reader) Close() error {
	return r.file.Close()
}
