// Package snapshot stores a whole catalog in one versioned binary file.
//
// Layout (little endian):
//
//	[0:64)   header
//	payload  one compressed JSON entry list per result file
//	dict     JSON Dictionary describing sections and payload blocks
//	[-16:]   footer: dict CRC32, payload CRC32, dict offset
package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchdata"
)

// MagicBytes is "DSX1" read as a little-endian uint32.
const (
	MagicBytes    uint32 = 0x31585344
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 16
	Extension            = ".dsx"
)

type Header struct {
	Magic         uint32
	Version       uint32
	FileCount     uint32
	EntryCount    uint32
	CreatedAt     int64
	DictOffset    int64
	DictSize      int64
	PayloadOffset int64
	PayloadSize   int64
	Codec         Codec
}

func (h Header) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.FileCount)
	binary.LittleEndian.PutUint32(b[12:16], h.EntryCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.PayloadOffset))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.PayloadSize))
	b[56] = byte(h.Codec)
	return b
}

func decodeHeader(b []byte) Header {
	return Header{
		Magic:         binary.LittleEndian.Uint32(b[0:4]),
		Version:       binary.LittleEndian.Uint32(b[4:8]),
		FileCount:     binary.LittleEndian.Uint32(b[8:12]),
		EntryCount:    binary.LittleEndian.Uint32(b[12:16]),
		CreatedAt:     int64(binary.LittleEndian.Uint64(b[16:24])),
		DictOffset:    int64(binary.LittleEndian.Uint64(b[24:32])),
		DictSize:      int64(binary.LittleEndian.Uint64(b[32:40])),
		PayloadOffset: int64(binary.LittleEndian.Uint64(b[40:48])),
		PayloadSize:   int64(binary.LittleEndian.Uint64(b[48:56])),
		Codec:         Codec(b[56]),
	}
}

// BlockEntry locates one result file inside the payload.
type BlockEntry struct {
	Name    string `json:"n"`
	Section string `json:"s"`
	Index   int    `json:"i"`
	Offset  int64  `json:"o"`
	Length  int    `json:"l"`
	RawLen  int    `json:"r"`
	Codec   Codec  `json:"c"`
	Entries int    `json:"e"`
}

type Dictionary struct {
	Sections searchdata.SectionSet `json:"sections"`
	Blocks   []BlockEntry          `json:"blocks"`
}

// Write stores cat at path, going through a .tmp file and a rename.
func Write(path string, cat *catalog.Catalog, codec Codec) (Header, error) {
	files := cat.AllFiles()
	if len(files) == 0 {
		return Header{}, fmt.Errorf("cannot write empty snapshot")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Header{}, fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return Header{}, fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer f.Close()
	defer os.Remove(tmpPath)

	header := Header{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		FileCount: uint32(len(files)),
		CreatedAt: time.Now().Unix(),
		Codec:     codec,
	}
	if _, err := f.Write(header.encode()); err != nil {
		return Header{}, fmt.Errorf("writing header: %w", err)
	}

	payloadCRC := crc32.NewIEEE()
	offset := int64(0)
	dict := Dictionary{Sections: cat.SectionSet()}
	for _, file := range files {
		raw, err := json.Marshal(file.Table.Entries())
		if err != nil {
			return Header{}, fmt.Errorf("marshaling %s: %w", file.Name, err)
		}
		data, used, err := compress(codec, raw)
		if err != nil {
			return Header{}, fmt.Errorf("compressing %s: %w", file.Name, err)
		}
		if _, err := f.Write(data); err != nil {
			return Header{}, fmt.Errorf("writing %s: %w", file.Name, err)
		}
		payloadCRC.Write(data)
		dict.Blocks = append(dict.Blocks, BlockEntry{
			Name:    file.Name,
			Section: file.Section,
			Index:   file.Index,
			Offset:  offset,
			Length:  len(data),
			RawLen:  len(raw),
			Codec:   used,
			Entries: file.Table.Len(),
		})
		offset += int64(len(data))
		header.EntryCount += uint32(file.Table.Len())
	}
	header.PayloadOffset = int64(HeaderSize)
	header.PayloadSize = offset

	dictData, err := json.Marshal(dict)
	if err != nil {
		return Header{}, fmt.Errorf("marshaling dictionary: %w", err)
	}
	header.DictOffset = header.PayloadOffset + header.PayloadSize
	header.DictSize = int64(len(dictData))
	if _, err := f.Write(dictData); err != nil {
		return Header{}, fmt.Errorf("writing dictionary: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], payloadCRC.Sum32())
	binary.LittleEndian.PutUint64(footer[8:16], uint64(header.DictOffset))
	if _, err := f.Write(footer); err != nil {
		return Header{}, fmt.Errorf("writing footer: %w", err)
	}
	if _, err := f.WriteAt(header.encode(), 0); err != nil {
		return Header{}, fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return Header{}, fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Header{}, fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return Header{}, fmt.Errorf("renaming snapshot file: %w", err)
	}
	return header, nil
}
