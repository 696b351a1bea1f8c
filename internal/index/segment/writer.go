// Package segment implements the on-disk posting segment format. A segment
// is a single immutable file: a fixed header, per-term varint-encoded
// posting blocks, a JSON term dictionary, and a checksummed footer.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ftsql/ftsql/internal/index"
	"github.com/ftsql/ftsql/pkg/varint"
)

const (
	MagicBytes    uint32 = 0x46545347 // "FTSG"
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

// Header is the fixed-size block written at the start of every segment.
type Header struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	CreatedAt  int64
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
}

// DictEntry locates a term's posting block inside the segment file.
type DictEntry struct {
	Term     string `json:"t"`
	Offset   int64  `json:"o"`
	Len      int    `json:"l"`
	DocFreq  int    `json:"d"`
	OccTotal uint64 `json:"c"`
}

// Writer serialises posting lists into new .ftsg segment files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates a new segment file from the term -> postings
// map. Each posting list must be sorted by ascending DocID. totalDocs is
// the corpus document count recorded in the header. It writes to a .tmp
// file first and renames on success.
func (w *Writer) Write(postings map[string][]index.PostingRecord, totalDocs int) (string, error) {
	if len(postings) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	terms := make([]string, 0, len(postings))
	for term := range postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	segmentName := fmt.Sprintf("seg_%d.ftsg", time.Now().UnixNano())
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(headerBytes[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(headerBytes[8:12], uint32(len(terms)))
	binary.LittleEndian.PutUint32(headerBytes[12:16], uint32(totalDocs))
	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(time.Now().Unix()))
	if _, err := f.Write(headerBytes); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	postingsStart := int64(HeaderSize)
	offset := postingsStart
	dict := make([]DictEntry, 0, len(terms))
	var block []byte
	for _, term := range terms {
		recs := postings[term]
		block = encodeBlock(block[:0], recs)
		if _, err := f.Write(block); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", term, err)
		}
		var occ uint64
		for _, r := range recs {
			occ += uint64(r.TermFreq)
		}
		dict = append(dict, DictEntry{
			Term:     term,
			Offset:   offset - postingsStart,
			Len:      len(block),
			DocFreq:  len(recs),
			OccTotal: occ,
		})
		offset += int64(len(block))
	}

	postingsSize := offset - postingsStart
	dictStart := offset
	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}

	checksum := crc32.ChecksumIEEE(dictData)
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], checksum)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dictStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(postingsSize))
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}

	binary.LittleEndian.PutUint64(headerBytes[24:32], uint64(dictStart))
	binary.LittleEndian.PutUint64(headerBytes[32:40], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(headerBytes[40:48], uint64(postingsStart))
	binary.LittleEndian.PutUint64(headerBytes[48:56], uint64(postingsSize))
	if _, err := f.WriteAt(headerBytes, 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return segmentName, nil
}

// encodeBlock appends one term's posting block: a record count followed by
// (docID delta, termFreq, docTerms, firstPos) tuples, all varint.
func encodeBlock(dst []byte, recs []index.PostingRecord) []byte {
	dst = varint.Append(dst, uint32(len(recs)))
	var prev uint32
	for _, r := range recs {
		dst = varint.Append(dst, r.DocID-prev)
		dst = varint.Append(dst, r.TermFreq)
		dst = varint.Append(dst, r.DocTerms)
		dst = varint.Append(dst, r.FirstPos)
		prev = r.DocID
	}
	return dst
}
