package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"github.com/ftsql/ftsql/internal/index"
	pkgerrors "github.com/ftsql/ftsql/pkg/errors"
	"github.com/ftsql/ftsql/pkg/varint"
)

// Reader serves posting cursors from one segment file. It satisfies
// index.Source. Cursor acquisition is the only point that touches the
// file; cursors themselves iterate decoded records in memory.
type Reader struct {
	file     *os.File
	filePath string
	header   Header
	dict     []DictEntry
	postBase int64
}

// OpenReader maps the segment at path and validates its header and
// dictionary checksum.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening segment file: %v", pkgerrors.ErrIndexIO, err)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: reading segment header: %v", pkgerrors.ErrIndexIO, err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		f.Close()
		return nil, fmt.Errorf("%w: bad magic bytes %x", pkgerrors.ErrIndexIO, magic)
	}
	header := Header{
		Magic:      magic,
		Version:    binary.LittleEndian.Uint32(headerBytes[4:8]),
		TermCount:  binary.LittleEndian.Uint32(headerBytes[8:12]),
		DocCount:   binary.LittleEndian.Uint32(headerBytes[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DictOffset: int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		DictSize:   int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		PostOffset: int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
		PostSize:   int64(binary.LittleEndian.Uint64(headerBytes[48:56])),
	}
	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: reading dictionary: %v", pkgerrors.ErrIndexIO, err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DictOffset+header.DictSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: reading footer: %v", pkgerrors.ErrIndexIO, err)
	}
	if got, want := crc32.ChecksumIEEE(dictBytes), binary.LittleEndian.Uint32(footer[0:4]); got != want {
		f.Close()
		return nil, fmt.Errorf("%w: dictionary checksum mismatch", pkgerrors.ErrIndexIO)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: parsing dictionary: %v", pkgerrors.ErrIndexIO, err)
	}
	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		postBase: header.PostOffset,
	}, nil
}

// OpenCursor returns a cursor over term's postings, decoding at most
// opts.PartialLimit records when set. Unknown terms yield an empty cursor.
func (r *Reader) OpenCursor(term string, opts index.CursorOptions) (index.Cursor, error) {
	i := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if i >= len(r.dict) || r.dict[i].Term != term {
		return index.NewSliceCursor(nil, 0, opts.WithPositions), nil
	}
	entry := r.dict[i]
	block := make([]byte, entry.Len)
	if _, err := r.file.ReadAt(block, r.postBase+entry.Offset); err != nil {
		return nil, fmt.Errorf("%w: reading postings for %q: %v", pkgerrors.ErrIndexIO, term, err)
	}
	recs, err := decodeBlock(block, opts.PartialLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: postings for %q: %v", pkgerrors.ErrIndexIO, term, err)
	}
	return index.NewSliceCursor(recs, entry.DocFreq, opts.WithPositions), nil
}

// TotalDocuments returns the corpus document count from the header.
func (r *Reader) TotalDocuments() int {
	return int(r.header.DocCount)
}

// Terms returns the number of distinct terms in the segment.
func (r *Reader) Terms() int {
	return len(r.dict)
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// decodeBlock decodes a posting block written by encodeBlock, stopping
// after limit records when limit > 0.
func decodeBlock(block []byte, limit int) ([]index.PostingRecord, error) {
	count, n := varint.Decode(block)
	if n == 0 {
		return nil, fmt.Errorf("truncated record count")
	}
	block = block[n:]
	total := int(count)
	if limit > 0 && limit < total {
		total = limit
	}
	recs := make([]index.PostingRecord, 0, total)
	var docID uint32
	for i := 0; i < total; i++ {
		var fields [4]uint32
		for j := range fields {
			v, n := varint.Decode(block)
			if n == 0 {
				return nil, fmt.Errorf("truncated record %d", i)
			}
			fields[j] = v
			block = block[n:]
		}
		docID += fields[0]
		recs = append(recs, index.PostingRecord{
			DocID:    docID,
			TermFreq: fields[1],
			DocTerms: fields[2],
			FirstPos: fields[3],
		})
	}
	return recs, nil
}
