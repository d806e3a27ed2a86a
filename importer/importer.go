// Package importer parses GPX, TCX, and FIT activity files into transient
// import drafts: normalized summary metrics plus a per-file debug trace of
// which fallback path produced each value.
package importer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// FailReason classifies why a file was rejected.
type FailReason string

const (
	// FailType means the extension and content signature did not agree on
	// a supported format.
	FailType FailReason = "type"
	// FailParse means the format was recognized but the content could not
	// be parsed.
	FailParse FailReason = "parse"
	// FailOversized means the file exceeded the per-file size limit.
	FailOversized FailReason = "oversized"
	// FailOverCount means the batch already held the maximum number of files.
	FailOverCount FailReason = "overcount"
)

var (
	errEmptyDocument = errors.New("empty document")
	errNoActivity    = errors.New("no activity element")
	errNoSession     = errors.New("no session message")
)

// ParseError is the typed rejection for a single file. Reason is the stable
// classification; Err carries the underlying cause.
type ParseError struct {
	Reason   FailReason
	FileName string
	Err      error
}

func (e *ParseError) Error() string {
	name := e.FileName
	if name == "" {
		name = "file"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", name, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", name, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FileMeta carries the caller-provided identity of an uploaded file.
type FileMeta struct {
	FileName string
	FileSize int64
}

func (m FileMeta) name(def string) string {
	if strings.TrimSpace(m.FileName) == "" {
		return def
	}
	return m.FileName
}

// DetectSource identifies the file format. The extension and the content
// signature must both match: a mismatch (e.g. a .gpx file whose bytes are
// TCX) is rejected rather than guessed around.
func DetectSource(fileName string, data []byte) (ImportSource, bool) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".gpx":
		if containsFold(headOf(data), "<gpx") {
			return SourceGPX, true
		}
	case ".tcx":
		if containsFold(headOf(data), "<trainingcenterdatabase") {
			return SourceTCX, true
		}
	case ".fit":
		if len(data) >= 12 && string(data[8:12]) == ".FIT" {
			return SourceFIT, true
		}
	}
	return "", false
}

func headOf(data []byte) string {
	const headLen = 512
	if len(data) > headLen {
		data = data[:headLen]
	}
	return string(data)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

// ParseBytes detects the format of one file and runs the matching pipeline.
// All failures come back as *ParseError.
func ParseBytes(fileName string, data []byte) (*Result, error) {
	source, ok := DetectSource(fileName, data)
	if !ok {
		return nil, &ParseError{Reason: FailType, FileName: fileName}
	}
	meta := FileMeta{FileName: fileName, FileSize: int64(len(data))}
	var (
		res *Result
		err error
	)
	switch source {
	case SourceGPX:
		res, err = parseGPX(data, meta)
	case SourceTCX:
		res, err = parseTCX(data, meta)
	case SourceFIT:
		res, err = parseFIT(data, meta)
	}
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) && pe.FileName == "" {
			pe.FileName = fileName
		}
		return nil, err
	}
	return res, nil
}

// BatchLimits bounds a multi-file import.
type BatchLimits struct {
	MaxFiles        int
	MaxFileSize     int64
	AcceptOversized bool
}

// DefaultBatchLimits matches the import surface: up to 10 files of 25 MB each.
func DefaultBatchLimits() BatchLimits {
	return BatchLimits{MaxFiles: 10, MaxFileSize: 25 << 20}
}

// BatchFile is one file handed to ParseBatch.
type BatchFile struct {
	Name string
	Data []byte
}

// BatchItem records the outcome for one file: exactly one of Result or Err
// is set.
type BatchItem struct {
	Name   string
	Result *Result
	Err    *ParseError
}

// BatchResult is the per-file outcome list plus aggregate counts.
type BatchResult struct {
	Items    []BatchItem
	Accepted int
	Rejected int
}

// Notice summarizes the batch for display: empty when everything was
// accepted, otherwise one line naming the first rejection class encountered.
func (r *BatchResult) Notice() string {
	if r.Rejected == 0 {
		return ""
	}
	for _, item := range r.Items {
		if item.Err == nil {
			continue
		}
		switch item.Err.Reason {
		case FailOversized:
			return fmt.Sprintf("%s is too large to import.", item.Name)
		case FailType:
			return fmt.Sprintf("%s is not a supported activity file.", item.Name)
		case FailOverCount:
			return "Too many files selected; extra files were skipped."
		default:
			return fmt.Sprintf("%s could not be parsed.", item.Name)
		}
	}
	return ""
}

// ParseBatch parses each file independently. One bad file never aborts the
// batch; it is recorded as a rejection and parsing continues.
func ParseBatch(files []BatchFile, limits BatchLimits) *BatchResult {
	out := &BatchResult{}
	for i, f := range files {
		item := BatchItem{Name: f.Name}
		switch {
		case limits.MaxFiles > 0 && i >= limits.MaxFiles:
			item.Err = &ParseError{Reason: FailOverCount, FileName: f.Name}
		case !limits.AcceptOversized && limits.MaxFileSize > 0 && int64(len(f.Data)) > limits.MaxFileSize:
			item.Err = &ParseError{Reason: FailOversized, FileName: f.Name}
		default:
			res, err := ParseBytes(f.Name, f.Data)
			if err != nil {
				var pe *ParseError
				if !errors.As(err, &pe) {
					pe = &ParseError{Reason: FailParse, FileName: f.Name, Err: err}
				}
				item.Err = pe
			} else {
				item.Result = res
			}
		}
		if item.Err != nil {
			out.Rejected++
		} else {
			out.Accepted++
		}
		out.Items = append(out.Items, item)
	}
	return out
}
