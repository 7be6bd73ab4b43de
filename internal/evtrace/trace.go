package evtrace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// Writer writes records as JSON lines. It buffers output and is safe for
// concurrent use.
type Writer struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	path   string
}

// NewWriter writes records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 64*1024)}
}

// Create creates or truncates the trace file at path.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	tw := NewWriter(f)
	tw.closer = f
	tw.path = path
	return tw, nil
}

// Write appends one record. It is buffered until Flush or Close.
func (tw *Writer) Write(rec Record) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	// Marshal to JSON
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal trace record: %w", err)
	}

	// Write JSON line
	if _, err := tw.w.Write(data); err != nil {
		return fmt.Errorf("failed to write trace record: %w", err)
	}
	if err := tw.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// WriteAll appends records in order.
func (tw *Writer) WriteAll(recs []Record) error {
	for _, rec := range recs {
		if err := tw.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes buffered records to the underlying writer.
func (tw *Writer) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}
	return nil
}

// Close flushes and, for writers made by Create, closes the file.
func (tw *Writer) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	// Flush before closing the file
	if err := tw.w.Flush(); err != nil {
		if tw.closer != nil {
			tw.closer.Close()
		}
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if tw.closer == nil {
		return nil
	}
	if err := tw.closer.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// Path returns the file path for writers made by Create.
func (tw *Writer) Path() string {
	return tw.path
}

// Reader reads JSON-lines records.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewReader reads records from r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	// Allow long lines for events with long names
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Open opens the trace file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	tr := NewReader(f)
	tr.closer = f
	return tr, nil
}

// Read returns the next valid record, skipping blank lines. It returns
// io.EOF at the end of the input.
func (tr *Reader) Read() (*Record, error) {
	for tr.scanner.Scan() {
		tr.line++
		line := tr.scanner.Bytes()
		if len(line) == 0 {
			continue // Skip empty lines
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidTrace, tr.line, err)
		}
		// Reject records the replay could not use
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", tr.line, err)
		}
		return &rec, nil
	}
	if err := tr.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan trace line: %w", err)
	}
	return nil, io.EOF
}

// ReadAll reads every remaining record.
func (tr *Reader) ReadAll() ([]Record, error) {
	var recs []Record
	for {
		rec, err := tr.Read()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
}

// Close closes the file for readers made by Open.
func (tr *Reader) Close() error {
	if tr.closer == nil {
		return nil
	}
	if err := tr.closer.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// ReadFile reads all records of the trace file at path.
func ReadFile(path string) ([]Record, error) {
	tr, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer tr.Close()
	return tr.ReadAll()
}

// WriteFile writes recs to a new trace file at path.
func WriteFile(path string, recs []Record) error {
	tw, err := Create(path)
	if err != nil {
		return err
	}
	if err := tw.WriteAll(recs); err != nil {
		tw.Close()
		return err
	}
	return tw.Close()
}
