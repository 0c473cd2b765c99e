// Package extract provides concrete Extractor implementations: file,
// Kafka, and SQL sources. Each wraps a real driver dependency the way
// pipeline-core's pkg/source package wraps its own transports, adapted
// to the stage.Extractor contract (a single ExtractRecords stream
// instead of a paired records/errs channel pair).
package extract

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Format names a file's record encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatNDJSON Format = "ndjson"
	FormatCSV   Format = "csv"
	FormatLines Format = "lines"
)

// FileExtractor reads records from one or more local files, expanding
// glob patterns at construction time.
type FileExtractor struct {
	paths  []string
	format Format
}

// NewFileExtractor expands every glob in patterns (falling back to the
// literal pattern when it matches nothing) and returns a FileExtractor
// for format.
func NewFileExtractor(patterns []string, format Format) (*FileExtractor, error) {
	if format == "" {
		format = FormatJSON
	}

	var paths []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %s: %w", p, err)
		}
		if len(matches) == 0 {
			paths = append(paths, p)
			continue
		}
		paths = append(paths, matches...)
	}

	return &FileExtractor{paths: paths, format: format}, nil
}

func (f *FileExtractor) Start(ctx context.Context) error {
	for _, path := range f.paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", path)
		}
	}
	return nil
}

func (f *FileExtractor) Finish(ctx context.Context) error { return nil }

func (f *FileExtractor) ExtractRecords(ctx context.Context) (<-chan any, error) {
	out := make(chan any, 100)

	go func() {
		defer close(out)
		for _, path := range f.paths {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := f.readFile(ctx, path, out); err != nil {
				return
			}
		}
	}()

	return out, nil
}

func (f *FileExtractor) readFile(ctx context.Context, path string, out chan<- any) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	switch f.format {
	case FormatJSON:
		return f.readJSON(ctx, file, out)
	case FormatNDJSON, FormatLines:
		return f.readLines(ctx, file, out, f.format == FormatNDJSON)
	case FormatCSV:
		return f.readCSV(ctx, file, out)
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

func (f *FileExtractor) readJSON(ctx context.Context, file *os.File, out chan<- any) error {
	decoder := json.NewDecoder(file)
	token, err := decoder.Token()
	if err != nil {
		return err
	}

	if delim, ok := token.(json.Delim); ok && delim == '[' {
		for decoder.More() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			var data map[string]any
			if err := decoder.Decode(&data); err != nil {
				return err
			}
			select {
			case out <- data:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	return f.readLines(ctx, file, out, true)
}

func (f *FileExtractor) readLines(ctx context.Context, file *os.File, out chan<- any, decodeJSON bool) error {
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		var record any = line
		if decodeJSON {
			var data map[string]any
			if err := json.Unmarshal(scanner.Bytes(), &data); err != nil {
				continue
			}
			record = data
		}

		select {
		case out <- record:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}

func (f *FileExtractor) readCSV(ctx context.Context, file *os.File, out chan<- any) error {
	reader := csv.NewReader(file)
	headers, err := reader.Read()
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		record := make(map[string]any, len(headers))
		for i, h := range headers {
			if i < len(row) {
				record[h] = row[i]
			}
		}
		select {
		case out <- record:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
