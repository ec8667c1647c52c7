// Package corpus reads source documents from CSV exports, plain text and PDF files.
package corpus

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"semsearch/internal/domain"
)

// ErrNoDocuments is returned when none of the inputs yields a document.
var ErrNoDocuments = errors.New("no documents found")

// CSVFields is the header of a corpus CSV file. Column order is free.
var CSVFields = []string{"document_id", "title", "url", "content"}

// Load expands glob patterns and directories and reads every supported file.
// CSV rows keep their document_id; text and PDF files are numbered after
// the largest CSV id in argument order.
func Load(inputs []string) ([]domain.Document, error) {
	paths, err := expand(inputs)
	if err != nil {
		return nil, err
	}

	var docs, files []domain.Document
	seen := make(map[int64]string)
	nextID := int64(0)
	for _, p := range paths {
		switch ext(p) {
		case ".csv":
			rows, err := ReadCSVFile(p)
			if err != nil {
				return nil, err
			}
			for _, d := range rows {
				if prev, ok := seen[d.ID]; ok {
					return nil, fmt.Errorf("document_id %d in %s already used in %s", d.ID, p, prev)
				}
				seen[d.ID] = p
				nextID = max(nextID, d.ID+1)
			}
			docs = append(docs, rows...)
		case ".txt", ".md":
			d, err := readText(p)
			if err != nil {
				return nil, err
			}
			files = append(files, d)
		case ".pdf":
			d, err := readPDF(p)
			if err != nil {
				return nil, err
			}
			files = append(files, d)
		}
	}
	for i := range files {
		files[i].ID = nextID
		nextID++
	}
	docs = append(docs, files...)
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, strings.Join(inputs, ", "))
	}
	return docs, nil
}

func expand(inputs []string) ([]string, error) {
	var out []string
	for _, in := range inputs {
		matches, _ := filepath.Glob(in)
		if matches == nil {
			matches = []string{in}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				out = append(out, m)
				continue
			}
			entries, err := os.ReadDir(m)
			if err != nil {
				return nil, err
			}
			var names []string
			for _, e := range entries {
				if !e.IsDir() && Supported(e.Name()) {
					names = append(names, filepath.Join(m, e.Name()))
				}
			}
			sort.Strings(names)
			out = append(out, names...)
		}
	}
	return out, nil
}

// Supported reports whether Load reads files with this name.
func Supported(name string) bool {
	switch ext(name) {
	case ".csv", ".txt", ".md", ".pdf":
		return true
	}
	return false
}

func ext(name string) string { return strings.ToLower(filepath.Ext(name)) }

// ReadCSVFile reads a document_id,title,url,content export.
func ReadCSVFile(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	docs, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

// ReadCSV reads documents from r. The first record must be a header naming
// all of CSVFields.
func ReadCSV(r io.Reader) ([]domain.Document, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, f := range CSVFields {
		if _, ok := col[f]; !ok {
			return nil, fmt.Errorf("header is missing column %q", f)
		}
	}

	var docs []domain.Document
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		id, err := strconv.ParseInt(strings.TrimSpace(rec[col["document_id"]]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: document_id: %w", line, err)
		}
		docs = append(docs, domain.Document{
			ID:      id,
			Title:   rec[col["title"]],
			URL:     rec[col["url"]],
			Content: rec[col["content"]],
		})
	}
}

func readText(path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	return fileDocument(path, string(data))
}

func readPDF(path string) (domain.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	b, err := r.GetPlainText()
	if err != nil {
		return domain.Document{}, fmt.Errorf("reading pdf text %s: %w", path, err)
	}
	if _, err := io.Copy(&buf, b); err != nil {
		return domain.Document{}, fmt.Errorf("reading pdf buffer %s: %w", path, err)
	}
	return fileDocument(path, buf.String())
}

func fileDocument(path, content string) (domain.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.Document{}, err
	}
	base := filepath.Base(path)
	return domain.Document{
		Title:   strings.TrimSuffix(base, filepath.Ext(base)),
		URL:     "file://" + filepath.ToSlash(abs),
		Content: content,
	}, nil
}
