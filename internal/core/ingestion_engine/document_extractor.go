package ingestion_engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"github.com/xuri/excelize/v2"

	"github.com/markdave123-py/embedding-forge/internal/core"
	"github.com/markdave123-py/embedding-forge/internal/models"
)

// DocumentExtractor fetches an object's raw bytes and converts them into
// normalized text documents, choosing a parser by file extension.
type DocumentExtractor struct {
	obj core.ObjectClient
}

var _ core.DocumentExtractor = (*DocumentExtractor)(nil)

func NewDocumentExtractor(obj core.ObjectClient) *DocumentExtractor {
	return &DocumentExtractor{obj: obj}
}

// FetchAndParse downloads the referenced object and parses it into one or
// more TextDocuments. A missing object surfaces as core.ErrObjectNotFound;
// an extension without a parser surfaces as core.ErrUnsupportedFileType.
// Every returned document is stamped with bucket, key, canonical source URI
// and normalized file type.
func (e *DocumentExtractor) FetchAndParse(ctx context.Context, ref models.FileReference) ([]models.TextDocument, error) {
	data, err := e.obj.GetFile(ctx, ref.BucketName, ref.ObjectKey)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(ref.ObjectKey))

	var docs []models.TextDocument
	switch ext {
	case ".txt":
		docs, err = parseText(data)
	case ".pdf":
		docs, err = parsePDF(data)
	case ".csv":
		docs, err = parseCSV(data)
	case ".xlsx", ".xlsm":
		docs, err = parseSpreadsheet(data)
	default:
		return nil, fmt.Errorf("%s: %w", ref.ObjectKey, core.ErrUnsupportedFileType)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", ref.ObjectKey, err)
	}

	fileType := strings.TrimPrefix(ext, ".")
	for i := range docs {
		docs[i].Meta.BucketName = ref.BucketName
		docs[i].Meta.ObjectKey = ref.ObjectKey
		docs[i].Meta.Source = ref.Source()
		docs[i].Meta.FileType = fileType
	}
	return docs, nil
}

func parseText(data []byte) ([]models.TextDocument, error) {
	return []models.TextDocument{{Content: string(data)}}, nil
}

// parsePDF runs the bytes through docconv and splits the result on the
// form-feed page breaks pdftotext emits, one document per page.
func parsePDF(data []byte) ([]models.TextDocument, error) {
	res, err := docconv.Convert(bytes.NewReader(data), "application/pdf", false)
	if err != nil {
		return nil, fmt.Errorf("docconv: %w", err)
	}

	var docs []models.TextDocument
	for i, page := range strings.Split(res.Body, "\f") {
		if strings.TrimSpace(page) == "" {
			continue
		}
		docs = append(docs, models.TextDocument{
			Content: page,
			Meta:    models.DocumentMeta{Page: i + 1},
		})
	}
	return docs, nil
}

// parseCSV validates the file and re-serializes it with normalized quoting.
// The whole file is one document.
func parseCSV(data []byte) ([]models.TextDocument, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}

	return []models.TextDocument{{Content: sb.String()}}, nil
}

// parseSpreadsheet emits one document per sheet: a "Sheet: name" header line
// followed by the sheet's rows as delimited text.
func parseSpreadsheet(data []byte) ([]models.TextDocument, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("excelize: %w", err)
	}
	defer f.Close()

	var docs []models.TextDocument
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			slog.Warn("skipping unreadable sheet", "sheet", sheetName, "error", err)
			continue
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Sheet: %s\n", sheetName)
		w := csv.NewWriter(&sb)
		if err := w.WriteAll(rows); err != nil {
			return nil, fmt.Errorf("excelize sheet %s: %w", sheetName, err)
		}

		docs = append(docs, models.TextDocument{
			Content: sb.String(),
			Meta:    models.DocumentMeta{Sheet: sheetName},
		})
	}
	return docs, nil
}
