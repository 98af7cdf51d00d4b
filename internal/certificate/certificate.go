// Package certificate extracts the text of supplier certificates of analysis
// and picks out the lot number and expiry date they declare.
package certificate

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"compounder/internal/compounding"
)

// Document is an uploaded certificate after text extraction.
type Document struct {
	FileName  string     `json:"file_name"`
	MimeType  string     `json:"mime_type"`
	Text      string     `json:"-"`
	LotNumber string     `json:"lot_number,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// FromUpload reads a multipart file and extracts its text.
func FromUpload(file multipart.File, header *multipart.FileHeader, maxBytes int64) (Document, error) {
	if header.Size > maxBytes {
		return Document{}, compounding.Invalid("file", "exceeds %d bytes", maxBytes)
	}

	buf := bytes.NewBuffer(make([]byte, 0, header.Size))
	if _, err := io.Copy(buf, io.LimitReader(file, maxBytes+1)); err != nil {
		return Document{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(buf.Len()) > maxBytes {
		return Document{}, compounding.Invalid("file", "exceeds %d bytes", maxBytes)
	}

	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = MimeTypeFromName(header.Filename)
	}
	return Read(header.Filename, buf.Bytes(), mime)
}

// Read extracts text from data and parses the certificate fields out of it.
func Read(fileName string, data []byte, mime string) (Document, error) {
	text, err := ExtractText(data, mime)
	if err != nil {
		return Document{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Document{}, compounding.Invalid("file", "no text could be extracted")
	}

	fields := Parse(text)
	return Document{
		FileName:  fileName,
		MimeType:  mime,
		Text:      strings.TrimSpace(text),
		LotNumber: fields.LotNumber,
		ExpiresAt: fields.ExpiresAt,
	}, nil
}

// ExtractText returns the plain text of a PDF or text document. Scanned
// images are rejected; there is no OCR.
func ExtractText(data []byte, mime string) (string, error) {
	lower := strings.ToLower(mime)
	switch {
	case strings.Contains(lower, "pdf"):
		text, err := extractTextFromPDF(data)
		if err != nil {
			return "", compounding.Invalid("file", "unreadable pdf: %v", err)
		}
		return text, nil
	case strings.HasPrefix(lower, "text/"), strings.Contains(lower, "json"):
		return string(data), nil
	default:
		return "", compounding.Invalid("file", "unsupported content type %q", mime)
	}
}

func extractTextFromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

// MimeTypeFromName guesses a content type from the file extension.
func MimeTypeFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return "text/plain"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// Fields are the values Parse recognises.
type Fields struct {
	LotNumber string
	ExpiresAt *time.Time
}

var (
	lotPattern    = regexp.MustCompile(`(?im)^\s*(?:lote?|batch)\b(?:\s*(?:no\.?|number|n[ºo°]\.?|#)\s*[:\-]?|\s*[:\-])\s*([A-Za-z0-9][A-Za-z0-9./\-]*)`)
	expiryPattern = regexp.MustCompile(`(?im)^\s*(?:exp(?:iry|iration|\.)?(?:\s*date)?|validade|vencimento|best before|retest date)\s*[:\-]?\s*([0-9]{4}[./\-][0-9]{1,2}(?:[./\-][0-9]{1,2})?|[0-9]{1,2}[./\-](?:[0-9]{1,2}[./\-])?[0-9]{4})`)
)

var dateLayouts = []string{"2006-01-02", "2006/01/02", "2/1/2006", "2.1.2006", "2-1-2006"}

// Parse scans certificate text for a lot number and an expiry date. Dates in
// month/year form resolve to the last day of that month.
func Parse(text string) Fields {
	var fields Fields
	if match := lotPattern.FindStringSubmatch(text); match != nil {
		fields.LotNumber = strings.TrimRight(match[1], ".-/")
	}
	if match := expiryPattern.FindStringSubmatch(text); match != nil {
		if expires, ok := parseDate(match[1]); ok {
			fields.ExpiresAt = &expires
		}
	}
	return fields
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	for _, layout := range []string{"1/2006", "1-2006", "1.2006", "2006-01", "2006/01"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.AddDate(0, 1, -1), true
		}
	}
	return time.Time{}, false
}
