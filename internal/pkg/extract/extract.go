// Package extract pulls plain text out of uploaded legal documents.
// Supported formats: PDF, DOCX and plain text (UTF-8, invalid bytes
// dropped).
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Text extracts document text based on the file extension. Unknown
// extensions fall back to plain-text decoding.
func Text(filename string, content []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return fromPDF(content)
	case ".docx":
		return fromDOCX(content)
	default:
		return fromPlainText(content), nil
	}
}

// fromPDF extracts plain text from a PDF. Returns an empty string without
// error when the PDF has no extractable text.
func fromPDF(content []byte) (string, error) {
	if len(content) == 0 {
		return "", nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text failed: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	return string(out), nil
}

// documentXML mirrors the paragraph/run/text nesting of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []struct {
			Runs []struct {
				Text []struct {
					Content string `xml:",chardata"`
				} `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

// fromDOCX reads word/document.xml out of the DOCX zip container and joins
// paragraph runs with newlines.
func fromDOCX(content []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open docx failed: %w", err)
	}
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open docx document part failed: %w", err)
		}
		raw, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("read docx document part failed: %w", err)
		}

		var doc documentXML
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return "", fmt.Errorf("parse docx document xml failed: %w", err)
		}
		var b strings.Builder
		for i, para := range doc.Body.Paragraphs {
			if i > 0 {
				b.WriteString("\n")
			}
			for _, run := range para.Runs {
				for _, t := range run.Text {
					b.WriteString(t.Content)
				}
			}
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("docx has no word/document.xml")
}

// fromPlainText decodes bytes as UTF-8, dropping invalid sequences.
func fromPlainText(content []byte) string {
	return strings.ToValidUTF8(string(content), "")
}
