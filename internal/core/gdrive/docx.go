package gdrive

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/oto-macenauer/school-summary/internal/platform/errors"
)

// extractDocxText pulls the plain text out of a DOCX payload. Paragraph
// boundaries become newlines, all other formatting is dropped.
func extractDocxText(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", errors.Wrap(errors.KindDrive, "docx", "open archive", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New(errors.KindDrive, "docx", "archive has no word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", errors.Wrap(errors.KindDrive, "docx", "open document.xml", err)
	}
	defer rc.Close()

	text, err := collectDocumentText(rc)
	if err != nil {
		return "", errors.Wrap(errors.KindDrive, "docx", "parse document.xml", err)
	}
	return text, nil
}

func collectDocumentText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var sb strings.Builder
	var inText bool

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "p":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			if el.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
