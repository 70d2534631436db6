package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// extractDOCX walks word/document.xml in document order. Paragraphs become
// lines; table rows become one line with cells joined by " | ".
func extractDOCX(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening docx: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("opening document.xml: %w", err)
		}
		defer rc.Close()

		return parseDocumentXML(rc)
	}
	return "", errors.New("docx has no word/document.xml")
}

func parseDocumentXML(r io.Reader) (string, error) {
	var (
		parts      []string
		para       strings.Builder
		cell       []string
		row        []string
		tableDepth int
		inText     bool
	)

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			case "tbl":
				tableDepth++
			case "tr":
				if tableDepth == 1 {
					row = nil
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := strings.TrimSpace(para.String())
				para.Reset()
				if text == "" {
					continue
				}
				if tableDepth > 0 {
					cell = append(cell, text)
				} else {
					parts = append(parts, text)
				}
			case "tc":
				if tableDepth == 1 {
					row = append(row, strings.Join(cell, " "))
					cell = nil
				}
			case "tr":
				if tableDepth == 1 {
					line := strings.Join(row, " | ")
					if strings.Trim(line, " |") != "" {
						parts = append(parts, line)
					}
					row = nil
				}
			case "tbl":
				tableDepth--
			}
		}
	}

	return strings.Join(parts, "\n"), nil
}
