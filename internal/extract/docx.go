package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// DocxExtractor reads the main document part of a .docx archive and returns
// its text, one paragraph per line. Styling, tables-of-contents and embedded
// objects are ignored.
type DocxExtractor struct{}

const documentPart = "word/document.xml"

func (DocxExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "extract: context cancelled")
	}

	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", eris.Wrapf(err, "extract: open docx %s", path)
	}
	defer archive.Close()

	for _, f := range archive.File {
		if f.Name != documentPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", eris.Wrapf(err, "extract: open %s", documentPart)
		}
		defer rc.Close()
		return documentText(rc)
	}

	return "", eris.Errorf("extract: %s has no %s part", path, documentPart)
}

// documentText walks the WordprocessingML token stream, collecting run text
// (<w:t>) and emitting a newline at each paragraph end (</w:p>).
func documentText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var sb strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", eris.Wrap(err, "extract: decode document xml")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return strings.TrimRight(sb.String(), "\n"), nil
}

// PlainExtractor returns the file contents as-is. Used for .txt contracts
// and as the fallback for unknown extensions.
type PlainExtractor struct{}

func (PlainExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "extract: context cancelled")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "extract: read %s", path)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
