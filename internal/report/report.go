// Package report assigns client-side names to downloaded review artifacts
// and writes them to disk. The backend streams raw bytes; all naming happens
// here.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// filenameSanitizer strips characters that are unsafe in file names on at
// least one supported platform.
var filenameSanitizer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// Sanitize makes title safe to use as a file name component.
func Sanitize(title string) string {
	s := strings.TrimSpace(filenameSanitizer.Replace(title))
	if s == "" {
		return "contract"
	}
	return s
}

// ReviewedDocumentName names the downloaded reviewed contract.
func ReviewedDocumentName(title string) string {
	return Sanitize(title) + "_审查版.docx"
}

// ReportName names the downloaded review report.
func ReportName(title string) string {
	return Sanitize(title) + "_审查报告.txt"
}

// TimestampedDocumentName names the reviewed contract with the review date,
// for archiving multiple rounds of the same contract.
func TimestampedDocumentName(name string, at time.Time) string {
	return fmt.Sprintf("%s_审查后_%s.docx", Sanitize(name), at.Format("20060102"))
}

// TimestampedReportName names the review report with the review date.
func TimestampedReportName(name string, at time.Time) string {
	return fmt.Sprintf("%s_审查报告_%s.txt", Sanitize(name), at.Format("20060102"))
}

// Write stores one artifact under dir, creating the directory as needed, and
// returns the full path.
func Write(dir, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "failed to create output directory %s", dir)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "failed to write %s", path)
	}
	return path, nil
}
