package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Output formats accepted by WriteFiles.
const (
	FormatMarkdown = "md"
	FormatCSV      = "csv"
	FormatXLSX     = "xlsx"
)

// AllFormats lists every output format.
var AllFormats = []string{FormatMarkdown, FormatCSV, FormatXLSX}

// WriteFiles writes r to outputDir in the given formats and returns the
// written paths. Files are named after the report and cutoff date, so a
// re-run for the same cutoff overwrites the previous output.
func WriteFiles(outputDir string, r *Report, formats []string) ([]string, error) {
	if r == nil || r.Summary == nil {
		return nil, fmt.Errorf("write report: nil report")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	base := fileBase(r)
	var written []string

	for _, format := range formats {
		switch format {
		case FormatMarkdown:
			path := filepath.Join(outputDir, base+".md")
			if err := os.WriteFile(path, []byte(RenderMarkdown(r)), 0644); err != nil {
				return written, fmt.Errorf("write %s: %w", path, err)
			}
			written = append(written, path)

		case FormatCSV:
			varsCSV, err := RenderCSV(r.Variables)
			if err != nil {
				return written, err
			}
			path := filepath.Join(outputDir, base+"_variables.csv")
			if err := os.WriteFile(path, []byte(varsCSV), 0644); err != nil {
				return written, fmt.Errorf("write %s: %w", path, err)
			}
			written = append(written, path)

			modulesCSV, err := RenderModulesCSV(r.Summary)
			if err != nil {
				return written, err
			}
			path = filepath.Join(outputDir, base+"_modules.csv")
			if err := os.WriteFile(path, []byte(modulesCSV), 0644); err != nil {
				return written, fmt.Errorf("write %s: %w", path, err)
			}
			written = append(written, path)

		case FormatXLSX:
			path := filepath.Join(outputDir, base+".xlsx")
			if err := writeWorkbookFile(path, r); err != nil {
				return written, err
			}
			written = append(written, path)

		default:
			return written, fmt.Errorf("unknown output format %q", format)
		}
	}
	return written, nil
}

// ParseFormats splits a comma-separated format list. An empty list means all formats.
func ParseFormats(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return AllFormats, nil
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		switch f {
		case FormatMarkdown, FormatCSV, FormatXLSX:
			out = append(out, f)
		case "":
		default:
			return nil, fmt.Errorf("unknown output format %q", f)
		}
	}
	return out, nil
}

func writeWorkbookFile(path string, r *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteWorkbook(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func fileBase(r *Report) string {
	name := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			return c
		default:
			return '_'
		}
	}, r.Summary.Report)
	return fmt.Sprintf("REPORT_%s_%s", name, r.Summary.Cutoff.Format("20060102"))
}
