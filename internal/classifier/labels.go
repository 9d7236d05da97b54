package classifier

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
)

// LabelFormat identifies the layout of a label file.
type LabelFormat string

const (
	// FormatINat is one "Scientific name (Common name)" per line, indexed by line number.
	FormatINat LabelFormat = "inat"
	// FormatAIY is a CSV with an "id,name" header.
	FormatAIY LabelFormat = "aiy"
)

// Labels maps model output indices to scientific names. Common names found
// in the label file itself are kept alongside.
type Labels struct {
	format LabelFormat
	names  map[int]string
	common map[string]string
}

// LoadLabels reads a label file, choosing the format by extension.
func LoadLabels(path string) (*Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Context("path", path).
			Build()
	}
	defer f.Close()

	var labels *Labels
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		labels, err = ParseAIY(f)
	} else {
		labels, err = ParseINat(f)
	}
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Context("path", path).
			Build()
	}

	GetLogger().Info("labels loaded",
		logger.String("path", path),
		logger.String("format", string(labels.format)),
		logger.Int("count", labels.Len()))
	return labels, nil
}

// ParseINat reads the iNaturalist text format. Blank lines keep their index
// but produce no label.
func ParseINat(r io.Reader) (*Labels, error) {
	l := &Labels{format: FormatINat, names: make(map[int]string), common: make(map[string]string)}

	scanner := bufio.NewScanner(r)
	for idx := 0; scanner.Scan(); idx++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		open := strings.Index(line, "(")
		end := strings.LastIndex(line, ")")
		if open < 0 || end < open {
			l.names[idx] = line
			continue
		}
		scientific := strings.TrimSpace(line[:open])
		common := strings.TrimSpace(line[open+1 : end])
		l.names[idx] = scientific
		if common != "" {
			l.common[scientific] = common
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return l, nil
}

// ParseAIY reads the AIY Birds V1 CSV format.
func ParseAIY(r io.Reader) (*Labels, error) {
	l := &Labels{format: FormatAIY, names: make(map[int]string), common: make(map[string]string)}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return l, nil
		}
		return nil, err
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) < 2 {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, errors.New(err).
				Component("classifier").
				Category(errors.CategoryLabelLoad).
				Context("label_id", row[0]).
				Build()
		}
		l.names[idx] = strings.TrimSpace(row[1])
	}
	return l, nil
}

// Format returns the file format the labels were read from.
func (l *Labels) Format() LabelFormat {
	return l.format
}

// Len returns the number of labels.
func (l *Labels) Len() int {
	if l == nil {
		return 0
	}
	return len(l.names)
}

// Scientific returns the name at idx, or "Unknown (idx)".
func (l *Labels) Scientific(idx int) string {
	if l != nil {
		if name, ok := l.names[idx]; ok {
			return name
		}
	}
	return fmt.Sprintf("Unknown (%d)", idx)
}

// Common returns the common name carried by the label file, if any.
func (l *Labels) Common(scientific string) (string, bool) {
	if l == nil {
		return "", false
	}
	name, ok := l.common[scientific]
	return name, ok
}
