package mission

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/siku/core"
)

// FormatOf guesses a catalog document format from a file name or a content type.
func FormatOf(name string) string {
	name = strings.ToLower(name)
	switch {
	case strings.Contains(name, "yaml"), filepath.Ext(name) == ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// DecodeRows reads a catalog document (a JSON or YAML list of objects) into raw rows.
func DecodeRows(r io.Reader, format string) ([]Row, error) {
	var rows []Row
	switch format {
	case "yaml":
		if err := yaml.NewDecoder(r).Decode(&rows); err != nil && err != io.EOF {
			return nil, core.NewArgumentError(errors.Wrap(err, "decoding yaml catalog").Error())
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&rows); err != nil {
			return nil, core.NewArgumentError(errors.Wrap(err, "decoding json catalog").Error())
		}
	default:
		return nil, core.NewArgumentError("unknown catalog format: " + format)
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}
