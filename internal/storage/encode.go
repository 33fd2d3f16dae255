package storage

import (
	"encoding/json"
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

// saveJSON saves data as JSON
func saveJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// loadJSON loads data from JSON
func loadJSON(r io.Reader, data any) error {
	decoder := json.NewDecoder(r)
	return decoder.Decode(data)
}

// saveYAML saves data as YAML
func saveYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}

// loadYAML loads data from YAML; an empty document is not an error
func loadYAML(r io.Reader, data any) error {
	err := yaml.NewDecoder(r).Decode(data)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
