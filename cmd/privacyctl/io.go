package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/locationprivacy/backend/internal/domain"
)

func readDataset(path string) (*domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var ds domain.Dataset
	if err := json.NewDecoder(f).Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	return &ds, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
