package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/sitecopier/internal/site"
)

// replacementsFile is the on-disk shape of a replacements document.
type replacementsFile struct {
	Buttons []site.ButtonReplacement `json:"buttons" yaml:"buttons"`
	Pixels  []site.PixelReplacement  `json:"pixels" yaml:"pixels"`
}

// inventoryDoc accepts a scan summary, whose files field holds the inventory.
type inventoryDoc struct {
	Files []site.ScannedFile `json:"files" yaml:"files"`
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func unmarshal(path string, data []byte, v any) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

// readInventory loads either a bare list of files or a document with a files list.
func readInventory(path string) (*site.Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	var files []site.ScannedFile
	if err := unmarshal(path, data, &files); err != nil {
		var doc inventoryDoc
		if docErr := unmarshal(path, data, &doc); docErr != nil {
			return nil, fmt.Errorf("decode inventory %s: %w", path, err)
		}
		files = doc.Files
	}
	return site.FromFiles(files), nil
}

func readReplacements(path string) (replacementsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return replacementsFile{}, fmt.Errorf("read replacements: %w", err)
	}
	var r replacementsFile
	if err := unmarshal(path, data, &r); err != nil {
		return replacementsFile{}, fmt.Errorf("decode replacements %s: %w", path, err)
	}
	return r, nil
}

func writeInventory(path string, inv *site.Inventory) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(inv.Files())
	} else {
		data, err = json.MarshalIndent(inv, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode inventory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write inventory: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
