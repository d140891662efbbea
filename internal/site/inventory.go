package site

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Inventory is the ordered set of ScannedFile records from one crawl, keyed by normalized URL.
// The first registration of a URL wins; later registrations are ignored.
type Inventory struct {
	order []string
	files map[string]ScannedFile
}

// NewInventory returns an empty Inventory.
func NewInventory() *Inventory {
	return &Inventory{files: make(map[string]ScannedFile)}
}

// Add registers f unless its URL is already present. It reports whether f was stored.
func (inv *Inventory) Add(f ScannedFile) bool {
	if inv.files == nil {
		inv.files = make(map[string]ScannedFile)
	}
	if _, ok := inv.files[f.URL]; ok {
		return false
	}
	if !f.Category.Valid() {
		f.Category = CategoryOther
	}
	inv.order = append(inv.order, f.URL)
	inv.files[f.URL] = f
	return true
}

// Put stores f, replacing any existing entry for the same URL while keeping its position.
func (inv *Inventory) Put(f ScannedFile) {
	if inv.files == nil {
		inv.files = make(map[string]ScannedFile)
	}
	if !f.Category.Valid() {
		f.Category = CategoryOther
	}
	if _, ok := inv.files[f.URL]; !ok {
		inv.order = append(inv.order, f.URL)
	}
	inv.files[f.URL] = f
}

// Has reports whether rawURL is registered.
func (inv *Inventory) Has(rawURL string) bool {
	if inv == nil {
		return false
	}
	_, ok := inv.files[rawURL]
	return ok
}

// Get returns the entry for rawURL.
func (inv *Inventory) Get(rawURL string) (ScannedFile, bool) {
	if inv == nil {
		return ScannedFile{}, false
	}
	f, ok := inv.files[rawURL]
	return f, ok
}

// Len returns the number of entries.
func (inv *Inventory) Len() int {
	if inv == nil {
		return 0
	}
	return len(inv.order)
}

// Files returns the entries in registration order.
func (inv *Inventory) Files() []ScannedFile {
	if inv == nil {
		return nil
	}
	out := make([]ScannedFile, 0, len(inv.order))
	for _, u := range inv.order {
		out = append(out, inv.files[u])
	}
	return out
}

// FromFiles builds an Inventory from a flat list. Duplicate URLs keep the first entry.
func FromFiles(files []ScannedFile) *Inventory {
	inv := NewInventory()
	for _, f := range files {
		inv.Add(f)
	}
	return inv
}

// MarshalJSON encodes the inventory as an array of files.
func (inv *Inventory) MarshalJSON() ([]byte, error) {
	files := inv.Files()
	if files == nil {
		files = []ScannedFile{}
	}
	data, err := json.Marshal(files)
	if err != nil {
		return nil, fmt.Errorf("marshal inventory: %w", err)
	}
	return data, nil
}

// UnmarshalJSON decodes an array of files.
func (inv *Inventory) UnmarshalJSON(data []byte) error {
	var files []ScannedFile
	if err := json.Unmarshal(data, &files); err != nil {
		return fmt.Errorf("unmarshal inventory: %w", err)
	}
	*inv = *FromFiles(files)
	return nil
}

// Summary aggregates inventory statistics for reporting.
type Summary struct {
	Files      []ScannedFile    `json:"files"`
	Domain     string           `json:"domain"`
	TotalFiles int              `json:"totalFiles"`
	TotalSize  int64            `json:"totalSize"`
	Categories map[Category]int `json:"categories"`
}

// Summary computes the scan report for the inventory. Domain is the seed host.
func (inv *Inventory) Summary(seed string) Summary {
	s := Summary{
		Files:      inv.Files(),
		Categories: make(map[Category]int),
	}
	if s.Files == nil {
		s.Files = []ScannedFile{}
	}
	if u, err := url.Parse(seed); err == nil {
		s.Domain = u.Hostname()
	}
	for _, f := range s.Files {
		s.TotalFiles++
		if f.Size != nil {
			s.TotalSize += *f.Size
		}
		s.Categories[f.Category]++
	}
	return s
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
