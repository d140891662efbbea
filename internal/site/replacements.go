package site

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ButtonReplacement is a user-authored edit for one button, keyed by (URL, Selector).
type ButtonReplacement struct {
	URL      string `json:"url" yaml:"url"`
	Selector string `json:"selector" yaml:"selector"`
	NewText  string `json:"newText" yaml:"newText"`
	NewHref  string `json:"newHref,omitempty" yaml:"newHref,omitempty"`
}

// PixelAction selects between replacing and removing a pixel.
type PixelAction string

// Pixel actions.
const (
	ActionReplace PixelAction = "replace"
	ActionRemove  PixelAction = "remove"
)

// UnmarshalText maps the empty string to ActionReplace and rejects unknown actions.
func (a *PixelAction) UnmarshalText(text []byte) error {
	switch PixelAction(text) {
	case "", ActionReplace:
		*a = ActionReplace
	case ActionRemove:
		*a = ActionRemove
	default:
		return fmt.Errorf("unknown pixel action %q", string(text))
	}
	return nil
}

// PixelReplacement is a user-authored edit for one pixel, keyed by (URL, Selector).
type PixelReplacement struct {
	URL      string      `json:"url" yaml:"url"`
	Selector string      `json:"selector" yaml:"selector"`
	Vendor   PixelVendor `json:"pixelType" yaml:"pixelType"`
	NewHTML  string      `json:"newPixelHtml,omitempty" yaml:"newPixelHtml,omitempty"`
	NewToken string      `json:"newPixelToken,omitempty" yaml:"newPixelToken,omitempty"`
	Action   PixelAction `json:"action,omitempty" yaml:"action,omitempty"`
}

// UnmarshalJSON applies the replace default for a missing action and the facebook default for a missing vendor.
func (r *PixelReplacement) UnmarshalJSON(data []byte) error {
	type plain PixelReplacement
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("unmarshal pixel replacement: %w", err)
	}
	*r = PixelReplacement(p).withDefaults()
	return nil
}

// UnmarshalYAML applies the same defaults as UnmarshalJSON.
func (r *PixelReplacement) UnmarshalYAML(node *yaml.Node) error {
	type plain PixelReplacement
	var p plain
	if err := node.Decode(&p); err != nil {
		return fmt.Errorf("unmarshal pixel replacement: %w", err)
	}
	*r = PixelReplacement(p).withDefaults()
	return nil
}

func (r PixelReplacement) withDefaults() PixelReplacement {
	if r.Action == "" {
		r.Action = ActionReplace
	}
	if r.Vendor == "" {
		r.Vendor = VendorFacebook
	}
	return r
}

// ButtonReplacements maps a page URL to its ordered button edits.
type ButtonReplacements map[string][]ButtonReplacement

// PixelReplacements maps a page URL to its ordered pixel operations.
type PixelReplacements map[string][]PixelReplacement

// GroupButtons indexes a flat list by URL, preserving list order within each URL.
func GroupButtons(list []ButtonReplacement) ButtonReplacements {
	out := make(ButtonReplacements)
	for _, r := range list {
		out[r.URL] = append(out[r.URL], r)
	}
	return out
}

// GroupPixels indexes a flat list by URL, preserving list order within each URL.
func GroupPixels(list []PixelReplacement) PixelReplacements {
	out := make(PixelReplacements)
	for _, r := range list {
		out[r.URL] = append(out[r.URL], r.withDefaults())
	}
	return out
}

// UpsertButton replaces the entry with the same (URL, Selector) or appends r.
func UpsertButton(list []ButtonReplacement, r ButtonReplacement) []ButtonReplacement {
	for i := range list {
		if list[i].URL == r.URL && list[i].Selector == r.Selector {
			list[i] = r
			return list
		}
	}
	return append(list, r)
}

// UpsertPixel replaces the entry with the same (URL, Selector) or appends r.
func UpsertPixel(list []PixelReplacement, r PixelReplacement) []PixelReplacement {
	r = r.withDefaults()
	for i := range list {
		if list[i].URL == r.URL && list[i].Selector == r.Selector {
			list[i] = r
			return list
		}
	}
	return append(list, r)
}
