// Package site holds the data model shared by the crawler, analyzer, rewriter, and archive assembler.
package site

// Category is the coarse asset class assigned to every ScannedFile.
type Category string

// Category values. Every classified file carries exactly one of these.
const (
	CategoryHTML     Category = "html"
	CategoryCSS      Category = "css"
	CategoryJS       Category = "js"
	CategoryImage    Category = "image"
	CategoryFont     Category = "font"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryDocument Category = "document"
	CategoryOther    Category = "other"
)

// Categories lists every valid category in a stable order.
var Categories = []Category{
	CategoryHTML,
	CategoryCSS,
	CategoryJS,
	CategoryImage,
	CategoryFont,
	CategoryVideo,
	CategoryAudio,
	CategoryDocument,
	CategoryOther,
}

// Valid reports whether c is one of the nine defined categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// UnknownType is recorded as ScannedFile.Type when no content-type was declared.
const UnknownType = "unknown"

// ScannedFile records one discovered resource.
type ScannedFile struct {
	URL      string   `json:"url" yaml:"url"`
	Path     string   `json:"path" yaml:"path"`
	Type     string   `json:"type" yaml:"type"`
	Size     *int64   `json:"size,omitempty" yaml:"size,omitempty"`
	MimeType string   `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
	Category Category `json:"category" yaml:"category"`
}

// IsHTML reports whether the file is rewritten as a document during archive assembly.
func (f ScannedFile) IsHTML() bool {
	return f.Category == CategoryHTML || containsFold(f.Type, "text/html")
}

// ElementKind describes which detection pass produced a ButtonContent.
type ElementKind string

// Element kinds, in detection pass order.
const (
	KindButton    ElementKind = "button"
	KindLink      ElementKind = "link"
	KindInput     ElementKind = "input"
	KindContainer ElementKind = "div/span"
)

// ButtonContent is one call-to-action element found in a document.
type ButtonContent struct {
	Text     string      `json:"text"`
	Selector string      `json:"selector"`
	HTML     string      `json:"html"`
	URL      string      `json:"url"`
	Kind     ElementKind `json:"kind"`
	Type     string      `json:"type,omitempty"`
	Classes  []string    `json:"classes,omitempty"`
	Href     string      `json:"href,omitempty"`
}

// PixelVendor names the third party behind a tracking snippet.
type PixelVendor string

// Known vendors.
const (
	VendorFacebook  PixelVendor = "facebook"
	VendorGoogle    PixelVendor = "google"
	VendorTikTok    PixelVendor = "tiktok"
	VendorPinterest PixelVendor = "pinterest"
	VendorLinkedIn  PixelVendor = "linkedin"
	VendorOther     PixelVendor = "other"
)

// PixelTracking is one tracking snippet found in a document.
type PixelTracking struct {
	Vendor   PixelVendor `json:"type"`
	Code     string      `json:"code"`
	Selector string      `json:"selector"`
	HTML     string      `json:"html"`
	URL      string      `json:"url"`
	ID       string      `json:"id,omitempty"`
}

// ContentAnalysis is the per-page result of button and pixel detection.
type ContentAnalysis struct {
	URL     string          `json:"url"`
	Buttons []ButtonContent `json:"buttons"`
	Pixels  []PixelTracking `json:"pixels"`
}
