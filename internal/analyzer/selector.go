package analyzer

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// selectorFor builds a short locator for s: #id, then .firstClass, then the tag name.
// The result is not guaranteed to be unique in the document.
func selectorFor(s *goquery.Selection) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}
	if classes := classList(s); len(classes) > 0 {
		return "." + classes[0]
	}
	if tag := goquery.NodeName(s); tag != "" && !strings.HasPrefix(tag, "#") {
		return strings.ToLower(tag)
	}
	return "element"
}

func classList(s *goquery.Selection) []string {
	class, _ := s.Attr("class")
	return strings.Fields(class)
}

// nthOfType addresses the n-th (zero-based) element matched by base in document order. The rewriter
// resolves this form by position across the whole document, not among siblings.
func nthOfType(base string, n int) string {
	return fmt.Sprintf("%s:nth-of-type(%d)", base, n+1)
}

// attrSelector renders tag[attr="value"] with the value quoted as a CSS string.
func attrSelector(tag, attr, value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
	return fmt.Sprintf(`%s[%s="%s"]`, tag, attr, escaped)
}
