// internal/browser/static/path.go
package static

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/domharvest/internal/locator"
)

// UniquePath builds a tree query that selects exactly n from the document
// root. An ancestor with an id anchors the path and ends the walk.
func UniquePath(n *html.Node) string {
	if n == nil {
		return ""
	}

	var segments []string
	for cur := n; cur != nil && cur.Type != html.DocumentNode; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(cur.Data)
		if tag == "" {
			continue
		}

		if id := htmlquery.SelectAttr(cur, "id"); id != "" {
			segments = append(segments, "//*[@id="+locator.Literal(id)+"]")
			break
		}

		// 1-based position among same-tag siblings.
		pos := 1
		for prev := cur.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
				pos++
			}
		}
		segments = append(segments, fmt.Sprintf("%s[%d]", tag, pos))
	}

	if len(segments) == 0 {
		return "/"
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}

	path := strings.Join(segments, "/")
	if !strings.HasPrefix(path, "//") {
		path = "/" + path
	}
	return path
}
