package dom

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/saintjustus/windowshell/internal/shared/geometry"
)

// Style reads the inline style attribute into a property map
func Style(n *html.Node) map[string]string {
	out := map[string]string{}
	raw, _ := Attr(n, "style")
	for _, decl := range strings.Split(raw, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.TrimSpace(prop)
		if prop == "" {
			continue
		}
		out[prop] = strings.TrimSpace(val)
	}
	return out
}

// SetStyle merges props into the inline style. An empty value removes the property.
func SetStyle(n *html.Node, props map[string]string) {
	cur := Style(n)
	for k, v := range props {
		if v == "" {
			delete(cur, k)
		} else {
			cur[k] = v
		}
	}
	if len(cur) == 0 {
		RemoveAttr(n, "style")
		return
	}
	keys := make([]string, 0, len(cur))
	for k := range cur {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+cur[k])
	}
	SetAttr(n, "style", strings.Join(parts, "; "))
}

// Px formats a pixel length
func Px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

// StylePx reads a pixel property back, false if absent or not in px
func StylePx(n *html.Node, prop string) (float64, bool) {
	v, ok := Style(n)[prop]
	if !ok || !strings.HasSuffix(v, "px") {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// SetBox writes left/top/width/height
func SetBox(n *html.Node, r geometry.Rect) {
	SetStyle(n, map[string]string{
		"left":   Px(r.X),
		"top":    Px(r.Y),
		"width":  Px(r.Width),
		"height": Px(r.Height),
	})
}

// Box reads left/top/width/height back from the inline style
func Box(n *html.Node) geometry.Rect {
	var r geometry.Rect
	r.X, _ = StylePx(n, "left")
	r.Y, _ = StylePx(n, "top")
	r.Width, _ = StylePx(n, "width")
	r.Height, _ = StylePx(n, "height")
	return r
}
