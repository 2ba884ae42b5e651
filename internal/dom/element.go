package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Sel wraps a single node in a goquery selection
func Sel(n *html.Node) *goquery.Selection {
	if n == nil {
		return &goquery.Selection{}
	}
	return goquery.NewDocumentFromNode(n).Selection
}

// NewElement creates a detached element carrying the given classes
func NewElement(tag string, classes ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	if len(classes) > 0 {
		SetAttr(n, "class", strings.Join(classes, " "))
	}
	return n
}

// Append adds children to parent, detaching them from any previous parent
func Append(parent *html.Node, children ...*html.Node) *html.Node {
	for _, c := range children {
		Detach(c)
		parent.AppendChild(c)
	}
	return parent
}

// Detach removes n from its parent without destroying it
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Clear removes every child of n
func Clear(n *html.Node) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
}

// Connected reports whether n is attached beneath root
func Connected(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

func Attr(n *html.Node, key string) (string, bool) {
	return Sel(n).Attr(key)
}

func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key && n.Attr[i].Namespace == "" {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func RemoveAttr(n *html.Node, key string) {
	Sel(n).RemoveAttr(key)
}

func HasClass(n *html.Node, class string) bool {
	return Sel(n).HasClass(class)
}

func AddClass(n *html.Node, class string) {
	Sel(n).AddClass(class)
}

func RemoveClass(n *html.Node, class string) {
	Sel(n).RemoveClass(class)
}

// SetClass adds or removes class depending on on
func SetClass(n *html.Node, class string, on bool) {
	if on {
		AddClass(n, class)
	} else {
		RemoveClass(n, class)
	}
}

// SetText replaces the children of n with a single text node
func SetText(n *html.Node, text string) {
	Sel(n).SetText(text)
}

func Text(n *html.Node) string {
	return Sel(n).Text()
}

// SetHidden toggles the boolean hidden attribute
func SetHidden(n *html.Node, hidden bool) {
	if hidden {
		SetAttr(n, "hidden", "")
	} else {
		RemoveAttr(n, "hidden")
	}
}

// Find returns the first descendant matching a CSS selector, or nil
func Find(n *html.Node, selector string) *html.Node {
	found := Sel(n).Find(selector)
	if found.Length() == 0 {
		return nil
	}
	return found.Get(0)
}

// FindAll returns every descendant matching a CSS selector
func FindAll(n *html.Node, selector string) []*html.Node {
	return Sel(n).Find(selector).Nodes
}

// Render serialises n to HTML
func Render(n *html.Node) string {
	var b strings.Builder
	_ = html.Render(&b, n)
	return b.String()
}
