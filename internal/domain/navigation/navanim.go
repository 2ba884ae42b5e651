package navigation

import (
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/saintjustus/windowshell/internal/dom"
)

const (
	ClassNavFadeIn  = "nav-link--fade-in"
	ClassNavFadeOut = "nav-link--fade-out"
	// PropNavDelay is the custom property the nav transition reads its delay from
	PropNavDelay    = "--nav-transition-delay"
	navStep         = 90 * time.Millisecond
)

func (s *Shell) navLinks() []*html.Node {
	var links []*html.Node
	s.doc.Do(func(q *goquery.Document) {
		links = q.Find(".nav-links").First().Find(dom.SelectorNavLink).Nodes
	})
	return links
}

func delayValue(steps int) string {
	return fmt.Sprintf("%dms", time.Duration(steps)*navStep/time.Millisecond)
}

// animateNavEntrance fades the home nav links in left to right
func (s *Shell) animateNavEntrance() {
	links := s.navLinks()
	if len(links) == 0 {
		return
	}
	s.doc.Run(func() {
		for i, link := range links {
			dom.RemoveClass(link, ClassNavFadeOut)
			dom.RemoveClass(link, ClassNavFadeIn)
			dom.SetStyle(link, map[string]string{PropNavDelay: delayValue(i)})
		}
	})
	s.sched.RequestFrame(func() {
		s.doc.Run(func() {
			for _, link := range links {
				dom.AddClass(link, ClassNavFadeIn)
			}
		})
	})
}

// animateNavExit fades the home nav links out, the ones farthest from the
// chosen link first.
func (s *Shell) animateNavExit(targetID string) {
	links := s.navLinks()
	s.doc.Run(func() {
		target := -1
		for i, link := range links {
			if v, _ := dom.Attr(link, dom.AttrNavLink); v == targetID {
				target = i
				break
			}
		}
		if target < 0 {
			return
		}
		maxDistance := 0
		for i := range links {
			maxDistance = max(maxDistance, abs(i-target))
		}
		for i, link := range links {
			dom.SetStyle(link, map[string]string{PropNavDelay: delayValue(maxDistance - abs(i-target))})
			dom.RemoveClass(link, ClassNavFadeIn)
			dom.AddClass(link, ClassNavFadeOut)
		}
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
