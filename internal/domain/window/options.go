package window

import "github.com/saintjustus/windowshell/internal/infrastructure/config"

// Options size and constrain windows.
type Options struct {
	Gutter          float64
	MinWidth        float64
	MinHeight       float64
	ActiveMinWidth  float64
	ActiveMinHeight float64
	// ChromeHeight is the header bar height subtracted from the viewport
	ChromeHeight float64
}

func DefaultOptions() Options {
	return Options{
		Gutter:          32,
		MinWidth:        240,
		MinHeight:       160,
		ActiveMinWidth:  480,
		ActiveMinHeight: 340,
		ChromeHeight:    36,
	}
}

// OptionsFromConfig maps the env configuration onto window options
func OptionsFromConfig(c config.WindowConfig) Options {
	o := DefaultOptions()
	o.Gutter = c.Gutter
	o.MinWidth = c.MinWidth
	o.MinHeight = c.MinHeight
	o.ActiveMinWidth = c.ActiveMinWidth
	o.ActiveMinHeight = c.ActiveMinHeight
	return o
}
