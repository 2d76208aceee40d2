package ui

// Config contains window related settings.
type Config struct {
	Title   string // window title
	Scale   int    // initial window width is Scale × frame width
	NoVSync bool   // present as soon as a frame is drawn
	// Later: fullscreen toggle, key remapping.
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "zxemu"
	}
	if c.Scale <= 0 {
		c.Scale = 2
	}
}
