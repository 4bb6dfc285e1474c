// ABOUTME: Glyphs for the TUI with a Nerd Font variant and a plain Unicode fallback
// ABOUTME: FORCEAPP_NERD_FONTS forces the choice; otherwise known terminals get Nerd Fonts

package icons

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// Terminals that usually ship with a patched font
var nerdFontTerminals = []string{"iterm.app", "wezterm", "kitty", "ghostty", "alacritty"}

var nerdFonts = sync.OnceValue(func() bool {
	if v, ok := os.LookupEnv("FORCEAPP_NERD_FONTS"); ok {
		on, err := strconv.ParseBool(v)
		return err == nil && on
	}

	env := strings.ToLower(os.Getenv("TERM_PROGRAM") + " " + os.Getenv("TERM"))
	for _, t := range nerdFontTerminals {
		if strings.Contains(env, t) {
			return true
		}
	}
	return false
})

// HasNerdFonts reports whether Nerd Font glyphs are rendered. Detected once.
func HasNerdFonts() bool {
	return nerdFonts()
}

// Icon is a glyph pair
type Icon struct {
	NerdFont string
	Fallback string
}

func (i Icon) String() string {
	if HasNerdFonts() {
		return i.NerdFont
	}
	return i.Fallback
}

var (
	App     = Icon{"󰅟", "◈"} // nf-md-cloud
	User    = Icon{"󰀉", "☺"} // nf-md-account_circle
	Contact = Icon{"󰀄", "•"} // nf-md-account

	Login  = Icon{"󰍂", "→"} // nf-md-login
	Logout = Icon{"󰍃", "←"} // nf-md-logout
	Link   = Icon{"󰌹", "⇗"} // nf-md-link

	Critical = Icon{"", "✗"} // nf-oct-x_circle
)
