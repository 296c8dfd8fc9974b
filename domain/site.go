package domain

// Site holds the settings rendered on every page.
type Site struct {
	Title       string
	Description string
	Footer      string
}
