package session

import "log/slog"

// Navigator performs the page-level side effects of session loss.
type Navigator interface {
	// Redirect leaves the current page for url.
	Redirect(url string)

	// Reload restarts the current page from scratch.
	Reload()
}

type logNavigator struct {
	logger *slog.Logger
}

func (n logNavigator) Redirect(url string) {
	n.logger.Warn("redirect requested", "url", url)
}

func (n logNavigator) Reload() {
	n.logger.Warn("reload requested")
}
