package mediawiki

const (
	ROOT_URL   = "https://en.wikipedia.org/w/api.php"
	USER_AGENT = "discourse/0.1 (talk page tooling; contact: talk@discourse.invalid)"
)
