package dmp

import (
	"strings"
	"time"
)

const (
	// MaxMintAttempts caps the candidate identifiers tried per creation.
	MaxMintAttempts = 10

	DefaultQuiescenceWindow = time.Hour
	DefaultPerPage          = 25
	MaxPerPage              = 250

	// casRetries bounds the read-merge-write loop under conditional writes.
	casRetries = 3

	// ObsoletePrefix marks the title of a tombstoned plan.
	ObsoletePrefix = "OBSOLETE: "
)

// Config is injected at construction time.
type Config struct {
	// Shoulder prefixes minted identifiers, e.g. "10.80030". A shoulder
	// that already contains a "/" is used verbatim as the prefix.
	Shoulder string

	// MintAttempts may lower the attempt budget; it never raises it above
	// MaxMintAttempts.
	MintAttempts int

	// QuiescenceWindow is how long the owner may keep editing the latest
	// version in place before the next edit snapshots it.
	QuiescenceWindow time.Duration

	// ConditionalWrites guards the latest-version write with a
	// compare-and-swap on the last update token.
	ConditionalWrites bool

	// APIBaseURL is the public base used to build version URLs.
	APIBaseURL string

	DefaultPerPage int
	MaxPerPage     int
}

func (c Config) normalized() Config {
	if c.MintAttempts <= 0 || c.MintAttempts > MaxMintAttempts {
		c.MintAttempts = MaxMintAttempts
	}
	if c.QuiescenceWindow <= 0 {
		c.QuiescenceWindow = DefaultQuiescenceWindow
	}
	if c.MaxPerPage <= 0 || c.MaxPerPage > MaxPerPage {
		c.MaxPerPage = MaxPerPage
	}
	if c.DefaultPerPage <= 0 || c.DefaultPerPage > c.MaxPerPage {
		c.DefaultPerPage = DefaultPerPage
		if c.DefaultPerPage > c.MaxPerPage {
			c.DefaultPerPage = c.MaxPerPage
		}
	}
	c.APIBaseURL = strings.TrimSuffix(c.APIBaseURL, "/")
	return c
}

// pageBounds clamps out-of-range pagination values to the defaults.
func (c Config) pageBounds(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > c.MaxPerPage {
		perPage = c.DefaultPerPage
	}
	return page, perPage
}
