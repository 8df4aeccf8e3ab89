package templating

import "fmt"

// ParentMode selects what the "@parent" marker expands to when a block name
// is declared more than twice.
type ParentMode string

const (
	// ParentChain expands the marker to the value registered immediately
	// before, which already carries any content its own marker pulled in.
	ParentChain ParentMode = "chain"
	// ParentRoot expands the marker to the first value declared for the name.
	ParentRoot ParentMode = "root"
)

// FingerprintMode selects how the freshness of a compiled template is measured.
type FingerprintMode string

const (
	// FingerprintContent hashes the bytes of every file a template was built from.
	FingerprintContent FingerprintMode = "content"
	// FingerprintModTime uses the latest modification time of those files.
	FingerprintModTime FingerprintMode = "modtime"
)

// Config holds all configuration options for the template engine.
type Config struct {
	// CacheEnabled allows compiled templates to be reused while their
	// sources are unchanged. When false every render recompiles.
	CacheEnabled bool `json:"cache_enabled"`

	// CacheNamespace separates the compiled templates of one engine from
	// another sharing the same store.
	CacheNamespace string `json:"cache_namespace"`

	// Extension is appended to identifiers that have none.
	Extension string `json:"extension"`

	// Fingerprint is either "content" or "modtime".
	Fingerprint FingerprintMode `json:"fingerprint"`

	// ParentMode is either "chain" or "root".
	ParentMode ParentMode `json:"parent_mode"`

	// Indent is written once per nesting level in normalized output.
	Indent string `json:"indent"`

	// MaxIncludeDepth bounds how deep extends/include directives may nest.
	MaxIncludeDepth int `json:"max_include_depth"`
}

// DefaultConfig returns a Config with caching disabled, matching the
// behaviour of a fresh checkout where templates change often.
func DefaultConfig() Config {
	return Config{
		CacheEnabled:    false,
		CacheNamespace:  "cache",
		Extension:       ".xml",
		Fingerprint:     FingerprintContent,
		ParentMode:      ParentChain,
		Indent:          "  ",
		MaxIncludeDepth: 32,
	}
}

// withDefaults fills zero fields from DefaultConfig and rejects unknown modes.
func (c Config) withDefaults() (Config, error) {
	def := DefaultConfig()
	if c.CacheNamespace == "" {
		c.CacheNamespace = def.CacheNamespace
	}
	if c.Extension == "" {
		c.Extension = def.Extension
	}
	if c.Indent == "" {
		c.Indent = def.Indent
	}
	if c.Fingerprint == "" {
		c.Fingerprint = def.Fingerprint
	}
	if c.ParentMode == "" {
		c.ParentMode = def.ParentMode
	}
	if c.MaxIncludeDepth <= 0 {
		c.MaxIncludeDepth = def.MaxIncludeDepth
	}

	switch c.Fingerprint {
	case FingerprintContent, FingerprintModTime:
	default:
		return c, fmt.Errorf("unknown fingerprint mode %q", c.Fingerprint)
	}
	switch c.ParentMode {
	case ParentChain, ParentRoot:
	default:
		return c, fmt.Errorf("unknown parent mode %q", c.ParentMode)
	}
	return c, nil
}
