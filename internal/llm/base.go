package llm

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nulzo/tier-router/internal/config"
)

const defaultTimeout = 60 * time.Second

var validate = validator.New()

// Base carries the state every adapter shares: its configuration, the HTTP
// clients, the model prefixes it claims and the enablement decision.
type Base struct {
	Config config.ProviderConfig
	// Client bounds a whole unary exchange by the configured timeout.
	Client *http.Client
	// StreamClient only bounds the wait for response headers; the body
	// runs until the upstream finishes or the request context ends.
	StreamClient *http.Client
	prefixes []string
	enabled  bool
	reason   string
}

// NewBase resolves defaults and decides enablement. A provider is disabled
// permanently when its config is invalid or, if requireKey is set, when the
// key is missing or still an unexpanded placeholder.
func NewBase(cfg config.ProviderConfig, defaultBaseURL string, defaultPrefixes []string, requireKey bool) Base {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Name == "" {
		cfg.Name = cfg.ID
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	prefixes := cfg.Prefixes
	if len(prefixes) == 0 {
		prefixes = defaultPrefixes
	}

	b := Base{
		Config:   cfg,
		Client:       &http.Client{Timeout: timeout},
		StreamClient: &http.Client{Transport: streamTransport(timeout)},
		prefixes:     prefixes,
		enabled:      true,
	}

	switch {
	case !cfg.Enabled:
		b.disable("disabled in configuration")
	case requireKey && !HasUsableKey(cfg.APIKey):
		b.disable("missing API key")
	default:
		if err := validate.Struct(&cfg); err != nil {
			b.disable("invalid configuration: " + err.Error())
		}
	}
	return b
}

func streamTransport(headerTimeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = headerTimeout
	return t
}

func (b *Base) disable(reason string) {
	b.enabled = false
	b.reason = reason
}

func (b *Base) Name() string { return b.Config.ID }

func (b *Base) Enabled() bool { return b.enabled }

// DisabledReason explains why Enabled is false. Empty when enabled.
func (b *Base) DisabledReason() string { return b.reason }

func (b *Base) Supports(model string) bool {
	for _, p := range b.prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// URL joins the configured base URL and a path.
func (b *Base) URL(path string) string {
	return strings.TrimRight(b.Config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// HasUsableKey rejects empty keys and ${VAR} placeholders that were never expanded.
func HasUsableKey(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && !strings.HasPrefix(key, "${")
}
