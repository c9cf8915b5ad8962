package config

// SiteConfig holds host-specific overrides.
// This allows customizing headers and path filters per crawled host.
type SiteConfig struct {
	// Headers are custom HTTP headers to include in requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IgnorePatterns are URL path globs to skip for this host.
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty"`

	// FollowPatterns are URL path globs to follow for this host.
	// If specified, only matching paths are crawled.
	FollowPatterns []string `yaml:"follow_patterns,omitempty"`
}

// merge returns sc overridden by site. Headers are merged key by key;
// pattern lists are replaced when the site sets them.
func (sc SiteConfig) merge(site SiteConfig) SiteConfig {
	result := sc.clone()
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = append([]string(nil), site.IgnorePatterns...)
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = append([]string(nil), site.FollowPatterns...)
	}
	return result
}

func (sc SiteConfig) clone() SiteConfig {
	c := SiteConfig{
		IgnorePatterns: append([]string(nil), sc.IgnorePatterns...),
		FollowPatterns: append([]string(nil), sc.FollowPatterns...),
	}
	if sc.Headers != nil {
		c.Headers = make(map[string]string, len(sc.Headers))
		for k, v := range sc.Headers {
			c.Headers[k] = v
		}
	}
	return c
}
