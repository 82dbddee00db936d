package parser

import (
	"fmt"
	"regexp"
	"sync"
)

// patternCache compiles each expression once.
type patternCache struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

func newPatternCache() *patternCache {
	return &patternCache{cache: make(map[string]*regexp.Regexp)}
}

// getOrCompile returns a cached compiled regex or compiles and caches a new one.
func (c *patternCache) getOrCompile(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.cache[pattern]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}

	c.mu.Lock()
	c.cache[pattern] = re
	c.mu.Unlock()
	return re, nil
}

// firstMatch returns the first named or unnamed capture group of the first
// match, or the whole match when the expression has no groups.
func firstMatch(re *regexp.Regexp, text string) string {
	match := re.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	if re.NumSubexp() == 0 {
		return match[0]
	}
	for _, group := range match[1:] {
		if group != "" {
			return group
		}
	}
	return ""
}
