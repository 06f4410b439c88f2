package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ConfigError reports missing or invalid settings. Keys maps each checked
// setting to whether it was set; values are never included.
type ConfigError struct {
	Keys     map[string]bool
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// KeyStates renders Keys as "set"/"unset" for diagnostics.
func (e *ConfigError) KeyStates() map[string]string {
	out := make(map[string]string, len(e.Keys))
	for k, set := range e.Keys {
		if set {
			out[k] = "set"
		} else {
			out[k] = "unset"
		}
	}
	return out
}

// Unset lists keys that were checked and found empty, sorted.
func (e *ConfigError) Unset() []string {
	var keys []string
	for k, set := range e.Keys {
		if !set {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// FetchError is a failed listing or article page request.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CrawlError aborts a crawl; no partial results accompany it.
type CrawlError struct {
	Page int
	Err  error
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawl page %d: %v", e.Page, e.Err)
}

func (e *CrawlError) Unwrap() error { return e.Err }

// StoreError is a failed tabular store operation.
type StoreError struct {
	Op    string
	Range string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Range, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// JudgeError is an unreachable judge or an unparseable verdict.
type JudgeError struct {
	Reason string
	Err    error
}

func (e *JudgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("judge: %s: %v", e.Reason, e.Err)
	}
	return "judge: " + e.Reason
}

func (e *JudgeError) Unwrap() error { return e.Err }
