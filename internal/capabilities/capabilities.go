// Package capabilities turns the browser names a test runner passes around
// into the capability maps the remote grid expects.
package capabilities

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Browser is the parsed form of a browser@version:os selector.
type Browser struct {
	Name     string
	Version  string
	Platform string
}

// Options carries the session defaults merged into every capability map.
type Options struct {
	Build           string
	Name            string
	Resolution      string
	SeleniumVersion string
	Timezone        string
	Video           bool
	Console         bool
	Network         bool
	Tunnel          bool
	TunnelName      string
	Path            string
}

// ParseName splits a browser@version:os selector. Version and os are
// optional, the grid resolves omitted parts to its defaults.
func ParseName(name string) (Browser, error) {
	var browser Browser

	selector := strings.TrimSpace(name)
	if selector == "" {
		return browser, fmt.Errorf("browser name is empty")
	}

	if idx := strings.Index(selector, ":"); idx >= 0 {
		browser.Platform = strings.TrimSpace(selector[idx+1:])
		selector = selector[:idx]
	}
	if idx := strings.Index(selector, "@"); idx >= 0 {
		browser.Version = strings.TrimSpace(selector[idx+1:])
		selector = selector[:idx]
	}
	browser.Name = strings.TrimSpace(selector)

	if browser.Name == "" {
		return browser, fmt.Errorf("browser name is empty in selector %q", name)
	}
	return browser, nil
}

// Build assembles the capability map for one session: the parsed selector,
// then the configured defaults, then the user capability file on top.
func Build(name string, opts Options) (map[string]interface{}, error) {
	browser, err := ParseName(name)
	if err != nil {
		return nil, err
	}

	doc := []byte(`{}`)
	set := func(path string, value interface{}) {
		if err != nil {
			return
		}
		doc, err = sjson.SetBytes(doc, path, value)
	}

	set("browserName", browser.Name)
	if browser.Version != "" {
		set("version", browser.Version)
	}
	if browser.Platform != "" {
		set("platform", browser.Platform)
	}
	if opts.Build != "" {
		set("build", opts.Build)
	}
	if opts.Name != "" {
		set("name", opts.Name)
	}
	if opts.Resolution != "" {
		set("resolution", opts.Resolution)
	}
	if opts.SeleniumVersion != "" {
		set("selenium_version", opts.SeleniumVersion)
	}
	if opts.Timezone != "" {
		set("timezone", opts.Timezone)
	}
	set("video", opts.Video)
	set("console", opts.Console)
	set("network", opts.Network)
	if opts.Tunnel {
		set("tunnel", true)
		if opts.TunnelName != "" {
			set("tunnelName", opts.TunnelName)
		}
	}
	if err != nil {
		return nil, err
	}

	if opts.Path != "" {
		doc, err = mergeFile(doc, opts.Path)
		if err != nil {
			return nil, err
		}
	}

	var caps map[string]interface{}
	if err = json.Unmarshal(doc, &caps); err != nil {
		return nil, err
	}
	return caps, nil
}

// mergeFile overlays a user capability file onto the generated document.
// Raw values are spliced in unmodified so nested vendor sections like
// goog:chromeOptions survive untouched.
func mergeFile(doc []byte, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capability file %s: %v", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var fields map[string]interface{}
		if err = yaml.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("failed to parse capability file %s: %v", path, err)
		}
		data, err = json.Marshal(fields)
		if err != nil {
			return nil, err
		}
	case ".json":
	default:
		return nil, fmt.Errorf("unsupported capability file format %s", path)
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("capability file %s is not a JSON object", path)
	}

	var mergeErr error
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		escaped := strings.ReplaceAll(key.String(), ".", `\.`)
		doc, mergeErr = sjson.SetRawBytes(doc, escaped, []byte(value.Raw))
		return mergeErr == nil
	})
	if mergeErr != nil {
		return nil, mergeErr
	}
	return doc, nil
}
