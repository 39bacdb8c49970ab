package proxy

import (
	"fmt"
	"net/url"
)

func parseUpstream(baseURL string) (*url.URL, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("upstream url %q: missing host", baseURL)
	}
	return u, nil
}

func buildTargetURL(base *url.URL, path, rawQuery string) string {
	u := *base
	u.Path = path
	u.RawPath = ""
	u.RawQuery = rawQuery
	return u.String()
}

// buildWebSocketURL is buildTargetURL with the scheme switched to ws or wss.
func buildWebSocketURL(base *url.URL, path, rawQuery string) string {
	u := *base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return buildTargetURL(&u, path, rawQuery)
}
