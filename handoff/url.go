package handoff

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ViewPath is the path of the AR viewer.
const ViewPath = "/ar-view"

// Query parameters of the handoff URL.
const (
	ParamDesignID = "designId"
	ParamToken    = "t"
)

// Token returns a cache-busting token for now.
func Token(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}

// BuildURL returns "{base}/ar-view?designId={id}&t={token}". A trailing
// slash on base is dropped; an empty token means Token(time.Now()).
func BuildURL(base, id, token string) (string, error) {
	base = strings.TrimRight(base, "/")
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("handoff: base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("handoff: base url %q must be absolute", base)
	}
	if id == "" {
		return "", fmt.Errorf("handoff: empty design id")
	}
	if token == "" {
		token = Token(time.Now())
	}
	q := url.Values{}
	q.Set(ParamDesignID, id)
	q.Set(ParamToken, token)
	return base + ViewPath + "?" + q.Encode(), nil
}

// designIDFromURL returns the designId query parameter of s, which may be
// absolute or a path with a query.
func designIDFromURL(s string) (string, bool) {
	if !strings.Contains(s, "?") {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	id := u.Query().Get(ParamDesignID)
	return id, id != ""
}
