// Package signer builds signed Viki API request URLs.
//
// Every API call is authenticated by an HMAC-SHA1 digest over the canonical
// query string, keyed by the shared application secret. The app id, app
// version, and secret are fixed protocol constants.
package signer

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// AppID identifies this client application to the API.
	AppID = "100005a"
	// AppVersion is reported in the x-viki-app-ver request header.
	AppVersion = "6.0.0"

	apiHost   = "https://api.viki.io"
	siteParam = "www.viki.com"

	appSecret = "MM_d*yP@`&1@]@!AVrXf_o-HVEnoTnm$O-ti4[G~$JDI/Dc-&piU&z&5.;:}95=Iad"
)

// SignedURL builds the final request URL for an API path.
//
// The canonical query is "/v4/{path}{?|&}app={app}&t={ts}&site=www.viki.com",
// where the separator depends on whether the path already carries query
// parameters. A non-empty token is appended before signing, so the signature
// covers it. The result is a pure function of its inputs.
func SignedURL(path string, timestamp int64, token string) (finalURL, canonicalQuery string) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	canonicalQuery = fmt.Sprintf("/v4/%s%sapp=%s&t=%d&site=%s", path, sep, AppID, timestamp, siteParam)
	if token != "" {
		canonicalQuery += "&token=" + token
	}
	finalURL = apiHost + canonicalQuery + "&sig=" + Signature(canonicalQuery)
	return finalURL, canonicalQuery
}

// Signature returns the hex-encoded HMAC-SHA1 digest of the canonical query.
func Signature(canonicalQuery string) string {
	mac := hmac.New(sha1.New, []byte(appSecret))
	mac.Write([]byte(canonicalQuery))
	return hex.EncodeToString(mac.Sum(nil))
}
