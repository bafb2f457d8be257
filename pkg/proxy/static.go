package proxy

import _ "embed"

//go:embed static/index.html
var indexHTML []byte

//go:embed static/favicon.svg
var faviconSVG []byte

const robotsTXT = "User-agent: *\nDisallow: /"
