package middleware

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/GoPolymarket/apilogs/internal/model"
)

const HeaderAPIVersion = "Accept-Version"

// flattenHeaders lower-cases names and joins repeated values with newlines,
// so redaction paths can address headers as request.headers.authorization.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[strings.ToLower(name)] = strings.Join(values, "\n")
	}
	return out
}

// decodeBody turns a captured body into a tree when the content type allows
// it. Anything undecodable is kept as a string; empty bodies become {}.
func decodeBody(contentType string, body []byte) any {
	if len(body) == 0 {
		return map[string]any{}
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case strings.HasSuffix(mediaType, "json"):
		var v any
		if err := json.Unmarshal(body, &v); err == nil && v != nil {
			return v
		}
	case mediaType == "application/x-www-form-urlencoded":
		if values, err := url.ParseQuery(string(body)); err == nil {
			return formToTree(values)
		}
	}
	return string(body)
}

func formToTree(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			out[k] = vs[0]
			continue
		}
		list := make([]any, len(vs))
		for i, v := range vs {
			list[i] = v
		}
		out[k] = list
	}
	return out
}

func apiVersion(h http.Header) string {
	if v := h.Get(HeaderAPIVersion); v != "" {
		return v
	}
	return model.DefaultAPIVersion
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
