package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"

	"ledger/internal/core"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 64 << 10

var (
	errInvalidBody  = errors.New("invalid request body")
	errBodyTooLarge = errors.New("request body too large")
)

// RequestBodyParser reads a JSON or form-encoded body once and exposes its
// top-level fields as optional strings.
type RequestBodyParser struct {
	contentType string
	body        []byte
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most MaxBodyBytes of the request body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if p.err != nil {
		var mbe *http.MaxBytesError
		if errors.As(p.err, &mbe) {
			p.err = errBodyTooLarge
		} else {
			p.err = errors.Join(errInvalidBody, p.err)
		}
	}
	return p
}

// Parse decodes the body. JSON is chosen by content type or, without one,
// by a leading '{'. Anything else is parsed as a form.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.IsJSON() {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil || p.jsonData == nil {
			p.jsonData = nil
			p.err = errInvalidBody
			return p.err
		}
		if _, err := dec.Token(); err != io.EOF {
			p.jsonData = nil
			p.err = errInvalidBody
			return p.err
		}
		return nil
	}

	form, err := url.ParseQuery(string(p.body))
	if err != nil {
		p.err = errInvalidBody
		return p.err
	}
	p.formData = form
	return nil
}

// IsJSON reports whether the body is treated as JSON.
func (p *RequestBodyParser) IsJSON() bool {
	if p.contentType != "" {
		mt, _, err := mime.ParseMediaType(p.contentType)
		if err == nil {
			return mt == "application/json"
		}
	}
	trimmed := bytes.TrimSpace(p.body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Field returns the named field, or nil when it is absent or JSON null.
// Strings are returned verbatim; JSON numbers keep their literal text so
// "-4.50" is not reformatted.
func (p *RequestBodyParser) Field(key string) (*string, error) {
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		if !ok || v == nil {
			return nil, nil
		}
		switch val := v.(type) {
		case string:
			return &val, nil
		case json.Number:
			s := val.String()
			return &s, nil
		default:
			return nil, &core.ValidationError{Field: key, Reason: "must be a string or number"}
		}
	}
	if p.formData != nil {
		if vals, ok := p.formData[key]; ok && len(vals) > 0 {
			s := vals[0]
			return &s, nil
		}
	}
	return nil, nil
}

// Fields looks up several keys, stopping at the first malformed one.
func (p *RequestBodyParser) Fields(keys ...string) (map[string]*string, error) {
	out := make(map[string]*string, len(keys))
	for _, k := range keys {
		v, err := p.Field(k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
