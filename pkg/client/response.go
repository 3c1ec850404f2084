package client

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
)

// Response keys used by the LinkedIn API and by payloads this package builds.
const (
	KeyElements   = "elements"
	KeyPaging     = "paging"
	KeyExceptions = "exceptions"
	KeyStatus     = "status"
	KeyMessage    = "message"
	KeyResponse   = "response"
)

// Response is a decoded API response or a structured error payload. Numbers
// are kept as json.Number so ids are never rounded through float64.
type Response map[string]any

// Paging is the paging block of a listing response.
type Paging struct {
	Start int
	Count int
	Total int
	Links []any
}

// Elements returns the elements array and whether the key is present.
// A present null counts as an empty array.
func (r Response) Elements() ([]any, bool) {
	v, ok := r[KeyElements]
	if !ok {
		return nil, false
	}
	switch elems := v.(type) {
	case []any:
		return elems, true
	case nil:
		return []any{}, true
	default:
		return nil, false
	}
}

// Paging returns the paging block and whether it is present.
func (r Response) Paging() (Paging, bool) {
	m, ok := r[KeyPaging].(map[string]any)
	if !ok {
		return Paging{}, false
	}
	p := Paging{
		Start: toInt(m["start"]),
		Count: toInt(m["count"]),
		Total: toInt(m["total"]),
	}
	if links, ok := m["links"].([]any); ok {
		p.Links = links
	}
	return p, true
}

// Exceptions returns the exceptions recorded by paging or batching.
func (r Response) Exceptions() []any {
	ex, _ := r[KeyExceptions].([]any)
	return ex
}

// Status returns the status of an error payload, 0 otherwise.
func (r Response) Status() int {
	return toInt(r[KeyStatus])
}

// String renders r as compact JSON with sorted keys.
func (r Response) String() string {
	return Stringify(r)
}

// Map renders p in the API's wire shape.
func (p Paging) Map() map[string]any {
	links := p.Links
	if links == nil {
		links = []any{}
	}
	return map[string]any{
		"start": p.Start,
		"count": p.Count,
		"total": p.Total,
		"links": links,
	}
}

// NewErrorPayload builds the structured payload returned for failed requests.
func NewErrorPayload(status int, message string, body any) Response {
	return Response{
		KeyStatus:   status,
		KeyMessage:  message,
		KeyResponse: body,
	}
}

// Stringify renders any decoded JSON value as compact JSON.
func Stringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// decodeJSON decodes body keeping numbers as json.Number.
func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// toResponse converts a status and body into a Response. It never fails:
// anything that is not a JSON object below 400 becomes an error payload.
// ok reports whether the body was a JSON object with a status below 400,
// which is the only kind of response worth caching.
func toResponse(status int, body []byte) (resp Response, ok bool) {
	decoded, err := decodeJSON(body)

	if status >= 400 {
		var detail any = string(body)
		if err == nil {
			detail = decoded
		}
		return NewErrorPayload(status, statusMessage(status), detail), false
	}

	if err != nil {
		return NewErrorPayload(status, fmt.Sprintf("response is not valid JSON: %v", err), string(body)), false
	}

	obj, isObject := decoded.(map[string]any)
	if !isObject {
		return NewErrorPayload(status, "response is not a JSON object", decoded), false
	}
	return Response(obj), true
}

func statusMessage(status int) string {
	if status == http.StatusBadRequest {
		return "bad request: the query may be too large, try to reduce the batch size"
	}
	text := http.StatusText(status)
	if text == "" {
		text = "unexpected status"
	}
	return fmt.Sprintf("API request failed with status %d (%s)", status, text)
}

func toInt(v any) int {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return int(i)
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}
