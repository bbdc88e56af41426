package client

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// Request describes a single CRM API call. A Request is constructed fresh
// per invocation and never shared between calls.
type Request struct {
	// Method is the HTTP method (GET, POST, PUT, DELETE).
	Method string

	// Path is the endpoint path relative to the base URL, e.g. "/v1/units/42".
	Path string

	// Query holds query parameters. Array values are encoded with a
	// bracket suffix and repeated: cities[]=Berlin&cities[]=Potsdam.
	Query Query

	// Body is an optional JSON-serializable request body.
	Body any
}

// Query holds scalar and array-valued query parameters.
type Query map[string]any

// Set assigns a scalar parameter.
func (q Query) Set(key string, value any) Query {
	q[key] = value
	return q
}

// Encode serializes the query in deterministic key order.
func (q Query) Encode() string {
	if len(q) == 0 {
		return ""
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		switch v := q[k].(type) {
		case []string:
			for _, item := range v {
				values.Add(k+"[]", item)
			}
		case []int:
			for _, item := range v {
				values.Add(k+"[]", strconv.Itoa(item))
			}
		case string:
			values.Set(k, v)
		case int:
			values.Set(k, strconv.Itoa(v))
		case int64:
			values.Set(k, strconv.FormatInt(v, 10))
		case float64:
			values.Set(k, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			values.Set(k, strconv.FormatBool(v))
		default:
			values.Set(k, fmt.Sprint(v))
		}
	}
	return values.Encode()
}

// Clone returns a shallow copy with an independent query map, so callers
// can derive per-page requests from a template without shared state.
func (r Request) Clone() Request {
	q := make(Query, len(r.Query)+2)
	for k, v := range r.Query {
		q[k] = v
	}
	r.Query = q
	return r
}
