package result

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/cozoq/internal/dberr"
)

// envelope is the wire shape shared by every engine response.
type envelope struct {
	OK      *bool           `json:"ok"`
	Headers []any           `json:"headers"`
	Rows    [][]any         `json:"rows"`
	Took    *json.Number    `json:"took"`
	Display *string         `json:"display"`
	Message *string         `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func parse(raw []byte) (*envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, dberr.NewQueryError(fmt.Sprintf("malformed response: %v", err), string(raw))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, dberr.NewQueryError("malformed response: trailing data after envelope", string(raw))
	}
	if env.OK == nil {
		return nil, dberr.NewQueryError(`malformed response: missing "ok" field`, string(raw))
	}
	if !*env.OK {
		return nil, dberr.NewQueryError(env.failureMessage(), string(raw))
	}
	return &env, nil
}

// failureMessage prefers "display", then "message", then a generic default.
func (e *envelope) failureMessage() string {
	for _, m := range []*string{e.Display, e.Message} {
		if m != nil && strings.TrimSpace(*m) != "" {
			return *m
		}
	}
	return dberr.DefaultQueryMessage
}

// Decode parses a query response. A failure envelope, or a payload that is
// not a valid envelope, returns a *dberr.QueryError whose Raw field holds
// raw verbatim.
func Decode(raw []byte) (*Result, error) {
	env, err := parse(raw)
	if err != nil {
		return nil, err
	}

	columns := make([]string, len(env.Headers))
	for i, h := range env.Headers {
		if s, ok := h.(string); ok {
			columns[i] = s
		} else {
			columns[i] = fmt.Sprint(h)
		}
	}

	res, err := New(columns, nil)
	if err != nil {
		return nil, dberr.NewQueryError(fmt.Sprintf("malformed response: %v", err), string(raw))
	}
	if env.Rows != nil {
		res.rows = env.Rows
	}
	if env.Took != nil {
		if took, err := env.Took.Float64(); err == nil {
			res.took, res.hasTook = took, true
		}
	}
	return res, nil
}

// DecodeString is Decode for string payloads.
func DecodeString(raw string) (*Result, error) {
	return Decode([]byte(raw))
}

// DecodeStatus checks a bare acknowledgement such as {"ok": true}.
func DecodeStatus(raw []byte) error {
	_, err := parse(raw)
	return err
}

// Relation is one relation of an export payload.
type Relation struct {
	Headers []string `json:"headers"`
	Rows    [][]any  `json:"rows"`
}

// DecodeExport parses an export payload
//
//	{"ok": true, "data": {"users": {"headers": [...], "rows": [...]}}}
//
// into relations keyed by name.
func DecodeExport(raw []byte) (map[string]Relation, error) {
	env, err := parse(raw)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return map[string]Relation{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(env.Data))
	dec.UseNumber()
	var data map[string]Relation
	if err := dec.Decode(&data); err != nil {
		return nil, dberr.NewQueryError(fmt.Sprintf("malformed export data: %v", err), string(raw))
	}
	return data, nil
}
