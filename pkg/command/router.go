// Package command applies viewer commands to a rendering session.
//
// A command is a {command, content} pair. State commands change the session's
// selection or threshold window and reply with nothing; query commands reply
// with a gist, a bitmap or an echo. Names outside the command set are ignored.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"mcmlview/internal/logging"
	"mcmlview/pkg/render"
)

// Command names understood by the router.
const (
	SetZ          = "onSetZ"
	SetLayer      = "onSetL"
	SetLowerBound = "onSetLowerBound"
	SetUpperBound = "onSetUpperBound"
	GetGist       = "onGetGist"
	Binary        = "onBinary"
	String        = "onString"
)

// Content types of replies.
const (
	ContentJSON   = "application/json"
	ContentBitmap = "image/bmp"
	ContentText   = "text/plain; charset=utf-8"
)

// ErrInvalidArgument is returned when a command's content cannot be parsed.
var ErrInvalidArgument = errors.New("invalid command argument")

// Message is one command as it arrives from a transport.
type Message struct {
	Command string          `json:"command"`
	Content json.RawMessage `json:"content,omitempty"`
}

// Reply is the answer to a command. An empty Body means no reply.
type Reply struct {
	ContentType string
	Body        []byte
}

// Empty reports whether the command produced no reply.
func (r Reply) Empty() bool {
	return len(r.Body) == 0
}

type handler func(content json.RawMessage) (Reply, error)

// Router dispatches messages to one session.
type Router struct {
	engine   *render.Engine
	handlers map[string]handler
}

// NewRouter creates a router bound to e.
func NewRouter(e *render.Engine) *Router {
	r := &Router{engine: e}
	r.handlers = map[string]handler{
		SetZ:          r.onSetZ,
		SetLayer:      r.onSetLayer,
		SetLowerBound: r.onSetLowerBound,
		SetUpperBound: r.onSetUpperBound,
		GetGist:       r.onGetGist,
		Binary:        r.onBinary,
		String:        r.onString,
	}
	return r
}

// Names returns the sorted command set.
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle applies msg. Unknown commands return an empty reply and no error.
func (r *Router) Handle(msg Message) (Reply, error) {
	h, ok := r.handlers[msg.Command]
	if !ok {
		logging.Logger().Debug("ignoring unknown command", "command", msg.Command)
		return Reply{}, nil
	}
	reply, err := h(msg.Content)
	if err != nil {
		return Reply{}, fmt.Errorf("%s: %w", msg.Command, err)
	}
	return reply, nil
}

// Decode parses a JSON-encoded message.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("error decoding command: %w", err)
	}
	return msg, nil
}

func (r *Router) onSetZ(content json.RawMessage) (Reply, error) {
	z, err := parseInt(content)
	if err != nil {
		return Reply{}, err
	}
	r.engine.SetZ(z)
	return Reply{}, nil
}

func (r *Router) onSetLayer(content json.RawMessage) (Reply, error) {
	l, err := parseInt(content)
	if err != nil {
		return Reply{}, err
	}
	r.engine.SetLayer(l)
	return Reply{}, nil
}

func (r *Router) onSetLowerBound(content json.RawMessage) (Reply, error) {
	v, err := parseFloat(content)
	if err != nil {
		return Reply{}, err
	}
	r.engine.SetLowerBound(v)
	return Reply{}, nil
}

func (r *Router) onSetUpperBound(content json.RawMessage) (Reply, error) {
	v, err := parseFloat(content)
	if err != nil {
		return Reply{}, err
	}
	r.engine.SetUpperBound(v)
	return Reply{}, nil
}

func (r *Router) onGetGist(json.RawMessage) (Reply, error) {
	g, err := r.engine.DefaultGist()
	if err != nil {
		return Reply{}, err
	}
	body, err := json.Marshal(g)
	if err != nil {
		return Reply{}, err
	}
	return Reply{ContentType: ContentJSON, Body: body}, nil
}

func (r *Router) onBinary(json.RawMessage) (Reply, error) {
	b, err := r.engine.Draw()
	if err != nil {
		return Reply{}, err
	}
	return Reply{ContentType: ContentBitmap, Body: b}, nil
}

func (r *Router) onString(content json.RawMessage) (Reply, error) {
	s, err := parseString(content)
	if err != nil {
		return Reply{}, err
	}
	return Reply{ContentType: ContentText, Body: []byte(s)}, nil
}

// parseString accepts a JSON string or any other JSON value taken verbatim.
func parseString(content json.RawMessage) (string, error) {
	if len(content) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s, nil
	}
	if !json.Valid(content) {
		return "", fmt.Errorf("%w: %q", ErrInvalidArgument, content)
	}
	return string(content), nil
}

// Numeric arguments may be JSON numbers or numeric strings; viewers send both.
func parseFloat(content json.RawMessage) (float64, error) {
	s, err := parseString(content)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidArgument, s)
	}
	return v, nil
}

// parseInt accepts any integer that fits in int64; the session wraps it.
// Integers are parsed exactly when possible so large selections keep their
// remainder.
func parseInt(content json.RawMessage) (int, error) {
	s, err := parseString(content)
	if err != nil {
		return 0, err
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return int(n), nil
	}
	v, err := parseFloat(content)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidArgument, v)
	}
	// Beyond int64 there is no exact integer left to wrap.
	if v >= math.MaxInt64 || v < math.MinInt64 {
		return 0, fmt.Errorf("%w: %v out of range", ErrInvalidArgument, v)
	}
	return int(v), nil
}
