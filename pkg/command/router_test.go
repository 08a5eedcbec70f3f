package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"mcmlview/pkg/bitmap"
	"mcmlview/pkg/dataset"
	"mcmlview/pkg/render"
)

// createEngine builds a 4x4x4 session: layer 0 ramps from 0 to 1 across each
// plane, layer 1 is constant 2.
func createEngine(t *testing.T) *render.Engine {
	t.Helper()
	const n = 4
	data := make([][]float32, 2)
	for l := range data {
		data[l] = make([]float32, n*n*n)
		for i := range data[l] {
			if l == 1 {
				data[l][i] = 2
			} else {
				data[l][i] = float32(i%(n*n)) / 15
			}
		}
	}
	d, err := dataset.New(dataset.Header{LayerCount: 2, DimX: n, DimY: n, DimZ: n}, data)
	if err != nil {
		t.Fatalf("Failed to create dataset: %v", err)
	}

	opts := render.DefaultOptions()
	opts.ViewWidth, opts.ViewHeight = n, n
	e, err := render.NewEngine(d, opts)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func send(t *testing.T, r *Router, cmd, content string) Reply {
	t.Helper()
	msg := Message{Command: cmd}
	if content != "" {
		msg.Content = json.RawMessage(content)
	}
	reply, err := r.Handle(msg)
	if err != nil {
		t.Fatalf("%s(%s) failed: %v", cmd, content, err)
	}
	return reply
}

func TestStateCommands(t *testing.T) {
	e := createEngine(t)
	r := NewRouter(e)

	if reply := send(t, r, SetZ, "6"); !reply.Empty() {
		t.Errorf("Expected no reply for %s, got %q", SetZ, reply.Body)
	}
	send(t, r, SetLayer, `"3"`)
	send(t, r, SetUpperBound, "0.75")
	send(t, r, SetLowerBound, `"0.25"`)

	st := e.State()
	if st.Z != 2 || st.Layer != 1 {
		t.Errorf("Expected z 2, layer 1, got z %d, layer %d", st.Z, st.Layer)
	}
	if st.Lower != 0.25 || st.Upper != 0.75 {
		t.Errorf("Expected window [0.25,0.75], got [%v,%v]", st.Lower, st.Upper)
	}

	send(t, r, SetLowerBound, `"NaN"`)
	if st := e.State(); st.Lower != 0.25 {
		t.Errorf("Expected NaN to be ignored, got lower %v", st.Lower)
	}
}

// TestCoalescing verifies that bound changes between two draws cost one render
func TestCoalescing(t *testing.T) {
	e := createEngine(t)
	r := NewRouter(e)

	first := send(t, r, Binary, "")
	if first.ContentType != ContentBitmap || len(first.Body) != bitmap.FileSize(4, 4) {
		t.Fatalf("Expected %d byte bitmap, got %d bytes of %q", bitmap.FileSize(4, 4), len(first.Body), first.ContentType)
	}

	send(t, r, SetLowerBound, "0.1")
	send(t, r, SetLowerBound, "0.2")
	send(t, r, SetLowerBound, "0.3")

	second := send(t, r, Binary, "")
	third := send(t, r, Binary, "")

	if e.Renders() != 2 {
		t.Errorf("Expected 2 renders, got %d", e.Renders())
	}
	if e.State().Lower != 0.3 {
		t.Errorf("Expected lower bound 0.3, got %v", e.State().Lower)
	}
	if !bytes.Equal(second.Body, third.Body) {
		t.Error("Expected repeated draws to return the same bitmap")
	}
	if bytes.Equal(first.Body, second.Body) {
		t.Error("Expected the raised bound to change the bitmap")
	}
}

func TestGetGist(t *testing.T) {
	r := NewRouter(createEngine(t))

	reply := send(t, r, GetGist, "")
	if reply.ContentType != ContentJSON {
		t.Errorf("Expected %q, got %q", ContentJSON, reply.ContentType)
	}

	var out struct {
		Min  float64   `json:"min"`
		Max  float64   `json:"max"`
		Data []float64 `json:"data"`
	}
	if err := json.Unmarshal(reply.Body, &out); err != nil {
		t.Fatalf("Invalid gist JSON %q: %v", reply.Body, err)
	}
	if out.Min != 2 || out.Max != 2 {
		t.Errorf("Expected gist of layer 1 with range [2,2], got [%v,%v]", out.Min, out.Max)
	}
	if len(out.Data) != 100 || out.Data[0] != 64 {
		t.Errorf("Expected 64 values in the first of 100 buckets, got %v", out.Data)
	}
}

func TestStringEcho(t *testing.T) {
	r := NewRouter(createEngine(t))

	reply := send(t, r, String, `"hello"`)
	if string(reply.Body) != "hello" || reply.ContentType != ContentText {
		t.Errorf("Expected echo %q, got %q (%s)", "hello", reply.Body, reply.ContentType)
	}
	if reply := send(t, r, String, ""); !reply.Empty() {
		t.Errorf("Expected empty echo, got %q", reply.Body)
	}
}

func TestUnknownCommand(t *testing.T) {
	e := createEngine(t)
	r := NewRouter(e)

	reply, err := r.Handle(Message{Command: "onSetColor", Content: json.RawMessage(`"blue"`)})
	if err != nil {
		t.Errorf("Expected unknown command to be ignored, got %v", err)
	}
	if !reply.Empty() {
		t.Errorf("Expected no reply, got %q", reply.Body)
	}
	if e.State() != render.DefaultState() {
		t.Error("Expected state to be unchanged")
	}
}

func TestInvalidArguments(t *testing.T) {
	r := NewRouter(createEngine(t))

	tests := []Message{
		{Command: SetZ, Content: json.RawMessage(`"abc"`)},
		{Command: SetZ, Content: json.RawMessage(`1.5`)},
		{Command: SetLayer, Content: json.RawMessage(`1e30`)},
		{Command: SetZ, Content: json.RawMessage(`"NaN"`)},
		{Command: SetLowerBound, Content: json.RawMessage(`{"v":1}`)},
		{Command: SetUpperBound, Content: json.RawMessage(`[1`)},
	}
	for _, msg := range tests {
		if _, err := r.Handle(msg); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%s(%s): expected ErrInvalidArgument, got %v", msg.Command, msg.Content, err)
		}
	}
}

// TestLargeSelectionsWrap verifies that selections far outside the extent wrap instead of failing
func TestLargeSelectionsWrap(t *testing.T) {
	e := createEngine(t)
	r := NewRouter(e)

	// dimZ*1e9 + 3
	send(t, r, SetZ, "4000000003")
	if st := e.State(); st.Z != 3 {
		t.Errorf("Expected z 3, got %d", st.Z)
	}

	send(t, r, SetZ, `"-4000000001"`)
	if st := e.State(); st.Z != 3 {
		t.Errorf("Expected z 3 for -4000000001, got %d", st.Z)
	}

	send(t, r, SetLayer, "1e12")
	if st := e.State(); st.Layer != 0 {
		t.Errorf("Expected layer 0 for 1e12, got %d", st.Layer)
	}
	send(t, r, SetLayer, "9000000000000000001")
	if st := e.State(); st.Layer != 1 {
		t.Errorf("Expected layer 1, got %d", st.Layer)
	}
}

func TestDecode(t *testing.T) {
	msg, err := Decode([]byte(`{"command":"onSetZ","content":12}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.Command != SetZ || string(msg.Content) != "12" {
		t.Errorf("Expected onSetZ(12), got %s(%s)", msg.Command, msg.Content)
	}

	if _, err := Decode([]byte(`{"command":`)); err == nil {
		t.Error("Expected error for truncated message, got nil")
	}
}

func TestNames(t *testing.T) {
	names := NewRouter(createEngine(t)).Names()
	if len(names) != 7 {
		t.Errorf("Expected 7 commands, got %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("Expected sorted names, got %v", names)
		}
	}
}
