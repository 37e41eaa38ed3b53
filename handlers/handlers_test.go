package handlers

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ooni/tlsadapter/model"
)

func TestNoHandler(t *testing.T) {
	NoHandler.OnMeasurement(model.Measurement{})
}

func TestStdoutHandlerEmitsJSONL(t *testing.T) {
	buf := &bytes.Buffer{}
	h := &stdoutHandler{w: buf}
	h.OnMeasurement(model.Measurement{
		Read: &model.ReadEvent{ConnID: 7, NumBytes: 11},
	})
	var m model.Measurement
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatal(err)
	}
	if m.Read == nil || m.Read.ConnID != 7 || m.Read.NumBytes != 11 {
		t.Fatal("unexpected measurement")
	}
	if m.Write != nil {
		t.Fatal("empty events should be omitted")
	}
}

func TestSavingHandler(t *testing.T) {
	h := &SavingHandler{}
	h.OnMeasurement(model.Measurement{Write: &model.WriteEvent{NumBytes: 3}})
	out := h.Read()
	if len(out) != 1 || out[0].Write.NumBytes != 3 {
		t.Fatal("unexpected saved measurements")
	}
}
