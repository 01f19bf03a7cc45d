package protocol

import (
	"errors"
	"io"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	for _, ft := range []FrameType{FrameSnapshot, FramePatches, FrameControl, FrameError} {
		data := EncodeFrame(ft, []byte("payload"))
		got, payload, err := DecodeFrame(data)
		if err != nil {
			t.Fatalf("%s: DecodeFrame: %v", ft, err)
		}
		if got != ft || string(payload) != "payload" {
			t.Errorf("%s: got %s %q", ft, got, payload)
		}
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	if _, _, err := DecodeFrame(nil); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("empty frame: got %v", err)
	}
	if _, _, err := DecodeFrame([]byte{0x7E}); !errors.Is(err, ErrInvalidFrameType) {
		t.Errorf("unknown type: got %v", err)
	}
}

func TestFrameTypeString(t *testing.T) {
	if FramePatches.String() != "Patches" || FrameType(0x7E).String() != "Unknown" {
		t.Error("unexpected frame type names")
	}
}

func TestControlRoundTrip(t *testing.T) {
	for _, ct := range []ControlType{ControlPing, ControlPong, ControlResync} {
		got, err := DecodeControl(EncodeControl(ct))
		if err != nil || got != ct {
			t.Errorf("%s: got %s, %v", ct, got, err)
		}
	}
	if _, err := DecodeControl([]byte{0x42}); err == nil {
		t.Error("expected error for unknown control type")
	}
	if _, err := DecodeControl(nil); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("empty control: got %v", err)
	}
}

func TestErrorMessageRoundTrip(t *testing.T) {
	em := &ErrorMessage{Code: "VB301", Message: "bad frame", Fatal: true}
	got, err := DecodeErrorMessage(EncodeErrorMessage(em))
	if err != nil {
		t.Fatalf("DecodeErrorMessage: %v", err)
	}
	if *got != *em {
		t.Errorf("got %+v, want %+v", got, em)
	}
	if _, err := DecodeErrorMessage([]byte{0x02, 'V'}); err == nil {
		t.Error("expected error for truncated message")
	}
}
