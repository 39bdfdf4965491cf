package telemetry

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncode_WireLayout(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want []byte
	}{
		{
			name: "discovery",
			msg:  Discovery{DeviceID: 0x00c0ffee},
			want: []byte{0x63, 0x0f, 0x5f, 0x04, 0xee, 0xff, 0xc0, 0x00},
		},
		{
			name: "temperature",
			msg:  Temperature{SensorID: 0x6b0316a2794dff28, Value: 21.5},
			want: []byte{
				0x83, 0x0c, 0xee, 0x3e,
				0x28, 0xff, 0x4d, 0x79, 0xa2, 0x16, 0x03, 0x6b,
				0x00, 0x00, 0xac, 0x41,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % x, want % x", got, tt.want)
			}

			back, err := Decode(got)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if back != tt.msg {
				t.Errorf("Decode() = %#v, want %#v", back, tt.msg)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"empty", nil, ErrShortFrame},
		{"partial id", []byte{0x63, 0x0f}, ErrShortFrame},
		{"discovery without body", []byte{0x63, 0x0f, 0x5f, 0x04, 0x01}, ErrShortFrame},
		{"temperature truncated", []byte{0x83, 0x0c, 0xee, 0x3e, 1, 2, 3, 4, 5, 6, 7, 8}, ErrShortFrame},
		{"unknown id", []byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 0}, ErrUnknownMessage},
		{"oversized", make([]byte, MaxFrameSize+1), ErrFrameTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.frame); !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecode_IgnoresTrailingBytes(t *testing.T) {
	frame := []byte{0x63, 0x0f, 0x5f, 0x04, 0x2a, 0, 0, 0, 0xff, 0xff}
	m, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if m != (Discovery{DeviceID: 42}) {
		t.Errorf("Decode() = %#v, want Discovery{42}", m)
	}
}
