package protocol

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Codec serializes frames to and from wire bytes.
type Codec interface {
	// Name identifies the codec in configuration.
	Name() string
	// Binary reports whether encoded frames are binary rather than text.
	Binary() bool
	Marshal(f Frame) ([]byte, error)
	Unmarshal(data []byte) (Frame, error)
}

var (
	// JSON encodes frames as {"messageType", "dataArray", "data"} objects.
	JSON Codec = jsonCodec{}
	// Binary encodes frames in protobuf wire format.
	Binary Codec = binaryCodec{}
)

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", JSON.Name():
		return JSON, nil
	case Binary.Name():
		return Binary, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }
func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Marshal(f Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	return f, nil
}

// Field numbers of the binary frame layout:
//
//	message Frame {
//	  string message_type = 1;
//	  repeated string data_array = 2;
//	  optional string data = 3;
//	}
const (
	fieldKind     protowire.Number = 1
	fieldDataList protowire.Number = 2
	fieldData     protowire.Number = 3
)

type binaryCodec struct{}

func (binaryCodec) Name() string { return "binary" }
func (binaryCodec) Binary() bool { return true }

func (binaryCodec) Marshal(f Frame) ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, fieldKind, protowire.BytesType)
	b = protowire.AppendString(b, f.Kind.String())
	for _, s := range f.DataList {
		b = protowire.AppendTag(b, fieldDataList, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	if f.Data != nil {
		b = protowire.AppendTag(b, fieldData, protowire.BytesType)
		b = protowire.AppendString(b, *f.Data)
	}
	return b, nil
}

// Unmarshal skips unknown fields so newer servers can extend the frame.
func (binaryCodec) Unmarshal(data []byte) (Frame, error) {
	var f Frame
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Frame{}, fmt.Errorf("failed to decode frame: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if typ != protowire.BytesType || num < fieldKind || num > fieldData {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Frame{}, fmt.Errorf("failed to decode frame: %w", protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		v, n := protowire.ConsumeString(data)
		if n < 0 {
			return Frame{}, fmt.Errorf("failed to decode field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case fieldKind:
			f.Kind = Kind(v)
		case fieldDataList:
			f.DataList = append(f.DataList, v)
		case fieldData:
			f.Data = &v
		}
	}
	return f, nil
}
