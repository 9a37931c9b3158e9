// Package onnx serializes inference graphs in the ONNX wire format. It covers
// the small subset of the format the classifier exports need: a single graph
// with initializers, typed inputs/outputs with symbolic (dynamic) dimensions,
// and node attributes of int, float, string and list kinds.
//
// Field numbers follow onnx.proto; encoding is done directly with protowire
// so no generated code is carried.
package onnx

import (
	"encoding/binary"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// DataType values from TensorProto.DataType.
type DataType int32

const (
	Float DataType = 1
	Int32 DataType = 6
	Int64 DataType = 7
)

// irVersion 8 pairs with default-domain opsets up to 17.
const irVersion = 8

// Dim is one dimension of a tensor shape. A non-empty Param declares a
// symbolic dimension (e.g. "batch_size"); otherwise Value is used.
type Dim struct {
	Value int64
	Param string
}

// ValueInfo declares a graph input or output.
type ValueInfo struct {
	Name string
	Type DataType
	Dims []Dim
}

// Tensor is a constant initializer. Exactly one of Floats or Ints is set,
// matching Type.
type Tensor struct {
	Name   string
	Type   DataType
	Dims   []int64
	Floats []float32
	Ints   []int64
}

type attrKind int

const (
	attrInt attrKind = iota
	attrFloat
	attrString
	attrInts
	attrStrings
)

// Attr is a node attribute.
type Attr struct {
	Name    string
	kind    attrKind
	i       int64
	f       float32
	s       string
	ints    []int64
	strings []string
}

func IntAttr(name string, v int64) Attr      { return Attr{Name: name, kind: attrInt, i: v} }
func FloatAttr(name string, v float32) Attr  { return Attr{Name: name, kind: attrFloat, f: v} }
func StringAttr(name, v string) Attr         { return Attr{Name: name, kind: attrString, s: v} }
func IntsAttr(name string, v ...int64) Attr  { return Attr{Name: name, kind: attrInts, ints: v} }
func StringsAttr(name string, v ...string) Attr {
	return Attr{Name: name, kind: attrStrings, strings: v}
}

// Node is one operator invocation.
type Node struct {
	OpType  string
	Name    string
	Inputs  []string
	Outputs []string
	Attrs   []Attr
}

// Model is a complete single-graph ONNX model.
type Model struct {
	ProducerName    string
	ProducerVersion string
	OpsetVersion    int64
	GraphName       string
	Nodes           []Node
	Initializers    []Tensor
	Inputs          []ValueInfo
	Outputs         []ValueInfo
}

// Marshal encodes the model as ModelProto bytes.
func (m *Model) Marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, irVersion)
	b = appendStringField(b, 2, m.ProducerName)
	b = appendStringField(b, 3, m.ProducerVersion)
	b = appendBytesField(b, 7, m.marshalGraph())

	// opset_import: default domain only.
	var opset []byte
	opset = appendVarintField(opset, 2, uint64(m.OpsetVersion))
	b = appendBytesField(b, 8, opset)
	return b
}

// WriteFile marshals the model to path.
func (m *Model) WriteFile(path string) error {
	return os.WriteFile(path, m.Marshal(), 0o644)
}

func (m *Model) marshalGraph() []byte {
	var b []byte
	for _, n := range m.Nodes {
		b = appendBytesField(b, 1, n.marshal())
	}
	b = appendStringField(b, 2, m.GraphName)
	for _, t := range m.Initializers {
		b = appendBytesField(b, 5, t.marshal())
	}
	for _, v := range m.Inputs {
		b = appendBytesField(b, 11, v.marshal())
	}
	for _, v := range m.Outputs {
		b = appendBytesField(b, 12, v.marshal())
	}
	return b
}

func (n *Node) marshal() []byte {
	var b []byte
	for _, in := range n.Inputs {
		b = appendStringField(b, 1, in)
	}
	for _, out := range n.Outputs {
		b = appendStringField(b, 2, out)
	}
	b = appendStringField(b, 3, n.Name)
	b = appendStringField(b, 4, n.OpType)
	for _, a := range n.Attrs {
		b = appendBytesField(b, 5, a.marshal())
	}
	return b
}

func (a *Attr) marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, a.Name)
	switch a.kind {
	case attrFloat:
		b = protowire.AppendTag(b, 2, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(a.f))
		b = appendVarintField(b, 20, 1) // FLOAT
	case attrInt:
		b = appendVarintField(b, 3, uint64(a.i))
		b = appendVarintField(b, 20, 2) // INT
	case attrString:
		b = appendStringField(b, 4, a.s)
		b = appendVarintField(b, 20, 3) // STRING
	case attrInts:
		for _, v := range a.ints {
			b = appendVarintField(b, 8, uint64(v))
		}
		b = appendVarintField(b, 20, 7) // INTS
	case attrStrings:
		for _, v := range a.strings {
			b = appendStringField(b, 9, v)
		}
		b = appendVarintField(b, 20, 8) // STRINGS
	}
	return b
}

func (t *Tensor) marshal() []byte {
	var b []byte
	for _, d := range t.Dims {
		b = appendVarintField(b, 1, uint64(d))
	}
	b = appendVarintField(b, 2, uint64(t.Type))
	b = appendStringField(b, 8, t.Name)

	var raw []byte
	switch t.Type {
	case Float:
		raw = make([]byte, 4*len(t.Floats))
		for i, v := range t.Floats {
			binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
		}
	case Int64:
		raw = make([]byte, 8*len(t.Ints))
		for i, v := range t.Ints {
			binary.LittleEndian.PutUint64(raw[8*i:], uint64(v))
		}
	case Int32:
		raw = make([]byte, 4*len(t.Ints))
		for i, v := range t.Ints {
			binary.LittleEndian.PutUint32(raw[4*i:], uint32(int32(v)))
		}
	}
	b = appendBytesField(b, 9, raw)
	return b
}

func (v *ValueInfo) marshal() []byte {
	var shape []byte
	for _, d := range v.Dims {
		var dim []byte
		if d.Param != "" {
			dim = appendStringField(dim, 2, d.Param)
		} else {
			dim = appendVarintField(dim, 1, uint64(d.Value))
		}
		shape = appendBytesField(shape, 1, dim)
	}

	var tensor []byte
	tensor = appendVarintField(tensor, 1, uint64(v.Type))
	tensor = appendBytesField(tensor, 2, shape)

	var typ []byte
	typ = appendBytesField(typ, 1, tensor)

	var b []byte
	b = appendStringField(b, 1, v.Name)
	b = appendBytesField(b, 2, typ)
	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytesField(b []byte, num protowire.Number, payload []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}
