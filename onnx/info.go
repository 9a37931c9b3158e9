package onnx

import (
	"fmt"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// DimInfo is a decoded tensor dimension.
type DimInfo struct {
	Value int64
	Param string
}

// Dynamic reports whether the dimension is symbolic or unset.
func (d DimInfo) Dynamic() bool { return d.Param != "" || d.Value <= 0 }

// TensorInfo is a decoded graph input or output declaration.
type TensorInfo struct {
	Name string
	Dims []DimInfo
}

// ModelInfo describes the IO signature of a serialized model.
type ModelInfo struct {
	OpsetVersion int64
	Inputs       []TensorInfo
	Outputs      []TensorInfo
}

// ReadInfo decodes just enough of an ONNX file to report its opset and the
// names and shapes of graph inputs and outputs.
func ReadInfo(path string) (*ModelInfo, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return ParseInfo(payload)
}

// ParseInfo decodes ModelProto bytes. See ReadInfo.
func ParseInfo(payload []byte) (*ModelInfo, error) {
	info := &ModelInfo{}
	err := walkFields(payload, func(num protowire.Number, _ protowire.Type, value []byte, varint uint64) error {
		switch num {
		case 7: // graph
			return info.parseGraph(value)
		case 8: // opset_import
			return walkFields(value, func(num protowire.Number, _ protowire.Type, _ []byte, varint uint64) error {
				if num == 2 {
					info.OpsetVersion = int64(varint)
				}
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return info, nil
}

func (info *ModelInfo) parseGraph(payload []byte) error {
	return walkFields(payload, func(num protowire.Number, _ protowire.Type, value []byte, _ uint64) error {
		switch num {
		case 11: // input
			t, err := parseValueInfo(value)
			if err != nil {
				return err
			}
			info.Inputs = append(info.Inputs, t)
		case 12: // output
			t, err := parseValueInfo(value)
			if err != nil {
				return err
			}
			info.Outputs = append(info.Outputs, t)
		}
		return nil
	})
}

func parseValueInfo(payload []byte) (TensorInfo, error) {
	var t TensorInfo
	err := walkFields(payload, func(num protowire.Number, _ protowire.Type, value []byte, _ uint64) error {
		switch num {
		case 1:
			t.Name = string(value)
		case 2: // TypeProto
			return walkFields(value, func(num protowire.Number, _ protowire.Type, value []byte, _ uint64) error {
				if num != 1 { // tensor_type
					return nil
				}
				return walkFields(value, func(num protowire.Number, _ protowire.Type, value []byte, _ uint64) error {
					if num != 2 { // shape
						return nil
					}
					return walkFields(value, func(num protowire.Number, _ protowire.Type, value []byte, _ uint64) error {
						if num != 1 { // dim
							return nil
						}
						var d DimInfo
						if err := walkFields(value, func(num protowire.Number, _ protowire.Type, value []byte, varint uint64) error {
							switch num {
							case 1:
								d.Value = int64(varint)
							case 2:
								d.Param = string(value)
							}
							return nil
						}); err != nil {
							return err
						}
						t.Dims = append(t.Dims, d)
						return nil
					})
				})
			})
		}
		return nil
	})
	return t, err
}

// walkFields iterates the top-level fields of a protobuf message. For bytes
// fields fn receives the payload; for varint fields the decoded value.
func walkFields(payload []byte, fn func(num protowire.Number, typ protowire.Type, value []byte, varint uint64) error) error {
	for len(payload) > 0 {
		num, typ, n := protowire.ConsumeTag(payload)
		if n < 0 {
			return protowire.ParseError(n)
		}
		payload = payload[n:]

		var value []byte
		var varint uint64
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(payload)
			if n < 0 {
				return protowire.ParseError(n)
			}
			varint = v
			payload = payload[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(payload)
			if n < 0 {
				return protowire.ParseError(n)
			}
			value = v
			payload = payload[n:]
		case protowire.Fixed32Type:
			_, n := protowire.ConsumeFixed32(payload)
			if n < 0 {
				return protowire.ParseError(n)
			}
			payload = payload[n:]
		case protowire.Fixed64Type:
			_, n := protowire.ConsumeFixed64(payload)
			if n < 0 {
				return protowire.ParseError(n)
			}
			payload = payload[n:]
		default:
			return fmt.Errorf("unsupported wire type %d", typ)
		}

		if err := fn(num, typ, value, varint); err != nil {
			return err
		}
	}
	return nil
}
