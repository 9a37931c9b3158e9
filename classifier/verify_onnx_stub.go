//go:build !onnxrt

package classifier

import (
	"fmt"

	"textclass/onnx"
)

// VerifyExport checks the exported model's IO signature with the in-tree
// reader. Builds with the onnxrt tag use ONNX Runtime instead.
func VerifyExport(path string) error {
	info, err := onnx.ReadInfo(path)
	if err != nil {
		return err
	}
	if len(info.Inputs) != 1 || (info.Inputs[0].Name != "input" && info.Inputs[0].Name != "input_ids") {
		return fmt.Errorf("unexpected model inputs in %s", path)
	}
	if len(info.Outputs) != 1 || info.Outputs[0].Name != "output" {
		return fmt.Errorf("unexpected model outputs in %s", path)
	}
	return nil
}
