//go:build onnxrt

package classifier

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// VerifyExport opens the exported model with ONNX Runtime and checks that the
// declared IO signature matches the strategy contract. Requires the onnxrt
// build tag and a local ONNX Runtime shared library.
func VerifyExport(path string) error {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}
	ins, outs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return fmt.Errorf("get IO info: %w", err)
	}
	if len(ins) != 1 || (ins[0].Name != "input" && ins[0].Name != "input_ids") {
		return fmt.Errorf("unexpected model inputs: %v", ins)
	}
	if len(outs) != 1 || outs[0].Name != "output" {
		return fmt.Errorf("unexpected model outputs: %v", outs)
	}
	return nil
}
