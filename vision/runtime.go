package vision

import (
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// sharedLibPath returns the onnxruntime shared library for the current
// platform.
func sharedLibPath() string {
	if p := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		return "third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
}

// ensureRuntime initializes the ONNX runtime environment exactly once. Both
// the coarse detector and the identity classifier share it.
func ensureRuntime() error {
	runtimeOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		ort.SetSharedLibraryPath(sharedLibPath())
		if err := ort.InitializeEnvironment(); err != nil {
			runtimeErr = errors.Wrap(err, "initializing onnxruntime environment")
		}
	})
	return runtimeErr
}
