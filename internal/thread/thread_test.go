package thread

import (
	"errors"
	"os"
	"runtime"
	"testing"
)

func init() {
	runtime.LockOSThread()
}

func TestMain(m *testing.M) {
	code := 0
	Main(func() { code = m.Run() })
	os.Exit(code)
}

func TestCall(t *testing.T) {
	value := 0
	Call(func() { value = 1 })
	if value != 1 {
		t.Errorf("wrong value %v", value)
	}
}

func TestCallErr(t *testing.T) {
	want := errors.New("boom")
	if err := CallErr(func() error { return want }); err != want {
		t.Errorf("err = %v, want %v", err, want)
	}
}
