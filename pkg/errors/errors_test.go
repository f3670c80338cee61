package errors_test

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	xe "github.com/opst/bridgepipeline/pkg/errors"
)

type MyErr struct{}

func (MyErr) Error() string {
	return "error type for test"
}

func createError() error {
	return xe.Wrap(MyErr{})
}

func TestNewError(t *testing.T) {
	t.Run("it knows location where it is created.", func(t *testing.T) {
		testee := createError()
		errMessage := testee.Error()

		_, thisFile, _, _ := runtime.Caller(0)

		if !strings.Contains(errMessage, "createError") {
			t.Errorf("it does not know function name: %s", errMessage)
		}

		if !strings.Contains(errMessage, thisFile) {
			t.Errorf("it does not know file (%s): %s", thisFile, errMessage)
		}
	})

	t.Run("it supports errors protocol", func(t *testing.T) {
		rootError := MyErr{}

		err := xe.Wrap(
			fmt.Errorf(
				"%w",
				fmt.Errorf("%w", rootError),
			),
		)

		if !errors.Is(err, rootError) {
			t.Error("it does not support unwrapping.")
		}
	})
}

func TestWrap(t *testing.T) {
	t.Run("wrapping nil gives nil", func(t *testing.T) {
		if err := xe.Wrap(nil); err != nil {
			t.Errorf("Wrap(nil) = %v, want nil", err)
		}
		if err := xe.Notef(nil, "%d", 1); err != nil {
			t.Errorf("Notef(nil) = %v, want nil", err)
		}
	})

	t.Run("note is put in message", func(t *testing.T) {
		err := xe.Notef(MyErr{}, "configmap %s", "job1-bridge-cm")
		if !strings.Contains(err.Error(), "(configmap job1-bridge-cm)") {
			t.Errorf("note is missing: %s", err.Error())
		}
		if !strings.HasSuffix(err.Error(), "<- error type for test") {
			t.Errorf("cause is missing: %s", err.Error())
		}
	})

	t.Run("it points the caller", func(t *testing.T) {
		err := xe.Wrap(MyErr{})
		var ewc *xe.ErrWithCaller
		if !errors.As(err, &ewc) {
			t.Fatalf("not ErrWithCaller: %T", err)
		}
		if !strings.HasSuffix(ewc.Func(), "TestWrap.func3") {
			t.Errorf("unexpected func: %s", ewc.Func())
		}
		if ewc.Line() <= 0 {
			t.Errorf("unexpected line: %d", ewc.Line())
		}
	})
}
