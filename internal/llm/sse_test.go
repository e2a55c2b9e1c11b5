package llm

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestScanSSE_SkipsNonDataFrames(t *testing.T) {
	stream := strings.Join([]string{
		": keepalive comment",
		"event: message_start",
		"id: 42",
		"data: one",
		"",
		"data:two",
		"data: ",
		"retry: 1000",
		"data: three",
		"",
	}, "\n")

	var got []string
	err := scanSSE(strings.NewReader(stream), func(p string) error {
		got = append(got, p)
		return nil
	})
	if err != nil {
		t.Fatalf("scanSSE: %v", err)
	}
	if want := []string{"one", "two", "three"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("payloads = %#v, want %#v", got, want)
	}
}

func TestScanSSE_CallbackErrorStopsScan(t *testing.T) {
	stop := errors.New("stop")
	var n int
	err := scanSSE(strings.NewReader("data: a\ndata: b\n"), func(string) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if n != 1 {
		t.Fatalf("callback invoked %d times, want 1", n)
	}
}

func TestScanSSE_LargeFrame(t *testing.T) {
	// synthesis frames can exceed the default scanner buffer
	big := strings.Repeat("x", 200*1024)
	var got string
	err := scanSSE(strings.NewReader("data: "+big+"\n"), func(p string) error {
		got = p
		return nil
	})
	if err != nil {
		t.Fatalf("scanSSE: %v", err)
	}
	if got != big {
		t.Fatalf("large frame truncated: got %d bytes", len(got))
	}
}
