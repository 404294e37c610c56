package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"reflect"
	"smp2client/message"
	"smp2client/simtest"
	"strings"
	"testing"
)

func startSimulator(t *testing.T) (*simtest.Simulator, string) {
	t.Helper()
	sim := simtest.New()
	if err := sim.Start("tcp://127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sim.Close() })

	_, port, err := net.SplitHostPort(sim.Addr())
	if err != nil {
		t.Fatal(err)
	}
	return sim, port
}

// execute runs smp2ctl with args and returns what it wrote to stdout and stderr.
func execute(stdin string, args ...string) (string, string, error) {
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestHello(t *testing.T) {
	_, port := startSimulator(t)

	out, _, err := execute("", "hello", "sim", "--host", "127.0.0.1", "--port", port, "--log-level", "error")
	if err != nil {
		t.Fatal(err)
	}
	if out != "\"Hello, sim.\"\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestModelRequest(t *testing.T) {
	sim, port := startSimulator(t)

	out, _, err := execute("", "model-request",
		"--operation", "set", "--model", "counter1",
		"--param", "value=3", "--param", "label=abc",
		"--host", "127.0.0.1", "--port", port, "--log-level", "error")
	if err != nil {
		t.Fatal(err)
	}
	if out != "\"success\"\n" {
		t.Fatalf("unexpected output %q", out)
	}

	reqs := sim.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expect 1 request, got %d", len(reqs))
	}
	want := message.Params{"operation": "set", "model": "counter1", "value": float64(3), "label": "abc"}
	if reqs[0].Method != "model_request" || !reflect.DeepEqual(reqs[0].Params, want) {
		t.Fatalf("unexpected request %s %v", reqs[0].Method, reqs[0].Params)
	}
}

func TestModelRequestNeedsModel(t *testing.T) {
	_, port := startSimulator(t)

	if _, _, err := execute("", "model-request", "--operation", "reset", "--host", "127.0.0.1", "--port", port); err == nil {
		t.Fatal("expect an error without --model")
	}
}

// The simulator does not know "hold": the error is logged and nothing is printed.
func TestRemoteErrorPrintsNothing(t *testing.T) {
	_, port := startSimulator(t)

	out, _, err := execute("", "hold", "--host", "127.0.0.1", "--port", port, "--log-level", "fatal")
	if err != nil {
		t.Fatalf("expect no error, got %v", err)
	}
	if out != "" {
		t.Fatalf("expect no output, got %q", out)
	}
}

func TestBatchWithMetrics(t *testing.T) {
	sim, port := startSimulator(t)
	sim.Handle("run", func(message.Params) (any, *message.Error) { return "running", nil })

	script := `# warm up
hello {"name":"batch"}

run
model_request {"operation":"reset","model":"counter1"}
`
	out, errOut, err := execute(script, "batch", "--metrics", "--rate-limit", "100", "--rate-burst", "3",
		"--host", "127.0.0.1", "--port", port, "--log-level", "error")
	if err != nil {
		t.Fatal(err)
	}

	want := "\"Hello, batch.\"\n\"running\"\n\"success\"\n"
	if out != want {
		t.Fatalf("expect %q, got %q", want, out)
	}
	if len(sim.Requests()) != 3 {
		t.Fatalf("expect 3 requests, got %d", len(sim.Requests()))
	}
	if !strings.Contains(errOut, `smp2_client_calls_total{method="model_request"} 1`) {
		t.Fatalf("expect model_request counter in metrics output, got:\n%s", errOut)
	}
}

// A failed call still reports metrics, including the failure itself.
func TestMetricsWrittenOnFailure(t *testing.T) {
	sim, port := startSimulator(t)
	sim.Fail("hold")

	_, errOut, err := execute("", "hold", "--metrics", "--host", "127.0.0.1", "--port", port, "--log-level", "fatal")
	if err == nil {
		t.Fatal("expect the empty reply to fail the command")
	}
	for _, want := range []string{
		`smp2_client_calls_total{method="hold"} 1`,
		`smp2_client_transport_errors_total{method="hold"} 1`,
	} {
		if !strings.Contains(errOut, want) {
			t.Fatalf("expect %s in metrics output, got:\n%s", want, errOut)
		}
	}
}

func TestBatchBadParams(t *testing.T) {
	_, port := startSimulator(t)

	_, _, err := execute("run [1,2]\n", "batch", "--host", "127.0.0.1", "--port", port, "--log-level", "error")
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("expect a line 1 error, got %v", err)
	}
}

func TestInvalidPort(t *testing.T) {
	if _, _, err := execute("", "run", "--port", "0"); err == nil {
		t.Fatal("expect a configuration error")
	}
}

func TestInstancesNeedEtcd(t *testing.T) {
	_, _, err := execute("", "instances", "--log-level", "error")
	if !errors.Is(err, errNoEtcd) {
		t.Fatalf("expect errNoEtcd, got %v", err)
	}
}

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"value=3", "on=true", "name=counter1", "list=[1,2]", "empty="})
	if err != nil {
		t.Fatal(err)
	}
	want := message.Params{
		"value": float64(3),
		"on":    true,
		"name":  "counter1",
		"list":  []any{float64(1), float64(2)},
		"empty": "",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expect %v, got %v", want, got)
	}

	for _, bad := range []string{"novalue", "=3"} {
		if _, err := parseParams([]string{bad}); err == nil {
			t.Errorf("expect an error for %q", bad)
		}
	}
}
