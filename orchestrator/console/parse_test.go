package console_test

import (
	"testing"

	"github.com/absmach/sampler/orchestrator/console"
	pkgerrors "github.com/absmach/sampler/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc string
		line string
		want console.Command
		err  error
	}{
		{
			desc: "hello",
			line: "@HELLO",
			want: console.Command{Kind: console.Hello, Line: "@HELLO"},
		},
		{
			desc: "set with both keys",
			line: "@SET N=0.25 M=2",
			want: console.Command{Kind: console.Set, Line: "@SET N=0.25 M=2", Noise: ptr(0.25), Mode: ptr(2)},
		},
		{
			desc: "set without keys",
			line: "@SET",
			want: console.Command{Kind: console.Set, Line: "@SET"},
		},
		{
			desc: "param out of range is kept for clamping",
			line: "@PARAM N=5 B=999 K=9999 M=1",
			want: console.Command{
				Kind:     console.Param,
				Line:     "@PARAM N=5 B=999 K=9999 M=1",
				Noise:    ptr(5.0),
				Bias:     ptr(999),
				Coupling: ptr(9999),
				Mode:     ptr(1),
			},
		},
		{
			desc: "get maps K to count",
			line: "  @GET K=5 STRIDE=2 BURN=3\r",
			want: console.Command{Kind: console.Get, Line: "@GET K=5 STRIDE=2 BURN=3", Count: ptr(5), Stride: ptr(2), BurnIn: ptr(3)},
		},
		{
			desc: "lowercase keys and command",
			line: "@get k=7",
			want: console.Command{Kind: console.Get, Line: "@get k=7", Count: ptr(7)},
		},
		{
			desc: "unrelated keys are ignored",
			line: "@STOP NOW=1",
			want: console.Command{Kind: console.Stop, Line: "@STOP NOW=1"},
		},
		{desc: "status", line: "@STATUS", want: console.Command{Kind: console.Status, Line: "@STATUS"}},
		{desc: "unknown", line: "@FOO", err: pkgerrors.ErrUnknownCommand},
		{desc: "empty", line: "   ", err: pkgerrors.ErrUnknownCommand},
		{desc: "no prefix", line: "HELLO", err: pkgerrors.ErrUnknownCommand},
		{desc: "bad float", line: "@SET N=abc", err: pkgerrors.ErrMalformedEntity},
		{desc: "bad int", line: "@GET K=1.5", err: pkgerrors.ErrMalformedEntity},
		{desc: "missing value", line: "@PARAM B=", err: pkgerrors.ErrMalformedEntity},
		{desc: "bare token", line: "@GET 100", err: pkgerrors.ErrMalformedEntity},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			got, err := console.Parse(tc.line)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
