package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const z = string(Sentinel)

func TestSplit(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []Segment
	}{
		{name: "no sentinel", in: "hello", want: []Segment{Text("hello")}},
		{name: "empty", in: "", want: nil},
		{name: "middle", in: "a" + z + "b", want: []Segment{Text("a"), Cursor(), Text("b")}},
		{name: "leading", in: z + "b", want: []Segment{Cursor(), Text("b")}},
		{name: "trailing", in: "a" + z, want: []Segment{Text("a"), Cursor()}},
		{name: "adjacent", in: "a" + z + z + "b", want: []Segment{Text("a"), Cursor(), Cursor(), Text("b")}},
		{name: "only sentinel", in: z, want: []Segment{Cursor()}},
		{name: "multibyte text", in: "héllo" + z + "世界", want: []Segment{Text("héllo"), Cursor(), Text("世界")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Split(tc.in))
		})
	}
}

func TestSplitNeverEmitsEmptyText(t *testing.T) {
	inputs := []string{z + z + z, "x" + z + z, z + "y" + z, strings.Repeat("ab"+z, 5)}
	for _, in := range inputs {
		for _, s := range Split(in) {
			if s.Kind == KindText {
				require.NotEmpty(t, s.Value, "input %q", in)
			}
		}
	}
}

func TestSplitReconstructsText(t *testing.T) {
	inputs := []string{"plain", "a" + z + "b" + z + "c", z + "start", "end" + z, "\xff\xfe" + z + "\xc3"}
	for _, in := range inputs {
		require.Equal(t, Strip(in), Texts(Split(in)))
	}
}

func TestSplitIsIdempotentOnPlainText(t *testing.T) {
	segs := Split("no markers here")
	require.Len(t, segs, 1)
	require.Equal(t, segs, Split(Texts(segs)))
}

func TestJoinAndHasCursor(t *testing.T) {
	require.True(t, HasCursor("typing"+z))
	require.False(t, HasCursor("done"))
	require.Equal(t, "typing▍", Join(Split("typing"+z), "▍"))
	require.Equal(t, "a||b", Join(Split("a"+z+z+"b"), "|"))
}
