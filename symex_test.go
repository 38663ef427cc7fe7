package symex

import (
	"go/token"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoswap-labs/symex/internal/analysis/cfg"
	"github.com/gnoswap-labs/symex/internal/analysis/lattice"
	tt "github.com/gnoswap-labs/symex/internal/types"
)

const source = `package sample

type T struct{ x int }

func Deref(p *T) int {
	if p == nil {
		return p.x
	}
	return 0
}

func Pick(x int) int {
	if x > 10 {
		return 1
	}
	return 2
}
`

type exitSummary struct {
	Threw     bool
	Exception string
	Return    string
}

func summarize(res *Result) []exitSummary {
	var out []exitSummary
	for _, x := range res.ExitStates {
		s := exitSummary{Threw: x.Threw()}
		if s.Threw {
			s.Exception = x.Exception.String()
		} else {
			s.Return = x.Return.String()
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Threw != out[j].Threw {
			return !out[i].Threw
		}
		return out[i].Return < out[j].Return
	})
	return out
}

func TestExploreSource(t *testing.T) {
	t.Parallel()
	graphs, err := ParseFile(token.NewFileSet(), "sample.go", source)
	require.NoError(t, err)
	require.Len(t, graphs, 2)

	tests := []struct {
		name string
		want []exitSummary
	}{
		{
			name: "Deref",
			want: []exitSummary{
				{Return: lattice.NewValue(lattice.NotNull, lattice.NumberOf(0)).String()},
				{Threw: true, Exception: "NullReferenceException"},
			},
		},
		{
			name: "Pick",
			want: []exitSummary{
				{Return: lattice.NewValue(lattice.NotNull, lattice.NumberOf(1)).String()},
				{Return: lattice.NewValue(lattice.NotNull, lattice.NumberOf(2)).String()},
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, err := cfg.FindFunc(graphs, tt.name)
			require.NoError(t, err)
			res := Explore(g)
			require.Equal(t, StatusCompleted, res.Status)
			if diff := cmp.Diff(tt.want, summarize(res)); diff != "" {
				t.Errorf("exit states mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestObserver(t *testing.T) {
	t.Parallel()
	b := cfg.NewBuilder("add")
	i := b.Local("i", cfg.IntType)
	j := b.Local("j", cfg.IntType)
	v := b.Local("value", cfg.IntType)
	sum := b.Binary(cfg.Add, b.Ref(i), b.Ref(j))
	b.Block().Add(
		b.Assign(b.Ref(i), b.Int(42)),
		b.Assign(b.Ref(j), b.Int(5)),
		b.Assign(b.Ref(v), sum),
	)

	o := NewObserver()
	res := Explore(b.Build(), WithObserver(o))
	require.True(t, res.Completed())

	want := lattice.NewValue(lattice.NotNull, lattice.NumberOf(47))
	require.Len(t, o.SymbolValues(v), 1)
	assert.True(t, want.Equal(o.SymbolValues(v)[0]), "got %s", o.SymbolValues(v)[0])
	require.Len(t, o.OperationValues(sum), 1)
	assert.True(t, want.Equal(o.OperationValues(sum)[0]))
	assert.Empty(t, o.SymbolValues(cfg.NewBuilder("other").Local("unused", cfg.IntType)))
}

func TestObserverCollectsEveryPath(t *testing.T) {
	t.Parallel()
	b := cfg.NewBuilder("flag")
	flag := b.Param("flag", cfg.BoolType)
	r := b.Local("r", cfg.IntType)
	head, yes, no, join := b.Block(), b.Block(), b.Block(), b.Block()
	head.Branch(b.Ref(flag), yes, no)
	yes.Add(b.Assign(b.Ref(r), b.Int(1))).Goto(join)
	no.Add(b.Assign(b.Ref(r), b.Int(2))).Goto(join)
	join.Return(b.Ref(r))

	o := NewObserver()
	Explore(b.Build(), WithObserver(o))

	var got []string
	for _, v := range o.SymbolValues(r) {
		got = append(got, v.String())
	}
	assert.ElementsMatch(t, []string{
		lattice.NewValue(lattice.NotNull, lattice.NumberOf(1)).String(),
		lattice.NewValue(lattice.NotNull, lattice.NumberOf(2)).String(),
	}, got)
}

func TestObserverAfterPruningHook(t *testing.T) {
	t.Parallel()
	b := cfg.NewBuilder("prune")
	flag := b.Param("flag", cfg.BoolType)
	r := b.Local("r", cfg.IntType)
	head, yes, no := b.Block(), b.Block(), b.Block()
	head.Branch(b.Ref(flag), yes, no)
	yes.Add(b.Assign(b.Ref(r), b.Int(1))).Return(nil)
	no.Add(b.Assign(b.Ref(r), b.Int(2))).Return(nil)

	prune := WithHook(func(p Point, blk *Block, _ *Operation, s *State) *State {
		if p == PointBlock && blk.Ordinal == 3 {
			return nil
		}
		return s
	})
	o := NewObserver()
	res := Explore(b.Build(), prune, WithObserver(o))
	assert.Len(t, res.ExitStates, 1)
	require.Len(t, o.SymbolValues(r), 1)
	assert.True(t, lattice.NewValue(lattice.NotNull, lattice.NumberOf(1)).Equal(o.SymbolValues(r)[0]))
}

func TestAnalyzer(t *testing.T) {
	t.Parallel()
	issues, err := tt.RunAnalyzer("sample.go", source, Analyzer)
	require.NoError(t, err)
	require.Len(t, issues, 1)

	issue := issues[0]
	assert.Equal(t, "symex", issue.Rule)
	assert.Equal(t, CategoryThrow, issue.Category)
	assert.Equal(t, "Deref may throw NullReferenceException", issue.Message)
	assert.Equal(t, 7, issue.Start.Line)
}

func TestAnalyzerNoFindings(t *testing.T) {
	t.Parallel()
	issues, err := tt.RunAnalyzer("clean.go", "package clean\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n", Analyzer)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestAnalyzerNolint(t *testing.T) {
	t.Parallel()
	src := `package sample

type T struct{ x int }

//nolint:symex
func Deref(p *T) int {
	if p == nil {
		return p.x
	}
	return 0
}

func Inline(p *T) int {
	if p == nil {
		return p.x //nolint
	}
	return 0
}
`
	issues, err := tt.RunAnalyzer("sample.go", src, Analyzer)
	require.NoError(t, err)
	assert.Empty(t, issues)
}
