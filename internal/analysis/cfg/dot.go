package cfg

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// PrintDot writes g in GraphViz DOT form. When loops is non-nil, in-loop
// blocks are drawn filled.
func PrintDot(w io.Writer, g *Graph, loops *LoopDetector) {
	fmt.Fprintf(w, "digraph mgraph {\n")
	fmt.Fprintf(w, "\tmode=\"heir\";\n")
	fmt.Fprintf(w, "\tsplines=\"ortho\";\n\n")

	for _, b := range g.Blocks {
		attrs := []string{fmt.Sprintf("label=%q", blockLabel(b)), "shape=box"}
		if loops != nil && loops.IsInLoop(b) {
			attrs = append(attrs, "style=filled", "fillcolor=lightyellow")
		}
		fmt.Fprintf(w, "\t%q [%s]\n", b.String(), strings.Join(attrs, ", "))
	}
	fmt.Fprintln(w)

	for _, b := range g.Blocks {
		for _, br := range []*Branch{b.ConditionalSuccessor, b.FallThroughSuccessor} {
			if br == nil {
				continue
			}
			to := br.Target(g)
			if to == nil {
				continue
			}
			var label string
			switch {
			case br.IsConditional:
				label = "true"
			case b.IsConditional():
				label = "false"
			case br.Semantics != BranchRegular:
				label = br.Semantics.String()
			}
			if label != "" {
				fmt.Fprintf(w, "\t%q -> %q [label=%q]\n", b.String(), to.String(), label)
			} else {
				fmt.Fprintf(w, "\t%q -> %q\n", b.String(), to.String())
			}
		}
	}
	fmt.Fprintf(w, "}\n")
}

func blockLabel(b *Block) string {
	var sb strings.Builder
	sb.WriteString(b.String())
	for _, op := range b.Operations {
		sb.WriteString("\n")
		sb.WriteString(op.String())
	}
	if b.BranchValue != nil {
		if b.IsConditional() {
			sb.WriteString("\nif ")
		} else {
			sb.WriteString("\nreturn ")
		}
		sb.WriteString(b.BranchValue.String())
	}
	return sb.String()
}

// RenderToGraphVizFile renders DOT source with the dot executable. The
// output format follows the file extension and defaults to svg.
func RenderToGraphVizFile(dot []byte, path string) error {
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if format == "" {
		format = "svg"
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	var stderr bytes.Buffer
	cmd := exec.Command("dot", "-T"+format)
	cmd.Stdin = bytes.NewReader(dot)
	cmd.Stdout = out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run dot: %w: %s", err, stderr.String())
	}
	return nil
}
