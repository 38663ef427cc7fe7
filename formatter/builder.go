package formatter

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"unicode"

	"github.com/fatih/color"
	"golang.org/x/exp/maps"

	tt "github.com/gnoswap-labs/symex/internal/types"
)

const tabWidth = 8

var (
	errorStyle      = color.New(color.FgRed, color.Bold)
	warningStyle    = color.New(color.FgHiYellow, color.Bold)
	ruleStyle       = color.New(color.FgYellow, color.Bold)
	fileStyle       = color.New(color.FgCyan, color.Bold)
	lineStyle       = color.New(color.FgHiBlue, color.Bold)
	messageStyle    = color.New(color.FgRed, color.Bold)
	suggestionStyle = color.New(color.FgGreen, color.Bold)
)

// GenerateFormattedReport renders the reports of one source file. Every
// exit that leaves a function with an exception gets a code snippet
// pointing at the operation that raised it.
func GenerateFormattedReport(reports []tt.Report, snippet *SourceCode) string {
	var builder strings.Builder
	for _, report := range reports {
		builder.WriteString(buildReport(report, snippet))
	}
	return builder.String()
}

// GroupByFile splits reports per file and returns the file names sorted.
func GroupByFile(reports []tt.Report) ([]string, map[string][]tt.Report) {
	byFile := make(map[string][]tt.Report)
	for _, r := range reports {
		byFile[r.Filename] = append(byFile[r.Filename], r)
	}
	files := maps.Keys(byFile)
	sort.Strings(files)
	return files, byFile
}

/***** Report Builder *****/

type ReportData struct {
	Func            string
	Filename        string
	Status          string
	Steps           int
	Line            int
	Column          int
	MaxLineNumWidth int
	Padding         string
	Returns         []tt.Exit
	Thrown          []ThrowData
	SnippetLines    []string
}

type ThrowData struct {
	Exception    string
	Line         int
	Column       int
	CommonIndent string
	State        string
}

const reportTemplate = `{{header .Status .Func .Filename .Line .Column .MaxLineNumWidth -}}
{{range .Returns}}{{returns $.Padding .}}{{end -}}
{{range .Thrown}}{{throws $.Padding $.Filename .}}{{snippet $.SnippetLines .Line $.MaxLineNumWidth .CommonIndent $.Padding}}{{underlineAndMessage .Exception $.Padding .Line .Column $.SnippetLines .CommonIndent}}{{end -}}
{{note .Status .Steps}}
`

var funcMap = template.FuncMap{
	"header":              header,
	"returns":             returns,
	"throws":              throws,
	"snippet":             codeSnippet,
	"underlineAndMessage": underlineAndMessage,
	"note":                note,
}

var tmpl = template.Must(template.New("report").Funcs(funcMap).Parse(reportTemplate))

func buildReport(report tt.Report, snippet *SourceCode) string {
	var lines []string
	if snippet != nil {
		lines = snippet.Lines
	}

	maxLine := report.Start.Line
	for _, x := range report.Thrown() {
		if x.Origin.Line > maxLine {
			maxLine = x.Origin.Line
		}
	}
	maxLineNumWidth := calculateMaxLineNumWidth(maxLine)

	data := ReportData{
		Func:            report.Func,
		Filename:        report.Filename,
		Status:          report.Status,
		Steps:           report.Steps,
		Line:            report.Start.Line,
		Column:          report.Start.Column,
		MaxLineNumWidth: maxLineNumWidth,
		Padding:         strings.Repeat(" ", maxLineNumWidth+1),
		SnippetLines:    lines,
	}
	for _, x := range report.Exits {
		if !x.Threw {
			data.Returns = append(data.Returns, x)
			continue
		}
		t := ThrowData{
			Exception: x.Exception,
			Line:      x.Origin.Line,
			Column:    x.Origin.Column,
			State:     x.State,
		}
		if isValidLineRange(t.Line, t.Line, lines) {
			t.CommonIndent = findCommonIndent(lines[t.Line-1 : t.Line])
		}
		data.Thrown = append(data.Thrown, t)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting report: %v", err)
	}
	return buf.String()
}

// utils functions used in the text template

func header(status, fn, filename string, line, column, maxLineNumWidth int) string {
	var endString string
	if status == "completed" {
		endString = ruleStyle.Sprint("func: ")
	} else {
		endString = warningStyle.Sprint("partial: ")
	}
	endString += ruleStyle.Sprintf("%s\n", fn)

	padding := strings.Repeat(" ", maxLineNumWidth)
	endString += lineStyle.Sprintf("%s--> ", padding)
	endString += fileStyle.Sprintf("%s:%d:%d\n", filename, line, column)
	return endString
}

func returns(padding string, exit tt.Exit) string {
	value := exit.Return
	if value == "" {
		value = "{}"
	}
	endString := lineStyle.Sprintf("%s= ", padding)
	endString += suggestionStyle.Sprintf("returns %s", value)
	if exit.State != "" {
		endString += fmt.Sprintf(" [%s]", exit.State)
	}
	return endString + "\n"
}

func throws(padding, filename string, t ThrowData) string {
	endString := lineStyle.Sprintf("%s= ", padding)
	endString += errorStyle.Sprintf("throws %s", t.Exception)
	if t.Line > 0 {
		endString += fileStyle.Sprintf(" at %s:%d:%d", filename, t.Line, t.Column)
	}
	if t.State != "" {
		endString += fmt.Sprintf(" [%s]", t.State)
	}
	return endString + "\n"
}

func codeSnippet(snippetLines []string, line, maxLineNumWidth int, commonIndent, padding string) string {
	if !isValidLineRange(line, line, snippetLines) {
		return ""
	}
	endString := lineStyle.Sprintf("%s|\n", padding)
	text := strings.TrimPrefix(snippetLines[line-1], commonIndent)
	lineNum := fmt.Sprintf("%*d", maxLineNumWidth, line)
	endString += lineStyle.Sprintf("%s | ", lineNum) + text + "\n"
	return endString
}

// underlineAndMessage marks the raising expression from its column to the
// end of the line.
func underlineAndMessage(message, padding string, line, column int, snippetLines []string, commonIndent string) string {
	if !isValidLineRange(line, line, snippetLines) {
		return ""
	}
	text := snippetLines[line-1]
	commonIndentWidth := calculateVisualColumn(commonIndent, len(commonIndent)+1)

	underlineStart := calculateVisualColumn(text, column) - commonIndentWidth
	if underlineStart < 0 {
		underlineStart = 0
	}
	underlineEnd := calculateVisualColumn(strings.TrimRightFunc(text, unicode.IsSpace), len(text)+1) - commonIndentWidth
	underlineLength := underlineEnd - underlineStart
	if underlineLength < 1 {
		underlineLength = 1
	}

	endString := lineStyle.Sprintf("%s| ", padding)
	endString += strings.Repeat(" ", underlineStart)
	endString += messageStyle.Sprintf("%s\n", strings.Repeat("~", underlineLength))
	endString += lineStyle.Sprintf("%s= ", padding)
	endString += messageStyle.Sprintf("%s raised here\n", message)
	return endString
}

func note(status string, steps int) string {
	if status == "completed" {
		return ""
	}
	endString := suggestionStyle.Sprint("Note: ")
	endString += lineStyle.Sprintf("exploration %s after %d steps, exits are partial\n", status, steps)
	return endString
}

func isValidLineRange(startLine int, endLine int, snippetLines []string) bool {
	return startLine > 0 &&
		endLine > 0 &&
		startLine <= endLine &&
		startLine <= len(snippetLines) &&
		endLine <= len(snippetLines)
}

func calculateMaxLineNumWidth(endLine int) int {
	return len(fmt.Sprintf("%d", endLine))
}

// calculateVisualColumn calculates the visual column position
// in a string. taking into account tab characters.
func calculateVisualColumn(line string, column int) int {
	if column < 0 {
		return 0
	}
	visualColumn := 0
	for i, ch := range line {
		if i+1 == column {
			break
		}
		if ch == '\t' {
			visualColumn += tabWidth - (visualColumn % tabWidth)
		} else {
			visualColumn++
		}
	}
	return visualColumn
}

// findCommonIndent finds the common indent in the code snippet.
func findCommonIndent(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	// find first non-empty line's indent
	firstIndent := make([]rune, 0)
	for _, line := range lines {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed != "" {
			firstIndent = []rune(line[:len(line)-len(trimmed)])
			break
		}
	}

	if len(firstIndent) == 0 {
		return ""
	}

	for _, line := range lines {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed == "" {
			continue
		}

		currentIndent := []rune(line[:len(line)-len(trimmed)])
		firstIndent = commonPrefix(firstIndent, currentIndent)

		if len(firstIndent) == 0 {
			break
		}
	}

	return string(firstIndent)
}

// commonPrefix finds the common prefix of two strings.
func commonPrefix(a, b []rune) []rune {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:minLen]
}
