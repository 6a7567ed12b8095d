// Command ast_debug prints the Kotlin syntax tree of a file, or of a
// built-in sample when no file is given. It is a pattern authoring aid.
package main

import (
	"fmt"
	"os"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/declgraph/internal/lang"
	"github.com/DeusData/declgraph/internal/parser"
)

const sample = `package app.billing

import app.models.*
import app.service.UserService as Users

@Service
data class Invoice(private val users: Users, val total: Long = 0) : Base(), Billable<Line> {
    var note: String? = null
    fun <T> bill(lines: List<T>, retry: Int = 1): Receipt = TODO()
}
`

func printAST(node *tree_sitter.Node, source []byte, indent int) {
	if node == nil {
		return
	}
	prefix := strings.Repeat("  ", indent)
	parentKind := "nil"
	if node.Parent() != nil {
		parentKind = node.Parent().Kind()
	}
	text := string(source[node.StartByte():node.EndByte()])
	if len(text) > 60 {
		text = text[:60] + "..."
	}
	marker := ""
	if node.IsError() || node.IsMissing() {
		marker = " !"
	}
	fmt.Printf("%s%s%s (parent=%s) %q\n", prefix, node.Kind(), marker, parentKind, text)
	for i := uint(0); i < node.ChildCount(); i++ {
		printAST(node.Child(i), source, indent+1)
	}
}

func main() {
	source := []byte(sample)
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		source = data
	}

	tree, err := parser.Parse(lang.Kotlin, source)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	defer tree.Close()

	printAST(tree.RootNode(), source, 0)
	if se := parser.CheckSyntax(tree); se != nil {
		fmt.Printf("\n%s\n", se)
	}
}
