package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/wikinav/internal/output"
)

type pageItem struct {
	Name string `json:"name" yaml:"name"`
}

type pageList []pageItem

func (l pageList) Text() string {
	var sb strings.Builder
	for _, p := range l {
		sb.WriteString(p.Name)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (l pageList) Table() output.Table {
	t := output.Table{Headers: []string{"NAME"}}
	for _, p := range l {
		t.Rows = append(t.Rows, []string{p.Name})
	}
	return t
}

type pageText struct {
	Name   string `json:"name" yaml:"name"`
	Exists bool   `json:"exists" yaml:"exists"`
	Body   string `json:"text" yaml:"text"`
}

func (p pageText) Text() string {
	if p.Body == "" || strings.HasSuffix(p.Body, "\n") {
		return p.Body
	}
	return p.Body + "\n"
}

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Inspect the page store",
}

var pagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List page names",
	Long: `List the names of all pages in the page store.

Examples:
  wikinav pages list
  wikinav pages list --backend roam --result-limit 20
  wikinav pages list -o json --query '.[].name'`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationStore: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := pageStore.List()
		if err != nil {
			return fmt.Errorf("list pages: %w", err)
		}
		list := make(pageList, 0, len(names))
		for _, n := range names {
			list = append(list, pageItem{Name: n})
		}
		return printResult(cmd, list)
	},
}

var pagesShowCmd = &cobra.Command{
	Use:         "show <name>",
	Short:       "Print the text of a page",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationStore: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := pageStore.Text(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, pageText{Name: args[0], Exists: text != "", Body: text})
	},
}

func init() {
	pagesCmd.AddCommand(pagesListCmd)
	pagesCmd.AddCommand(pagesShowCmd)
	rootCmd.AddCommand(pagesCmd)
}
