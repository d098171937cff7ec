package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"toolpath/internal/document"
)

// readInput reads name, or standard input when name is "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("--input is required")
	}
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func readDocument(cmd *cobra.Command, name string) (document.Document, error) {
	data, err := readInput(cmd, name)
	if err != nil {
		return document.Document{}, err
	}
	doc, err := document.Parse(data)
	if err != nil {
		return document.Document{}, fmt.Errorf("parsing %s: %w", name, err)
	}
	return doc, nil
}

func writeDocument(cmd *cobra.Command, doc document.Document, pretty bool) error {
	data, err := document.Serialize(doc, pretty)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func writeJSON(cmd *cobra.Command, v any, pretty bool) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	_, err := cmd.OutOrStdout().Write(buf.Bytes())
	return err
}

// selectPath picks the path a command works on. Graph documents use the
// inline path named by id, or the first inline path when id is empty.
func selectPath(doc document.Document, id string) (*document.Path, error) {
	switch doc.Kind() {
	case document.KindPath:
		if id != "" && id != doc.Path().ID() {
			return nil, fmt.Errorf("path %q not found", id)
		}
		return doc.Path(), nil
	case document.KindGraph:
		paths := doc.Graph().InlinePaths()
		if len(paths) == 0 {
			return nil, fmt.Errorf("graph %q has no inline paths", doc.ID())
		}
		if id == "" {
			return paths[0], nil
		}
		for _, p := range paths {
			if p.ID() == id {
				return p, nil
			}
		}
		return nil, fmt.Errorf("path %q not found in graph %q", id, doc.ID())
	}
	return nil, fmt.Errorf("%s documents have no path", doc.Kind())
}
