package retrieval

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/fumiama/go-docx"
)

// docxParser extracts the body text of a Word document, one paragraph or table
// per block.
type docxParser struct{}

var _ parser.Parser = docxParser{}

func (docxParser) Parse(_ context.Context, reader io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	opt := parser.GetCommonOptions(&parser.Options{}, opts...)

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx %s: %w", opt.URI, err)
	}

	var blocks []string
	for _, item := range doc.Document.Body.Items {
		var text string
		switch it := item.(type) {
		case *docx.Paragraph:
			text = it.String()
		case *docx.Table:
			text = it.String()
		}
		if strings.TrimSpace(text) != "" {
			blocks = append(blocks, text)
		}
	}

	meta := map[string]any{parser.MetaKeySource: opt.URI}
	for k, v := range opt.ExtraMeta {
		meta[k] = v
	}
	return []*schema.Document{{
		Content:  strings.Join(blocks, "\n\n"),
		MetaData: meta,
	}}, nil
}
