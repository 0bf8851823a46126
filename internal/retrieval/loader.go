package retrieval

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

var supportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".pdf":      true,
	".docx":     true,
}

// newFileParser dispatches on the file extension. Plain text formats go
// through the fallback parser.
func newFileParser(ctx context.Context) (parser.Parser, error) {
	pdfParser, err := pdf.NewPDFParser(ctx, &pdf.Config{})
	if err != nil {
		return nil, fmt.Errorf("init pdf parser: %w", err)
	}
	return parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers: map[string]parser.Parser{
			".pdf":  pdfParser,
			".docx": docxParser{},
		},
		FallbackParser: parser.TextParser{},
	})
}

// LoadDocuments reads every supported file under root. Document IDs and the
// source metadata are paths relative to root.
func LoadDocuments(ctx context.Context, root string) ([]*schema.Document, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)

	p, err := newFileParser(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]*schema.Document, 0, len(paths))
	for _, path := range paths {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		parsed, err := parseFile(ctx, p, path, rel)
		if err != nil {
			return nil, err
		}
		docs = append(docs, parsed...)
	}
	return docs, nil
}

func parseFile(ctx context.Context, p parser.Parser, path, rel string) ([]*schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	ext := filepath.Ext(path)
	uri := strings.TrimSuffix(path, ext) + strings.ToLower(ext)
	parsed, err := p.Parse(ctx, f,
		parser.WithURI(uri),
		parser.WithExtraMeta(map[string]any{payloadSource: rel}),
	)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	docs := make([]*schema.Document, 0, len(parsed))
	for _, doc := range parsed {
		if doc == nil || strings.TrimSpace(doc.Content) == "" {
			continue
		}
		docs = append(docs, doc)
	}
	for i, doc := range docs {
		doc.ID = rel
		if len(docs) > 1 {
			doc.ID = rel + "#" + strconv.Itoa(i+1)
		}
		if doc.MetaData == nil {
			doc.MetaData = map[string]any{}
		}
		doc.MetaData[payloadSource] = rel
	}
	return docs, nil
}
