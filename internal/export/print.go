package export

import (
	"context"
	"errors"
	"fmt"
)

// ErrSurfaceBlocked means no display surface could be opened for printing.
var ErrSurfaceBlocked = errors.New("print surface blocked")

// Document is a rendered artifact handed to a surface.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Surface shows a document and can print it.
type Surface interface {
	Render(ctx context.Context, doc Document) error
	Print(ctx context.Context) error
}

// Opener opens a fresh surface per print request.
type Opener interface {
	Open(ctx context.Context) (Surface, error)
}

// Print opens a surface, renders doc on it and prints right away.
func Print(ctx context.Context, opener Opener, doc Document) error {
	if opener == nil {
		return ErrSurfaceBlocked
	}
	surface, err := opener.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrSurfaceBlocked) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrSurfaceBlocked, err)
	}
	if surface == nil {
		return ErrSurfaceBlocked
	}
	if err := surface.Render(ctx, doc); err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	if err := surface.Print(ctx); err != nil {
		return fmt.Errorf("print document: %w", err)
	}
	return nil
}

// HTMLDocument wraps a rendered report.
func HTMLDocument(filename, html string) Document {
	return Document{Filename: filename, ContentType: "text/html; charset=utf-8", Body: []byte(html)}
}

// CSVDocument wraps a CSV export.
func CSVDocument(filename string, body []byte) Document {
	return Document{Filename: filename, ContentType: "text/csv; charset=utf-8", Body: body}
}
