package namer

import (
	"context"

	"shelver/internal/fileutil"
	"shelver/internal/naming"
)

// Filename derives a name from "YYYY_Title_Author" or "Title - Author"
// shaped file names.
type Filename struct{}

func (Filename) Suggest(_ context.Context, req Request) (Suggestion, error) {
	stem, _ := fileutil.SplitExt(req.Path)
	inferred, ok := naming.InferFromFilename(stem)
	if !ok || inferred.Title == "" {
		return Suggestion{}, ErrNoSuggestion
	}
	return Suggestion{
		Name:            naming.Compose(inferred.Title, inferred.Author),
		Source:          SourceFilename,
		Title:           inferred.Title,
		Author:          inferred.Author,
		PublicationDate: inferred.Year,
	}, nil
}
