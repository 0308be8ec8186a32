package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
	"github.com/MemoFlux/MemoFluxServer/pkg/objects"
)

// ReadContent builds the content of a local run. imagePath wins over text;
// with neither, the text is read from stdin.
func ReadContent(text, imagePath string, stdin io.Reader) (extract.Content, error) {
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return extract.Content{}, fmt.Errorf("failed to read image: %w", err)
		}
		mime := http.DetectContentType(data)
		if !strings.HasPrefix(mime, "image/") {
			return extract.Content{}, fmt.Errorf("%s: %w (detected %s)", imagePath, objects.ErrNotImage, mime)
		}
		return extract.NewImage(mime, data), nil
	}
	if text != "" {
		return extract.NewText(text), nil
	}
	if stdin == nil {
		return extract.Content{}, fmt.Errorf("no input: use --text, --image or pipe text to stdin")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return extract.Content{}, fmt.Errorf("failed to read stdin: %w", err)
	}
	return extract.NewText(string(data)), nil
}
